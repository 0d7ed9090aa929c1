package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/billing-webhooks/pkg/config"
	"github.com/angelmondragon/billing-webhooks/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
	// ErrTopicNotFound is returned when a configured topic is missing in the project.
	ErrTopicNotFound = errors.New("pubsub topic not found")
)

// Client hands out one batching publisher per topic and stops them all on Close.
type Client struct {
	gcp      *pubsub.Client
	project  string
	cfg      config.PubSubConfig
	settings pubsub.PublishSettings

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient dials Pub/Sub and refuses to start unless the notification topic exists.
// PUBSUB_EMULATOR_HOST is honored by the underlying library.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	conn, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	c := &Client{
		gcp:        conn,
		project:    project,
		cfg:        cfg,
		settings:   publishSettings(cfg),
		publishers: map[string]*pubsub.Publisher{},
	}
	if err := c.checkTopic(ctx, cfg.NotificationTopic); err != nil {
		return nil, errors.Join(err, conn.Close())
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project": project,
			"topic":   cfg.NotificationTopic,
		}), "pubsub client initialized")
	}
	return c, nil
}

func publishSettings(cfg config.PubSubConfig) pubsub.PublishSettings {
	settings := pubsub.DefaultPublishSettings
	if cfg.BatchDelay > 0 {
		settings.DelayThreshold = cfg.BatchDelay
	}
	if cfg.BatchCount > 0 {
		settings.CountThreshold = cfg.BatchCount
	}
	if cfg.PublishTimeout > 0 {
		settings.Timeout = cfg.PublishTimeout
	}
	return settings
}

func (c *Client) checkTopic(ctx context.Context, name string) error {
	topic, err := TopicName(c.project, name)
	if err != nil {
		return err
	}
	_, err = c.gcp.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topic})
	switch {
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%w: %s", ErrTopicNotFound, topic)
	case err != nil:
		return fmt.Errorf("get topic %s: %w", topic, err)
	}
	return nil
}

// Publisher returns the shared publisher for a topic id or full resource name, or nil
// when the name is blank.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.gcp == nil {
		return nil
	}
	topic, err := TopicName(c.project, name)
	if err != nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if pub, ok := c.publishers[topic]; ok {
		return pub
	}
	pub := c.gcp.Publisher(topic)
	pub.PublishSettings = c.settings
	c.publishers[topic] = pub
	return pub
}

// Ping checks that the notification topic still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.gcp == nil {
		return errNotInitialized
	}
	return c.checkTopic(ctx, c.cfg.NotificationTopic)
}

// Close flushes every publisher handed out, then closes the connection.
func (c *Client) Close() error {
	if c == nil || c.gcp == nil {
		return nil
	}
	c.mu.Lock()
	for topic, pub := range c.publishers {
		pub.Stop()
		delete(c.publishers, topic)
	}
	c.mu.Unlock()
	return c.gcp.Close()
}

// TopicName expands a bare topic id into projects/<project>/topics/<id>. Full resource
// names pass through untouched.
func TopicName(project, name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", errors.New("topic name is required")
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/topics/"):
		return name, nil
	case strings.TrimSpace(project) == "":
		return "", errProjectIDRequired
	}
	return fmt.Sprintf("projects/%s/topics/%s", strings.TrimSpace(project), name), nil
}
