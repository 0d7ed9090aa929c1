package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/billing-webhooks/pkg/config"
	"github.com/angelmondragon/billing-webhooks/pkg/logger"
)

// Seat-quantity corrections are prorated like any other mid-cycle seat change.
const seatProrationBehavior = "create_prorations"

var (
	errAPIKeyRequired = errors.New("stripe api key is required")
	errSecretRequired = errors.New("stripe webhook secret is required")
)

// keyPrefixes lists the secret and restricted key prefixes valid in each environment.
var keyPrefixes = map[string][]string{
	config.StripeEnvTest: {"sk_test_", "rk_test_"},
	config.StripeEnvLive: {"sk_live_", "rk_live_"},
}

// Client is the slice of the Stripe API the reconciler and seat-drift job use, plus
// webhook signature verification.
type Client struct {
	api       *stripe.Client
	env       string
	secrets   []string
	tolerance time.Duration
}

func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := cfg.Environment()
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return nil, fmt.Errorf("stripe environment must be %q or %q", config.StripeEnvTest, config.StripeEnvLive)
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if !hasAnyPrefix(apiKey, prefixes) {
		return nil, fmt.Errorf("stripe environment %q requires a key starting with %s", env, strings.Join(prefixes, " or "))
	}
	secrets := cfg.SigningSecrets()
	if len(secrets) == 0 {
		return nil, errSecretRequired
	}

	backend := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: positiveOr(cfg.Timeout, 10*time.Second)},
		MaxNetworkRetries: stripe.Int64(max(cfg.MaxNetworkRetries, 0)),
	}
	if logg != nil {
		backend.LeveledLogger = leveledLogger{ctx: ctx, logg: logg}
		logg.Info(logg.WithFields(ctx, map[string]any{
			"stripe_env":      env,
			"signing_secrets": len(secrets),
		}), "stripe client initialized")
	}
	return &Client{
		api:       stripe.NewClient(apiKey, stripe.WithBackends(stripe.NewBackendsWithConfig(backend))),
		env:       env,
		secrets:   secrets,
		tolerance: positiveOr(cfg.SignatureTolerance, webhook.DefaultTolerance),
	}, nil
}

// RetrieveSubscription loads a subscription with each item's price and product expanded.
func (c *Client) RetrieveSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionRetrieveParams{}
	params.AddExpand("items.data.price.product")
	return c.api.V1Subscriptions.Retrieve(ctx, subscriptionID, params)
}

// UpdateSubscriptionItemQuantity sets the seat quantity on a subscription item.
func (c *Client) UpdateSubscriptionItemQuantity(ctx context.Context, itemID string, quantity int64) error {
	_, err := c.api.V1SubscriptionItems.Update(ctx, itemID, &stripe.SubscriptionItemUpdateParams{
		Quantity:          stripe.Int64(quantity),
		ProrationBehavior: stripe.String(seatProrationBehavior),
	})
	return err
}

// ConstructEvent verifies the Stripe-Signature header against each configured signing
// secret and parses the event on the first match. Events rendered with a different API
// version are accepted; handlers decode only the fields they need.
func (c *Client) ConstructEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	opts := webhook.ConstructEventOptions{
		Tolerance:                c.tolerance,
		IgnoreAPIVersionMismatch: true,
	}
	var errs []error
	for _, secret := range c.secrets {
		event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, opts)
		if err == nil {
			return event, nil
		}
		if !errors.Is(err, webhook.ErrNoValidSignature) {
			return stripe.Event{}, err
		}
		errs = append(errs, err)
	}
	return stripe.Event{}, errors.Join(errs...)
}

// Environment reports "test" or "live".
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.env
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func positiveOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// leveledLogger routes stripe-go's request logging into the service logger. Debug
// output is dropped.
type leveledLogger struct {
	ctx  context.Context
	logg *logger.Logger
}

func (l leveledLogger) Debugf(string, ...any) {}

func (l leveledLogger) Infof(format string, v ...any) {
	l.logg.Debug(l.ctx, "stripe: "+fmt.Sprintf(format, v...))
}

func (l leveledLogger) Warnf(format string, v ...any) {
	l.logg.Warn(l.ctx, "stripe: "+fmt.Sprintf(format, v...))
}

func (l leveledLogger) Errorf(format string, v ...any) {
	l.logg.Error(l.ctx, "stripe: "+fmt.Sprintf(format, v...), nil)
}
