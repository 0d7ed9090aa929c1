package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

// topicPublisher is the slice of *pubsub.Publisher the drain loop needs.
type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type publisherFactory func(topic string) topicPublisher

// gcpTopic adapts a Pub/Sub v2 publisher to topicPublisher.
type gcpTopic struct {
	pub *gcppubsub.Publisher
}

func gcpPublisherFactory(client pubSubClient) publisherFactory {
	return func(topic string) topicPublisher {
		pub := client.Publisher(topic)
		if pub == nil {
			return nil
		}
		return gcpTopic{pub: pub}
	}
}

func (t gcpTopic) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return gcpResult{res: t.pub.Publish(ctx, msg)}
}

type gcpResult struct {
	res *gcppubsub.PublishResult
}

func (r gcpResult) Get(ctx context.Context) (string, error) {
	if r.res == nil {
		return "", errors.New("publish result is nil")
	}
	return r.res.Get(ctx)
}
