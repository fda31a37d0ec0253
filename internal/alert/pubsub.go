package alert

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
)

// PubSubConfig holds configuration for the Pub/Sub sink.
type PubSubConfig struct {
	ProjectID string
	TopicName string
}

// PubSubNotifier publishes alerts to a Pub/Sub topic so downstream pagers
// and dashboards can consume them.
type PubSubNotifier struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topicName string
}

// NewPubSubNotifier creates a Pub/Sub sink.
func NewPubSubNotifier(ctx context.Context, cfg PubSubConfig) (*PubSubNotifier, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &PubSubNotifier{
		client:    client,
		publisher: client.Publisher(cfg.TopicName),
		topicName: cfg.TopicName,
	}, nil
}

// Notify publishes the alert and waits for the server acknowledgment.
func (n *PubSubNotifier) Notify(ctx context.Context, a Alert) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	result := n.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"kind":    string(a.Kind),
			"service": a.Service,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish alert to %s: %w", n.topicName, err)
	}
	return nil
}

// Close flushes pending publishes and closes the client.
func (n *PubSubNotifier) Close() error {
	n.publisher.Stop()
	return n.client.Close()
}
