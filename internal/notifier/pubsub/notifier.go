// Package pubsub delivers terminal run notifications over Google Cloud
// Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"go.uber.org/zap"

	"github.com/seoscope/siteaudit/internal/audit"
)

// Notifier publishes one message per finished audit run.
type Notifier struct {
	publisher *pubsub.Publisher
	logger    *zap.Logger
}

// New creates a Notifier publishing to the given project and topic.
func New(ctx context.Context, projectID, topicID string, logger *zap.Logger) (*Notifier, error) {
	if projectID == "" || topicID == "" {
		return nil, fmt.Errorf("pubsub project and topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &Notifier{publisher: client.Publisher(topicID), logger: logger}, nil
}

// NewWithPublisher wraps an existing publisher (primarily for testing).
func NewWithPublisher(publisher *pubsub.Publisher, logger *zap.Logger) *Notifier {
	return &Notifier{publisher: publisher, logger: logger}
}

// Notify marshals the notification to JSON and publishes it. Run ID and
// status ride along as attributes so subscribers can filter without
// unmarshaling.
func (n *Notifier) Notify(ctx context.Context, note audit.Notification) error {
	if n.publisher == nil {
		return fmt.Errorf("pubsub publisher is not configured")
	}
	data, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"run_id": note.Run.ID,
			"status": string(note.Run.Status),
		},
	}
	result := n.publisher.Publish(ctx, msg)
	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	n.logger.Debug("notification published",
		zap.String("run_id", note.Run.ID),
		zap.String("message_id", id),
	)
	return nil
}
