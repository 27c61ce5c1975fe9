package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// MessagePublisher publishes transfer messages to the primary topic. The key
// should be the transfer ID so all events for one transfer land on the same
// partition.
type MessagePublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Close() error
}

// DeadLetterPublisher routes undecodable or poison messages to the DLQ topic
// together with the failure reason.
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, key string, payload []byte, reason string) error
	Close() error
}

// KafkaWriter abstracts kafka.Writer for testing.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
