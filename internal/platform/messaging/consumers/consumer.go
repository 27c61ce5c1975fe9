package consumers

import (
	"context"
	"log/slog"
	"time"

	"github.com/remitgrid-transfer-core/internal/config"
	"github.com/segmentio/kafka-go"
)

// MessageHandler processes one transfer message. A non-nil error leaves the
// offset uncommitted so the message is redelivered.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer is the message queue consumer contract used by the orchestrator.
type Consumer interface {
	Subscribe(ctx context.Context, topic string, groupID string, handler MessageHandler) error
	Close() error
}

// KafkaConsumer reads transfer messages from the transfer topic as part of a
// consumer group.
type KafkaConsumer struct {
	reader *kafka.Reader
	logger *slog.Logger
}

func NewKafkaConsumer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig) *KafkaConsumer {
	return &KafkaConsumer{
		logger: logger,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     []string{cfg.Brokers},
			Topic:       cfg.TransferTopic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    cfg.MinBytes,
			MaxBytes:    cfg.MaxBytes,
			MaxWait:     cfg.MaxWait,
			StartOffset: kafka.FirstOffset,
		}),
	}
}

// Subscribe starts the fetch loop in a goroutine and returns immediately. The
// loop runs until ctx is canceled.
func (c *KafkaConsumer) Subscribe(ctx context.Context, topic string, groupID string, handler MessageHandler) error {
	c.logger.Info("Subscribed to Kafka topic", "topic", topic, "group_id", groupID)

	go func() {
		for ctx.Err() == nil {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.Info("Consumer stopping", "topic", topic, "group_id", groupID)
					return
				}
				c.logger.Error("Failed to fetch message from Kafka",
					"topic", topic, "group_id", groupID, "error", err)
				time.Sleep(time.Second)
				continue
			}

			c.handleFetched(ctx, msg, handler)
		}
	}()

	return nil
}

// handleFetched runs the handler and commits the offset only on success, so
// failed transfers are redelivered or routed to the DLQ by the handler.
func (c *KafkaConsumer) handleFetched(ctx context.Context, msg kafka.Message, handler MessageHandler) {
	c.logger.Debug("Received message from Kafka",
		"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))

	if err := handler(ctx, msg.Key, msg.Value); err != nil {
		c.logger.Error("Failed to process message, offset left uncommitted",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset,
			"key", string(msg.Key), "error", err)
		return
	}

	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("Failed to commit offset after processing",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset,
			"key", string(msg.Key), "error", err)
		return
	}

	c.logger.Debug("Committed message offset",
		"topic", msg.Topic, "offset", msg.Offset, "key", string(msg.Key))
}

func (c *KafkaConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
