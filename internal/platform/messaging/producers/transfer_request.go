package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/remitgrid-transfer-core/internal/config"
	"github.com/segmentio/kafka-go"
)

type TransferMessageProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewTransferMessageProducer creates the API gateway producer and ensures the topic exists
func NewTransferMessageProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*TransferMessageProducer, error) {
	if cfg.TransferTopic == "" {
		return nil, fmt.Errorf("kafka transfer topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for transfer producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.TransferTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure transfer topic %s exists: %w", cfg.TransferTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.TransferTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true, // Using async for high throughput
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write messages asynchronously", "topic", cfg.TransferTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Successfully wrote messages asynchronously", "topic", cfg.TransferTopic, "count", len(messages))
			}
		},
	}

	return &TransferMessageProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.TransferTopic,
	}, nil
}

func (p *TransferMessageProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message value for transfer producer: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish message via transfer producer",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to %s via transfer producer: %w", p.topic, err)
	}

	p.logger.Debug("Published message via transfer producer",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *TransferMessageProducer) Close() error {
	p.logger.Info("Closing transfer Kafka message producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close transfer kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
