package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const partitionReadAttempts = 5

// createKafkaTopicIfNotExists ensures the transfer topic is present before
// the writer starts, so the first publish never races topic auto-creation.
func createKafkaTopicIfNotExists(conn *kafka.Conn, topicName string, numPartitions int, replicationFactor int, log *slog.Logger) error {
	var partitions []kafka.Partition
	var err error

	for attempt := 1; attempt <= partitionReadAttempts; attempt++ {
		partitions, err = conn.ReadPartitions(topicName)
		if err == nil {
			break
		}
		log.Warn("Failed to read topic partitions, retrying", "topic", topicName, "attempt", attempt, "error", err)
		time.Sleep(2 * time.Second)
	}

	if len(partitions) > 0 {
		log.Info("Kafka topic already exists", "topic", topicName, "partitions", len(partitions))
		return nil
	}

	if numPartitions == 0 {
		numPartitions = 1
	}
	if replicationFactor == 0 {
		replicationFactor = 1
	}

	log.Info("Kafka topic not found, creating it",
		"topic", topicName, "partitions", numPartitions, "replication_factor", replicationFactor)
	if createErr := conn.CreateTopics(kafka.TopicConfig{
		Topic:             topicName,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	}); createErr != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topicName, createErr)
	}

	log.Info("Created Kafka topic", "topic", topicName)
	return nil
}
