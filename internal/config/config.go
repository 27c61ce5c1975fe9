// Package config provides configuration structures and validation for the
// service. It handles environment-based configuration for all major
// components including server settings, database connections, message queues,
// settlement gateways, and orchestration parameters.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete application configuration with settings for all
// components. Each field represents a major subsystem's configuration and is
// validated during application startup.
type Config struct {
	Application  ApplicationConfig
	Logging      LoggingConfig
	Server       ServerConfig
	Kafka        KafkaConfig
	Postgres     PostgresConfig
	MongoDB      MongoDBConfig
	WorkerPool   WorkerPoolConfig
	Orchestrator OrchestratorConfig
	Reconciler   ReconcilerConfig
	Gateway      GatewayConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers           string
	TransferTopic     string
	NumPartitions     int // Number of partitions for topics
	ReplicationFactor int // Replication factor for topics
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string // Topic for Dead Letter Queue
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int // Maximum number of workers in the pool
}

// OrchestratorConfig bounds the retry budgets of the money-movement core
type OrchestratorConfig struct {
	LedgerCASMaxRetries     int           // Reservation CAS attempts before giving up
	GatewaySubmitMaxRetries int           // Transient submit retries before compensation
	CompensationMaxRetries  int           // Release attempts before MANUAL_REVIEW
	CompensationBaseBackoff time.Duration // First compensation retry delay, doubles per attempt
}

// ReconcilerConfig controls the settlement reconciliation poller
type ReconcilerConfig struct {
	PollInterval  time.Duration
	BatchSize     int
	MaxPendingAge time.Duration // EXTERNAL_PENDING older than this escalates to review
}

// GatewayConfig contains settlement gateway configuration. Values are copied
// into immutable adapter configs at construction; adapters never read the
// environment themselves.
type GatewayConfig struct {
	Timeout time.Duration // Per-call timeout shared by both adapters

	SorobanRPCURL     string
	SorobanContractID string
	AssetIssuers      map[string]string // Asset code -> issuer account

	MpesaBaseURL        string
	MpesaConsumerKey    string
	MpesaConsumerSecret string
	MpesaShortCode      string
}

// validate performs comprehensive validation of all configuration values,
// ensuring they meet minimum requirements and logical constraints
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate Kafka config
	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.TransferTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_TRANSFER_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}
	if c.Kafka.DLQTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_DLQ_TOPIC is required")
	}

	// Validate PostgreSQL config
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate MongoDB config
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MinPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MIN_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MaxConnIdleTime <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate WorkerPool config
	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	// Validate Orchestrator config
	if c.Orchestrator.LedgerCASMaxRetries <= 0 {
		validationErrors = append(validationErrors, "LEDGER_CAS_MAX_RETRIES must be greater than 0")
	}
	if c.Orchestrator.GatewaySubmitMaxRetries <= 0 {
		validationErrors = append(validationErrors, "GATEWAY_SUBMIT_MAX_RETRIES must be greater than 0")
	}
	if c.Orchestrator.CompensationMaxRetries <= 0 {
		validationErrors = append(validationErrors, "COMPENSATION_MAX_RETRIES must be greater than 0")
	}
	if c.Orchestrator.CompensationBaseBackoff <= 0 {
		validationErrors = append(validationErrors, "COMPENSATION_BASE_BACKOFF must be greater than 0")
	}

	// Validate Reconciler config
	if c.Reconciler.PollInterval <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_POLL_INTERVAL must be greater than 0")
	}
	if c.Reconciler.BatchSize <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_BATCH_SIZE must be greater than 0")
	}
	if c.Reconciler.MaxPendingAge <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_MAX_PENDING_AGE must be greater than 0")
	}

	// Validate Gateway config
	if c.Gateway.Timeout <= 0 {
		validationErrors = append(validationErrors, "GATEWAY_TIMEOUT must be greater than 0")
	}
	if c.Gateway.SorobanRPCURL == "" {
		validationErrors = append(validationErrors, "SOROBAN_RPC_URL is required")
	}
	if c.Gateway.SorobanContractID == "" {
		validationErrors = append(validationErrors, "SOROBAN_CONTRACT_ID is required")
	}
	if c.Gateway.MpesaBaseURL == "" {
		validationErrors = append(validationErrors, "MPESA_BASE_URL is required")
	}
	if c.Gateway.MpesaShortCode == "" {
		validationErrors = append(validationErrors, "MPESA_SHORT_CODE is required")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
