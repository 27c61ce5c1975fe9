package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/remitgrid-transfer-core/internal/config"
	"github.com/remitgrid-transfer-core/internal/data/mongo"
	"github.com/remitgrid-transfer-core/internal/data/postgres"
	"github.com/remitgrid-transfer-core/internal/gateway"
	"github.com/remitgrid-transfer-core/internal/logger"
	"github.com/remitgrid-transfer-core/internal/metrics"
	"github.com/remitgrid-transfer-core/internal/orchestrator/components"
	"github.com/remitgrid-transfer-core/internal/orchestrator/consumer"
	"github.com/remitgrid-transfer-core/internal/orchestrator/reconciler"
	"github.com/remitgrid-transfer-core/internal/orchestrator/recovery"
	"github.com/remitgrid-transfer-core/internal/orchestrator/service"
	"github.com/remitgrid-transfer-core/internal/platform/messaging/consumers"
	"github.com/remitgrid-transfer-core/internal/platform/messaging/producers"
	"github.com/remitgrid-transfer-core/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("transfer_orchestrator")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Transfer Orchestrator",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	transferRepo := postgres.NewTransferRepository(log, postgresDB)
	balanceRepo := postgres.NewBalanceRepository(log, postgresDB)
	journalRepo := postgres.NewJournalRepository(log, postgresDB)
	settlementRepo := mongo.NewSettlementRepository(log, mongoDB.Database())

	// Initialize settlement gateways with immutable configs
	sorobanGateway := gateway.NewSorobanGateway(log, gateway.SorobanConfig{
		RPCURL:       cfg.Gateway.SorobanRPCURL,
		ContractID:   cfg.Gateway.SorobanContractID,
		AssetIssuers: cfg.Gateway.AssetIssuers,
		Timeout:      cfg.Gateway.Timeout,
	})
	mpesaGateway := gateway.NewMpesaGateway(log, gateway.MpesaConfig{
		BaseURL:        cfg.Gateway.MpesaBaseURL,
		ConsumerKey:    cfg.Gateway.MpesaConsumerKey,
		ConsumerSecret: cfg.Gateway.MpesaConsumerSecret,
		ShortCode:      cfg.Gateway.MpesaShortCode,
		Timeout:        cfg.Gateway.Timeout,
	})
	gateways := gateway.NewSelector(sorobanGateway, mpesaGateway)

	// Initialize Kafka consumer
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Initialize Kafka DLQ producer
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	// dlqProducer might be nil if DLQTopic is not configured. Handler is nil-safe.

	m := metrics.New()

	// Initialize orchestration service with separated concerns
	orchestrationService := components.CreateOrchestrationService(
		postgresDB,
		transferRepo,
		balanceRepo,
		journalRepo,
		settlementRepo,
		gateways,
		m,
		log,
		cfg,
	)

	// Run the crash recovery scan before pulling new work. Transfers stranded
	// mid-orchestration by the previous run resume from their journaled state.
	recoveryScanner := recovery.NewScanner(transferRepo, journalRepo, orchestrationService, log)
	if err := recoveryScanner.Run(appCtx); err != nil {
		log.Error("Crash recovery scan failed", "error", err)
		os.Exit(1)
	}

	// Initialize transfer event handler
	transferEventHandler := consumer.NewTransferEventHandler(
		log,
		orchestrationService,
		dlqProducer,
	)

	// Initialize settlement reconciler
	poller := reconciler.NewPoller(
		&cfg.Reconciler,
		transferRepo,
		orchestrationService,
		log,
	)

	// Create error channel for service errors
	errChan := make(chan error, 2)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumer in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.TransferTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.TransferTopic, cfg.Kafka.ConsumerGroup, transferEventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	// Start settlement reconciler in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Settlement Reconciler",
			"interval", cfg.Reconciler.PollInterval.String(),
			"batch_size", cfg.Reconciler.BatchSize,
		)
		poller.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Shutdown the worker pool if it's a WorkerPoolOrchestrationService
	if wpService, ok := orchestrationService.(*service.WorkerPoolOrchestrationService); ok {
		log.Info("Shutting down worker pool", "running_workers", wpService.Running())
		wpService.Shutdown()
	}

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Close DLQ Kafka producer
	if dlqProducer != nil { // dlqProducer can be nil if DLQTopic was not configured
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	// Close Kafka consumer
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Transfer Orchestrator shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Transfer Orchestrator shutdown completed with errors")
	} else {
		log.Info("Transfer Orchestrator shutdown completed successfully")
	}
}
