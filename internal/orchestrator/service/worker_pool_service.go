package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/remitgrid-transfer-core/internal/domain/shared"
	"github.com/remitgrid-transfer-core/internal/domain/transfer"
)

// WorkerPoolOrchestrationService implements the OrchestrationService interface
type WorkerPoolOrchestrationService struct {
	baseService OrchestrationService
	pool        *ants.Pool
	logger      *slog.Logger
	// Use a mutex to protect access to the results map
	mu      sync.Mutex
	results map[string]chan error
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolOrchestrationService(
	baseService OrchestrationService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolOrchestrationService, error) {
	// Create a new worker pool with the specified size
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolOrchestrationService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
		results:     make(map[string]chan error),
	}, nil
}

// ProcessTransfer submits a transfer request to the worker pool for processing.
func (s *WorkerPoolOrchestrationService) ProcessTransfer(ctx context.Context, msg *shared.TransferMessage) error {
	logger := s.logger
	if msg.CorrelationID != "" {
		logger = s.logger.With("correlation_id", msg.CorrelationID)
	}

	logger.Info("Submitting transfer to worker pool",
		"transfer_id", msg.TransferID.String(),
		"sender_id", msg.SenderID.String(),
	)

	// Create a channel to receive the result of the transfer processing
	resultChan := make(chan error, 1)

	// Store the result channel in the result map
	transferID := msg.TransferID.String()
	s.mu.Lock()
	s.results[transferID] = resultChan
	s.mu.Unlock()

	// Create a copy of the message to avoid data races
	msgCopy := *msg

	// Submit the task to the worker pool
	err := s.pool.Submit(func() {
		// Process the transfer using the base service
		err := s.baseService.ProcessTransfer(ctx, &msgCopy)

		// Send the result to the channel
		resultChan <- err

		// Remove the result channel from the map
		s.mu.Lock()
		delete(s.results, transferID)
		close(resultChan)
		s.mu.Unlock()
	})

	if err != nil {
		// If we couldn't submit the task to the pool, remove the result channel
		s.mu.Lock()
		delete(s.results, transferID)
		close(resultChan)
		s.mu.Unlock()

		logger.Error("Failed to submit transfer to worker pool",
			"transfer_id", msg.TransferID.String(),
			"error", err,
		)
		return err
	}

	// Wait for the result from the worker
	return <-resultChan
}

// ResumeTransfer runs resumption directly on the base service. Resumes come
// from the reconciler and recovery scan, which pace themselves.
func (s *WorkerPoolOrchestrationService) ResumeTransfer(ctx context.Context, tr *transfer.Transfer) error {
	return s.baseService.ResumeTransfer(ctx, tr)
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolOrchestrationService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolOrchestrationService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolOrchestrationService) Capacity() int {
	return s.pool.Cap()
}
