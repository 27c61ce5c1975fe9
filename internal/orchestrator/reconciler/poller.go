// Package reconciler periodically resumes transfers waiting on external
// settlement, so confirmations are never lost to a missed fast-path poll.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/remitgrid-transfer-core/internal/config"
	"github.com/remitgrid-transfer-core/internal/domain/shared"
	"github.com/remitgrid-transfer-core/internal/domain/transfer"
	"github.com/remitgrid-transfer-core/internal/orchestrator/service"
)

// pendingStates are the non-terminal states the reconciler is responsible for
// driving forward. RESERVED is included because a transfer can strand there
// when the submission journal write fails after the message was acknowledged;
// the hold would otherwise sit until a restart.
var pendingStates = []shared.TransferState{
	shared.TransferStateReserved,
	shared.TransferStateSubmitted,
	shared.TransferStateExternalPending,
	shared.TransferStateCompensating,
}

// Poller drives pending transfers toward a terminal state
type Poller struct {
	transferRepo transfer.Repository
	orchestrator service.OrchestrationService
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int
}

func NewPoller(
	cfg *config.ReconcilerConfig,
	transferRepo transfer.Repository,
	orchestrator service.OrchestrationService,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		transferRepo: transferRepo,
		orchestrator: orchestrator,
		logger:       logger,
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
	}
}

// Start begins polling until context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting settlement reconciler",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Settlement reconciler stopping due to context cancellation.")
			return
		case <-ticker.C:
			p.logger.Debug("Reconciler tick: resuming pending transfers")
			if err := p.reconcilePending(ctx); err != nil {
				p.logger.Error("Error during reconciliation batch", "error", err)
			}
		}
	}
}

// reconcilePending resumes one batch of pending transfers, oldest first.
// Only rows untouched for a full poll interval are picked up, which keeps the
// reconciler off transfers the orchestrator is actively working on.
func (p *Poller) reconcilePending(ctx context.Context) error {
	cutoff := time.Now().Add(-p.pollInterval)
	transfers, err := p.transferRepo.ListByState(ctx, pendingStates, cutoff, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list pending transfers: %w", err)
	}

	if len(transfers) == 0 {
		p.logger.Debug("No pending transfers found.")
		return nil
	}

	p.logger.Info("Fetched pending transfers for reconciliation", "count", len(transfers))

	for _, tr := range transfers {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := p.orchestrator.ResumeTransfer(ctx, tr); err != nil {
			p.logger.Error("Failed to resume pending transfer",
				"transfer_id", tr.ID.String(),
				"state", string(tr.State),
				"error", err,
			)
			// Leave it for the next tick, keep going with the batch.
			continue
		}
	}
	return nil
}
