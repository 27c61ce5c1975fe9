package components

import (
	"context"
	"log/slog"
	"time"

	"github.com/remitgrid-transfer-core/internal/config"
	"github.com/remitgrid-transfer-core/internal/domain/settlement"
	"github.com/remitgrid-transfer-core/internal/domain/shared"
	"github.com/remitgrid-transfer-core/internal/domain/transfer"
	"github.com/remitgrid-transfer-core/internal/metrics"
	"github.com/remitgrid-transfer-core/internal/orchestrator/service"
)

// CompensatorImpl implements the service.Compensator interface
type CompensatorImpl struct {
	ledger         service.LedgerManager
	journal        service.JournalRecorder
	settlementRepo settlement.Repository
	metrics        *metrics.Metrics
	maxRetries     int
	baseBackoff    time.Duration
	logger         *slog.Logger
}

// NewCompensator creates a new compensator
func NewCompensator(
	ledger service.LedgerManager,
	journal service.JournalRecorder,
	settlementRepo settlement.Repository,
	m *metrics.Metrics,
	cfg *config.OrchestratorConfig,
	logger *slog.Logger,
) service.Compensator {
	return &CompensatorImpl{
		ledger:         ledger,
		journal:        journal,
		settlementRepo: settlementRepo,
		metrics:        m,
		maxRetries:     cfg.CompensationMaxRetries,
		baseBackoff:    cfg.CompensationBaseBackoff,
		logger:         logger,
	}
}

// Compensate unwinds the reservation of a transfer whose settlement failed.
// The release is retried with doubling backoff; when the budget runs out the
// transfer goes to MANUAL_REVIEW with the reservation still held, never
// silently dropped.
func (c *CompensatorImpl) Compensate(ctx context.Context, tr *transfer.Transfer, reason shared.FailureReason, cause error) error {
	logger := c.logger.With("transfer_id", tr.ID.String())

	if tr.State != shared.TransferStateCompensating {
		if err := c.journal.RecordTransition(ctx, tr, shared.TransferStateCompensating, string(reason)); err != nil {
			return err
		}
	}

	var releaseErr error
	backoff := c.baseBackoff
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		releaseErr = c.ledger.ReleaseReservation(ctx, tr)
		if releaseErr == nil {
			if err := c.journal.RecordTransition(ctx, tr, shared.TransferStateFailed, string(reason)); err != nil {
				return err
			}
			c.metrics.TransfersByOutcome.WithLabelValues(string(shared.TransferStateFailed)).Inc()
			logger.Info("Compensation complete, reservation released",
				"reason", string(reason),
				"attempts", attempt,
			)
			return nil
		}

		logger.Warn("Failed to release reservation, backing off",
			"attempt", attempt,
			"backoff", backoff.String(),
			"error", releaseErr,
		)
		if attempt < c.maxRetries {
			c.metrics.CompensationRetries.Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	return c.escalate(ctx, logger, tr, releaseErr)
}

// escalate parks the transfer in MANUAL_REVIEW after exhausted compensation.
// The reservation stays held and an escalation document gives the operator
// the context to resolve it.
func (c *CompensatorImpl) escalate(ctx context.Context, logger *slog.Logger, tr *transfer.Transfer, lastErr error) error {
	reason := string(shared.FailureReasonCompensationExhausted)
	if err := c.journal.RecordTransition(ctx, tr, shared.TransferStateManualReview, reason); err != nil {
		return err
	}

	c.metrics.ReviewEscalations.Inc()
	c.metrics.TransfersByOutcome.WithLabelValues(string(shared.TransferStateManualReview)).Inc()

	lastError := ""
	if lastErr != nil {
		lastError = lastErr.Error()
	}
	escalation := &settlement.ReviewEscalation{
		TransferID:     tr.ID,
		SenderID:       tr.SenderID,
		ReservedAmount: tr.ReservationAmount(),
		AssetCode:      tr.SourceAsset.Code,
		ExternalRef:    tr.ExternalRef,
		LastError:      lastError,
		Reason:         reason,
		CreatedAt:      time.Now(),
	}
	if err := c.settlementRepo.SaveEscalation(ctx, escalation); err != nil {
		logger.Error("Failed to archive review escalation", "error", err)
	}

	logger.Error("Compensation exhausted, transfer parked for manual review",
		"attempts", c.maxRetries,
		"last_error", lastError,
	)
	return nil
}
