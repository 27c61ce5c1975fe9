// Package components provides the building blocks of transfer orchestration:
// balance reservation, durable journaling and compensation.
package components

import (
	"context"
	"errors"
	"log/slog"

	"github.com/remitgrid-transfer-core/internal/config"
	"github.com/remitgrid-transfer-core/internal/domain/balance"
	"github.com/remitgrid-transfer-core/internal/domain/transfer"
	"github.com/remitgrid-transfer-core/internal/metrics"
	"github.com/remitgrid-transfer-core/internal/orchestrator/service"
)

// LedgerManagerImpl implements the service.LedgerManager interface
type LedgerManagerImpl struct {
	balanceRepo balance.Repository
	metrics     *metrics.Metrics
	maxRetries  int
	logger      *slog.Logger
}

// NewLedgerManager creates a new ledger manager
func NewLedgerManager(balanceRepo balance.Repository, m *metrics.Metrics, cfg *config.OrchestratorConfig, logger *slog.Logger) service.LedgerManager {
	return &LedgerManagerImpl{
		balanceRepo: balanceRepo,
		metrics:     m,
		maxRetries:  cfg.LedgerCASMaxRetries,
		logger:      logger,
	}
}

// ReserveFunds places a hold on the sender's balance. Each attempt re-reads
// the row and retries the compare-and-swap on version conflict, up to the
// configured budget; business failures pass through unchanged.
func (m *LedgerManagerImpl) ReserveFunds(ctx context.Context, tr *transfer.Transfer) error {
	amount := tr.ReservationAmount()

	for attempt := 1; attempt <= m.maxRetries; attempt++ {
		bal, err := m.balanceRepo.Get(ctx, tr.SenderID, tr.SourceAsset)
		if err != nil {
			return err
		}

		_, err = m.balanceRepo.Reserve(ctx, tr.SenderID, tr.SourceAsset, amount, bal.Version)
		if err == nil {
			m.logger.Debug("Reserved funds",
				"transfer_id", tr.ID.String(),
				"sender_id", tr.SenderID.String(),
				"amount", amount,
			)
			return nil
		}

		if errors.Is(err, balance.ErrConcurrentModification{}) {
			m.metrics.ReservationConflicts.Inc()
			m.logger.Debug("Reservation CAS conflict, retrying",
				"transfer_id", tr.ID.String(),
				"attempt", attempt,
			)
			continue
		}

		return err
	}

	return balance.ErrConcurrentModification{UserID: tr.SenderID, AssetCode: tr.SourceAsset.Code}
}

// CommitReservation finalizes the hold after confirmed settlement.
// A missing reservation means a previous attempt already committed; the
// operation is idempotent under crash retries.
func (m *LedgerManagerImpl) CommitReservation(ctx context.Context, tr *transfer.Transfer) error {
	err := m.balanceRepo.Commit(ctx, tr.SenderID, tr.SourceAsset, tr.ReservationAmount())
	if errors.Is(err, balance.ErrNothingReserved) {
		m.logger.Warn("No reservation to commit, assuming already committed",
			"transfer_id", tr.ID.String(),
		)
		return nil
	}
	return err
}

// ReleaseReservation returns the hold to the available balance, idempotent
// the same way as CommitReservation
func (m *LedgerManagerImpl) ReleaseReservation(ctx context.Context, tr *transfer.Transfer) error {
	err := m.balanceRepo.Release(ctx, tr.SenderID, tr.SourceAsset, tr.ReservationAmount())
	if errors.Is(err, balance.ErrNothingReserved) {
		m.logger.Warn("No reservation to release, assuming already released",
			"transfer_id", tr.ID.String(),
		)
		return nil
	}
	return err
}
