package components

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/remitgrid-transfer-core/internal/domain/journal"
	"github.com/remitgrid-transfer-core/internal/domain/shared"
	"github.com/remitgrid-transfer-core/internal/domain/transfer"
	"github.com/remitgrid-transfer-core/internal/orchestrator/service"
	"github.com/remitgrid-transfer-core/internal/platform/persistence"
)

// JournalRecorderImpl implements the service.JournalRecorder interface.
// Transfer row and journal entry are written in one database transaction, so
// a transition either happened durably with its audit record or not at all.
type JournalRecorderImpl struct {
	pgDB         *persistence.PostgresDB
	transferRepo transfer.Repository
	journalRepo  journal.Repository
	logger       *slog.Logger
}

// NewJournalRecorder creates a new journal recorder
func NewJournalRecorder(
	pgDB *persistence.PostgresDB,
	transferRepo transfer.Repository,
	journalRepo journal.Repository,
	logger *slog.Logger,
) service.JournalRecorder {
	return &JournalRecorderImpl{
		pgDB:         pgDB,
		transferRepo: transferRepo,
		journalRepo:  journalRepo,
		logger:       logger,
	}
}

// RecordCreation persists a new transfer together with its first journal
// entry. The entry's from and to state are both CREATED, marking the origin
// of the transition chain.
func (r *JournalRecorderImpl) RecordCreation(ctx context.Context, tr *transfer.Transfer) error {
	return r.pgDB.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := r.transferRepo.WithTx(tx).Create(ctx, tr); err != nil {
			return err
		}
		entry := journal.NewEntry(tr.ID, shared.TransferStateCreated, shared.TransferStateCreated, "")
		return r.journalRepo.WithTx(tx).Append(ctx, entry)
	})
}

// RecordTransition applies a state transition and persists the updated
// transfer with its journal entry atomically. An illegal transition fails
// before anything touches the database.
func (r *JournalRecorderImpl) RecordTransition(ctx context.Context, tr *transfer.Transfer, to shared.TransferState, reason string) error {
	from := tr.State
	if err := tr.TransitionTo(to); err != nil {
		r.logger.Error("Illegal transfer state transition",
			"transfer_id", tr.ID.String(),
			"from", string(from),
			"to", string(to),
		)
		return err
	}
	if reason != "" {
		tr.FailureReason = reason
	}

	err := r.pgDB.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := r.transferRepo.WithTx(tx).UpdateState(ctx, tr); err != nil {
			return err
		}
		entry := journal.NewEntry(tr.ID, from, to, reason)
		return r.journalRepo.WithTx(tx).Append(ctx, entry)
	})
	if err != nil {
		// Roll the in-memory state back so the caller sees what the
		// database sees.
		tr.State = from
		return err
	}

	r.logger.Debug("Recorded transfer transition",
		"transfer_id", tr.ID.String(),
		"from", string(from),
		"to", string(to),
	)
	return nil
}
