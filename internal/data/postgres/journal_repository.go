package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/remitgrid-transfer-core/internal/domain/journal"
	"github.com/remitgrid-transfer-core/internal/platform/persistence"
)

// JournalRepository implements the journal.Repository interface for PostgreSQL
type JournalRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewJournalRepository creates a new PostgreSQL journal repository
func NewJournalRepository(logger *slog.Logger, db *persistence.PostgresDB) journal.Repository {
	return &JournalRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction. Appends that must be atomic
// with a transfer state update run through this.
func (r *JournalRepository) WithTx(tx pgx.Tx) journal.Repository {
	return &JournalRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Append inserts a journal entry, assigning the next per-transfer sequence
// number inside the statement. The unique index on (transfer_id, seq) catches
// concurrent appends for the same transfer.
func (r *JournalRepository) Append(ctx context.Context, entry *journal.Entry) error {
	query := `
		INSERT INTO transfer_journal (transfer_id, seq, from_state, to_state, reason, created_at)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5
		FROM transfer_journal
		WHERE transfer_id = $1
		RETURNING id, seq
	`

	err := r.querier.QueryRow(ctx, query,
		entry.TransferID,
		entry.FromState,
		entry.ToState,
		entry.Reason,
		entry.CreatedAt,
	).Scan(&entry.ID, &entry.Seq)
	if err != nil {
		r.logger.Error("Failed to append journal entry", "transfer_id", entry.TransferID.String(), "error", err)
		return fmt.Errorf("failed to append journal entry: %w", err)
	}

	return nil
}

// GetByTransferID returns all entries for a transfer ordered by sequence
func (r *JournalRepository) GetByTransferID(ctx context.Context, transferID uuid.UUID) ([]*journal.Entry, error) {
	query := `
		SELECT id, transfer_id, seq, from_state, to_state, reason, created_at
		FROM transfer_journal
		WHERE transfer_id = $1
		ORDER BY seq ASC
	`

	rows, err := r.querier.Query(ctx, query, transferID)
	if err != nil {
		r.logger.Error("Failed to query journal entries", "transfer_id", transferID.String(), "error", err)
		return nil, fmt.Errorf("failed to query journal entries: %w", err)
	}
	defer rows.Close()

	var entries []*journal.Entry
	for rows.Next() {
		var entry journal.Entry
		err := rows.Scan(
			&entry.ID,
			&entry.TransferID,
			&entry.Seq,
			&entry.FromState,
			&entry.ToState,
			&entry.Reason,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal rows: %w", err)
	}

	return entries, nil
}

// GetLast returns the most recent entry for a transfer
func (r *JournalRepository) GetLast(ctx context.Context, transferID uuid.UUID) (*journal.Entry, error) {
	query := `
		SELECT id, transfer_id, seq, from_state, to_state, reason, created_at
		FROM transfer_journal
		WHERE transfer_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`

	var entry journal.Entry
	err := r.querier.QueryRow(ctx, query, transferID).Scan(
		&entry.ID,
		&entry.TransferID,
		&entry.Seq,
		&entry.FromState,
		&entry.ToState,
		&entry.Reason,
		&entry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, journal.ErrNoEntries{TransferID: transferID}
		}
		r.logger.Error("Failed to get last journal entry", "transfer_id", transferID.String(), "error", err)
		return nil, fmt.Errorf("failed to get last journal entry: %w", err)
	}

	return &entry, nil
}
