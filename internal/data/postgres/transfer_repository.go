package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/remitgrid-transfer-core/internal/domain/shared"
	"github.com/remitgrid-transfer-core/internal/domain/transfer"
	"github.com/remitgrid-transfer-core/internal/platform/persistence"
)

// uniqueViolationCode is the PostgreSQL error code for unique constraint violations
const uniqueViolationCode = "23505"

// TransferRepository implements the transfer.Repository interface for PostgreSQL
type TransferRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewTransferRepository creates a new PostgreSQL transfer repository
func NewTransferRepository(logger *slog.Logger, db *persistence.PostgresDB) transfer.Repository {
	return &TransferRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *TransferRepository) WithTx(tx pgx.Tx) transfer.Repository {
	return &TransferRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create inserts a new transfer. The unique index on idempotency_key absorbs
// concurrent duplicates; the loser gets ErrDuplicateIdempotencyKey.
func (r *TransferRepository) Create(ctx context.Context, tr *transfer.Transfer) error {
	query := `
		INSERT INTO transfers (
			id, sender_id, recipient_name, recipient_address, recipient_country,
			amount, source_asset_code, source_asset_issuer, target_asset_code, target_asset_issuer,
			payment_method, insured, idempotency_key, state, external_ref, redemption_code, failure_reason,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := r.querier.Exec(ctx, query,
		tr.ID,
		tr.SenderID,
		tr.Recipient.Name,
		tr.Recipient.Address,
		tr.Recipient.Country,
		tr.Amount,
		tr.SourceAsset.Code,
		tr.SourceAsset.Issuer,
		tr.TargetAsset.Code,
		tr.TargetAsset.Issuer,
		tr.PaymentMethod,
		tr.Insured,
		tr.IdempotencyKey,
		tr.State,
		tr.ExternalRef,
		tr.RedemptionCode,
		tr.FailureReason,
		tr.CreatedAt,
		tr.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return transfer.ErrDuplicateIdempotencyKey{IdempotencyKey: tr.IdempotencyKey}
		}
		r.logger.Error("Failed to create transfer", "id", tr.ID.String(), "error", err)
		return fmt.Errorf("failed to create transfer: %w", err)
	}

	return nil
}

// GetByID retrieves a transfer by its ID
func (r *TransferRepository) GetByID(ctx context.Context, id uuid.UUID) (*transfer.Transfer, error) {
	query := selectTransferQuery + ` WHERE id = $1`

	tr, err := r.scanTransfer(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transfer.ErrTransferNotFound{TransferID: id}
		}
		r.logger.Error("Failed to get transfer", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get transfer: %w", err)
	}

	return tr, nil
}

// GetByIdempotencyKey retrieves a transfer by its idempotency key.
// Returns nil, nil when no transfer carries the key.
func (r *TransferRepository) GetByIdempotencyKey(ctx context.Context, key string) (*transfer.Transfer, error) {
	query := selectTransferQuery + ` WHERE idempotency_key = $1`

	tr, err := r.scanTransfer(r.querier.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get transfer by idempotency key", "key", key, "error", err)
		return nil, fmt.Errorf("failed to get transfer by idempotency key: %w", err)
	}

	return tr, nil
}

// UpdateState persists the transfer's state, external reference, redemption
// code and failure reason
func (r *TransferRepository) UpdateState(ctx context.Context, tr *transfer.Transfer) error {
	query := `
		UPDATE transfers
		SET state = $1, external_ref = $2, redemption_code = $3, failure_reason = $4, updated_at = $5
		WHERE id = $6
	`

	result, err := r.querier.Exec(ctx, query,
		tr.State,
		tr.ExternalRef,
		tr.RedemptionCode,
		tr.FailureReason,
		tr.UpdatedAt,
		tr.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update transfer state", "id", tr.ID.String(), "error", err)
		return fmt.Errorf("failed to update transfer state: %w", err)
	}

	if result.RowsAffected() == 0 {
		return transfer.ErrTransferNotFound{TransferID: tr.ID}
	}

	return nil
}

// ListByState returns transfers in the given states whose last update is
// older than the cutoff, oldest first
func (r *TransferRepository) ListByState(ctx context.Context, states []shared.TransferState, updatedBefore time.Time, limit int) ([]*transfer.Transfer, error) {
	query := selectTransferQuery + `
		WHERE state = ANY($1) AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3
	`

	stateStrings := make([]string, len(states))
	for i, s := range states {
		stateStrings[i] = string(s)
	}

	rows, err := r.querier.Query(ctx, query, stateStrings, updatedBefore, limit)
	if err != nil {
		r.logger.Error("Failed to list transfers by state", "error", err)
		return nil, fmt.Errorf("failed to list transfers by state: %w", err)
	}
	defer rows.Close()

	var transfers []*transfer.Transfer
	for rows.Next() {
		tr, err := r.scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer row: %w", err)
		}
		transfers = append(transfers, tr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transfer rows: %w", err)
	}

	return transfers, nil
}

const selectTransferQuery = `
	SELECT id, sender_id, recipient_name, recipient_address, recipient_country,
		amount, source_asset_code, source_asset_issuer, target_asset_code, target_asset_issuer,
		payment_method, insured, idempotency_key, state, external_ref, redemption_code, failure_reason,
		created_at, updated_at
	FROM transfers`

func (r *TransferRepository) scanTransfer(row pgx.Row) (*transfer.Transfer, error) {
	var tr transfer.Transfer
	err := row.Scan(
		&tr.ID,
		&tr.SenderID,
		&tr.Recipient.Name,
		&tr.Recipient.Address,
		&tr.Recipient.Country,
		&tr.Amount,
		&tr.SourceAsset.Code,
		&tr.SourceAsset.Issuer,
		&tr.TargetAsset.Code,
		&tr.TargetAsset.Issuer,
		&tr.PaymentMethod,
		&tr.Insured,
		&tr.IdempotencyKey,
		&tr.State,
		&tr.ExternalRef,
		&tr.RedemptionCode,
		&tr.FailureReason,
		&tr.CreatedAt,
		&tr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tr, nil
}
