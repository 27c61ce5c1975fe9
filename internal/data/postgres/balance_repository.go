// Package postgres provides PostgreSQL implementations of the domain
// repositories. It handles all database operations while maintaining
// transaction safety and proper error handling for the transfer core.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/remitgrid-transfer-core/internal/domain/balance"
	"github.com/remitgrid-transfer-core/internal/domain/shared"
	"github.com/remitgrid-transfer-core/internal/platform/persistence"
)

// BalanceRepository implements the balance.Repository interface for PostgreSQL
type BalanceRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewBalanceRepository creates a new PostgreSQL balance repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewBalanceRepository(logger *slog.Logger, db *persistence.PostgresDB) balance.Repository {
	return &BalanceRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic
// operations across multiple repository calls.
func (r *BalanceRepository) WithTx(tx pgx.Tx) balance.Repository {
	return &BalanceRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new balance row. A duplicate user/asset pair will surface
// as a database constraint error.
func (r *BalanceRepository) Create(ctx context.Context, bal *balance.AccountBalance) error {
	query := `
		INSERT INTO account_balances (user_id, asset_code, asset_issuer, amount, reserved_amount, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.querier.Exec(ctx, query,
		bal.UserID,
		bal.Asset.Code,
		bal.Asset.Issuer,
		bal.Amount,
		bal.ReservedAmount,
		bal.Version,
		bal.CreatedAt,
		bal.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create balance", "error", err)
		return fmt.Errorf("failed to create balance: %w", err)
	}

	return nil
}

// Get retrieves a balance for a user/asset pair
func (r *BalanceRepository) Get(ctx context.Context, userID uuid.UUID, asset shared.Asset) (*balance.AccountBalance, error) {
	query := `
		SELECT user_id, asset_code, asset_issuer, amount, reserved_amount, version, created_at, updated_at
		FROM account_balances
		WHERE user_id = $1 AND asset_code = $2 AND asset_issuer = $3
	`

	var bal balance.AccountBalance
	err := r.querier.QueryRow(ctx, query, userID, asset.Code, asset.Issuer).Scan(
		&bal.UserID,
		&bal.Asset.Code,
		&bal.Asset.Issuer,
		&bal.Amount,
		&bal.ReservedAmount,
		&bal.Version,
		&bal.CreatedAt,
		&bal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, balance.ErrBalanceNotFound{UserID: userID, AssetCode: asset.Code}
		}
		r.logger.Error("Failed to get balance", "user_id", userID.String(), "asset", asset.Code, "error", err)
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	return &bal, nil
}

// GetByUserID retrieves all balances held by a user
func (r *BalanceRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]*balance.AccountBalance, error) {
	query := `
		SELECT user_id, asset_code, asset_issuer, amount, reserved_amount, version, created_at, updated_at
		FROM account_balances
		WHERE user_id = $1
		ORDER BY asset_code
	`

	rows, err := r.querier.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to query balances by user", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to query balances by user: %w", err)
	}
	defer rows.Close()

	var balances []*balance.AccountBalance
	for rows.Next() {
		var bal balance.AccountBalance
		err := rows.Scan(
			&bal.UserID,
			&bal.Asset.Code,
			&bal.Asset.Issuer,
			&bal.Amount,
			&bal.ReservedAmount,
			&bal.Version,
			&bal.CreatedAt,
			&bal.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance row: %w", err)
		}
		balances = append(balances, &bal)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}

	return balances, nil
}

// Reserve atomically moves amount from available into reserved using
// optimistic locking. The WHERE clause enforces both the version check and
// the available-funds invariant, so a zero row count is disambiguated with a
// follow-up read: a stale version means ErrConcurrentModification, an intact
// version means ErrInsufficientFunds.
func (r *BalanceRepository) Reserve(ctx context.Context, userID uuid.UUID, asset shared.Asset, amount int64, expectedVersion int) (int, error) {
	query := `
		UPDATE account_balances
		SET reserved_amount = reserved_amount + $1, version = version + 1, updated_at = NOW()
		WHERE user_id = $2 AND asset_code = $3 AND asset_issuer = $4
			AND version = $5
			AND amount - reserved_amount >= $1
	`

	result, err := r.querier.Exec(ctx, query, amount, userID, asset.Code, asset.Issuer, expectedVersion)
	if err != nil {
		r.logger.Error("Failed to reserve funds", "user_id", userID.String(), "asset", asset.Code, "error", err)
		return 0, fmt.Errorf("failed to reserve funds: %w", err)
	}

	if result.RowsAffected() == 0 {
		current, getErr := r.Get(ctx, userID, asset)
		if getErr != nil {
			return 0, getErr
		}
		if current.Version != expectedVersion {
			return 0, balance.ErrConcurrentModification{UserID: userID, AssetCode: asset.Code}
		}
		return 0, balance.ErrInsufficientFunds
	}

	return expectedVersion + 1, nil
}

// Commit finalizes a reservation: the funds leave the balance entirely
func (r *BalanceRepository) Commit(ctx context.Context, userID uuid.UUID, asset shared.Asset, amount int64) error {
	query := `
		UPDATE account_balances
		SET amount = amount - $1, reserved_amount = reserved_amount - $1, version = version + 1, updated_at = NOW()
		WHERE user_id = $2 AND asset_code = $3 AND asset_issuer = $4
			AND reserved_amount >= $1
	`

	result, err := r.querier.Exec(ctx, query, amount, userID, asset.Code, asset.Issuer)
	if err != nil {
		r.logger.Error("Failed to commit reservation", "user_id", userID.String(), "asset", asset.Code, "error", err)
		return fmt.Errorf("failed to commit reservation: %w", err)
	}

	if result.RowsAffected() == 0 {
		return balance.ErrNothingReserved
	}

	return nil
}

// Release returns a reservation to the available balance
func (r *BalanceRepository) Release(ctx context.Context, userID uuid.UUID, asset shared.Asset, amount int64) error {
	query := `
		UPDATE account_balances
		SET reserved_amount = reserved_amount - $1, version = version + 1, updated_at = NOW()
		WHERE user_id = $2 AND asset_code = $3 AND asset_issuer = $4
			AND reserved_amount >= $1
	`

	result, err := r.querier.Exec(ctx, query, amount, userID, asset.Code, asset.Issuer)
	if err != nil {
		r.logger.Error("Failed to release reservation", "user_id", userID.String(), "asset", asset.Code, "error", err)
		return fmt.Errorf("failed to release reservation: %w", err)
	}

	if result.RowsAffected() == 0 {
		return balance.ErrNothingReserved
	}

	return nil
}
