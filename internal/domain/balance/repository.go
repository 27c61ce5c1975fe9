package balance

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/remitgrid-transfer-core/internal/domain/shared"
)

// Repository is the ledger store contract. Reserve, Commit and Release are
// single-row atomic updates guarded by an optimistic version check; a stale
// version fails fast with ErrConcurrentModification instead of blocking.
type Repository interface {
	Create(ctx context.Context, bal *AccountBalance) error
	Get(ctx context.Context, userID uuid.UUID, asset shared.Asset) (*AccountBalance, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]*AccountBalance, error)

	// Reserve moves amount from available into reserved, CAS on version.
	// Returns the new version on success.
	Reserve(ctx context.Context, userID uuid.UUID, asset shared.Asset, amount int64, expectedVersion int) (int, error)

	// Commit subtracts amount from both amount and reserved_amount.
	Commit(ctx context.Context, userID uuid.UUID, asset shared.Asset, amount int64) error

	// Release moves amount from reserved back into available.
	Release(ctx context.Context, userID uuid.UUID, asset shared.Asset, amount int64) error

	WithTx(tx pgx.Tx) Repository
}

// ErrConcurrentModification indicates optimistic lock failure
type ErrConcurrentModification struct {
	UserID    uuid.UUID
	AssetCode string
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for balance: " + e.UserID.String() + "/" + e.AssetCode
}

// Is implements the errors.Is interface for ErrConcurrentModification
func (e ErrConcurrentModification) Is(target error) bool {
	t, ok := target.(ErrConcurrentModification)
	if !ok {
		return false
	}
	if t.UserID == uuid.Nil {
		return true
	}
	return e.UserID == t.UserID && e.AssetCode == t.AssetCode
}

// ErrBalanceNotFound indicates missing balance row
type ErrBalanceNotFound struct {
	UserID    uuid.UUID
	AssetCode string
}

func (e ErrBalanceNotFound) Error() string {
	return "balance not found: " + e.UserID.String() + "/" + e.AssetCode
}

// Is implements the errors.Is interface for ErrBalanceNotFound
func (e ErrBalanceNotFound) Is(target error) bool {
	t, ok := target.(ErrBalanceNotFound)
	if !ok {
		return false
	}
	if t.UserID == uuid.Nil {
		return true
	}
	return e.UserID == t.UserID && e.AssetCode == t.AssetCode
}
