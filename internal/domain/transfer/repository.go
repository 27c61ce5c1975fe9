package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/remitgrid-transfer-core/internal/domain/shared"
)

// Common errors
var (
	ErrInvalidAmount    = errors.New("transfer amount must be positive")
	ErrInvalidRecipient = errors.New("recipient address cannot be empty")
)

// Repository defines transfer persistence operations
type Repository interface {
	// Create inserts a new transfer. A unique constraint on the idempotency
	// key absorbs concurrent duplicate requests; the loser receives
	// ErrDuplicateIdempotencyKey.
	Create(ctx context.Context, tr *Transfer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transfer, error)

	// GetByIdempotencyKey returns nil, nil when no transfer carries the key.
	GetByIdempotencyKey(ctx context.Context, key string) (*Transfer, error)

	// UpdateState persists state, externalRef and failure reason.
	UpdateState(ctx context.Context, tr *Transfer) error

	// ListByState returns transfers in the given states whose last update is
	// older than the cutoff, oldest first. Used by the reconciler and the
	// startup recovery scan.
	ListByState(ctx context.Context, states []shared.TransferState, updatedBefore time.Time, limit int) ([]*Transfer, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrTransferNotFound indicates missing transfer
type ErrTransferNotFound struct {
	TransferID uuid.UUID
}

func (e ErrTransferNotFound) Error() string {
	return "transfer not found: " + e.TransferID.String()
}

// Is implements the errors.Is interface for ErrTransferNotFound
func (e ErrTransferNotFound) Is(target error) bool {
	t, ok := target.(ErrTransferNotFound)
	if !ok {
		return false
	}
	if t.TransferID == uuid.Nil {
		return true
	}
	return e.TransferID == t.TransferID
}

// ErrDuplicateIdempotencyKey indicates idempotency key uniqueness violation
type ErrDuplicateIdempotencyKey struct {
	IdempotencyKey string
}

func (e ErrDuplicateIdempotencyKey) Error() string {
	return "transfer with idempotency key already exists: " + e.IdempotencyKey
}
