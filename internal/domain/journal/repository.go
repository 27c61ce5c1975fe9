package journal

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages the append-only transition journal. Append assigns the
// next per-transfer sequence number; entries are never updated or deleted.
type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	GetByTransferID(ctx context.Context, transferID uuid.UUID) ([]*Entry, error)
	GetLast(ctx context.Context, transferID uuid.UUID) (*Entry, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrNoEntries indicates a transfer with an empty journal
type ErrNoEntries struct {
	TransferID uuid.UUID
}

func (e ErrNoEntries) Error() string {
	return "no journal entries for transfer: " + e.TransferID.String()
}

// Is implements the errors.Is interface for ErrNoEntries
func (e ErrNoEntries) Is(target error) bool {
	t, ok := target.(ErrNoEntries)
	if !ok {
		return false
	}
	if t.TransferID == uuid.Nil {
		return true
	}
	return e.TransferID == t.TransferID
}
