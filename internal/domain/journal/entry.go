package journal

import (
	"time"

	"github.com/google/uuid"
	"github.com/remitgrid-transfer-core/internal/domain/shared"
)

// Entry records a single state transition of a transfer. Entries are
// append-only and ordered by Seq within a transfer; the newest entry is the
// authoritative statement of where orchestration stands after a crash.
type Entry struct {
	ID         int64                `json:"id"`
	TransferID uuid.UUID            `json:"transfer_id"`
	Seq        int                  `json:"seq"` // Monotonic per transfer, starts at 1
	FromState  shared.TransferState `json:"from_state"`
	ToState    shared.TransferState `json:"to_state"`
	Reason     string               `json:"reason,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
}

// NewEntry builds a journal entry for a transition that is about to be persisted
func NewEntry(transferID uuid.UUID, from, to shared.TransferState, reason string) *Entry {
	return &Entry{
		TransferID: transferID,
		FromState:  from,
		ToState:    to,
		Reason:     reason,
		CreatedAt:  time.Now(),
	}
}
