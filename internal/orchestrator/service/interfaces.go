package service

import (
	"context"

	"github.com/remitgrid-transfer-core/internal/domain/shared"
	"github.com/remitgrid-transfer-core/internal/domain/transfer"
)

// OrchestrationService drives a transfer through its state machine.
// ProcessTransfer handles a fresh request from Kafka; ResumeTransfer picks up
// a persisted transfer wherever its journal left it, and is shared by the
// reconciler and the startup recovery scan.
type OrchestrationService interface {
	ProcessTransfer(ctx context.Context, msg *shared.TransferMessage) error
	ResumeTransfer(ctx context.Context, tr *transfer.Transfer) error
}

// LedgerManager handles balance reservations during orchestration
type LedgerManager interface {
	// ReserveFunds places a hold for the transfer amount (plus the insurance
	// fee when applicable) using bounded optimistic retries.
	ReserveFunds(ctx context.Context, tr *transfer.Transfer) error

	// CommitReservation finalizes the hold after confirmed settlement.
	CommitReservation(ctx context.Context, tr *transfer.Transfer) error

	// ReleaseReservation returns the hold to the available balance.
	ReleaseReservation(ctx context.Context, tr *transfer.Transfer) error
}

// JournalRecorder persists state transitions together with their journal
// entries. A transition is durable only once both rows are committed.
type JournalRecorder interface {
	RecordCreation(ctx context.Context, tr *transfer.Transfer) error
	RecordTransition(ctx context.Context, tr *transfer.Transfer, to shared.TransferState, reason string) error
}

// Compensator unwinds a reservation after failed settlement. Exhausted
// retries escalate the transfer to manual review instead of losing the hold.
type Compensator interface {
	Compensate(ctx context.Context, tr *transfer.Transfer, reason shared.FailureReason, cause error) error
}
