package settlement

import (
	"context"

	"github.com/google/uuid"
)

// Repository archives gateway receipts and manual-review escalations in the
// document store. Writes here are best-effort from the orchestrator's point
// of view; a failed archive never fails the money movement.
type Repository interface {
	SaveReceipt(ctx context.Context, receipt *Receipt) error
	GetReceiptsByTransferID(ctx context.Context, transferID uuid.UUID) ([]*Receipt, error)
	SaveEscalation(ctx context.Context, escalation *ReviewEscalation) error
	ListOpenEscalations(ctx context.Context, limit int) ([]*ReviewEscalation, error)
}
