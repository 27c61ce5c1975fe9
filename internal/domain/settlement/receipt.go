package settlement

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ReceiptKind distinguishes what gateway interaction produced a receipt
type ReceiptKind string

const (
	ReceiptKindSubmit ReceiptKind = "SUBMIT"
	ReceiptKindPoll   ReceiptKind = "POLL"
)

// Receipt archives a raw gateway response for audit. The payload is stored
// opaque; the orchestrator never reads it back on the hot path.
type Receipt struct {
	TransferID  uuid.UUID       `json:"transfer_id" bson:"transfer_id"`
	Kind        ReceiptKind     `json:"kind" bson:"kind"`
	Gateway     string          `json:"gateway" bson:"gateway"`
	ExternalRef string          `json:"external_ref,omitempty" bson:"external_ref,omitempty"`
	Payload     json.RawMessage `json:"payload" bson:"payload"`
	CreatedAt   time.Time       `json:"created_at" bson:"created_at"`
}

// ReviewEscalation is written when a transfer lands in MANUAL_REVIEW.
// It carries everything an operator needs to resolve the held reservation.
type ReviewEscalation struct {
	TransferID     uuid.UUID `json:"transfer_id" bson:"transfer_id"`
	SenderID       uuid.UUID `json:"sender_id" bson:"sender_id"`
	ReservedAmount int64     `json:"reserved_amount" bson:"reserved_amount"`
	AssetCode      string    `json:"asset_code" bson:"asset_code"`
	ExternalRef    string    `json:"external_ref,omitempty" bson:"external_ref,omitempty"`
	LastError      string    `json:"last_error" bson:"last_error"`
	Reason         string    `json:"reason" bson:"reason"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}
