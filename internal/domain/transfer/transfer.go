package transfer

import (
	"time"

	"github.com/google/uuid"
	"github.com/remitgrid-transfer-core/internal/domain/shared"
)

// Transfer represents a single money-movement request from creation to a
// terminal state. Everything but State, ExternalRef, FailureReason and
// UpdatedAt is immutable after creation.
type Transfer struct {
	ID             uuid.UUID            `json:"id"`
	SenderID       uuid.UUID            `json:"sender_id"`
	Recipient      shared.Recipient     `json:"recipient"`
	Amount         int64                `json:"amount"` // Stored in minor units
	SourceAsset    shared.Asset         `json:"source_asset"`
	TargetAsset    shared.Asset         `json:"target_asset"`
	PaymentMethod  shared.PaymentMethod `json:"payment_method"`
	Insured        bool                 `json:"insured"`
	IdempotencyKey string               `json:"idempotency_key"`
	State          shared.TransferState `json:"state"`
	ExternalRef    string               `json:"external_ref,omitempty"`
	RedemptionCode string               `json:"redemption_code,omitempty"`
	FailureReason  string               `json:"failure_reason,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// NewTransfer creates a transfer in CREATED from an accepted request message
func NewTransfer(msg *shared.TransferMessage) (*Transfer, error) {
	if msg.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if msg.SourceAsset.Code == "" || msg.TargetAsset.Code == "" {
		return nil, shared.ErrInvalidAsset
	}
	if msg.PaymentMethod != shared.PaymentMethodContract && msg.PaymentMethod != shared.PaymentMethodMobileMoney {
		return nil, shared.ErrInvalidPaymentMethod
	}
	if msg.Recipient.Address == "" {
		return nil, ErrInvalidRecipient
	}

	id := msg.TransferID
	if id == uuid.Nil {
		id = uuid.New()
	}

	return &Transfer{
		ID:             id,
		SenderID:       msg.SenderID,
		Recipient:      msg.Recipient,
		Amount:         msg.Amount,
		SourceAsset:    msg.SourceAsset,
		TargetAsset:    msg.TargetAsset,
		PaymentMethod:  msg.PaymentMethod,
		Insured:        msg.Insured,
		IdempotencyKey: msg.IdempotencyKey,
		State:          shared.TransferStateCreated,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}, nil
}

// InsuranceFlatFee is the fee, in source-asset minor units, reserved together
// with the principal when the sender opts into transfer insurance
const InsuranceFlatFee int64 = 150

// ReservationAmount is the total held against the sender's balance: the
// principal plus the insurance fee when opted in.
func (t *Transfer) ReservationAmount() int64 {
	if t.Insured {
		return t.Amount + InsuranceFlatFee
	}
	return t.Amount
}

// TransitionTo moves the transfer to the given state, enforcing the legal
// transition table. The caller persists the change together with a journal
// entry; the transition is not durable until both are stored.
func (t *Transfer) TransitionTo(to shared.TransferState) error {
	if !shared.CanTransition(t.State, to) {
		return shared.ErrIllegalTransition
	}
	t.State = to
	t.UpdatedAt = time.Now()
	return nil
}
