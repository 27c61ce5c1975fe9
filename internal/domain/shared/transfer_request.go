package shared

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidAsset         = errors.New("invalid asset code")
	ErrIllegalTransition    = errors.New("illegal transfer state transition")
)

// Asset identifies an asset by code and issuing account.
// Native assets carry an empty issuer.
type Asset struct {
	Code   string `json:"code"`
	Issuer string `json:"issuer,omitempty"`
}

// Recipient describes where the money goes on the receiving side.
// Address is a chain account for CONTRACT transfers and a phone number
// in E.164 form for MOBILE_MONEY transfers.
type Recipient struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Country string `json:"country,omitempty"`
}

// TransferMessage defines a Kafka message carrying an accepted transfer
// request from the API gateway to the orchestrator
type TransferMessage struct {
	TransferID     uuid.UUID     `json:"transfer_id"`
	SenderID       uuid.UUID     `json:"sender_id"`
	Recipient      Recipient     `json:"recipient"`
	Amount         int64         `json:"amount"` // Stored in minor units
	SourceAsset    Asset         `json:"source_asset"`
	TargetAsset    Asset         `json:"target_asset"`
	PaymentMethod  PaymentMethod `json:"payment_method"`
	Insured        bool          `json:"insured"`
	IdempotencyKey string        `json:"idempotency_key"`
	CorrelationID  string        `json:"correlation_id"`
	Timestamp      time.Time     `json:"timestamp"`
}
