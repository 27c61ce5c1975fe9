// Package gateway defines the external settlement contract and its adapters.
// Adapters translate transfer submissions into rail-specific calls and
// classify failures into transient (retryable) and permanent rejections so
// the orchestrator can decide between retry and compensation.
package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/remitgrid-transfer-core/internal/domain/shared"
)

// Status is the settlement outcome reported by an external rail
type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusPending   Status = "PENDING"
	StatusUnknown   Status = "UNKNOWN"
)

// ErrGatewayTransient marks failures worth retrying: timeouts, connection
// errors, 5xx responses, rate limits. Anything else from a gateway is final.
var ErrGatewayTransient = errors.New("transient gateway failure")

// GatewayRejectedError is a permanent rejection by the external rail.
// Retrying will not help; the orchestrator must compensate.
type GatewayRejectedError struct {
	Code   string
	Reason string
}

func (e GatewayRejectedError) Error() string {
	return "gateway rejected transfer: " + e.Code + ": " + e.Reason
}

// Is implements the errors.Is interface for GatewayRejectedError
func (e GatewayRejectedError) Is(target error) bool {
	t, ok := target.(GatewayRejectedError)
	if !ok {
		return false
	}
	if t.Code == "" {
		return true
	}
	return e.Code == t.Code
}

// SubmitRequest carries everything an adapter needs to push a transfer onto
// its rail. Adapters must not mutate it.
type SubmitRequest struct {
	TransferID     uuid.UUID
	SenderID       uuid.UUID
	Recipient      shared.Recipient
	Amount         int64 // Minor units of the source asset
	SourceAsset    shared.Asset
	TargetAsset    shared.Asset
	RedemptionCode string // Set for cash-pickup recipients, empty otherwise
}

// SubmitResult is returned on successful submission. Raw holds the gateway's
// response body verbatim for the receipt archive.
type SubmitResult struct {
	ExternalRef string
	Raw         json.RawMessage
}

// PollResult reports where the rail currently stands on a submission
type PollResult struct {
	Status Status
	Raw    json.RawMessage
}

// LookupResult is a rail-side record found by transfer ID rather than by
// external reference
type LookupResult struct {
	ExternalRef string
	Status      Status
	Raw         json.RawMessage
}

// SettlementGateway is implemented by each external rail adapter
type SettlementGateway interface {
	// Name identifies the adapter in logs, metrics and receipts.
	Name() string

	// SubmitTransfer pushes the transfer onto the rail. On success the
	// returned ExternalRef is the handle for all later status polls.
	SubmitTransfer(ctx context.Context, req *SubmitRequest) (*SubmitResult, error)

	// PollStatus queries the rail for the current settlement outcome.
	PollStatus(ctx context.Context, externalRef string) (*PollResult, error)

	// LookupTransfer asks the rail whether it has seen a submission carrying
	// the given transfer ID. Both adapters tag submissions with the transfer
	// ID, so this recovers the external reference after a crash between the
	// rail call and its persistence. A nil result with a nil error means the
	// rail has no record and re-submitting is safe.
	LookupTransfer(ctx context.Context, transferID uuid.UUID) (*LookupResult, error)
}

// Selector routes a transfer to the adapter matching its payment method
type Selector struct {
	contract    SettlementGateway
	mobileMoney SettlementGateway
}

// NewSelector wires the two rail adapters into a payment-method router
func NewSelector(contract, mobileMoney SettlementGateway) *Selector {
	return &Selector{
		contract:    contract,
		mobileMoney: mobileMoney,
	}
}

// ForMethod returns the adapter handling the given payment method
func (s *Selector) ForMethod(method shared.PaymentMethod) (SettlementGateway, error) {
	switch method {
	case shared.PaymentMethodContract:
		return s.contract, nil
	case shared.PaymentMethodMobileMoney:
		return s.mobileMoney, nil
	default:
		return nil, shared.ErrInvalidPaymentMethod
	}
}
