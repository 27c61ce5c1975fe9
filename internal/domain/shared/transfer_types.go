package shared

// TransferState defines the lifecycle states of a transfer
type TransferState string

const (
	TransferStateCreated         TransferState = "CREATED"
	TransferStateReserved        TransferState = "RESERVED"
	TransferStateSubmitted       TransferState = "SUBMITTED"
	TransferStateExternalPending TransferState = "EXTERNAL_PENDING"
	TransferStateCompensating    TransferState = "COMPENSATING"
	TransferStateCompleted       TransferState = "COMPLETED"
	TransferStateFailed          TransferState = "FAILED"
	TransferStateManualReview    TransferState = "MANUAL_REVIEW"
)

// legalTransitions is the closed set of allowed state transitions.
// Anything not listed here is a programming error, not a runtime condition.
var legalTransitions = map[TransferState][]TransferState{
	TransferStateCreated:         {TransferStateReserved, TransferStateFailed},
	TransferStateReserved:        {TransferStateSubmitted, TransferStateCompensating},
	TransferStateSubmitted:       {TransferStateExternalPending, TransferStateCompensating, TransferStateManualReview},
	TransferStateExternalPending: {TransferStateCompleted, TransferStateCompensating, TransferStateManualReview},
	TransferStateCompensating:    {TransferStateFailed, TransferStateManualReview},
}

// CanTransition reports whether moving from one state to another is legal
func CanTransition(from, to TransferState) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a state admits no further transitions
func (s TransferState) IsTerminal() bool {
	return len(legalTransitions[s]) == 0
}

// HoldsReservation reports whether funds are reserved while in this state.
// MANUAL_REVIEW is terminal but still holds the reservation for an operator.
func (s TransferState) HoldsReservation() bool {
	switch s {
	case TransferStateReserved, TransferStateSubmitted, TransferStateExternalPending,
		TransferStateCompensating, TransferStateManualReview:
		return true
	}
	return false
}

// PaymentMethod selects the settlement rail for a transfer
type PaymentMethod string

const (
	PaymentMethodContract    PaymentMethod = "CONTRACT"
	PaymentMethodMobileMoney PaymentMethod = "MOBILE_MONEY"
)

// FailureReason defines transfer failure categories
type FailureReason string

const (
	FailureReasonInsufficientFunds      FailureReason = "INSUFFICIENT_FUNDS"
	FailureReasonConcurrentModification FailureReason = "CONCURRENT_MODIFICATION"
	FailureReasonInvalidAmount          FailureReason = "INVALID_AMOUNT"
	FailureReasonInvalidRecipient       FailureReason = "INVALID_RECIPIENT"
	FailureReasonGatewayRejected        FailureReason = "GATEWAY_REJECTED"
	FailureReasonSettlementFailed       FailureReason = "SETTLEMENT_FAILED"
	FailureReasonCompensationExhausted  FailureReason = "COMPENSATION_EXHAUSTED"
	FailureReasonReconcileTimeout       FailureReason = "RECONCILE_TIMEOUT"
	FailureReasonUnknownError           FailureReason = "UNKNOWN_ERROR"
)
