package handler

// AssetRef identifies an asset in API requests and responses
type AssetRef struct {
	Code   string `json:"code" binding:"required"`
	Issuer string `json:"issuer,omitempty"`
}

// RecipientRef describes the receiving side of a transfer request.
// Address is a chain account for CONTRACT and an E.164 phone number for
// MOBILE_MONEY.
type RecipientRef struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address" binding:"required"`
	Country string `json:"country,omitempty"`
}

// CreateTransferRequest represents a request to initiate a transfer
type CreateTransferRequest struct {
	SenderID       string       `json:"sender_id" binding:"required,uuid"`
	Recipient      RecipientRef `json:"recipient" binding:"required"`
	Amount         int64        `json:"amount" binding:"required,gt=0"`
	SourceAsset    AssetRef     `json:"source_asset" binding:"required"`
	TargetAsset    AssetRef     `json:"target_asset" binding:"required"`
	PaymentMethod  string       `json:"payment_method" binding:"required,oneof=CONTRACT MOBILE_MONEY"`
	Insured        bool         `json:"insured"`
	IdempotencyKey string       `json:"idempotency_key,omitempty"`
}

// TransferResponse represents a transfer in API responses
type TransferResponse struct {
	ID             string                 `json:"id"`
	SenderID       string                 `json:"sender_id"`
	Recipient      RecipientRef           `json:"recipient"`
	Amount         int64                  `json:"amount"`
	SourceAsset    AssetRef               `json:"source_asset"`
	TargetAsset    AssetRef               `json:"target_asset"`
	PaymentMethod  string                 `json:"payment_method"`
	Insured        bool                   `json:"insured"`
	State          string                 `json:"state"`
	ExternalRef    string                 `json:"external_ref,omitempty"`
	RedemptionCode string                 `json:"redemption_code,omitempty"`
	FailureReason  string                 `json:"failure_reason,omitempty"`
	CreatedAt      string                 `json:"created_at"`
	UpdatedAt      string                 `json:"updated_at"`
	History        []JournalEntryResponse `json:"history,omitempty"`
}

// JournalEntryResponse represents one state transition in a transfer's history
type JournalEntryResponse struct {
	Seq       int    `json:"seq"`
	FromState string `json:"from_state"`
	ToState   string `json:"to_state"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ReceiptResponse represents an archived gateway receipt in API responses
type ReceiptResponse struct {
	Kind        string      `json:"kind"`
	Gateway     string      `json:"gateway"`
	ExternalRef string      `json:"external_ref,omitempty"`
	Payload     interface{} `json:"payload"`
	CreatedAt   string      `json:"created_at"`
}

// ReviewEscalationResponse represents a parked transfer awaiting an operator
type ReviewEscalationResponse struct {
	TransferID     string `json:"transfer_id"`
	SenderID       string `json:"sender_id"`
	ReservedAmount int64  `json:"reserved_amount"`
	AssetCode      string `json:"asset_code"`
	ExternalRef    string `json:"external_ref,omitempty"`
	LastError      string `json:"last_error,omitempty"`
	Reason         string `json:"reason"`
	CreatedAt      string `json:"created_at"`
}

// BalanceResponse represents an account balance in API responses
type BalanceResponse struct {
	UserID         string   `json:"user_id"`
	Asset          AssetRef `json:"asset"`
	Amount         int64    `json:"amount"`
	ReservedAmount int64    `json:"reserved_amount"`
	Available      int64    `json:"available"`
	UpdatedAt      string   `json:"updated_at"`
}
