package handler

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/remitgrid-transfer-core/internal/api_gateway/middleware"
	"github.com/remitgrid-transfer-core/internal/api_gateway/service"
	"github.com/remitgrid-transfer-core/internal/domain/journal"
	"github.com/remitgrid-transfer-core/internal/domain/settlement"
	"github.com/remitgrid-transfer-core/internal/domain/shared"
	"github.com/remitgrid-transfer-core/internal/domain/transfer"
)

// TransferHandler handles HTTP requests for transfer operations
type TransferHandler struct {
	transferService service.TransferService
	logger          *slog.Logger
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(logger *slog.Logger, transferService service.TransferService) *TransferHandler {
	return &TransferHandler{
		transferService: transferService,
		logger:          logger,
	}
}

// Create initiates a new transfer with idempotency support. Accepted requests
// return 202 immediately; settlement happens asynchronously.
func (h *TransferHandler) Create(c *gin.Context) {
	var req CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	senderID, err := uuid.Parse(req.SenderID)
	if err != nil {
		h.logger.Error("Invalid sender ID", "sender_id", req.SenderID, "error", err)
		RespondBadRequest(c, "Invalid sender ID")
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	}

	msg := &shared.TransferMessage{
		TransferID: uuid.New(),
		SenderID:   senderID,
		Recipient: shared.Recipient{
			Name:    req.Recipient.Name,
			Address: req.Recipient.Address,
			Country: req.Recipient.Country,
		},
		Amount:         req.Amount,
		SourceAsset:    shared.Asset{Code: req.SourceAsset.Code, Issuer: req.SourceAsset.Issuer},
		TargetAsset:    shared.Asset{Code: req.TargetAsset.Code, Issuer: req.TargetAsset.Issuer},
		PaymentMethod:  shared.PaymentMethod(req.PaymentMethod),
		Insured:        req.Insured,
		IdempotencyKey: req.IdempotencyKey,
		CorrelationID:  middleware.GetCorrelationID(c),
		Timestamp:      time.Now(),
	}

	transferID, existing, err := h.transferService.InitiateTransfer(c.Request.Context(), msg)
	if err != nil {
		h.logger.Error("Failed to initiate transfer", "error", err)
		RespondInternalError(c)
		return
	}
	if existing != nil {
		RespondOK(c, mapTransferToResponse(existing, nil))
		return
	}

	RespondAccepted(c, gin.H{
		"transfer_id": transferID,
		"state":       string(shared.TransferStateCreated),
	})
}

// GetByID retrieves a transfer with its transition history, 404 if not found
func (h *TransferHandler) GetByID(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid transfer ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid transfer ID")
		return
	}

	tr, history, err := h.transferService.GetTransferByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get transfer", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	if tr == nil {
		RespondNotFound(c, "Transfer not found")
		return
	}

	RespondOK(c, mapTransferToResponse(tr, history))
}

// GetReceipts retrieves the archived gateway receipts of a transfer
func (h *TransferHandler) GetReceipts(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid transfer ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid transfer ID")
		return
	}

	receipts, err := h.transferService.GetReceiptsByTransferID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get receipts", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]ReceiptResponse, 0, len(receipts))
	for _, receipt := range receipts {
		responses = append(responses, mapReceiptToResponse(receipt))
	}
	RespondOK(c, responses)
}

// GetOpenReviews retrieves the manual-review queue, oldest first. An optional
// limit query parameter caps the page size.
func (h *TransferHandler) GetOpenReviews(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.logger.Error("Invalid limit parameter", "limit", raw)
			RespondBadRequest(c, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	escalations, err := h.transferService.ListOpenReviews(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list review escalations", "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]ReviewEscalationResponse, 0, len(escalations))
	for _, escalation := range escalations {
		responses = append(responses, mapEscalationToResponse(escalation))
	}
	RespondOK(c, responses)
}

// mapTransferToResponse maps a transfer and its history to a response DTO
func mapTransferToResponse(tr *transfer.Transfer, history []*journal.Entry) TransferResponse {
	response := TransferResponse{
		ID:       tr.ID.String(),
		SenderID: tr.SenderID.String(),
		Recipient: RecipientRef{
			Name:    tr.Recipient.Name,
			Address: tr.Recipient.Address,
			Country: tr.Recipient.Country,
		},
		Amount:         tr.Amount,
		SourceAsset:    AssetRef{Code: tr.SourceAsset.Code, Issuer: tr.SourceAsset.Issuer},
		TargetAsset:    AssetRef{Code: tr.TargetAsset.Code, Issuer: tr.TargetAsset.Issuer},
		PaymentMethod:  string(tr.PaymentMethod),
		Insured:        tr.Insured,
		State:          string(tr.State),
		ExternalRef:    tr.ExternalRef,
		RedemptionCode: tr.RedemptionCode,
		FailureReason:  tr.FailureReason,
		CreatedAt:      tr.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      tr.UpdatedAt.Format(time.RFC3339),
	}

	for _, entry := range history {
		response.History = append(response.History, JournalEntryResponse{
			Seq:       entry.Seq,
			FromState: string(entry.FromState),
			ToState:   string(entry.ToState),
			Reason:    entry.Reason,
			CreatedAt: entry.CreatedAt.Format(time.RFC3339),
		})
	}

	return response
}

// mapEscalationToResponse maps a review escalation to a response DTO
func mapEscalationToResponse(escalation *settlement.ReviewEscalation) ReviewEscalationResponse {
	return ReviewEscalationResponse{
		TransferID:     escalation.TransferID.String(),
		SenderID:       escalation.SenderID.String(),
		ReservedAmount: escalation.ReservedAmount,
		AssetCode:      escalation.AssetCode,
		ExternalRef:    escalation.ExternalRef,
		LastError:      escalation.LastError,
		Reason:         escalation.Reason,
		CreatedAt:      escalation.CreatedAt.Format(time.RFC3339),
	}
}

// mapReceiptToResponse maps an archived gateway receipt to a response DTO
func mapReceiptToResponse(receipt *settlement.Receipt) ReceiptResponse {
	var payload interface{}
	if err := json.Unmarshal(receipt.Payload, &payload); err != nil {
		payload = string(receipt.Payload)
	}

	return ReceiptResponse{
		Kind:        string(receipt.Kind),
		Gateway:     receipt.Gateway,
		ExternalRef: receipt.ExternalRef,
		Payload:     payload,
		CreatedAt:   receipt.CreatedAt.Format(time.RFC3339),
	}
}
