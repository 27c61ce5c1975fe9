package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/remitgrid-transfer-core/internal/api_gateway/service"
	"github.com/remitgrid-transfer-core/internal/domain/balance"
)

// BalanceHandler handles HTTP requests for read-only balance access
type BalanceHandler struct {
	balanceService service.BalanceService
	logger         *slog.Logger
}

// NewBalanceHandler creates a new balance handler
func NewBalanceHandler(logger *slog.Logger, balanceService service.BalanceService) *BalanceHandler {
	return &BalanceHandler{
		balanceService: balanceService,
		logger:         logger,
	}
}

// GetByUserID retrieves all asset balances held by a user
func (h *BalanceHandler) GetByUserID(c *gin.Context) {
	userIDParam := c.Param("userId")
	userID, err := uuid.Parse(userIDParam)
	if err != nil {
		h.logger.Error("Invalid user ID", "user_id", userIDParam, "error", err)
		RespondBadRequest(c, "Invalid user ID")
		return
	}

	balances, err := h.balanceService.GetBalancesByUserID(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to get balances", "user_id", userIDParam, "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]BalanceResponse, 0, len(balances))
	for _, bal := range balances {
		responses = append(responses, mapBalanceToResponse(bal))
	}
	RespondOK(c, responses)
}

// mapBalanceToResponse maps an account balance to a response DTO
func mapBalanceToResponse(bal *balance.AccountBalance) BalanceResponse {
	return BalanceResponse{
		UserID:         bal.UserID.String(),
		Asset:          AssetRef{Code: bal.Asset.Code, Issuer: bal.Asset.Issuer},
		Amount:         bal.Amount,
		ReservedAmount: bal.ReservedAmount,
		Available:      bal.Available(),
		UpdatedAt:      bal.UpdatedAt.Format(time.RFC3339),
	}
}
