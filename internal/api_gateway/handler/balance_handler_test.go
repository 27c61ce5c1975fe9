package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/remitgrid-transfer-core/internal/domain/balance"
	"github.com/remitgrid-transfer-core/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBalanceService struct {
	mock.Mock
}

func (m *MockBalanceService) GetBalancesByUserID(ctx context.Context, userID uuid.UUID) ([]*balance.AccountBalance, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*balance.AccountBalance), args.Error(1)
}

func TestBalanceHandler_GetByUserID(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	gin.SetMode(gin.TestMode)

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockBalanceService)
		handler := NewBalanceHandler(logger, mockService)

		userID := uuid.New()
		balances := []*balance.AccountBalance{
			{
				UserID:         userID,
				Asset:          shared.Asset{Code: "USDC", Issuer: "GA5ISSUER"},
				Amount:         500000,
				ReservedAmount: 100000,
				Version:        3,
				UpdatedAt:      time.Now(),
			},
		}
		mockService.On("GetBalancesByUserID", mock.Anything, userID).Return(balances, nil)

		router := gin.Default()
		router.GET("/balances/:userId", handler.GetByUserID)

		req, _ := http.NewRequest(http.MethodGet, "/balances/"+userID.String(), nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var topLevel map[string]interface{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &topLevel))
		data, ok := topLevel["data"].([]interface{})
		require.True(t, ok)
		require.Len(t, data, 1)

		entry := data[0].(map[string]interface{})
		assert.Equal(t, float64(500000), entry["amount"])
		assert.Equal(t, float64(100000), entry["reserved_amount"])
		assert.Equal(t, float64(400000), entry["available"])
	})

	t.Run("InvalidUserID", func(t *testing.T) {
		mockService := new(MockBalanceService)
		handler := NewBalanceHandler(logger, mockService)

		router := gin.Default()
		router.GET("/balances/:userId", handler.GetByUserID)

		req, _ := http.NewRequest(http.MethodGet, "/balances/not-a-uuid", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "GetBalancesByUserID", mock.Anything, mock.Anything)
	})

	t.Run("ServiceError", func(t *testing.T) {
		mockService := new(MockBalanceService)
		handler := NewBalanceHandler(logger, mockService)

		userID := uuid.New()
		mockService.On("GetBalancesByUserID", mock.Anything, userID).
			Return(nil, errors.New("db down"))

		router := gin.Default()
		router.GET("/balances/:userId", handler.GetByUserID)

		req, _ := http.NewRequest(http.MethodGet, "/balances/"+userID.String(), nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}
