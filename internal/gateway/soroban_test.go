package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/remitgrid-transfer-core/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func sampleSubmitRequest() *SubmitRequest {
	return &SubmitRequest{
		TransferID:  uuid.New(),
		SenderID:    uuid.New(),
		Recipient:   shared.Recipient{Name: "Amina Odhiambo", Address: "GBRECIPIENTADDRESS", Country: "KE"},
		Amount:      250000,
		SourceAsset: shared.Asset{Code: "USDC"},
		TargetAsset: shared.Asset{Code: "KES"},
	}
}

func sorobanConfigFor(url string) SorobanConfig {
	return SorobanConfig{
		RPCURL:       url,
		ContractID:   "CCREMITCONTRACT",
		AssetIssuers: map[string]string{"USDC": "GA5ISSUER"},
		Timeout:      5 * time.Second,
	}
}

func TestSorobanGateway_SubmitTransfer(t *testing.T) {
	t.Run("success resolves issuer and returns hash", func(t *testing.T) {
		var captured sorobanRPCRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"result":{"hash":"txhash123","status":"PENDING"}}`))
		}))
		defer server.Close()

		g := NewSorobanGateway(newTestLogger(), sorobanConfigFor(server.URL))
		req := sampleSubmitRequest()

		result, err := g.SubmitTransfer(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "txhash123", result.ExternalRef)
		assert.NotEmpty(t, result.Raw)

		assert.Equal(t, "sendTransaction", captured.Method)
		params, err := json.Marshal(captured.Params)
		require.NoError(t, err)
		var submitParams sorobanSubmitParams
		require.NoError(t, json.Unmarshal(params, &submitParams))
		assert.Equal(t, "CCREMITCONTRACT", submitParams.ContractID)
		assert.Equal(t, "GA5ISSUER", submitParams.Issuer, "issuer should come from the configured map")
		assert.Equal(t, req.TransferID.String(), submitParams.Memo)
	})

	t.Run("rpc error is a permanent rejection", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error":{"code":-32602,"message":"invalid destination account"}}`))
		}))
		defer server.Close()

		g := NewSorobanGateway(newTestLogger(), sorobanConfigFor(server.URL))

		result, err := g.SubmitTransfer(context.Background(), sampleSubmitRequest())
		assert.Nil(t, result)
		var rejected GatewayRejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, "RPC_-32602", rejected.Code)
		assert.NotErrorIs(t, err, ErrGatewayTransient)
	})

	t.Run("5xx is transient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		g := NewSorobanGateway(newTestLogger(), sorobanConfigFor(server.URL))

		result, err := g.SubmitTransfer(context.Background(), sampleSubmitRequest())
		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrGatewayTransient)
	})

	t.Run("connection failure is transient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close() // Immediately closed so the dial fails

		g := NewSorobanGateway(newTestLogger(), sorobanConfigFor(server.URL))

		_, err := g.SubmitTransfer(context.Background(), sampleSubmitRequest())
		assert.ErrorIs(t, err, ErrGatewayTransient)
	})
}

func TestSorobanGateway_PollStatus(t *testing.T) {
	tests := []struct {
		name           string
		railStatus     string
		expectedStatus Status
	}{
		{"success maps to completed", "SUCCESS", StatusCompleted},
		{"failed maps to failed", "FAILED", StatusFailed},
		{"pending stays pending", "PENDING", StatusPending},
		{"not found stays pending", "NOT_FOUND", StatusPending},
		{"anything else is unknown", "WEIRD", StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req sorobanRPCRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "getTransaction", req.Method)
				w.Write([]byte(`{"result":{"status":"` + tt.railStatus + `"}}`))
			}))
			defer server.Close()

			g := NewSorobanGateway(newTestLogger(), sorobanConfigFor(server.URL))

			result, err := g.PollStatus(context.Background(), "txhash123")
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, result.Status)
			assert.NotEmpty(t, result.Raw)
		})
	}
}

func TestSorobanGateway_LookupTransfer(t *testing.T) {
	transferID := uuid.New()

	t.Run("recovers the hash by memo", func(t *testing.T) {
		var captured sorobanRPCRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			w.Write([]byte(`{"result":{"hash":"txhash123","status":"PENDING"}}`))
		}))
		defer server.Close()

		g := NewSorobanGateway(newTestLogger(), sorobanConfigFor(server.URL))

		result, err := g.LookupTransfer(context.Background(), transferID)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "txhash123", result.ExternalRef)
		assert.Equal(t, StatusPending, result.Status)

		assert.Equal(t, "getTransactionByMemo", captured.Method)
		params, err := json.Marshal(captured.Params)
		require.NoError(t, err)
		var lookupParams sorobanLookupParams
		require.NoError(t, json.Unmarshal(params, &lookupParams))
		assert.Equal(t, transferID.String(), lookupParams.Memo)
	})

	t.Run("no record comes back as nil", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"result":{"status":"NOT_FOUND"}}`))
		}))
		defer server.Close()

		g := NewSorobanGateway(newTestLogger(), sorobanConfigFor(server.URL))

		result, err := g.LookupTransfer(context.Background(), transferID)
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("connection failure is transient, not a missing record", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		g := NewSorobanGateway(newTestLogger(), sorobanConfigFor(server.URL))

		_, err := g.LookupTransfer(context.Background(), transferID)
		assert.ErrorIs(t, err, ErrGatewayTransient)
	})
}

func TestSelector(t *testing.T) {
	contract := NewSorobanGateway(newTestLogger(), sorobanConfigFor("http://localhost:1"))
	mobile := NewMpesaGateway(newTestLogger(), MpesaConfig{BaseURL: "http://localhost:1", Timeout: time.Second})
	selector := NewSelector(contract, mobile)

	t.Run("routes by payment method", func(t *testing.T) {
		g, err := selector.ForMethod(shared.PaymentMethodContract)
		require.NoError(t, err)
		assert.Equal(t, sorobanGatewayName, g.Name())

		g, err = selector.ForMethod(shared.PaymentMethodMobileMoney)
		require.NoError(t, err)
		assert.Equal(t, mpesaGatewayName, g.Name())
	})

	t.Run("rejects unknown method", func(t *testing.T) {
		_, err := selector.ForMethod(shared.PaymentMethod("CARRIER_PIGEON"))
		assert.ErrorIs(t, err, shared.ErrInvalidPaymentMethod)
	})
}

func TestNewRedemptionCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := NewRedemptionCode()
		require.NoError(t, err)
		assert.Len(t, code, redemptionCodeLength)
		for _, c := range code {
			assert.Contains(t, crockfordAlphabet, string(c))
		}
		assert.False(t, seen[code], "generated a duplicate code")
		seen[code] = true
	}
}
