package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMpesaTestServer serves the OAuth endpoint plus a caller-provided handler
// for the API paths
func newMpesaTestServer(t *testing.T, tokenFetches *int32, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "test-key", user)
		assert.Equal(t, "test-secret", pass)
		if tokenFetches != nil {
			atomic.AddInt32(tokenFetches, 1)
		}
		w.Write([]byte(`{"access_token":"token-abc","expires_in":"3599"}`))
	})
	mux.HandleFunc("/", handler)
	return httptest.NewServer(mux)
}

func mpesaConfigFor(url string) MpesaConfig {
	return MpesaConfig{
		BaseURL:        url,
		ConsumerKey:    "test-key",
		ConsumerSecret: "test-secret",
		ShortCode:      "600999",
		Timeout:        5 * time.Second,
	}
}

func TestMpesaGateway_SubmitTransfer(t *testing.T) {
	t.Run("success returns conversation id", func(t *testing.T) {
		var captured mpesaB2CRequest
		server := newMpesaTestServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/mpesa/b2c/v1/paymentrequest", r.URL.Path)
			assert.Equal(t, "Bearer token-abc", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			w.Write([]byte(`{"ConversationID":"AG_20260830_1234","ResponseCode":"0","ResponseDescription":"Accept the service request successfully."}`))
		})
		defer server.Close()

		g := NewMpesaGateway(newTestLogger(), mpesaConfigFor(server.URL))
		req := sampleSubmitRequest()
		req.Recipient.Address = "+254712345678"
		req.RedemptionCode = "4R7KX2M9P0"

		result, err := g.SubmitTransfer(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "AG_20260830_1234", result.ExternalRef)

		assert.Equal(t, req.TransferID.String(), captured.OriginatorConversationID)
		assert.Equal(t, "600999", captured.PartyA)
		assert.Equal(t, "+254712345678", captured.PartyB)
		assert.Equal(t, "4R7KX2M9P0", captured.Occasion)
	})

	t.Run("non-zero response code is a permanent rejection", func(t *testing.T) {
		server := newMpesaTestServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"ResponseCode":"2001","ResponseDescription":"The initiator information is invalid."}`))
		})
		defer server.Close()

		g := NewMpesaGateway(newTestLogger(), mpesaConfigFor(server.URL))

		result, err := g.SubmitTransfer(context.Background(), sampleSubmitRequest())
		assert.Nil(t, result)
		var rejected GatewayRejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, "2001", rejected.Code)
	})

	t.Run("503 is transient", func(t *testing.T) {
		server := newMpesaTestServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		defer server.Close()

		g := NewMpesaGateway(newTestLogger(), mpesaConfigFor(server.URL))

		_, err := g.SubmitTransfer(context.Background(), sampleSubmitRequest())
		assert.ErrorIs(t, err, ErrGatewayTransient)
	})
}

func TestMpesaGateway_PollStatus(t *testing.T) {
	tests := []struct {
		name           string
		resultCode     string
		expectedStatus Status
	}{
		{"zero result code is completed", "0", StatusCompleted},
		{"code 1 is still pending", "1", StatusPending},
		{"other codes are failed", "17", StatusFailed},
		{"missing code is unknown", "", StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newMpesaTestServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/mpesa/transactionstatus/v1/query", r.URL.Path)
				w.Write([]byte(`{"ResultCode":"` + tt.resultCode + `","ResultDesc":"whatever"}`))
			})
			defer server.Close()

			g := NewMpesaGateway(newTestLogger(), mpesaConfigFor(server.URL))

			result, err := g.PollStatus(context.Background(), "AG_20260830_1234")
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, result.Status)
		})
	}
}

func TestMpesaGateway_LookupTransfer(t *testing.T) {
	transferID := uuid.New()

	t.Run("recovers the conversation id by originator id", func(t *testing.T) {
		var captured mpesaStatusRequest
		server := newMpesaTestServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/mpesa/transactionstatus/v1/query", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			w.Write([]byte(`{"ConversationID":"AG_20260830_1234","ResultCode":"1","ResultDesc":"pending"}`))
		})
		defer server.Close()

		g := NewMpesaGateway(newTestLogger(), mpesaConfigFor(server.URL))

		result, err := g.LookupTransfer(context.Background(), transferID)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "AG_20260830_1234", result.ExternalRef)
		assert.Equal(t, StatusPending, result.Status)

		assert.Equal(t, transferID.String(), captured.OriginatorConversationID)
		assert.Empty(t, captured.TransactionID)
		assert.Equal(t, "600999", captured.PartyA)
	})

	t.Run("no record comes back as nil", func(t *testing.T) {
		server := newMpesaTestServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"ResultDesc":"The transaction does not exist"}`))
		})
		defer server.Close()

		g := NewMpesaGateway(newTestLogger(), mpesaConfigFor(server.URL))

		result, err := g.LookupTransfer(context.Background(), transferID)
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("503 is transient, not a missing record", func(t *testing.T) {
		server := newMpesaTestServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		defer server.Close()

		g := NewMpesaGateway(newTestLogger(), mpesaConfigFor(server.URL))

		_, err := g.LookupTransfer(context.Background(), transferID)
		assert.ErrorIs(t, err, ErrGatewayTransient)
	})
}

func TestMpesaGateway_TokenCaching(t *testing.T) {
	var tokenFetches int32
	server := newMpesaTestServer(t, &tokenFetches, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ResultCode":"0","ResultDesc":"ok"}`))
	})
	defer server.Close()

	g := NewMpesaGateway(newTestLogger(), mpesaConfigFor(server.URL))

	for i := 0; i < 3; i++ {
		_, err := g.PollStatus(context.Background(), "AG_1")
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenFetches), "token should be fetched once and cached")
}

func TestMpesaGateway_TokenDroppedOn401(t *testing.T) {
	var tokenFetches int32
	var calls int32
	server := newMpesaTestServer(t, &tokenFetches, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"ResultCode":"0","ResultDesc":"ok"}`))
	})
	defer server.Close()

	g := NewMpesaGateway(newTestLogger(), mpesaConfigFor(server.URL))

	_, err := g.PollStatus(context.Background(), "AG_1")
	assert.ErrorIs(t, err, ErrGatewayTransient)

	_, err = g.PollStatus(context.Background(), "AG_1")
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&tokenFetches), "401 should force a fresh token fetch")
}
