package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const mpesaGatewayName = "mpesa"

// MpesaConfig is the immutable configuration of the mobile-money adapter
type MpesaConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Timeout        time.Duration
}

// MpesaGateway settles transfers as B2C payouts through the M-Pesa API.
// OAuth tokens are fetched with client credentials and cached until shortly
// before expiry.
type MpesaGateway struct {
	cfg    MpesaConfig
	client *http.Client
	logger *slog.Logger

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewMpesaGateway creates the mobile-money adapter
func NewMpesaGateway(logger *slog.Logger, cfg MpesaConfig) *MpesaGateway {
	return &MpesaGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (g *MpesaGateway) Name() string { return mpesaGatewayName }

type mpesaTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type mpesaB2CRequest struct {
	OriginatorConversationID string `json:"OriginatorConversationID"`
	CommandID                string `json:"CommandID"`
	PartyA                   string `json:"PartyA"`
	PartyB                   string `json:"PartyB"`
	Amount                   int64  `json:"Amount"`
	Remarks                  string `json:"Remarks"`
	Occasion                 string `json:"Occasion,omitempty"`
}

type mpesaB2CResponse struct {
	ConversationID           string `json:"ConversationID"`
	OriginatorConversationID string `json:"OriginatorConversationID"`
	ResponseCode             string `json:"ResponseCode"`
	ResponseDescription      string `json:"ResponseDescription"`
}

type mpesaStatusRequest struct {
	CommandID                string `json:"CommandID"`
	TransactionID            string `json:"TransactionID,omitempty"`
	OriginatorConversationID string `json:"OriginatorConversationID,omitempty"`
	PartyA                   string `json:"PartyA"`
}

type mpesaStatusResponse struct {
	ConversationID    string `json:"ConversationID,omitempty"`
	ResultCode        string `json:"ResultCode"`
	ResultDescription string `json:"ResultDesc"`
}

// SubmitTransfer issues a B2C payment request. The transfer ID doubles as the
// originator conversation ID, which makes resubmission after a crash
// idempotent on the M-Pesa side.
func (g *MpesaGateway) SubmitTransfer(ctx context.Context, req *SubmitRequest) (*SubmitResult, error) {
	payload := mpesaB2CRequest{
		OriginatorConversationID: req.TransferID.String(),
		CommandID:                "BusinessPayment",
		PartyA:                   g.cfg.ShortCode,
		PartyB:                   req.Recipient.Address,
		Amount:                   req.Amount,
		Remarks:                  "remittance payout",
	}
	if req.RedemptionCode != "" {
		payload.Occasion = req.RedemptionCode
	}

	body, err := g.call(ctx, "/mpesa/b2c/v1/paymentrequest", payload)
	if err != nil {
		return nil, err
	}

	var resp mpesaB2CResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode mpesa b2c response: %w", err)
	}
	if resp.ResponseCode != "0" {
		return nil, GatewayRejectedError{Code: resp.ResponseCode, Reason: resp.ResponseDescription}
	}
	if resp.ConversationID == "" {
		return nil, GatewayRejectedError{Code: "MISSING_CONVERSATION_ID", Reason: "mpesa accepted the request but returned no conversation id"}
	}

	g.logger.Info("Submitted transfer to mpesa",
		"transfer_id", req.TransferID.String(),
		"conversation_id", resp.ConversationID,
	)

	return &SubmitResult{ExternalRef: resp.ConversationID, Raw: body}, nil
}

// PollStatus queries the payout by conversation ID
func (g *MpesaGateway) PollStatus(ctx context.Context, externalRef string) (*PollResult, error) {
	payload := mpesaStatusRequest{
		CommandID:     "TransactionStatusQuery",
		TransactionID: externalRef,
		PartyA:        g.cfg.ShortCode,
	}

	body, err := g.call(ctx, "/mpesa/transactionstatus/v1/query", payload)
	if err != nil {
		return nil, err
	}

	var resp mpesaStatusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode mpesa status response: %w", err)
	}

	return &PollResult{Status: mapMpesaResult(resp.ResultCode), Raw: body}, nil
}

// LookupTransfer queries the payout by the originator conversation ID, which
// SubmitTransfer sets to the transfer ID. Recovers the M-Pesa conversation ID
// when the process died before the submit response was persisted.
func (g *MpesaGateway) LookupTransfer(ctx context.Context, transferID uuid.UUID) (*LookupResult, error) {
	payload := mpesaStatusRequest{
		CommandID:                "TransactionStatusQuery",
		OriginatorConversationID: transferID.String(),
		PartyA:                   g.cfg.ShortCode,
	}

	body, err := g.call(ctx, "/mpesa/transactionstatus/v1/query", payload)
	if err != nil {
		return nil, err
	}

	var resp mpesaStatusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode mpesa lookup response: %w", err)
	}
	if resp.ConversationID == "" {
		return nil, nil // M-Pesa never saw this transfer
	}

	return &LookupResult{
		ExternalRef: resp.ConversationID,
		Status:      mapMpesaResult(resp.ResultCode),
		Raw:         body,
	}, nil
}

// mapMpesaResult translates M-Pesa result codes: 0 success, 1 insufficient
// float (still retried by Safaricom), anything else is a terminal failure.
func mapMpesaResult(resultCode string) Status {
	switch resultCode {
	case "0":
		return StatusCompleted
	case "1":
		return StatusPending
	case "":
		return StatusUnknown
	default:
		return StatusFailed
	}
}

// call performs an authenticated POST and classifies failures the same way
// as the contract adapter: network and 5xx/429 are transient, the rest final.
func (g *MpesaGateway) call(ctx context.Context, path string, payload interface{}) (json.RawMessage, error) {
	token, err := g.token(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mpesa request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to build mpesa request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: mpesa call failed: %v", ErrGatewayTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read mpesa response: %v", ErrGatewayTransient, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: mpesa returned status %d", ErrGatewayTransient, resp.StatusCode)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// Token may have been revoked early; drop the cache so the next call
		// fetches a fresh one.
		g.tokenMu.Lock()
		g.accessToken = ""
		g.tokenMu.Unlock()
		return nil, fmt.Errorf("%w: mpesa rejected the access token", ErrGatewayTransient)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, GatewayRejectedError{Code: fmt.Sprintf("HTTP_%d", resp.StatusCode), Reason: string(body)}
	}

	return body, nil
}

// token returns a cached OAuth access token, fetching a new one when the
// cache is empty or within a minute of expiry
func (g *MpesaGateway) token(ctx context.Context) (string, error) {
	g.tokenMu.Lock()
	defer g.tokenMu.Unlock()

	if g.accessToken != "" && time.Until(g.tokenExpiry) > time.Minute {
		return g.accessToken, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", fmt.Errorf("failed to build mpesa token request: %w", err)
	}
	httpReq.SetBasicAuth(g.cfg.ConsumerKey, g.cfg.ConsumerSecret)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: mpesa token fetch failed: %v", ErrGatewayTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= http.StatusInternalServerError {
			return "", fmt.Errorf("%w: mpesa token endpoint returned status %d", ErrGatewayTransient, resp.StatusCode)
		}
		return "", GatewayRejectedError{Code: fmt.Sprintf("HTTP_%d", resp.StatusCode), Reason: "mpesa token fetch rejected"}
	}

	var tokenResp mpesaTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode mpesa token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", GatewayRejectedError{Code: "MISSING_TOKEN", Reason: "mpesa token response carried no access token"}
	}

	ttl := time.Hour
	if tokenResp.ExpiresIn != "" {
		var seconds int64
		if _, scanErr := fmt.Sscanf(tokenResp.ExpiresIn, "%d", &seconds); scanErr == nil && seconds > 0 {
			ttl = time.Duration(seconds) * time.Second
		}
	}

	g.accessToken = tokenResp.AccessToken
	g.tokenExpiry = time.Now().Add(ttl)
	return g.accessToken, nil
}
