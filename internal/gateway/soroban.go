package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const sorobanGatewayName = "soroban"

// SorobanConfig is the immutable configuration of the contract adapter.
// It is copied at construction; the adapter never reads the environment.
type SorobanConfig struct {
	RPCURL       string
	ContractID   string
	AssetIssuers map[string]string // Asset code -> issuer account
	Timeout      time.Duration
}

// SorobanGateway settles transfers by invoking a token transfer on a Soroban
// contract through its JSON-RPC endpoint
type SorobanGateway struct {
	cfg    SorobanConfig
	client *http.Client
	logger *slog.Logger
}

// NewSorobanGateway creates the contract adapter. The issuer map is copied so
// later mutation of the source cannot leak into the adapter.
func NewSorobanGateway(logger *slog.Logger, cfg SorobanConfig) *SorobanGateway {
	issuers := make(map[string]string, len(cfg.AssetIssuers))
	for code, issuer := range cfg.AssetIssuers {
		issuers[code] = issuer
	}
	cfg.AssetIssuers = issuers

	return &SorobanGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (g *SorobanGateway) Name() string { return sorobanGatewayName }

type sorobanRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type sorobanRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type sorobanSubmitParams struct {
	ContractID string `json:"contract_id"`
	Function   string `json:"function"`
	From       string `json:"from"`
	To         string `json:"to"`
	Amount     int64  `json:"amount"`
	AssetCode  string `json:"asset_code"`
	Issuer     string `json:"issuer"`
	Memo       string `json:"memo"`
}

type sorobanSubmitResult struct {
	Hash   string `json:"hash"`
	Status string `json:"status"`
}

type sorobanTxResult struct {
	Status string `json:"status"`
}

// SubmitTransfer invokes the transfer function on the settlement contract.
// The transfer ID rides along as the transaction memo so the submission is
// idempotent on the contract side.
func (g *SorobanGateway) SubmitTransfer(ctx context.Context, req *SubmitRequest) (*SubmitResult, error) {
	issuer := req.SourceAsset.Issuer
	if issuer == "" {
		issuer = g.cfg.AssetIssuers[req.SourceAsset.Code]
	}

	params := sorobanSubmitParams{
		ContractID: g.cfg.ContractID,
		Function:   "transfer",
		From:       req.SenderID.String(),
		To:         req.Recipient.Address,
		Amount:     req.Amount,
		AssetCode:  req.SourceAsset.Code,
		Issuer:     issuer,
		Memo:       req.TransferID.String(),
	}

	body, err := g.call(ctx, "sendTransaction", params)
	if err != nil {
		return nil, err
	}

	var result sorobanSubmitResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode soroban submit result: %w", err)
	}
	if result.Hash == "" {
		return nil, GatewayRejectedError{Code: "MISSING_HASH", Reason: "soroban rpc returned no transaction hash"}
	}

	g.logger.Info("Submitted transfer to soroban contract",
		"transfer_id", req.TransferID.String(),
		"hash", result.Hash,
	)

	return &SubmitResult{ExternalRef: result.Hash, Raw: body}, nil
}

// PollStatus queries the transaction by hash and maps the contract outcome
func (g *SorobanGateway) PollStatus(ctx context.Context, externalRef string) (*PollResult, error) {
	params := map[string]string{"hash": externalRef}

	body, err := g.call(ctx, "getTransaction", params)
	if err != nil {
		return nil, err
	}

	var result sorobanTxResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode soroban transaction result: %w", err)
	}

	return &PollResult{Status: mapSorobanStatus(result.Status), Raw: body}, nil
}

type sorobanLookupParams struct {
	ContractID string `json:"contract_id"`
	Memo       string `json:"memo"`
}

// LookupTransfer searches the contract's transactions for one carrying the
// transfer ID as its memo. This is how the transaction hash is recovered when
// the process died between submission and persisting the rail's answer.
func (g *SorobanGateway) LookupTransfer(ctx context.Context, transferID uuid.UUID) (*LookupResult, error) {
	params := sorobanLookupParams{
		ContractID: g.cfg.ContractID,
		Memo:       transferID.String(),
	}

	body, err := g.call(ctx, "getTransactionByMemo", params)
	if err != nil {
		return nil, err
	}

	var result sorobanSubmitResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode soroban lookup result: %w", err)
	}
	if result.Hash == "" || result.Status == "NOT_FOUND" {
		return nil, nil // The contract never saw this transfer
	}

	return &LookupResult{
		ExternalRef: result.Hash,
		Status:      mapSorobanStatus(result.Status),
		Raw:         body,
	}, nil
}

// mapSorobanStatus translates the contract's transaction status. NOT_FOUND
// right after submission means the ledger has not closed yet, so it reads as
// pending here; LookupTransfer treats it as absence before mapping.
func mapSorobanStatus(railStatus string) Status {
	switch railStatus {
	case "SUCCESS":
		return StatusCompleted
	case "FAILED":
		return StatusFailed
	case "PENDING", "NOT_FOUND":
		return StatusPending
	default:
		return StatusUnknown
	}
}

// call performs a single JSON-RPC round trip and classifies failures.
// Network errors and 5xx/429 responses are transient; RPC-level errors are
// permanent rejections.
func (g *SorobanGateway) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	rpcReq := sorobanRPCRequest{
		JSONRPC: "2.0",
		ID:      "1",
		Method:  method,
		Params:  params,
	}

	payload, err := json.Marshal(rpcReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal soroban rpc request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.RPCURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build soroban rpc request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: soroban rpc call failed: %v", ErrGatewayTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read soroban rpc response: %v", ErrGatewayTransient, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: soroban rpc returned status %d", ErrGatewayTransient, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, GatewayRejectedError{Code: fmt.Sprintf("HTTP_%d", resp.StatusCode), Reason: string(body)}
	}

	var rpcResp sorobanRPCResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode soroban rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, GatewayRejectedError{
			Code:   fmt.Sprintf("RPC_%d", rpcResp.Error.Code),
			Reason: rpcResp.Error.Message,
		}
	}

	return rpcResp.Result, nil
}
