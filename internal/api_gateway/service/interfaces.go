package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/remitgrid-transfer-core/internal/domain/balance"
	"github.com/remitgrid-transfer-core/internal/domain/journal"
	"github.com/remitgrid-transfer-core/internal/domain/settlement"
	"github.com/remitgrid-transfer-core/internal/domain/shared"
	"github.com/remitgrid-transfer-core/internal/domain/transfer"
)

// TransferService defines the interface for transfer operations
type TransferService interface {
	// InitiateTransfer accepts a transfer request with idempotency support.
	// Returns the transfer ID, the existing transfer (if found via
	// idempotency key), and any error.
	InitiateTransfer(ctx context.Context, msg *shared.TransferMessage) (string, *transfer.Transfer, error)

	// GetTransferByID retrieves a transfer with its full transition history.
	// Returns nil, nil, nil if the transfer is not found.
	GetTransferByID(ctx context.Context, id uuid.UUID) (*transfer.Transfer, []*journal.Entry, error)

	// GetReceiptsByTransferID retrieves the archived gateway receipts of a
	// transfer, oldest first
	GetReceiptsByTransferID(ctx context.Context, id uuid.UUID) ([]*settlement.Receipt, error)

	// ListOpenReviews retrieves the manual-review queue, oldest first
	ListOpenReviews(ctx context.Context, limit int) ([]*settlement.ReviewEscalation, error)
}

// BalanceService defines the interface for read-only balance access
type BalanceService interface {
	// GetBalancesByUserID retrieves all asset balances held by a user
	GetBalancesByUserID(ctx context.Context, userID uuid.UUID) ([]*balance.AccountBalance, error)
}
