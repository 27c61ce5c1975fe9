package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/remitgrid-transfer-core/internal/domain/journal"
	"github.com/remitgrid-transfer-core/internal/domain/settlement"
	"github.com/remitgrid-transfer-core/internal/domain/shared"
	"github.com/remitgrid-transfer-core/internal/domain/transfer"
	"github.com/remitgrid-transfer-core/internal/platform/messaging/producers"
)

// TransferServiceImpl implements the TransferService interface
type TransferServiceImpl struct {
	transferRepo   transfer.Repository
	journalRepo    journal.Repository
	settlementRepo settlement.Repository
	producer       producers.MessagePublisher
	logger         *slog.Logger
}

// NewTransferService creates a new transfer service
func NewTransferService(
	logger *slog.Logger,
	transferRepo transfer.Repository,
	journalRepo journal.Repository,
	settlementRepo settlement.Repository,
	producer producers.MessagePublisher,
) TransferService {
	return &TransferServiceImpl{
		transferRepo:   transferRepo,
		journalRepo:    journalRepo,
		settlementRepo: settlementRepo,
		producer:       producer,
		logger:         logger,
	}
}

// InitiateTransfer accepts a transfer request, supporting idempotency via the
// idempotency key. A known key short-circuits with the stored transfer; a new
// request is published to Kafka for the orchestrator and acknowledged without
// waiting for settlement.
func (s *TransferServiceImpl) InitiateTransfer(ctx context.Context, msg *shared.TransferMessage) (string, *transfer.Transfer, error) {
	if msg.IdempotencyKey != "" {
		existing, err := s.transferRepo.GetByIdempotencyKey(ctx, msg.IdempotencyKey)
		if err != nil {
			s.logger.Error("Failed to check for existing transfer with idempotency key",
				"idempotency_key", msg.IdempotencyKey,
				"error", err,
			)
			return "", nil, err
		}

		if existing != nil {
			s.logger.Info("Found existing transfer with idempotency key",
				"idempotency_key", msg.IdempotencyKey,
				"transfer_id", existing.ID.String(),
				"state", string(existing.State),
			)
			return existing.ID.String(), existing, nil
		}
	}

	key := msg.TransferID.String()
	if err := s.producer.Publish(ctx, key, msg); err != nil {
		s.logger.Error("Failed to publish transfer request",
			"transfer_id", msg.TransferID.String(),
			"sender_id", msg.SenderID.String(),
			"amount", msg.Amount,
			"error", err,
		)
		return "", nil, err
	}

	s.logger.Info("Transfer request published",
		"transfer_id", msg.TransferID.String(),
		"sender_id", msg.SenderID.String(),
		"payment_method", string(msg.PaymentMethod),
		"amount", msg.Amount,
	)

	return msg.TransferID.String(), nil, nil
}

// GetTransferByID retrieves a transfer and its journal history.
// Returns nil, nil, nil if not found.
func (s *TransferServiceImpl) GetTransferByID(ctx context.Context, id uuid.UUID) (*transfer.Transfer, []*journal.Entry, error) {
	tr, err := s.transferRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, transfer.ErrTransferNotFound{}) {
			s.logger.Info("Transfer not found", "transfer_id", id.String())
			return nil, nil, nil
		}
		s.logger.Error("Failed to get transfer by ID", "transfer_id", id.String(), "error", err)
		return nil, nil, err
	}

	history, err := s.journalRepo.GetByTransferID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get transfer history", "transfer_id", id.String(), "error", err)
		return nil, nil, err
	}

	return tr, history, nil
}

// GetReceiptsByTransferID retrieves the archived gateway receipts of a transfer
func (s *TransferServiceImpl) GetReceiptsByTransferID(ctx context.Context, id uuid.UUID) ([]*settlement.Receipt, error) {
	return s.settlementRepo.GetReceiptsByTransferID(ctx, id)
}

// defaultReviewQueueLimit caps how many escalations one listing returns
const defaultReviewQueueLimit = 50

// ListOpenReviews retrieves transfers parked in MANUAL_REVIEW, oldest first
func (s *TransferServiceImpl) ListOpenReviews(ctx context.Context, limit int) ([]*settlement.ReviewEscalation, error) {
	if limit <= 0 || limit > defaultReviewQueueLimit {
		limit = defaultReviewQueueLimit
	}
	return s.settlementRepo.ListOpenEscalations(ctx, limit)
}
