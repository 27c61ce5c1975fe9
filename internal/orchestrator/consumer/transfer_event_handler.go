package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/remitgrid-transfer-core/internal/domain/shared"
	"github.com/remitgrid-transfer-core/internal/orchestrator/service"
	"github.com/remitgrid-transfer-core/internal/platform/messaging/producers"
)

// TransferEventHandler handles incoming transfer request messages from Kafka
type TransferEventHandler struct {
	orchestrationService service.OrchestrationService
	producer             producers.DeadLetterPublisher
	logger               *slog.Logger
}

// NewTransferEventHandler creates a new handler
func NewTransferEventHandler(
	logger *slog.Logger,
	orchestrationService service.OrchestrationService,
	producer producers.DeadLetterPublisher,
) *TransferEventHandler {
	return &TransferEventHandler{
		orchestrationService: orchestrationService,
		producer:             producer,
		logger:               logger,
	}
}

// HandleMessage processes Kafka messages
func (h *TransferEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var msg shared.TransferMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		unmarshalErrorMsg := "Failed to unmarshal transfer request from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)

		// Send to DLQ if available
		if h.producer != nil {
			dlqReason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
				h.logger.Error("Failed to publish message to DLQ after unmarshal error",
					"dlq_error", dlqErr,
					"original_error", err,
					"message_key", string(key),
				)
				// Return original error if DLQ fails
			} else {
				h.logger.Info("Successfully published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
				// Message handled, commit offset
				return nil
			}
		}
		// Allow Kafka retries
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	// Add correlation ID to logger
	logger := h.logger
	if msg.CorrelationID != "" {
		logger = h.logger.With("correlation_id", msg.CorrelationID)
	}

	logger.Info("Received transfer request for orchestration",
		"transfer_id", msg.TransferID.String(),
		"sender_id", msg.SenderID.String(),
		"payment_method", string(msg.PaymentMethod),
		"amount", msg.Amount,
	)

	if err := h.orchestrationService.ProcessTransfer(ctx, &msg); err != nil {
		logger.Error("Failed to process transfer",
			"transfer_id", msg.TransferID.String(),
			"sender_id", msg.SenderID.String(),
			"error", err,
		)
		return fmt.Errorf("processing transfer %s failed: %w", msg.TransferID.String(), err)
	}

	logger.Info("Successfully processed transfer", "transfer_id", msg.TransferID.String())
	return nil // Success, commit offset
}
