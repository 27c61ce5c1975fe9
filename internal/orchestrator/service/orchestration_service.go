package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/remitgrid-transfer-core/internal/config"
	"github.com/remitgrid-transfer-core/internal/domain/balance"
	"github.com/remitgrid-transfer-core/internal/domain/settlement"
	"github.com/remitgrid-transfer-core/internal/domain/shared"
	"github.com/remitgrid-transfer-core/internal/domain/transfer"
	"github.com/remitgrid-transfer-core/internal/gateway"
	"github.com/remitgrid-transfer-core/internal/metrics"
)

// submitRetryDelay is the base wait between transient submit retries,
// multiplied by the attempt number
const submitRetryDelay = 500 * time.Millisecond

type OrchestrationServiceImpl struct {
	transferRepo   transfer.Repository
	journal        JournalRecorder
	ledger         LedgerManager
	compensator    Compensator
	gateways       *gateway.Selector
	settlementRepo settlement.Repository
	metrics        *metrics.Metrics
	cfg            config.OrchestratorConfig
	maxPendingAge  time.Duration
	logger         *slog.Logger
}

func NewOrchestrationService(
	transferRepo transfer.Repository,
	journal JournalRecorder,
	ledger LedgerManager,
	compensator Compensator,
	gateways *gateway.Selector,
	settlementRepo settlement.Repository,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *slog.Logger,
) OrchestrationService {
	return &OrchestrationServiceImpl{
		transferRepo:   transferRepo,
		journal:        journal,
		ledger:         ledger,
		compensator:    compensator,
		gateways:       gateways,
		settlementRepo: settlementRepo,
		metrics:        m,
		cfg:            cfg.Orchestrator,
		maxPendingAge:  cfg.Reconciler.MaxPendingAge,
		logger:         logger,
	}
}

// ProcessTransfer handles the core logic for orchestrating a transfer.
// A nil return acknowledges the Kafka message; an error leaves the offset
// uncommitted so the message is redelivered.
func (s *OrchestrationServiceImpl) ProcessTransfer(ctx context.Context, msg *shared.TransferMessage) error {
	logger := s.logger
	if msg.CorrelationID != "" {
		logger = s.logger.With("correlation_id", msg.CorrelationID)
	}

	logger.Info("Processing transfer request",
		"transfer_id", msg.TransferID.String(),
		"sender_id", msg.SenderID.String(),
		"payment_method", string(msg.PaymentMethod),
		"amount", msg.Amount,
	)

	// 1. Idempotency: a transfer already past CREATED is in flight or done.
	// One still in CREATED crashed before reservation, so it is resumed here
	// off the redelivered message.
	existing, err := s.transferRepo.GetByIdempotencyKey(ctx, msg.IdempotencyKey)
	if err != nil {
		return err // Let Kafka retry
	}
	if existing != nil {
		if existing.State != shared.TransferStateCreated {
			logger.Info("Transfer already processed, skipping",
				"transfer_id", existing.ID.String(),
				"state", string(existing.State),
			)
			return nil
		}
		logger.Info("Resuming transfer stuck in CREATED", "transfer_id", existing.ID.String())
		return s.reserveAndContinue(ctx, logger, existing)
	}

	// 2. Validate and create the transfer record.
	tr, err := transfer.NewTransfer(msg)
	if err != nil {
		return s.recordRejectedRequest(ctx, logger, msg, err)
	}

	s.metrics.TransfersInitiated.Inc()

	if err := s.journal.RecordCreation(ctx, tr); err != nil {
		if errors.Is(err, transfer.ErrDuplicateIdempotencyKey{IdempotencyKey: msg.IdempotencyKey}) {
			logger.Info("Lost creation race on idempotency key, skipping", "transfer_id", tr.ID.String())
			return nil
		}
		return err // Let Kafka retry, nothing was persisted
	}

	return s.reserveAndContinue(ctx, logger, tr)
}

// ResumeTransfer continues a persisted transfer from its current state
func (s *OrchestrationServiceImpl) ResumeTransfer(ctx context.Context, tr *transfer.Transfer) error {
	logger := s.logger.With("transfer_id", tr.ID.String())

	switch tr.State {
	case shared.TransferStateCreated:
		return s.reserveAndContinue(ctx, logger, tr)
	case shared.TransferStateReserved:
		return s.submitAndSettle(ctx, logger, tr)
	case shared.TransferStateSubmitted:
		return s.resumeSubmitted(ctx, logger, tr)
	case shared.TransferStateExternalPending:
		gw, err := s.gateways.ForMethod(tr.PaymentMethod)
		if err != nil {
			return err
		}
		return s.pollAndFinalize(ctx, logger, gw, tr)
	case shared.TransferStateCompensating:
		reason := shared.FailureReason(tr.FailureReason)
		if reason == "" {
			reason = shared.FailureReasonSettlementFailed
		}
		return s.compensator.Compensate(ctx, tr, reason, nil)
	default:
		return nil // Terminal, nothing to do
	}
}

// reserveAndContinue places the balance hold and drives the transfer through
// submission. Reservation failures are business outcomes, not retry material.
func (s *OrchestrationServiceImpl) reserveAndContinue(ctx context.Context, logger *slog.Logger, tr *transfer.Transfer) error {
	if err := s.ledger.ReserveFunds(ctx, tr); err != nil {
		switch {
		case errors.Is(err, balance.ErrInsufficientFunds),
			errors.Is(err, balance.ErrBalanceNotFound{}):
			return s.failTransfer(ctx, logger, tr, shared.FailureReasonInsufficientFunds, err)
		case errors.Is(err, balance.ErrConcurrentModification{}):
			return s.failTransfer(ctx, logger, tr, shared.FailureReasonConcurrentModification, err)
		default:
			return err // Infrastructure error, let Kafka retry from CREATED
		}
	}

	if err := s.journal.RecordTransition(ctx, tr, shared.TransferStateReserved, ""); err != nil {
		return err
	}

	if tr.PaymentMethod == shared.PaymentMethodMobileMoney && tr.RedemptionCode == "" {
		code, err := gateway.NewRedemptionCode()
		if err != nil {
			return err
		}
		// Persisted with the SUBMITTED transition below.
		tr.RedemptionCode = code
	}

	return s.submitAndSettle(ctx, logger, tr)
}

// submitAndSettle records submission intent, pushes the transfer to its rail
// and fast-paths settlement with a single poll. Transient submit failures are
// retried a bounded number of times; everything past the budget compensates.
func (s *OrchestrationServiceImpl) submitAndSettle(ctx context.Context, logger *slog.Logger, tr *transfer.Transfer) error {
	gw, err := s.gateways.ForMethod(tr.PaymentMethod)
	if err != nil {
		logger.Error("No gateway for payment method", "payment_method", string(tr.PaymentMethod))
		return s.compensator.Compensate(ctx, tr, shared.FailureReasonUnknownError, err)
	}

	// Journal the intent before the first network call so crash recovery
	// knows a submission may have reached the rail.
	if tr.State == shared.TransferStateReserved {
		if err := s.journal.RecordTransition(ctx, tr, shared.TransferStateSubmitted, ""); err != nil {
			return err
		}
	}

	req := &gateway.SubmitRequest{
		TransferID:     tr.ID,
		SenderID:       tr.SenderID,
		Recipient:      tr.Recipient,
		Amount:         tr.Amount,
		SourceAsset:    tr.SourceAsset,
		TargetAsset:    tr.TargetAsset,
		RedemptionCode: tr.RedemptionCode,
	}

	var result *gateway.SubmitResult
	var submitErr error
	for attempt := 1; attempt <= s.cfg.GatewaySubmitMaxRetries; attempt++ {
		start := time.Now()
		result, submitErr = gw.SubmitTransfer(ctx, req)
		s.metrics.GatewayCallDuration.WithLabelValues(gw.Name(), "submit").Observe(time.Since(start).Seconds())

		if submitErr == nil || !errors.Is(submitErr, gateway.ErrGatewayTransient) {
			break
		}
		logger.Warn("Transient gateway failure on submit",
			"gateway", gw.Name(),
			"attempt", attempt,
			"error", submitErr,
		)
		if attempt < s.cfg.GatewaySubmitMaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * submitRetryDelay):
			}
		}
	}

	if submitErr != nil {
		var rejected gateway.GatewayRejectedError
		if errors.As(submitErr, &rejected) {
			logger.Warn("Gateway rejected transfer",
				"gateway", gw.Name(),
				"code", rejected.Code,
				"reason", rejected.Reason,
			)
			return s.compensator.Compensate(ctx, tr, shared.FailureReasonGatewayRejected, submitErr)
		}
		logger.Error("Submission failed after retries", "gateway", gw.Name(), "error", submitErr)
		return s.compensator.Compensate(ctx, tr, shared.FailureReasonSettlementFailed, submitErr)
	}

	tr.ExternalRef = result.ExternalRef
	if err := s.journal.RecordTransition(ctx, tr, shared.TransferStateExternalPending, ""); err != nil {
		return err
	}

	s.archiveReceipt(ctx, logger, tr, settlement.ReceiptKindSubmit, gw.Name(), result.Raw)

	return s.pollAndFinalize(ctx, logger, gw, tr)
}

// resumeSubmitted picks up a transfer that crashed between journaling the
// submission intent and recording the rail's answer. The submission may or
// may not have reached the rail, so the rail is asked before anything is
// pushed again: re-submitting a transfer the rail already accepted would move
// the funds twice against a single reservation.
func (s *OrchestrationServiceImpl) resumeSubmitted(ctx context.Context, logger *slog.Logger, tr *transfer.Transfer) error {
	gw, err := s.gateways.ForMethod(tr.PaymentMethod)
	if err != nil {
		return err
	}

	if tr.ExternalRef != "" {
		if err := s.journal.RecordTransition(ctx, tr, shared.TransferStateExternalPending, ""); err != nil {
			return err
		}
		return s.pollAndFinalize(ctx, logger, gw, tr)
	}

	found, err := gw.LookupTransfer(ctx, tr.ID)
	if err != nil {
		logger.Warn("Rail-side lookup failed, leaving transfer submitted",
			"gateway", gw.Name(),
			"error", err,
		)
		if time.Since(tr.CreatedAt) > s.maxPendingAge {
			return s.escalateStalePending(ctx, logger, tr)
		}
		return nil // The reconciler tries again next tick
	}
	if found == nil {
		// The rail has no record, so the crash happened before the request
		// went out. Submitting now is the first submission, not a repeat.
		logger.Info("No rail-side record of submission, submitting", "gateway", gw.Name())
		return s.submitAndSettle(ctx, logger, tr)
	}

	logger.Info("Recovered external reference from rail-side lookup",
		"gateway", gw.Name(),
		"external_ref", found.ExternalRef,
	)
	tr.ExternalRef = found.ExternalRef
	if err := s.journal.RecordTransition(ctx, tr, shared.TransferStateExternalPending, ""); err != nil {
		return err
	}
	s.archiveReceipt(ctx, logger, tr, settlement.ReceiptKindPoll, gw.Name(), found.Raw)

	return s.pollAndFinalize(ctx, logger, gw, tr)
}

// pollAndFinalize asks the rail for the settlement outcome and finalizes the
// transfer when the answer is definitive. A still-pending answer leaves the
// transfer in EXTERNAL_PENDING for the reconciler, unless it has been pending
// past the configured age, which escalates to manual review.
func (s *OrchestrationServiceImpl) pollAndFinalize(ctx context.Context, logger *slog.Logger, gw gateway.SettlementGateway, tr *transfer.Transfer) error {
	start := time.Now()
	result, err := gw.PollStatus(ctx, tr.ExternalRef)
	s.metrics.GatewayCallDuration.WithLabelValues(gw.Name(), "poll").Observe(time.Since(start).Seconds())
	if err != nil {
		logger.Warn("Status poll failed, leaving transfer pending",
			"gateway", gw.Name(),
			"external_ref", tr.ExternalRef,
			"error", err,
		)
		return nil // The reconciler will poll again
	}

	s.archiveReceipt(ctx, logger, tr, settlement.ReceiptKindPoll, gw.Name(), result.Raw)

	switch result.Status {
	case gateway.StatusCompleted:
		if err := s.ledger.CommitReservation(ctx, tr); err != nil {
			logger.Error("Failed to commit reservation after confirmed settlement",
				"transfer_id", tr.ID.String(),
				"error", err,
			)
			return nil // Still EXTERNAL_PENDING, the reconciler retries the commit
		}
		if err := s.journal.RecordTransition(ctx, tr, shared.TransferStateCompleted, ""); err != nil {
			return err
		}
		s.metrics.TransfersByOutcome.WithLabelValues(string(shared.TransferStateCompleted)).Inc()
		logger.Info("Transfer completed", "transfer_id", tr.ID.String(), "external_ref", tr.ExternalRef)
		return nil

	case gateway.StatusFailed:
		return s.compensator.Compensate(ctx, tr, shared.FailureReasonSettlementFailed, nil)

	default: // PENDING or UNKNOWN
		if time.Since(tr.CreatedAt) > s.maxPendingAge {
			return s.escalateStalePending(ctx, logger, tr)
		}
		return nil
	}
}

// escalateStalePending moves a transfer that outlived the pending budget to
// manual review, keeping the reservation held for the operator
func (s *OrchestrationServiceImpl) escalateStalePending(ctx context.Context, logger *slog.Logger, tr *transfer.Transfer) error {
	reason := string(shared.FailureReasonReconcileTimeout)
	if err := s.journal.RecordTransition(ctx, tr, shared.TransferStateManualReview, reason); err != nil {
		return err
	}

	s.metrics.ReviewEscalations.Inc()
	s.metrics.TransfersByOutcome.WithLabelValues(string(shared.TransferStateManualReview)).Inc()

	escalation := &settlement.ReviewEscalation{
		TransferID:     tr.ID,
		SenderID:       tr.SenderID,
		ReservedAmount: tr.ReservationAmount(),
		AssetCode:      tr.SourceAsset.Code,
		ExternalRef:    tr.ExternalRef,
		LastError:      "settlement still pending past the configured age",
		Reason:         reason,
		CreatedAt:      time.Now(),
	}
	if err := s.settlementRepo.SaveEscalation(ctx, escalation); err != nil {
		logger.Error("Failed to archive review escalation", "transfer_id", tr.ID.String(), "error", err)
	}

	logger.Warn("Transfer escalated to manual review",
		"transfer_id", tr.ID.String(),
		"external_ref", tr.ExternalRef,
		"reason", reason,
	)
	return nil
}

// failTransfer moves a transfer from CREATED straight to FAILED with a
// business reason. Nothing was reserved yet, so there is nothing to unwind.
func (s *OrchestrationServiceImpl) failTransfer(ctx context.Context, logger *slog.Logger, tr *transfer.Transfer, reason shared.FailureReason, cause error) error {
	logger.Info("Failing transfer",
		"transfer_id", tr.ID.String(),
		"reason", string(reason),
		"cause", cause,
	)

	if err := s.journal.RecordTransition(ctx, tr, shared.TransferStateFailed, string(reason)); err != nil {
		return err
	}
	s.metrics.TransfersByOutcome.WithLabelValues(string(shared.TransferStateFailed)).Inc()
	return nil
}

// recordRejectedRequest persists a FAILED transfer for a request that did not
// pass validation, so the sender can read the outcome through the API
func (s *OrchestrationServiceImpl) recordRejectedRequest(ctx context.Context, logger *slog.Logger, msg *shared.TransferMessage, cause error) error {
	var reason shared.FailureReason
	switch {
	case errors.Is(cause, transfer.ErrInvalidAmount):
		reason = shared.FailureReasonInvalidAmount
	case errors.Is(cause, transfer.ErrInvalidRecipient):
		reason = shared.FailureReasonInvalidRecipient
	default:
		reason = shared.FailureReasonUnknownError
	}

	id := msg.TransferID
	if id == uuid.Nil {
		id = uuid.New()
	}
	now := time.Now()
	tr := &transfer.Transfer{
		ID:             id,
		SenderID:       msg.SenderID,
		Recipient:      msg.Recipient,
		Amount:         msg.Amount,
		SourceAsset:    msg.SourceAsset,
		TargetAsset:    msg.TargetAsset,
		PaymentMethod:  msg.PaymentMethod,
		Insured:        msg.Insured,
		IdempotencyKey: msg.IdempotencyKey,
		State:          shared.TransferStateCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.journal.RecordCreation(ctx, tr); err != nil {
		if errors.Is(err, transfer.ErrDuplicateIdempotencyKey{IdempotencyKey: msg.IdempotencyKey}) {
			return nil
		}
		return err
	}

	return s.failTransfer(ctx, logger, tr, reason, cause)
}

// archiveReceipt stores a raw gateway response. Failures are logged, never
// propagated; the receipt archive must not block money movement.
func (s *OrchestrationServiceImpl) archiveReceipt(ctx context.Context, logger *slog.Logger, tr *transfer.Transfer, kind settlement.ReceiptKind, gatewayName string, raw []byte) {
	receipt := &settlement.Receipt{
		TransferID:  tr.ID,
		Kind:        kind,
		Gateway:     gatewayName,
		ExternalRef: tr.ExternalRef,
		Payload:     raw,
		CreatedAt:   time.Now(),
	}
	if err := s.settlementRepo.SaveReceipt(ctx, receipt); err != nil {
		logger.Error("Failed to archive gateway receipt",
			"transfer_id", tr.ID.String(),
			"kind", string(kind),
			"error", err,
		)
	}
}
