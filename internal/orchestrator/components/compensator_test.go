package components

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/remitgrid-transfer-core/internal/config"
	"github.com/remitgrid-transfer-core/internal/domain/settlement"
	"github.com/remitgrid-transfer-core/internal/domain/shared"
	"github.com/remitgrid-transfer-core/internal/domain/transfer"
	"github.com/remitgrid-transfer-core/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newCompensator(ledger *MockLedgerManager, journal *MockJournalRecorder, settlementRepo *MockSettlementRepository) *CompensatorImpl {
	cfg := &config.OrchestratorConfig{
		CompensationMaxRetries:  3,
		CompensationBaseBackoff: time.Millisecond,
	}
	return NewCompensator(ledger, journal, settlementRepo, metrics.New(), cfg, newTestLogger()).(*CompensatorImpl)
}

func TestCompensator_Compensate(t *testing.T) {
	t.Run("releases the reservation and fails the transfer", func(t *testing.T) {
		ledger := &MockLedgerManager{}
		journal := &MockJournalRecorder{}
		settlementRepo := &MockSettlementRepository{}
		compensator := newCompensator(ledger, journal, settlementRepo)

		tr := sampleTransfer()
		tr.State = shared.TransferStateSubmitted

		journal.On("RecordTransition", mock.Anything, tr, shared.TransferStateCompensating,
			string(shared.FailureReasonGatewayRejected)).Return(nil)
		ledger.On("ReleaseReservation", mock.Anything, tr).Return(nil)
		journal.On("RecordTransition", mock.Anything, tr, shared.TransferStateFailed,
			string(shared.FailureReasonGatewayRejected)).Return(nil)

		err := compensator.Compensate(context.Background(), tr, shared.FailureReasonGatewayRejected, errors.New("rejected"))
		require.NoError(t, err)
		assert.Equal(t, shared.TransferStateFailed, tr.State)
		journal.AssertExpectations(t)
		ledger.AssertExpectations(t)
	})

	t.Run("skips the COMPENSATING transition when resumed mid-compensation", func(t *testing.T) {
		ledger := &MockLedgerManager{}
		journal := &MockJournalRecorder{}
		settlementRepo := &MockSettlementRepository{}
		compensator := newCompensator(ledger, journal, settlementRepo)

		tr := sampleTransfer()
		tr.State = shared.TransferStateCompensating

		ledger.On("ReleaseReservation", mock.Anything, tr).Return(nil)
		journal.On("RecordTransition", mock.Anything, tr, shared.TransferStateFailed,
			string(shared.FailureReasonSettlementFailed)).Return(nil)

		err := compensator.Compensate(context.Background(), tr, shared.FailureReasonSettlementFailed, nil)
		require.NoError(t, err)
		journal.AssertNotCalled(t, "RecordTransition", mock.Anything, mock.Anything,
			shared.TransferStateCompensating, mock.Anything)
	})

	t.Run("retries the release before succeeding", func(t *testing.T) {
		ledger := &MockLedgerManager{}
		journal := &MockJournalRecorder{}
		settlementRepo := &MockSettlementRepository{}
		compensator := newCompensator(ledger, journal, settlementRepo)

		tr := sampleTransfer()
		tr.State = shared.TransferStateCompensating

		ledger.On("ReleaseReservation", mock.Anything, tr).Return(errors.New("deadlock detected")).Twice()
		ledger.On("ReleaseReservation", mock.Anything, tr).Return(nil).Once()
		journal.On("RecordTransition", mock.Anything, tr, shared.TransferStateFailed,
			string(shared.FailureReasonSettlementFailed)).Return(nil)

		err := compensator.Compensate(context.Background(), tr, shared.FailureReasonSettlementFailed, nil)
		require.NoError(t, err)
		ledger.AssertNumberOfCalls(t, "ReleaseReservation", 3)
	})

	t.Run("escalates to manual review when the release budget runs out", func(t *testing.T) {
		ledger := &MockLedgerManager{}
		journal := &MockJournalRecorder{}
		settlementRepo := &MockSettlementRepository{}
		compensator := newCompensator(ledger, journal, settlementRepo)

		tr := sampleTransfer()
		tr.State = shared.TransferStateCompensating
		tr.Insured = true
		releaseErr := errors.New("connection refused")

		ledger.On("ReleaseReservation", mock.Anything, tr).Return(releaseErr)
		journal.On("RecordTransition", mock.Anything, tr, shared.TransferStateManualReview,
			string(shared.FailureReasonCompensationExhausted)).Return(nil)
		settlementRepo.On("SaveEscalation", mock.Anything, mock.Anything).Return(nil)

		err := compensator.Compensate(context.Background(), tr, shared.FailureReasonSettlementFailed, nil)
		require.NoError(t, err)
		assert.Equal(t, shared.TransferStateManualReview, tr.State)
		ledger.AssertNumberOfCalls(t, "ReleaseReservation", 3)

		// The escalation document carries the full held amount, fee included.
		escalation := settlementRepo.Calls[0].Arguments.Get(1).(*settlement.ReviewEscalation)
		assert.Equal(t, tr.Amount+transfer.InsuranceFlatFee, escalation.ReservedAmount)
		assert.Equal(t, releaseErr.Error(), escalation.LastError)
	})

	t.Run("a failing escalation archive does not fail compensation", func(t *testing.T) {
		ledger := &MockLedgerManager{}
		journal := &MockJournalRecorder{}
		settlementRepo := &MockSettlementRepository{}
		compensator := newCompensator(ledger, journal, settlementRepo)

		tr := sampleTransfer()
		tr.State = shared.TransferStateCompensating

		ledger.On("ReleaseReservation", mock.Anything, tr).Return(errors.New("connection refused"))
		journal.On("RecordTransition", mock.Anything, tr, shared.TransferStateManualReview,
			string(shared.FailureReasonCompensationExhausted)).Return(nil)
		settlementRepo.On("SaveEscalation", mock.Anything, mock.Anything).Return(errors.New("mongo down"))

		err := compensator.Compensate(context.Background(), tr, shared.FailureReasonSettlementFailed, nil)
		assert.NoError(t, err)
	})
}
