package transfer

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/remitgrid-transfer-core/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMessage() *shared.TransferMessage {
	return &shared.TransferMessage{
		TransferID:     uuid.New(),
		SenderID:       uuid.New(),
		Recipient:      shared.Recipient{Name: "Amina W.", Address: "+254712345678", Country: "KE"},
		Amount:         50_0000000,
		SourceAsset:    shared.Asset{Code: "USDC", Issuer: "GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN"},
		TargetAsset:    shared.Asset{Code: "KES", Issuer: "GBVOL67TMUQBGL4TZYNMY3ZQ5WGQYFPFD5VJRWXR72VA33VFNL225PL5"},
		PaymentMethod:  shared.PaymentMethodMobileMoney,
		IdempotencyKey: uuid.New().String(),
		Timestamp:      time.Now(),
	}
}

func TestNewTransfer(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		msg := validMessage()
		tr, err := NewTransfer(msg)
		require.NoError(t, err)
		assert.Equal(t, msg.TransferID, tr.ID)
		assert.Equal(t, shared.TransferStateCreated, tr.State)
		assert.Equal(t, msg.IdempotencyKey, tr.IdempotencyKey)
	})

	t.Run("zero amount", func(t *testing.T) {
		msg := validMessage()
		msg.Amount = 0
		_, err := NewTransfer(msg)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("missing target asset", func(t *testing.T) {
		msg := validMessage()
		msg.TargetAsset = shared.Asset{}
		_, err := NewTransfer(msg)
		assert.ErrorIs(t, err, shared.ErrInvalidAsset)
	})

	t.Run("unknown payment method", func(t *testing.T) {
		msg := validMessage()
		msg.PaymentMethod = "CASH_UNDER_MATTRESS"
		_, err := NewTransfer(msg)
		assert.ErrorIs(t, err, shared.ErrInvalidPaymentMethod)
	})

	t.Run("empty recipient address", func(t *testing.T) {
		msg := validMessage()
		msg.Recipient.Address = ""
		_, err := NewTransfer(msg)
		assert.ErrorIs(t, err, ErrInvalidRecipient)
	})

	t.Run("generates id when absent", func(t *testing.T) {
		msg := validMessage()
		msg.TransferID = uuid.Nil
		tr, err := NewTransfer(msg)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, tr.ID)
	})
}

func TestTransfer_ReservationAmount(t *testing.T) {
	tr, err := NewTransfer(validMessage())
	require.NoError(t, err)

	assert.Equal(t, tr.Amount, tr.ReservationAmount())

	tr.Insured = true
	assert.Equal(t, tr.Amount+InsuranceFlatFee, tr.ReservationAmount())
}

func TestTransfer_TransitionTo(t *testing.T) {
	tr, err := NewTransfer(validMessage())
	require.NoError(t, err)

	require.NoError(t, tr.TransitionTo(shared.TransferStateReserved))
	require.NoError(t, tr.TransitionTo(shared.TransferStateSubmitted))
	require.NoError(t, tr.TransitionTo(shared.TransferStateExternalPending))
	require.NoError(t, tr.TransitionTo(shared.TransferStateCompleted))
	assert.Equal(t, shared.TransferStateCompleted, tr.State)

	// Terminal state rejects any further movement.
	err = tr.TransitionTo(shared.TransferStateFailed)
	assert.ErrorIs(t, err, shared.ErrIllegalTransition)
	assert.Equal(t, shared.TransferStateCompleted, tr.State)
}

func TestTransfer_TransitionToIllegalLeavesStateUntouched(t *testing.T) {
	tr, err := NewTransfer(validMessage())
	require.NoError(t, err)

	err = tr.TransitionTo(shared.TransferStateCompleted)
	assert.ErrorIs(t, err, shared.ErrIllegalTransition)
	assert.Equal(t, shared.TransferStateCreated, tr.State)
}
