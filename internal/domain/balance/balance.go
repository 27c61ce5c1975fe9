package balance

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/remitgrid-transfer-core/internal/domain/shared"
)

// Common errors
var (
	ErrInsufficientFunds = errors.New("insufficient available funds for reservation")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrNothingReserved   = errors.New("reserved amount is smaller than requested")
)

// AccountBalance represents a user's holding of a single asset.
// Available funds are Amount minus ReservedAmount; reservations hold funds
// while external settlement is in flight.
type AccountBalance struct {
	UserID         uuid.UUID    `json:"user_id"`
	Asset          shared.Asset `json:"asset"`
	Amount         int64        `json:"amount"`          // Stored in minor units
	ReservedAmount int64        `json:"reserved_amount"` // Never exceeds Amount
	Version        int          `json:"version"`         // For optimistic locking
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// NewAccountBalance creates a balance row for a user/asset pair
func NewAccountBalance(userID uuid.UUID, asset shared.Asset, initialAmount int64) (*AccountBalance, error) {
	if asset.Code == "" {
		return nil, shared.ErrInvalidAsset
	}
	if initialAmount < 0 {
		return nil, ErrInvalidAmount
	}

	return &AccountBalance{
		UserID:    userID,
		Asset:     asset,
		Amount:    initialAmount,
		Version:   1,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}, nil
}

// Available returns the spendable portion of the balance
func (b *AccountBalance) Available() int64 {
	return b.Amount - b.ReservedAmount
}

// Reserve moves the given amount from available into reserved
func (b *AccountBalance) Reserve(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if b.Available() < amount {
		return ErrInsufficientFunds
	}

	b.ReservedAmount += amount
	b.UpdatedAt = time.Now()
	b.Version++
	return nil
}

// Commit finalizes a reservation: the funds leave the balance entirely
func (b *AccountBalance) Commit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if b.ReservedAmount < amount {
		return ErrNothingReserved
	}

	b.Amount -= amount
	b.ReservedAmount -= amount
	b.UpdatedAt = time.Now()
	b.Version++
	return nil
}

// Release returns a reservation to the available balance
func (b *AccountBalance) Release(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if b.ReservedAmount < amount {
		return ErrNothingReserved
	}

	b.ReservedAmount -= amount
	b.UpdatedAt = time.Now()
	b.Version++
	return nil
}

// CanReserve checks whether the available balance covers the amount
func (b *AccountBalance) CanReserve(amount int64) bool {
	return b.Available() >= amount
}
