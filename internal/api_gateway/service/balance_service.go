package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/remitgrid-transfer-core/internal/domain/balance"
)

// BalanceServiceImpl implements the BalanceService interface
type BalanceServiceImpl struct {
	balanceRepo balance.Repository
}

// NewBalanceService creates a new balance service
func NewBalanceService(balanceRepo balance.Repository) BalanceService {
	return &BalanceServiceImpl{
		balanceRepo: balanceRepo,
	}
}

// GetBalancesByUserID retrieves all asset balances held by a user
func (s *BalanceServiceImpl) GetBalancesByUserID(ctx context.Context, userID uuid.UUID) ([]*balance.AccountBalance, error) {
	return s.balanceRepo.GetByUserID(ctx, userID)
}
