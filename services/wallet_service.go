// services/wallet_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/wfunc/matchserver/matchmaking"
	"github.com/wfunc/matchserver/persistence"
)

// WalletService is the ledger collaborator consumed by the queue
// engine. Debits reserve the entry stake; refunds return it on leave
// or timeout.
type WalletService struct {
	db persistence.Database
}

func NewWalletService(db persistence.Database) *WalletService {
	return &WalletService{db: db}
}

// Debit takes amount from the user's balance. Satisfies
// matchmaking.Wallet; an uncoverable stake maps onto the engine's
// sentinel so admission can surface INSUFFICIENT_BALANCE.
func (s *WalletService) Debit(userID int64, amount int64) error {
	if amount == 0 {
		return nil
	}
	err := s.db.AdjustCoins(userID, -amount)
	if errors.Is(err, persistence.ErrInsufficientCoins) {
		return matchmaking.ErrInsufficientBalance
	}
	if err != nil {
		return fmt.Errorf("debit user %d: %w", userID, err)
	}
	return nil
}

// Refund returns amount to the user's balance.
func (s *WalletService) Refund(userID int64, amount int64) error {
	if amount == 0 {
		return nil
	}
	if err := s.db.AdjustCoins(userID, amount); err != nil {
		return fmt.Errorf("refund user %d: %w", userID, err)
	}
	return nil
}

// Balance reads the current coin balance; exposed over RPC.
func (s *WalletService) Balance(userID int64) (int64, error) {
	return s.db.GetBalance(userID)
}

// Stats returns the operator-facing player summary.
func (s *WalletService) Stats(userID int64) (map[string]interface{}, error) {
	return s.db.GetPlayerStats(userID)
}
