package memory

import (
	"context"
	"sync"

	"tournament-quiz-service/internal/domain"
)

// Wallet is an in-memory account balance store implementing app.Wallet.
type Wallet struct {
	mu       sync.Mutex
	balances map[string]float64
}

func NewWallet(balances map[string]float64) *Wallet {
	if balances == nil {
		balances = make(map[string]float64)
	}
	return &Wallet{balances: balances}
}

func (w *Wallet) Debit(_ context.Context, userID string, amount float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.balances[userID] < amount {
		return domain.ErrInsufficientFunds
	}
	w.balances[userID] -= amount
	return nil
}

func (w *Wallet) Credit(_ context.Context, userID string, amount float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[userID] += amount
	return nil
}

func (w *Wallet) Balance(userID string) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[userID]
}
