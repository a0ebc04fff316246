package ports

import (
	"context"
	"errors"
	"sync"
)

// ErrInsufficientFunds is returned when an update would take a balance below zero.
var ErrInsufficientFunds = errors.New("insufficient funds")

// MemoryEconomy is an in-process EconomyPort. Unknown users start at the opening balance.
type MemoryEconomy struct {
	mu       sync.Mutex
	opening  int64
	balances map[string]int64
}

// NewMemoryEconomy returns an economy where every new user starts with opening coins.
func NewMemoryEconomy(opening int64) *MemoryEconomy {
	return &MemoryEconomy{opening: opening, balances: make(map[string]int64)}
}

func (m *MemoryEconomy) balance(userID string) int64 {
	if b, ok := m.balances[userID]; ok {
		return b
	}
	return m.opening
}

// GetBalance implements EconomyPort.
func (m *MemoryEconomy) GetBalance(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance(userID), nil
}

// UpdateBalances implements EconomyPort. Either every update applies or none does.
func (m *MemoryEconomy) UpdateBalances(_ context.Context, updates []WalletUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make(map[string]int64, len(updates))
	for _, u := range updates {
		b, ok := next[u.UserID]
		if !ok {
			b = m.balance(u.UserID)
		}
		b += u.Amount
		if b < 0 {
			return ErrInsufficientFunds
		}
		next[u.UserID] = b
	}
	for id, b := range next {
		m.balances[id] = b
	}
	return nil
}
