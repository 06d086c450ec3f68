package memory

import (
	"context"
	"sort"
	"sync"

	"rentspace/internal/domain/shared/money"
	domainwallet "rentspace/internal/domain/wallet"
)

// WalletRepository keeps ledger entries in insertion order.
type WalletRepository struct {
	mu      sync.RWMutex
	entries []domainwallet.Entry
	keys    map[string]struct{}
}

func NewWalletRepository() *WalletRepository {
	return &WalletRepository{keys: make(map[string]struct{})}
}

func (r *WalletRepository) AppendOnce(ctx context.Context, entry domainwallet.Entry) (bool, error) {
	if err := entry.Validate(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := entry.Key()
	if _, exists := r.keys[key]; exists {
		return false, nil
	}
	r.keys[key] = struct{}{}
	r.entries = append(r.entries, entry)
	return true, nil
}

func (r *WalletRepository) Balance(ctx context.Context, hostID string, currency money.Currency) (int64, error) {
	entries, err := r.Entries(ctx, hostID)
	if err != nil {
		return 0, err
	}
	return domainwallet.Sum(entries, currency), nil
}

func (r *WalletRepository) Entries(ctx context.Context, hostID string) ([]domainwallet.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domainwallet.Entry, 0)
	for _, e := range r.entries {
		if e.HostID == hostID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

var _ domainwallet.Repository = (*WalletRepository)(nil)
