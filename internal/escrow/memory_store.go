package escrow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"marketplace-core/pkg/errno"
)

// MemoryStore 进程内实现，保留每个 key 的完整历史
type MemoryStore struct {
	mu      sync.RWMutex
	history map[string][]*Agreement
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{history: make(map[string][]*Agreement)}
}

func (s *MemoryStore) activeLocked(key Key) *Agreement {
	h := s.history[key.String()]
	if len(h) == 0 {
		return nil
	}
	if last := h[len(h)-1]; !last.Settled {
		return last
	}
	return nil
}

func (s *MemoryStore) Active(_ context.Context, key Key) (*Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a := s.activeLocked(key); a != nil {
		return a.clone(), nil
	}
	return nil, nil
}

func (s *MemoryStore) Latest(_ context.Context, key Key) (*Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.history[key.String()]
	if len(h) == 0 {
		return nil, nil
	}
	return h[len(h)-1].clone(), nil
}

func (s *MemoryStore) Insert(_ context.Context, a *Agreement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := a.Key()
	if s.activeLocked(key) != nil {
		return errno.ErrDuplicateRental
	}
	k := key.String()
	s.history[k] = append(s.history[k], a.clone())
	return nil
}

func (s *MemoryStore) MarkSettled(_ context.Context, key Key, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.activeLocked(key)
	if a == nil {
		return errno.ErrNoSuchRental
	}
	a.Settled = true
	a.SettledAt = &at
	return nil
}

func (s *MemoryStore) Reopen(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.history[key.String()]
	if len(h) == 0 || !h[len(h)-1].Settled {
		return errno.ErrNoSuchRental
	}
	last := h[len(h)-1]
	last.Settled = false
	last.SettledAt = nil
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeLocked(key) == nil {
		return errno.ErrNoSuchRental
	}
	k := key.String()
	h := s.history[k]
	if len(h) == 1 {
		delete(s.history, k)
		return nil
	}
	s.history[k] = h[:len(h)-1]
	return nil
}

func (s *MemoryStore) ListByLender(_ context.Context, lender common.Address, includeSettled bool) ([]Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Agreement
	for _, h := range s.history {
		for _, a := range h {
			if a.Lender != lender || (a.Settled && !includeSettled) {
				continue
			}
			out = append(out, *a.clone())
		}
	}
	sortAgreements(out)
	return out, nil
}

func (s *MemoryStore) ListExpired(_ context.Context, now int64, limit int) ([]Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Agreement
	for _, h := range s.history {
		last := h[len(h)-1]
		if !last.Settled && last.ExpirationDate <= now {
			out = append(out, *last.clone())
		}
	}
	sortAgreements(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CountActive(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, h := range s.history {
		if !h[len(h)-1].Settled {
			n++
		}
	}
	return n, nil
}

// 按到期时间、创建时间排序，保证输出稳定
func sortAgreements(list []Agreement) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].ExpirationDate != list[j].ExpirationDate {
			return list[i].ExpirationDate < list[j].ExpirationDate
		}
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].Key().String() < list[j].Key().String()
	})
}
