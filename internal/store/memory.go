package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"yield-monitor-go/internal/models"
)

// MemoryStore keeps everything in process. It is used when no database is
// configured; data is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	subs    map[string]models.UserSubscription
	emails  []models.EmailSubscription
	history map[string][]models.YieldSnapshot
	nextID  int
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs:    map[string]models.UserSubscription{},
		history: map[string][]models.YieldSnapshot{},
		now:     time.Now,
	}
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Close() error                  { return nil }

func (s *MemoryStore) id() int {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) SaveSubscription(_ context.Context, address string, sub models.PushSubscription, chainIDs []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	existing, ok := s.subs[address]
	if !ok {
		existing = models.UserSubscription{ID: s.id(), Address: address, CreatedAt: now}
	}
	existing.Subscription = sub
	existing.ChainIDs = append([]int(nil), chainIDs...)
	existing.UpdatedAt = now
	s.subs[address] = existing
	return nil
}

func (s *MemoryStore) GetSubscription(_ context.Context, address string) (models.UserSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[address]
	if !ok {
		return models.UserSubscription{}, ErrNotFound
	}
	return sub, nil
}

func (s *MemoryStore) RemoveSubscription(_ context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, address)
	return nil
}

func (s *MemoryStore) ListSubscriptions(context.Context) ([]models.UserSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.UserSubscription, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	// newest first, as PostgresStore orders by created_at DESC
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) UpdateLastNotified(_ context.Context, address string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[address]
	if !ok {
		return ErrNotFound
	}
	sub.LastNotified = &at
	s.subs[address] = sub
	return nil
}

func (s *MemoryStore) SaveEmailSubscription(_ context.Context, address, email string) (models.EmailSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.emails {
		if s.emails[i].Address == address && s.emails[i].Email == email {
			s.emails[i].IsActive = true
			return s.emails[i], nil
		}
	}
	sub := models.EmailSubscription{ID: s.id(), Address: address, Email: email, IsActive: true, CreatedAt: s.now().UTC()}
	s.emails = append(s.emails, sub)
	return sub, nil
}

func (s *MemoryStore) RemoveEmailSubscription(_ context.Context, address, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.emails {
		if s.emails[i].Address == address && s.emails[i].Email == email && s.emails[i].IsActive {
			s.emails[i].IsActive = false
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) filterEmails(keep func(models.EmailSubscription) bool) []models.EmailSubscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.EmailSubscription
	for _, e := range s.emails {
		if e.IsActive && keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// EmailSubscriptionsFor returns the newest first; ActiveEmailSubscriptions
// keeps creation order.
func (s *MemoryStore) EmailSubscriptionsFor(_ context.Context, address string) ([]models.EmailSubscription, error) {
	out := s.filterEmails(func(e models.EmailSubscription) bool { return e.Address == address })
	slices.Reverse(out)
	return out, nil
}

func (s *MemoryStore) ActiveEmailSubscriptions(context.Context) ([]models.EmailSubscription, error) {
	return s.filterEmails(func(models.EmailSubscription) bool { return true }), nil
}

func (s *MemoryStore) UpdateLastEmailed(_ context.Context, id int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.emails {
		if s.emails[i].ID == id {
			s.emails[i].LastEmailed = &at
			return nil
		}
	}
	return ErrNotFound
}

// SaveSnapshot appends snap and drops this address's snapshots older than
// 30 days.
func (s *MemoryStore) SaveSnapshot(_ context.Context, address string, snap models.YieldSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-historyRetention)
	kept := s.history[address][:0]
	for _, h := range s.history[address] {
		if !h.Timestamp.Before(cutoff) {
			kept = append(kept, h)
		}
	}
	s.history[address] = append(kept, snap)
	return nil
}

func (s *MemoryStore) SnapshotBefore(_ context.Context, address string, t time.Time) (models.YieldSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best  models.YieldSnapshot
		found bool
	)
	for _, h := range s.history[address] {
		if h.Timestamp.After(t) {
			continue
		}
		if !found || h.Timestamp.After(best.Timestamp) {
			best, found = h, true
		}
	}
	return best, found, nil
}

func (s *MemoryStore) History(_ context.Context, address string, days int) ([]models.YieldSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	var out []models.YieldSnapshot
	for _, h := range s.history[address] {
		if !h.Timestamp.Before(cutoff) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (s *MemoryStore) CleanupHistory(_ context.Context, days int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	var removed int64
	for addr, hist := range s.history {
		kept := hist[:0]
		for _, h := range hist {
			if h.Timestamp.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, h)
		}
		if len(kept) == 0 {
			delete(s.history, addr)
			continue
		}
		s.history[addr] = kept
	}
	return removed, nil
}

var _ Store = (*MemoryStore)(nil)
