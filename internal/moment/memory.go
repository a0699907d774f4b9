package moment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Repository. It is passed by reference to its
// users and holds no package-level state.
type MemoryStore struct {
	mu      sync.RWMutex
	moments map[string]Moment
	metrics map[string]Metrics
	now     func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		moments: make(map[string]Moment),
		metrics: make(map[string]Metrics),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

var _ Repository = (*MemoryStore)(nil)

func (s *MemoryStore) Create(_ context.Context, m Moment) (Moment, error) {
	m, err := prepare(m)
	if err != nil {
		return Moment{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.moments[m.ID]; ok {
		return Moment{}, fmt.Errorf("create moment %s: %w", m.ID, ErrAlreadyExists)
	}
	now := s.now()
	m.CreatedAt, m.UpdatedAt = now, now
	s.moments[m.ID] = m
	return m, nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (Moment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.moments[id]
	if !ok {
		return Moment{}, fmt.Errorf("moment %s: %w", id, ErrNotFound)
	}
	return m, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, u Update) error {
	return s.mutate(id, func(m *Moment) { u.apply(m) })
}

func (s *MemoryStore) SetStatus(_ context.Context, id string, status Status) error {
	return s.mutate(id, func(m *Moment) { m.Status = status })
}

func (s *MemoryStore) MarkFailed(_ context.Context, id, reason string) error {
	return s.mutate(id, func(m *Moment) {
		m.Status = StatusFailed
		m.FailureReason = reason
	})
}

func (s *MemoryStore) mutate(id string, fn func(*Moment)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.moments[id]
	if !ok {
		return fmt.Errorf("moment %s: %w", id, ErrNotFound)
	}
	fn(&m)
	m.UpdatedAt = s.now()
	s.moments[id] = m
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.moments[id]; !ok {
		return fmt.Errorf("moment %s: %w", id, ErrNotFound)
	}
	delete(s.moments, id)
	delete(s.metrics, id)
	return nil
}

func (s *MemoryStore) FindByOwnerID(_ context.Context, ownerID string, page Page) ([]Moment, error) {
	return s.list(page, func(m Moment) bool { return m.OwnerID == ownerID }), nil
}

func (s *MemoryStore) FindByStatus(_ context.Context, status Status, page Page) ([]Moment, error) {
	return s.list(page, func(m Moment) bool { return m.Status == status }), nil
}

// list orders matches like the SQL store: created_at DESC, id DESC.
func (s *MemoryStore) list(page Page, match func(Moment) bool) []Moment {
	page = page.Normalize()

	s.mu.RLock()
	matched := make([]Moment, 0, len(s.moments))
	for _, m := range s.moments {
		if match(m) {
			matched = append(matched, m)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	out := []Moment{}
	if page.Offset >= len(matched) {
		return out
	}
	end := min(page.Offset+page.Limit, len(matched))
	return append(out, matched[page.Offset:end]...)
}

func (s *MemoryStore) SaveMetrics(_ context.Context, m Metrics) error {
	if !m.valid() {
		return fmt.Errorf("%w: metrics need a moment id and non-negative counters", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.moments[m.MomentID]; !ok {
		return fmt.Errorf("save metrics for moment %s: %w", m.MomentID, ErrNotFound)
	}
	m.UpdatedAt = s.now()
	s.metrics[m.MomentID] = m
	return nil
}

func (s *MemoryStore) FindMetrics(_ context.Context, momentID string) (Metrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mo, ok := s.moments[momentID]
	if !ok {
		return Metrics{}, fmt.Errorf("moment %s: %w", momentID, ErrNotFound)
	}
	if m, ok := s.metrics[momentID]; ok {
		return m, nil
	}
	return Metrics{MomentID: momentID, UpdatedAt: mo.UpdatedAt}, nil
}

func (s *MemoryStore) OwnerSummary(_ context.Context, ownerID string) (Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum := Summary{OwnerID: ownerID}
	for id, m := range s.moments {
		if m.OwnerID != ownerID {
			continue
		}
		sum.Moments++
		mt := s.metrics[id]
		sum.Views += mt.Views
		sum.Likes += mt.Likes
		sum.Comments += mt.Comments
		sum.Shares += mt.Shares
	}
	return sum, nil
}
