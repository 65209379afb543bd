package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps measurements in process, for when no database is
// configured. The oldest entries are dropped past capacity.
type MemoryStore struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]*Measurement
	order    []uuid.UUID
	capacity int
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 256
	}
	return &MemoryStore{
		byID:     make(map[uuid.UUID]*Measurement),
		capacity: capacity,
	}
}

func (s *MemoryStore) SaveMeasurement(ctx context.Context, m *Measurement) error {
	if m.Result == nil {
		return errors.New("measurement has no result")
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[m.ID]; !exists {
		s.order = append(s.order, m.ID)
	}
	s.byID[m.ID] = m

	for len(s.order) > s.capacity {
		delete(s.byID, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

func (s *MemoryStore) LoadMeasurement(ctx context.Context, id uuid.UUID) (*Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return m, nil
}

func (s *MemoryStore) ListMeasurements(ctx context.Context, instrument string, limit int) ([]MeasurementSummary, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var summaries []MeasurementSummary
	for _, m := range s.byID {
		if instrument == "" || m.Instrument == instrument {
			summaries = append(summaries, m.Summary())
		}
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}
