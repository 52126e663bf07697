package predicate

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Store persists predicate records keyed by id. Implementations return
// ErrNoRecord for unknown ids and must hand out copies, never shared references.
type Store interface {
	Get(ctx context.Context, id string) (Record, error)
	Put(ctx context.Context, rec Record) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Record, error)
}

// OwnerLister is implemented by stores that can filter by owner natively.
type OwnerLister interface {
	ListByOwner(ctx context.Context, owner string) ([]Record, error)
}

// ObservationRecorder receives every successful validation.
type ObservationRecorder interface {
	RecordObservation(ctx context.Context, obs Observation) error
}

// ObservationReader lists recorded observations oldest first.
type ObservationReader interface {
	ListObservations(ctx context.Context, id string, limit int) ([]Observation, error)
}

const maxObservationsPerPredicate = 4096

// MemoryStore is the process-lifetime store used when no database is configured.
type MemoryStore struct {
	mu           sync.RWMutex
	records      map[string]Record
	observations map[string][]Observation
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:      make(map[string]Record),
		observations: make(map[string][]Observation),
	}
}

// Get returns a copy of the record.
func (s *MemoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNoRecord
	}
	return rec.clone(), nil
}

// Put inserts or replaces the record.
func (s *MemoryStore) Put(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.ID] = rec.clone()
	return nil
}

// Delete removes the record and its observations.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return ErrNoRecord
	}
	delete(s.records, id)
	delete(s.observations, id)
	return nil
}

// List returns all records ordered by creation time.
func (s *MemoryStore) List(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt == out[j].CreatedAt {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt < out[j].CreatedAt
	})
	return out, nil
}

// ListByOwner returns the records owned by owner (case-insensitive).
func (s *MemoryStore) ListByOwner(ctx context.Context, owner string) ([]Record, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0)
	for _, rec := range all {
		if strings.EqualFold(rec.OwnerAddress, owner) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// RecordObservation appends obs, keeping a bounded tail per predicate.
func (s *MemoryStore) RecordObservation(_ context.Context, obs Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append(s.observations[obs.PredicateID], obs)
	if len(list) > maxObservationsPerPredicate {
		list = list[len(list)-maxObservationsPerPredicate:]
	}
	s.observations[obs.PredicateID] = list
	return nil
}

// ListObservations returns up to limit of the most recent observations, oldest first.
func (s *MemoryStore) ListObservations(_ context.Context, id string, limit int) ([]Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.observations[id]
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	out := make([]Observation, len(list))
	copy(out, list)
	return out, nil
}

var (
	_ Store               = (*MemoryStore)(nil)
	_ OwnerLister         = (*MemoryStore)(nil)
	_ ObservationRecorder = (*MemoryStore)(nil)
	_ ObservationReader   = (*MemoryStore)(nil)
)
