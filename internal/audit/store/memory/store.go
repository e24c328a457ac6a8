// Package memory is an in-process audit store for development and tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"boxoffice/internal/audit"
)

type Store struct {
	mu      sync.RWMutex
	records []audit.Record
	// failWith, when set, makes Append fail. Used to exercise failure isolation.
	failWith error
}

func New() *Store {
	return &Store{}
}

// Append ignores any unit of work in ctx: audit records are never undone.
func (s *Store) Append(_ context.Context, rec audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.records = append(s.records, rec)
	return nil
}

// List returns matching records newest first.
func (s *Store) List(_ context.Context, filter audit.Filter) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.NormalizedLimit()
	out := make([]audit.Record, 0, min(limit, len(s.records)))
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		rec := s.records[i]
		if len(filter.Actions) > 0 && !slices.Contains(filter.Actions, rec.Action) {
			continue
		}
		if filter.Actor != nil && rec.Actor != *filter.Actor {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// All returns every record in insertion order.
func (s *Store) All() []audit.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records)
}

// ByAction returns records with the given action in insertion order.
func (s *Store) ByAction(action audit.Action) []audit.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Record
	for _, rec := range s.records {
		if rec.Action == action {
			out = append(out, rec)
		}
	}
	return out
}

// FailWith makes subsequent Appends return err. Pass nil to recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
}
