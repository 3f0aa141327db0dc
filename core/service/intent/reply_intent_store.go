// Package intent holds the operator-editable intent rules.
package intent

import (
	"bytes"
	"sync/atomic"

	"github.com/goccy/go-json"

	"autoreply/core/domain"
	"autoreply/pkg/apperr"
)

// Store holds the ordered intent list. Replacement swaps the whole snapshot
// atomically, so readers see either the previous list or the new one.
type Store struct {
	snapshot atomic.Pointer[[]domain.Intent]
}

// NewStore creates a store seeded with initial.
func NewStore(initial []domain.Intent) *Store {
	s := &Store{}
	s.ReplaceAll(initial)
	return s
}

// List returns a copy of the current intents in stored order.
func (s *Store) List() []domain.Intent {
	return domain.CloneIntents(s.current())
}

// Snapshot returns the current list without copying; callers must not modify it.
func (s *Store) Snapshot() []domain.Intent {
	return s.current()
}

func (s *Store) current() []domain.Intent {
	p := s.snapshot.Load()
	if p == nil {
		return nil
	}
	return *p
}

// ReplaceAll replaces the stored list wholesale and returns the new list.
func (s *Store) ReplaceAll(intents []domain.Intent) []domain.Intent {
	next := domain.CloneIntents(intents)
	s.snapshot.Store(&next)
	return domain.CloneIntents(next)
}

// ReplaceAllJSON validates that raw is a JSON array of intents and replaces
// the stored list with it. On error the store is unchanged.
func (s *Store) ReplaceAllJSON(raw []byte) ([]domain.Intent, error) {
	intents, err := DecodeIntents(raw)
	if err != nil {
		return nil, err
	}
	return s.ReplaceAll(intents), nil
}

// DecodeIntents parses raw as a JSON array of intents.
func DecodeIntents(raw []byte) ([]domain.Intent, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, apperr.ValidationFailed("intents must be array").WithDetail("field", "intents")
	}

	var intents []domain.Intent
	if err := json.Unmarshal(trimmed, &intents); err != nil {
		e := apperr.ValidationFailed("intents must be an array of {name, patterns, reply}").
			WithDetail("field", "intents")
		e.Err = err
		return nil, e
	}
	return intents, nil
}
