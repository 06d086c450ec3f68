package memory

import (
	"context"
	"slices"
	"sync"

	"rentspace/internal/app/middleware"
)

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore keeps replayable command results for the process lifetime.
type IdempotencyStore struct {
	mu      sync.Mutex
	records map[string]middleware.IdempotencyRecord
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{records: map[string]middleware.IdempotencyRecord{}}
}

func (s *IdempotencyStore) Get(_ context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return middleware.IdempotencyRecord{}, false, nil
	}
	rec.Payload = slices.Clone(rec.Payload)
	return rec, true, nil
}

// Save overwrites any expired record stored under the same key.
func (s *IdempotencyStore) Save(_ context.Context, rec middleware.IdempotencyRecord) error {
	rec.Payload = slices.Clone(rec.Payload)
	s.mu.Lock()
	s.records[rec.Key] = rec
	s.mu.Unlock()
	return nil
}
