package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps the most recent records in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record // oldest first
	maxSize int
}

func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryStore{
		records: make([]Record, 0, maxEntries),
		maxSize: maxEntries,
	}
}

func (s *MemoryStore) Save(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, r)
	if len(s.records) > s.maxSize {
		s.records = s.records[len(s.records)-s.maxSize:]
	}
	return nil
}

func (s *MemoryStore) Recent(_ context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}
	result := make([]Record, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.records[i])
	}
	return result, nil
}

func (s *MemoryStore) Since(_ context.Context, t time.Time) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Record
	for _, r := range s.records {
		if !r.SeenAt.Before(t) {
			result = append(result, r)
		}
	}
	return result, nil
}

func (s *MemoryStore) SetStatus(_ context.Context, id uuid.UUID, status string) error {
	if !ValidStatus(status) {
		return errInvalidStatus(status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].Status = status
			s.records[i].Offer.Status = status
			return nil
		}
	}
	return errNotFound(id)
}

func (s *MemoryStore) DeleteBefore(_ context.Context, t time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	for _, r := range s.records {
		if !r.SeenAt.Before(t) {
			kept = append(kept, r)
		}
	}
	n := int64(len(s.records) - len(kept))
	// clear the tail so dropped records can be collected
	for i := len(kept); i < len(s.records); i++ {
		s.records[i] = Record{}
	}
	s.records = kept
	return n, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
