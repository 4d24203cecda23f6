package lockout

import (
	"context"
	"sync"
	"time"
)

// MemoryStore 进程内存储
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
}

// NewMemoryStore 创建进程内存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (s *MemoryStore) Get(_ context.Context, identifier string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[identifier]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) Update(_ context.Context, identifier string, fn func(*Record) *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current *Record
	if rec, ok := s.records[identifier]; ok {
		cp := *rec
		current = &cp
	}

	next := fn(current)
	if next == nil {
		delete(s.records, identifier)
		return nil
	}
	s.records[identifier] = next
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, identifier string) error {
	s.mu.Lock()
	delete(s.records, identifier)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, rec := range s.records {
		if !rec.ExpiresAt.IsZero() && !now.Before(rec.ExpiresAt) && !rec.Locked(now) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

// Len 当前记录数
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

var _ Store = (*MemoryStore)(nil)
