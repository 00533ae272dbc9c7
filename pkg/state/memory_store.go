package state

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and examples.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	now     func() time.Time
}

type memoryRecord struct {
	data []byte
	meta Meta
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]memoryRecord{}, now: time.Now}
}

func (s *MemoryStore) Load(ctx context.Context, path string) ([]byte, Meta, bool, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, Meta{}, false, err
	}
	key, err := cleanPath(path)
	if err != nil {
		return nil, Meta{}, false, err
	}

	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, Meta{}, false, nil
	}
	return append([]byte(nil), record.data...), record.meta, true, nil
}

func (s *MemoryStore) Save(ctx context.Context, path string, data []byte) (Meta, error) {
	if err := ctxErr(ctx); err != nil {
		return Meta{}, err
	}
	key, err := cleanPath(path)
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	meta := Meta{
		Path:     key,
		Size:     int64(len(data)),
		ModTime:  s.now(),
		Revision: s.records[key].meta.Revision + 1,
	}
	s.records[key] = memoryRecord{data: append([]byte(nil), data...), meta: meta}
	return meta, nil
}

func (s *MemoryStore) Exists(ctx context.Context, path string) (bool, error) {
	_, _, ok, err := s.Load(ctx, path)
	return ok, err
}

// Paths lists stored paths in no particular order.
func (s *MemoryStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.records))
	for key := range s.records {
		out = append(out, key)
	}
	return out
}
