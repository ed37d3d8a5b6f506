package testutil

import (
	"sync"

	"board_query_cache/internal/durable"
)

// FaultStore is a durable.Store backed by a map whose operations can be made
// to fail on demand.
type FaultStore struct {
	mu        sync.Mutex
	records   map[string]string
	setErr    func(key string, value string) error
	getErr    func(key string) error
	removeErr func(key string) error
	sets      int
	removes   int
}

func NewFaultStore() *FaultStore {
	return &FaultStore{records: make(map[string]string)}
}

func (s *FaultStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		if err := s.getErr(key); err != nil {
			return "", false, err
		}
	}
	value, ok := s.records[key]
	return value, ok, nil
}

func (s *FaultStore) Set(key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		if err := s.setErr(key, value); err != nil {
			return err
		}
	}
	s.sets++
	s.records[key] = value
	return nil
}

func (s *FaultStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		if err := s.removeErr(key); err != nil {
			return err
		}
	}
	s.removes++
	delete(s.records, key)
	return nil
}

// FailSets makes every Set for which fn returns an error fail with it.
// Passing nil restores normal behavior.
func (s *FaultStore) FailSets(fn func(key string, value string) error) {
	s.mu.Lock()
	s.setErr = fn
	s.mu.Unlock()
}

func (s *FaultStore) FailGets(fn func(key string) error) {
	s.mu.Lock()
	s.getErr = fn
	s.mu.Unlock()
}

func (s *FaultStore) FailRemoves(fn func(key string) error) {
	s.mu.Lock()
	s.removeErr = fn
	s.mu.Unlock()
}

// QuotaAfter lets n more Sets succeed, then fails every Set with
// durable.ErrQuotaExceeded.
func (s *FaultStore) QuotaAfter(n int) {
	remaining := n
	s.FailSets(func(string, string) error {
		if remaining > 0 {
			remaining--
			return nil
		}
		return durable.ErrQuotaExceeded
	})
}

// Put writes a raw record, bypassing any injected failure.
func (s *FaultStore) Put(key string, value string) {
	s.mu.Lock()
	s.records[key] = value
	s.mu.Unlock()
}

func (s *FaultStore) Raw(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.records[key]
	return value, ok
}

func (s *FaultStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.records))
	for key := range s.records {
		keys = append(keys, key)
	}
	return keys
}

func (s *FaultStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
