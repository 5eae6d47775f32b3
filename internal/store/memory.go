package store

import "sync"

// MemoryStore keeps records in memory; used by tests and headless tools.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	saves   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Load(playerID string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[playerID]
	return record, ok, nil
}

func (s *MemoryStore) Save(record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.PlayerID] = record
	s.saves++
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// SaveCount reports how many save operations happened; handy for
// write-through assertions.
func (s *MemoryStore) SaveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
