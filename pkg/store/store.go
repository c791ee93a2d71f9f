// Package store holds the shared, ordered list of records that workers
// enrich and the presentation layer reads.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Sternrassler/owner-enricher/pkg/record"
)

var (
	// ErrDuplicateID is returned by Load when two records share an id.
	ErrDuplicateID = errors.New("duplicate record id")

	// ErrEmptyID is returned by Load when a record has no id.
	ErrEmptyID = errors.New("record id is required")
)

// Store is a mutex-guarded ordered list of records with an id index.
// All methods are safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records []record.Record
	index   map[string]int
}

// New creates an empty store.
func New() *Store {
	return &Store{index: make(map[string]int)}
}

// Load replaces the store contents with a copy of records.
// On error the previous contents are kept.
func (s *Store) Load(records []record.Record) error {
	next := make([]record.Record, len(records))
	index := make(map[string]int, len(records))
	for i, r := range records {
		if r.ID == "" {
			return fmt.Errorf("row %d: %w", i, ErrEmptyID)
		}
		if _, dup := index[r.ID]; dup {
			return fmt.Errorf("row %d: %w: %s", i, ErrDuplicateID, r.ID)
		}
		index[r.ID] = i
		next[i] = r
	}

	s.mu.Lock()
	s.records = next
	s.index = index
	s.mu.Unlock()
	return nil
}

// Reset discards all records.
func (s *Store) Reset() {
	s.mu.Lock()
	s.records = nil
	s.index = make(map[string]int)
	s.mu.Unlock()
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// At returns a copy of the record at position i.
func (s *Store) At(i int) (record.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.records) {
		return record.Record{}, false
	}
	return s.records[i], true
}

// Get returns a copy of the record with the given id.
func (s *Store) Get(id string) (record.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return record.Record{}, false
	}
	return s.records[i], true
}

// MergeByID writes the enrichment fields of the record with the given id in
// a single critical section. It returns false when no such record exists,
// which happens when the store was reset while a lookup was in flight.
func (s *Store) MergeByID(id string, e record.Enrichment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.records[i].Apply(e)
	return true
}

// Snapshot returns a copy of all records in original order.
func (s *Store) Snapshot() []record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]record.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Counts summarizes the enrichment state of the store.
type Counts struct {
	Total    int `json:"total"`
	Enriched int `json:"enriched"`
	Found    int `json:"found"`
}

// Counts walks the store once and tallies enriched and found records.
func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := Counts{Total: len(s.records)}
	for _, r := range s.records {
		if r.Enriched() {
			c.Enriched++
		}
		if r.Found() {
			c.Found++
		}
	}
	return c
}
