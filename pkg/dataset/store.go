package dataset

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrDatasetNotFound is returned when a named dataset has not been stored.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrDatasetExists is returned when a dataset name is written twice.
	ErrDatasetExists = errors.New("dataset already stored")
)

// Store maps endpoint names to their materialized datasets for one run.
// Each name is written once and read any number of times afterward.
type Store struct {
	mu   sync.RWMutex
	sets map[string]*Dataset
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{sets: make(map[string]*Dataset)}
}

// Put stores ds under name.
func (s *Store) Put(name string, ds *Dataset) error {
	if ds == nil {
		return fmt.Errorf("dataset %q cannot be nil", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sets[name]; exists {
		return fmt.Errorf("%w: %s", ErrDatasetExists, name)
	}
	s.sets[name] = ds
	return nil
}

// Get returns the dataset stored under name.
func (s *Store) Get(name string) (*Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.sets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
	}
	return ds, nil
}

// Names returns the stored dataset names, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.sets))
	for name := range s.sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
