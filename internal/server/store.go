package server

import (
	"sync"
	"time"
)

// Store holds the two process-lifetime collections: an append-only log of
// submitted strings and a frequency table counting increment submissions.
// It is created once by the caller and injected into the Server.
type Store struct {
	mu          sync.RWMutex
	log         []string
	frequencies map[string]int
}

// Snapshot is a point-in-time copy of both collections.
type Snapshot struct {
	TakenAt       time.Time      `json:"taken_at"`
	Log           []string       `json:"log"`
	Frequencies   map[string]int `json:"frequencies"`
	LogSize       int            `json:"log_size"`
	FrequencySize int            `json:"frequency_size"`
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		log:         make([]string, 0),
		frequencies: make(map[string]int),
	}
}

// Append adds value to the end of the log.
func (s *Store) Append(value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, value)
}

// Increment bumps the count for value and returns the new count.
func (s *Store) Increment(value string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frequencies[value]++
	return s.frequencies[value]
}

// Log returns a copy of the log in submission order. Never nil.
func (s *Store) Log() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.log))
	copy(out, s.log)
	return out
}

// Frequencies returns a copy of the frequency table. Never nil.
func (s *Store) Frequencies() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyCounts(s.frequencies)
}

// Sizes reports the number of distinct frequency keys and the log length.
func (s *Store) Sizes() (frequencyKeys, logEntries int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.frequencies), len(s.log)
}

// Snapshot copies both collections under a single read lock so the two
// views are consistent with each other.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logCopy := make([]string, len(s.log))
	copy(logCopy, s.log)

	return Snapshot{
		TakenAt:       time.Now().UTC(),
		Log:           logCopy,
		Frequencies:   copyCounts(s.frequencies),
		LogSize:       len(s.log),
		FrequencySize: len(s.frequencies),
	}
}

func copyCounts(src map[string]int) map[string]int {
	out := make(map[string]int, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
