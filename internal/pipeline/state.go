// Package pipeline drives the evaluation ticks: acquire, filter, dedup,
// score, learn, classify, persist. It owns all session-spanning mutable state.
package pipeline

import (
	"strings"
	"sync"

	"github.com/alanyoungcy/safescore/internal/domain"
)

// State holds the three collections that span ticks: seen transaction
// identifiers (never shrink), known sender addresses (grow only), and the
// append-only scored history feeding the velocity rule. Writes happen from
// exactly one tick at a time; the mutex exists because the status server reads
// sizes concurrently.
type State struct {
	mu      sync.RWMutex
	seen    map[string]struct{}
	known   map[string]struct{}
	history []domain.HistoryEntry
}

// NewState returns empty state. Restore populates it from durable storage at
// process start.
func NewState() *State {
	return &State{
		seen:  make(map[string]struct{}),
		known: make(map[string]struct{}),
	}
}

// Restore loads previously persisted identifiers, addresses, and history into
// the state. Addresses are lower-cased on entry.
func (s *State) Restore(seen, known []string, history []domain.HistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range seen {
		if id != "" {
			s.seen[id] = struct{}{}
		}
	}
	for _, a := range known {
		a = strings.TrimSpace(strings.ToLower(a))
		if a != "" {
			s.known[a] = struct{}{}
		}
	}
	s.history = append(s.history, history...)
}

// Seen reports whether the identifier was already processed.
func (s *State) Seen(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[id]
	return ok
}

// MarkSeen records identifiers as processed. An identifier once marked is
// permanently excluded from reprocessing.
func (s *State) MarkSeen(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if id != "" {
			s.seen[id] = struct{}{}
		}
	}
}

// Learn adds a sender address to the known set, returning true when it was not
// known before. The set never shrinks.
func (s *State) Learn(addr string) bool {
	addr = strings.TrimSpace(strings.ToLower(addr))
	if addr == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.known[addr]; ok {
		return false
	}
	s.known[addr] = struct{}{}
	return true
}

// KnownAddresses returns a copy of the known-address set for building the
// per-tick evaluation context.
func (s *State) KnownAddresses() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.known))
	for a := range s.known {
		out = append(out, a)
	}
	return out
}

// AppendHistory extends the scored history. Entries with unparsable
// timestamps never make it here (see domain.HistoryFrom).
func (s *State) AppendHistory(entries ...domain.HistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, entries...)
}

// HistorySnapshot returns the history as of now. The returned slice is only
// appended to, never reordered, so sharing the backing array with a context
// that is read for the rest of the tick is safe.
func (s *State) HistorySnapshot() []domain.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history[:len(s.history):len(s.history)]
}

// Sizes reports the collection sizes for the status endpoint.
func (s *State) Sizes() (seen, known, history int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen), len(s.known), len(s.history)
}
