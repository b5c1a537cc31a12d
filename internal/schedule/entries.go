// Package schedule triggers campaign runs at configured daily times. The
// scheduler polls the wall clock on a short interval and dedupes firings by
// minute string, which is all the precision the engine promises.
package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
)

var entryPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

var (
	ErrInvalidEntry   = errors.New("schedule: entry must be HH:MM (24h)")
	ErrDuplicateEntry = errors.New("schedule: entry already exists")
)

// EntrySet holds the daily HH:MM trigger times, unique and sorted. Safe for
// concurrent use: the polling loop reads it while config reloads replace it.
type EntrySet struct {
	mu      sync.RWMutex
	entries map[string]struct{}
}

// NewEntrySet builds a set from the given times. Invalid or duplicate values
// make construction fail without a partial set.
func NewEntrySet(times ...string) (*EntrySet, error) {
	s := &EntrySet{entries: make(map[string]struct{})}
	for _, t := range times {
		if err := s.Add(t); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add validates and inserts one entry. Invalid or duplicate values are
// rejected without mutating the set.
func (s *EntrySet) Add(t string) error {
	if !entryPattern.MatchString(t) {
		return fmt.Errorf("%w: %q", ErrInvalidEntry, t)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[t]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateEntry, t)
	}
	s.entries[t] = struct{}{}
	return nil
}

// Remove deletes one entry, reporting whether it was present.
func (s *EntrySet) Remove(t string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[t]; !ok {
		return false
	}
	delete(s.entries, t)
	return true
}

// Contains reports whether the given minute is a trigger time.
func (s *EntrySet) Contains(t string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[t]
	return ok
}

// Entries returns the trigger times in sorted order.
func (s *EntrySet) Entries() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.entries))
	for t := range s.entries {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of entries.
func (s *EntrySet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Replace swaps the whole set for the given times, skipping invalid values.
// Duplicates collapse silently (set semantics). It returns the number of
// entries actually installed, used by config reload to log what took effect.
func (s *EntrySet) Replace(times []string) int {
	next := make(map[string]struct{})
	for _, t := range times {
		if entryPattern.MatchString(t) {
			next[t] = struct{}{}
		}
	}
	s.mu.Lock()
	s.entries = next
	s.mu.Unlock()
	return len(next)
}
