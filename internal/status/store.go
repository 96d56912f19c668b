// Package status keeps the latest known state of every target.
//
// Update is the only mutation. Each url has its own lock so checks of
// different targets never contend; the outer map lock is held only long
// enough to find or create an entry.
//
// Error is the reason of the current outage and is cleared by every UP
// result. LastError keeps the most recent DOWN reason after recovery.
package status

import (
	"sync"
	"time"

	"github.com/hamed0406/sitewatch/internal/domain"
)

type Meta struct {
	CheckedEveryMinutes int
	Timezone            string
	Location            *time.Location
}

type entry struct {
	mu    sync.Mutex
	state domain.TargetState
}

type Store struct {
	meta Meta

	mu      sync.RWMutex
	entries map[string]*entry
}

func NewStore(meta Meta) *Store {
	if meta.Location == nil {
		meta.Location = time.UTC
	}
	if meta.Timezone == "" {
		meta.Timezone = meta.Location.String()
	}
	return &Store{meta: meta, entries: make(map[string]*entry)}
}

func (s *Store) Meta() Meta { return s.meta }

func (s *Store) entry(url string) *entry {
	s.mu.RLock()
	e := s.entries[url]
	s.mu.RUnlock()
	if e != nil {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e = s.entries[url]; e == nil {
		e = &entry{state: domain.TargetState{URL: url, Status: domain.StatusUnknown}}
		s.entries[url] = e
	}
	return e
}

// Update applies res to the state of url. It reports whether the status
// changed between two recorded checks; the first-ever check never counts.
func (s *Store) Update(url string, res domain.CheckResult) (domain.TargetState, bool) {
	e := s.entry(url)
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.state.Status
	at := res.CheckedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	st := e.state
	st.Status = res.Status
	st.LastChecked = at
	st.Error = ""
	if res.Status == domain.StatusDown {
		st.Error = res.Error
		if prev != domain.StatusDown {
			t := at
			st.LastDowntime = &t
		}
		if res.Error != "" {
			st.LastError = res.Error
		}
	}

	e.state = st

	transitioned := prev != domain.StatusUnknown && prev != res.Status
	return clone(st), transitioned
}

// Restore seeds states loaded from storage. Urls already checked by this
// process keep their in-memory state.
func (s *Store) Restore(states []domain.TargetState) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, st := range states {
		if st.URL == "" || st.Status == domain.StatusUnknown {
			continue
		}
		if _, ok := s.entries[st.URL]; ok {
			continue
		}
		s.entries[st.URL] = &entry{state: clone(st)}
		n++
	}
	return n
}

// Get returns the state of url and whether it has been checked at all.
func (s *Store) Get(url string) (domain.TargetState, bool) {
	s.mu.RLock()
	e := s.entries[url]
	s.mu.RUnlock()
	if e == nil {
		return domain.TargetState{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return clone(e.state), true
}

// GetAll returns a copy of every recorded state keyed by url.
func (s *Store) GetAll() map[string]domain.TargetState {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make(map[string]domain.TargetState, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out[e.state.URL] = clone(e.state)
		e.mu.Unlock()
	}
	return out
}

func clone(st domain.TargetState) domain.TargetState {
	if st.LastDowntime != nil {
		t := *st.LastDowntime
		st.LastDowntime = &t
	}
	return st
}
