package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
)

var _ repo.TargetStore = (*Store)(nil)
var _ repo.DowntimeLog = (*Store)(nil)
var _ repo.StateStore = (*Store)(nil)
var _ repo.StatusHistory = (*Store)(nil)

// Store keeps everything in process memory. Nothing survives a restart.
type Store struct {
	mu       sync.RWMutex
	targets  map[string]*domain.Target
	order    []string
	downtime []domain.DowntimeEntry
	states   map[string]domain.TargetState
	history  map[string][]domain.StatusEvent
}

func New() *Store {
	return &Store{
		targets:  make(map[string]*domain.Target),
		downtime: make([]domain.DowntimeEntry, 0, 64),
		states:   make(map[string]domain.TargetState),
		history:  make(map[string][]domain.StatusEvent),
	}
}

func (m *Store) List(ctx context.Context) ([]domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Target, 0, len(m.order))
	for _, u := range m.order {
		out = append(out, *m.targets[u])
	}
	return out, nil
}

func (m *Store) Get(ctx context.Context, url string) (*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[url]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *Store) Upsert(ctx context.Context, url, chatID string) (domain.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[url]
	if !ok {
		t = &domain.Target{URL: url, Name: domain.HostOf(url), CreatedAt: time.Now().UTC()}
		m.targets[url] = t
		m.order = append(m.order, url)
	}
	t.ChatID = chatID
	return *t, nil
}

func (m *Store) Ensure(ctx context.Context, in domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[in.URL]
	if !ok {
		cp := in
		if cp.Name == "" {
			cp.Name = domain.HostOf(cp.URL)
		}
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = time.Now().UTC()
		}
		m.targets[in.URL] = &cp
		m.order = append(m.order, in.URL)
		return nil
	}
	if in.Name != "" {
		t.Name = in.Name
	}
	if t.ChatID == "" {
		t.ChatID = in.ChatID
	}
	return nil
}

func (m *Store) Append(ctx context.Context, e domain.DowntimeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downtime = append(m.downtime, e)
	return nil
}

func (m *Store) Recent(ctx context.Context, limit int) ([]domain.DowntimeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.downtime) {
		limit = len(m.downtime)
	}
	out := make([]domain.DowntimeEntry, 0, limit)
	for i := len(m.downtime) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.downtime[i])
	}
	return out, nil
}

func (m *Store) GetState(ctx context.Context, url string) (*domain.TargetState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[url]
	if !ok {
		return nil, nil
	}
	st = copyState(st)
	return &st, nil
}

func (m *Store) SetState(ctx context.Context, st domain.TargetState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st.LastDowntime == nil {
		st.LastDowntime = m.states[st.URL].LastDowntime
	}
	m.states[st.URL] = copyState(st)
	return nil
}

func (m *Store) ListStates(ctx context.Context) ([]domain.TargetState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.TargetState, 0, len(m.states))
	for _, st := range m.states {
		out = append(out, copyState(st))
	}
	return out, nil
}

func (m *Store) AppendStatus(ctx context.Context, e domain.StatusEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[e.URL] = append(m.history[e.URL], e)
	return nil
}

// StatusSince assumes events were appended in time order, as the scheduler
// does.
func (m *Store) StatusSince(ctx context.Context, url string, since time.Time) (*domain.StatusEvent, []domain.StatusEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var (
		prev *domain.StatusEvent
		out  []domain.StatusEvent
	)
	for _, e := range m.history[url] {
		if e.At.Before(since) {
			cp := e
			prev = &cp
			continue
		}
		out = append(out, e)
	}
	return prev, out, nil
}

func copyState(st domain.TargetState) domain.TargetState {
	if st.LastDowntime != nil {
		t := *st.LastDowntime
		st.LastDowntime = &t
	}
	return st
}
