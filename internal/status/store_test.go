package status

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/sitewatch/internal/domain"
)

const u = "https://example.com"

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func up(at time.Time) domain.CheckResult {
	return domain.CheckResult{Status: domain.StatusUp, HTTPStatus: 200, CheckedAt: at}
}

func downAt(at time.Time, reason string) domain.CheckResult {
	return domain.CheckResult{Status: domain.StatusDown, Error: reason, CheckedAt: at}
}

func TestUpdate_FirstCheckNeverTransitions(t *testing.T) {
	for _, res := range []domain.CheckResult{up(t0), downAt(t0, "timeout")} {
		s := NewStore(Meta{CheckedEveryMinutes: 1})
		_, changed := s.Update(u, res)
		assert.False(t, changed, "first %s check", res.Status)
	}
}

func TestUpdate_FirstCheckDownSetsDowntime(t *testing.T) {
	s := NewStore(Meta{})
	st, _ := s.Update(u, downAt(t0, "timeout"))
	require.NotNil(t, st.LastDowntime)
	assert.Equal(t, t0, *st.LastDowntime)
	assert.Equal(t, "timeout", st.LastError)
}

func TestUpdate_FirstCheckUpLeavesNoDowntime(t *testing.T) {
	s := NewStore(Meta{})
	st, _ := s.Update(u, up(t0))
	assert.Nil(t, st.LastDowntime)
	assert.Empty(t, st.LastError)
	assert.Equal(t, domain.StatusUp, st.Status)
}

func TestUpdate_Transitions(t *testing.T) {
	s := NewStore(Meta{})
	s.Update(u, up(t0))

	st, changed := s.Update(u, downAt(t0.Add(time.Minute), "HTTP 503"))
	assert.True(t, changed)
	require.NotNil(t, st.LastDowntime)
	assert.Equal(t, t0.Add(time.Minute), *st.LastDowntime)

	// staying DOWN keeps the first downtime
	st, changed = s.Update(u, downAt(t0.Add(2*time.Minute), "timeout"))
	assert.False(t, changed)
	assert.Equal(t, t0.Add(time.Minute), *st.LastDowntime)
	assert.Equal(t, "timeout", st.LastError)

	st, changed = s.Update(u, up(t0.Add(3*time.Minute)))
	assert.True(t, changed)
	assert.Equal(t, domain.StatusUp, st.Status)
	assert.Equal(t, t0.Add(time.Minute), *st.LastDowntime, "downtime survives recovery")
	assert.Equal(t, "timeout", st.LastError, "last error survives recovery")

	_, changed = s.Update(u, up(t0.Add(4*time.Minute)))
	assert.False(t, changed)
}

func TestUpdate_NewOutageMovesDowntime(t *testing.T) {
	s := NewStore(Meta{})
	s.Update(u, up(t0))
	s.Update(u, downAt(t0.Add(time.Minute), "timeout"))
	s.Update(u, up(t0.Add(2*time.Minute)))
	st, changed := s.Update(u, downAt(t0.Add(5*time.Minute), "HTTP 500"))
	assert.True(t, changed)
	assert.Equal(t, t0.Add(5*time.Minute), *st.LastDowntime)
}

func TestUpdate_CurrentErrorBelongsToCurrentOutage(t *testing.T) {
	s := NewStore(Meta{})
	s.Update(u, up(t0))
	st, _ := s.Update(u, downAt(t0.Add(time.Minute), "timeout"))
	assert.Equal(t, "timeout", st.Error)

	st, _ = s.Update(u, up(t0.Add(2*time.Minute)))
	assert.Empty(t, st.Error)
	assert.Equal(t, "timeout", st.LastError)

	// a new outage without a reason must not inherit the old one
	st, _ = s.Update(u, downAt(t0.Add(3*time.Minute), ""))
	assert.Empty(t, st.Error)
	assert.Equal(t, "timeout", st.LastError)
}

func TestRestore(t *testing.T) {
	down := t0.Add(-time.Hour)
	s := NewStore(Meta{})
	s.Update("https://live.example", up(t0))

	n := s.Restore([]domain.TargetState{
		{URL: u, Status: domain.StatusDown, Error: "timeout", LastError: "timeout", LastDowntime: &down, LastChecked: t0},
		{URL: "https://live.example", Status: domain.StatusDown},
		{URL: "https://never.example", Status: domain.StatusUnknown},
	})
	assert.Equal(t, 1, n)

	live, _ := s.Get("https://live.example")
	assert.Equal(t, domain.StatusUp, live.Status, "in-memory state wins")
	_, ok := s.Get("https://never.example")
	assert.False(t, ok)

	// restored state makes the next check comparable
	st, changed := s.Update(u, up(t0.Add(time.Minute)))
	assert.True(t, changed)
	assert.Equal(t, down, *st.LastDowntime)
	assert.Equal(t, "timeout", st.LastError)

	down = t0
	again, _ := s.Get(u)
	assert.Equal(t, t0.Add(-time.Hour), *again.LastDowntime, "Restore copies")
}

func TestGet(t *testing.T) {
	s := NewStore(Meta{})
	_, ok := s.Get(u)
	assert.False(t, ok)

	s.Update(u, downAt(t0, "timeout"))
	st, ok := s.Get(u)
	require.True(t, ok)
	assert.Equal(t, u, st.URL)
	assert.Equal(t, t0, st.LastChecked)
}

func TestGetAll_ReturnsCopies(t *testing.T) {
	s := NewStore(Meta{})
	s.Update(u, downAt(t0, "timeout"))
	s.Update("https://b.example", up(t0))

	all := s.GetAll()
	require.Len(t, all, 2)

	st := all[u]
	*st.LastDowntime = t0.Add(time.Hour)
	st.Status = domain.StatusUp
	all[u] = st

	again, _ := s.Get(u)
	assert.Equal(t, domain.StatusDown, again.Status)
	assert.Equal(t, t0, *again.LastDowntime)
}

func TestMetaDefaults(t *testing.T) {
	m := NewStore(Meta{CheckedEveryMinutes: 5}).Meta()
	assert.Equal(t, 5, m.CheckedEveryMinutes)
	assert.Equal(t, time.UTC, m.Location)
	assert.Equal(t, "UTC", m.Timezone)
}

func TestConcurrentUpdates(t *testing.T) {
	s := NewStore(Meta{})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		url := fmt.Sprintf("https://site%d.example", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if j%2 == 0 {
					s.Update(url, up(t0.Add(time.Duration(j)*time.Second)))
				} else {
					s.Update(url, downAt(t0.Add(time.Duration(j)*time.Second), "timeout"))
				}
				_ = s.GetAll()
			}
		}()
	}
	wg.Wait()

	all := s.GetAll()
	assert.Len(t, all, 20)
	for _, st := range all {
		assert.Equal(t, domain.StatusDown, st.Status)
		assert.Equal(t, t0.Add(49*time.Second), *st.LastDowntime)
	}
}
