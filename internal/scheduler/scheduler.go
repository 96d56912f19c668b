package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/probe"
	"github.com/hamed0406/sitewatch/internal/repo"
	"github.com/hamed0406/sitewatch/internal/status"
)

// Lister is the part of the registry the scheduler needs.
type Lister interface {
	List(ctx context.Context) ([]domain.Target, error)
}

type Options struct {
	// Interval between cycle starts. Zero disables the loop.
	Interval time.Duration
	// Timeout bounds a single check.
	Timeout time.Duration
	// Grace is how long Run waits for in-flight checks after ctx ends.
	Grace time.Duration
	// Concurrency caps simultaneous checks. Zero means one goroutine per
	// target with no cap.
	Concurrency int
}

// Sinks receive the outcome of every recorded check. Any may be nil.
type Sinks struct {
	// Downtime gets one entry per entry into DOWN.
	Downtime repo.DowntimeLog
	// States gets the updated state after every check.
	States repo.StateStore
	// History gets the first status of a target and every transition.
	History repo.StatusHistory
}

type Scheduler struct {
	log      *zap.Logger
	targets  Lister
	checker  probe.Checker
	store    *status.Store
	events   chan<- domain.Transition
	sinks    Sinks
	opts     Options

	sem chan struct{}

	mu       sync.Mutex
	inflight map[string]struct{}

	wg      sync.WaitGroup
	discard atomic.Bool
}

// New builds a scheduler. events may be nil.
func New(
	logger *zap.Logger,
	targets Lister,
	checker probe.Checker,
	store *status.Store,
	events chan<- domain.Transition,
	sinks Sinks,
	opts Options,
) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Interval < 0 {
		opts.Interval = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Grace < 0 {
		opts.Grace = 0
	}
	s := &Scheduler{
		log:      logger,
		targets:  targets,
		checker:  checker,
		store:    store,
		events:   events,
		sinks:    sinks,
		opts:     opts,
		inflight: make(map[string]struct{}),
	}
	if opts.Concurrency > 0 {
		s.sem = make(chan struct{}, opts.Concurrency)
	}
	return s
}

// Run does an immediate cycle, then one per tick, until ctx is cancelled.
// Checks still running when ctx ends get Grace to finish; after that they
// are cancelled and their results thrown away.
func (s *Scheduler) Run(ctx context.Context) {
	if s.opts.Interval == 0 {
		s.log.Info("scheduler_disabled")
		return
	}

	// probes outlive ctx by up to Grace
	probeCtx, cancelProbes := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelProbes()

	t := time.NewTicker(s.opts.Interval)
	defer t.Stop()

	s.cycle(ctx, probeCtx)
	for {
		select {
		case <-ctx.Done():
			s.shutdown(cancelProbes)
			return
		case <-t.C:
			s.cycle(ctx, probeCtx)
		}
	}
}

func (s *Scheduler) shutdown(cancelProbes context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("scheduler_stopped")
		return
	case <-time.After(s.opts.Grace):
	}

	s.discard.Store(true)
	cancelProbes()
	<-done
	s.log.Warn("scheduler_grace_exceeded", zap.Duration("grace", s.opts.Grace))
}

// RunOnce runs a single cycle and waits for all of its checks.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.cycle(ctx, ctx).Wait()
}

func (s *Scheduler) cycle(ctx, probeCtx context.Context) *sync.WaitGroup {
	var wg sync.WaitGroup

	ts, err := s.targets.List(ctx)
	if err != nil {
		s.log.Warn("scheduler_list_error", zap.Error(err))
		return &wg
	}
	s.log.Debug("scheduler_cycle_started", zap.Int("targets", len(ts)))

	for _, t := range ts {
		if !s.claim(t.URL) {
			s.log.Warn("scheduler_check_skipped",
				zap.String("url", t.URL),
				zap.String("reason", "previous check still running"),
			)
			continue
		}
		wg.Add(1)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer wg.Done()
			defer s.release(t.URL)
			s.check(probeCtx, t)
		}()
	}
	return &wg
}

func (s *Scheduler) claim(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[url]; busy {
		return false
	}
	s.inflight[url] = struct{}{}
	return true
}

func (s *Scheduler) release(url string) {
	s.mu.Lock()
	delete(s.inflight, url)
	s.mu.Unlock()
}

func (s *Scheduler) check(ctx context.Context, t domain.Target) {
	if s.sem != nil {
		select {
		case s.sem <- struct{}{}:
			defer func() { <-s.sem }()
		case <-ctx.Done():
			return
		}
	}

	res := s.probe(ctx, t.URL)
	if s.discard.Load() {
		s.log.Debug("scheduler_result_discarded", zap.String("url", t.URL))
		return
	}
	s.record(ctx, t, res)
}

func (s *Scheduler) probe(ctx context.Context, url string) (res domain.CheckResult) {
	cctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduler_probe_panic", zap.String("url", url), zap.Any("panic", r))
			res = domain.CheckResult{
				Status:    domain.StatusDown,
				Error:     probe.ReasonProbePanic,
				CheckedAt: time.Now().UTC(),
			}
		}
	}()
	res = s.checker.Check(cctx, url)
	if res.CheckedAt.IsZero() {
		res.CheckedAt = time.Now().UTC()
	}
	return res
}

func (s *Scheduler) record(ctx context.Context, t domain.Target, res domain.CheckResult) {
	before, seen := s.store.Get(t.URL)
	st, changed := s.store.Update(t.URL, res)

	s.log.Debug("scheduler_checked",
		zap.String("url", t.URL),
		zap.String("status", string(res.Status)),
		zap.Int("http_status", res.HTTPStatus),
		zap.Float64("latency_ms", res.LatencyMS),
		zap.String("reason", res.Error),
	)

	if s.sinks.States != nil {
		if err := s.sinks.States.SetState(ctx, st); err != nil {
			s.log.Warn("scheduler_state_save_error", zap.String("url", t.URL), zap.Error(err))
		}
	}

	enteredDown := res.Status == domain.StatusDown && (!seen || before.Status != domain.StatusDown)
	if enteredDown && s.sinks.Downtime != nil {
		e := domain.DowntimeEntry{URL: t.URL, Error: res.Error, At: res.CheckedAt}
		if err := s.sinks.Downtime.Append(ctx, e); err != nil {
			s.log.Warn("scheduler_downtime_log_error", zap.String("url", t.URL), zap.Error(err))
		}
	}

	if (!seen || changed) && s.sinks.History != nil {
		e := domain.StatusEvent{URL: t.URL, Status: st.Status, At: res.CheckedAt}
		if err := s.sinks.History.AppendStatus(ctx, e); err != nil {
			s.log.Warn("scheduler_history_error", zap.String("url", t.URL), zap.Error(err))
		}
	}

	if !changed {
		return
	}
	ev := domain.Transition{
		Target:    t,
		From:      before.Status,
		To:        st.Status,
		Error:     res.Error,
		At:        res.CheckedAt,
		DownSince: st.LastDowntime,
	}
	s.log.Info("scheduler_transition",
		zap.String("url", t.URL),
		zap.String("from", string(ev.From)),
		zap.String("to", string(ev.To)),
		zap.String("reason", ev.Error),
	)
	if s.events == nil {
		return
	}
	select {
	case s.events <- ev:
	default:
		s.log.Warn("scheduler_event_dropped",
			zap.String("url", t.URL),
			zap.String("reason", "notify queue full"),
		)
	}
}
