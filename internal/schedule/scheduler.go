package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"zapfinder/internal/campaign"
)

const (
	// DefaultTick keeps polling well under a minute so no trigger slips by.
	DefaultTick = 5 * time.Second
	maxTick     = 5 * time.Second

	minuteLayout = "15:04"
)

// RunFunc starts one campaign run. The scheduler invokes it synchronously so
// a run that outlives its trigger minute naturally blocks the next firing.
type RunFunc func(ctx context.Context) error

// Scheduler fires the run function whenever the current minute matches one of
// the configured entries, at most once per minute.
type Scheduler struct {
	entries *EntrySet
	run     RunFunc
	tick    time.Duration
	now     func() time.Time
	log     *zap.Logger

	mu        sync.Mutex
	lastFired string
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// Option adjusts scheduler construction.
type Option func(*Scheduler)

// WithTick overrides the poll interval. Values above five seconds are
// clamped, a longer tick could skip over a trigger minute entirely.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithClock substitutes the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New builds a scheduler over the given entry set.
func New(entries *EntrySet, run RunFunc, log *zap.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		entries: entries,
		run:     run,
		tick:    DefaultTick,
		now:     time.Now,
		log:     log,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	for _, o := range opts {
		o(s)
	}
	if s.tick > maxTick {
		s.tick = maxTick
	}
	return s
}

// Start launches the polling loop. It returns immediately; Stop shuts the
// loop down. Calling Start twice without an intervening Stop is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh != nil {
		s.mu.Unlock()
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	go s.loop(ctx, stopCh, doneCh)
}

// Stop signals the loop and waits for it, including any in-flight run, to
// finish. Safe to call when the scheduler was never started.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stopCh, doneCh := s.stopCh, s.doneCh
	s.stopCh, s.doneCh = nil, nil
	s.mu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh
}

func (s *Scheduler) loop(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.log.Info("scheduler started",
		zap.Strings("entries", s.entries.Entries()),
		zap.Duration("tick", s.tick))

	// Check once up front so a trigger minute already in progress at start
	// is not lost to ticker alignment.
	s.poll(ctx)

	for {
		select {
		case <-stopCh:
			s.log.Info("scheduler stopped")
			return
		case <-ctx.Done():
			s.log.Info("scheduler context cancelled")
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Scheduler) poll(ctx context.Context) {
	minute := s.now().Format(minuteLayout)
	if !s.entries.Contains(minute) {
		return
	}

	s.mu.Lock()
	if s.lastFired == minute {
		s.mu.Unlock()
		return
	}
	// Mark before running: a failed run must not retry within the minute.
	s.lastFired = minute
	s.mu.Unlock()

	s.log.Info("schedule triggered", zap.String("minute", minute))
	if err := s.run(ctx); err != nil {
		if errors.Is(err, campaign.ErrAlreadyRunning) {
			s.log.Warn("campaign already running, trigger skipped", zap.String("minute", minute))
			return
		}
		s.log.Error("scheduled run failed", zap.String("minute", minute), zap.Error(err))
	}
}
