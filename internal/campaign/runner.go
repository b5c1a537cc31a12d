// Package campaign implements the orchestration engine: one run acquires
// offers from the configured sources, drives the delivery channel through its
// lifecycle for each offer, and records every outcome in the history store.
package campaign

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"zapfinder/internal/history"
	"zapfinder/internal/offer"
)

// State is the runner's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateDelivering
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateDelivering:
		return "delivering"
	case StateFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// OfferSource fetches normalized offers from one marketplace.
// Implementations degrade malformed records to defaults instead of failing;
// returning zero offers is a valid "nothing to deliver" outcome.
type OfferSource interface {
	Name() string
	Fetch(ctx context.Context, limit int) ([]offer.Offer, error)
}

// Channel is the delivery side of a run. The runner drives the lifecycle
// strictly in order: Connect, AwaitReady, ResolveDestination, Deliver per
// offer, Close. Close must be safe even if Connect never succeeded.
type Channel interface {
	Name() string
	Connect(ctx context.Context) error
	AwaitReady(ctx context.Context, timeout time.Duration) error
	ResolveDestination(ctx context.Context, name string) error
	Deliver(ctx context.Context, o offer.Offer) error
	Close() error
}

// History receives the audit record of each delivery attempt.
type History interface {
	Append(ctx context.Context, a history.Attempt) error
}

// Summary is the caller-visible outcome of one run.
type Summary struct {
	RunID     string
	Attempted int
	Succeeded int
	Failed    int
	Aborted   bool
}

// Config assembles a Runner. Sources are consulted in slice order and their
// results concatenate in that same order.
type Config struct {
	Sources     []OfferSource
	Channel     Channel
	History     History
	Destination string

	// OfferLimit caps how many offers each source may return. Defaults to 5.
	OfferLimit int

	// ReadyTimeout bounds the channel readiness wait. Defaults to 60s.
	ReadyTimeout time.Duration

	Logger *zap.Logger
}

// Runner executes one campaign at a time: Idle -> Acquiring -> Delivering ->
// Finalizing -> Idle. A second Run call while one is active fails with
// ErrAlreadyRunning.
type Runner struct {
	cfg     Config
	log     *zap.Logger
	control *RunControl

	mu    sync.RWMutex
	state State
}

// NewRunner builds a Runner, applying defaults for unset config fields.
func NewRunner(cfg Config) *Runner {
	if cfg.OfferLimit <= 0 {
		cfg.OfferLimit = 5
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Runner{
		cfg:     cfg,
		log:     cfg.Logger,
		control: &RunControl{},
	}
}

// Control returns the shared run/stop handle for this runner.
func (r *Runner) Control() *RunControl {
	return r.control
}

// State returns the runner's current lifecycle state.
func (r *Runner) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Run executes one full campaign. The returned error is non-nil only for
// run-fatal conditions (single-flight rejection or a pre-delivery channel
// failure); per-offer failures surface in the Summary counts instead.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	if !r.control.tryAcquire() {
		r.log.Warn("run rejected, another run is in flight")
		return Summary{}, ErrAlreadyRunning
	}
	defer r.control.release()
	defer r.setState(StateIdle)

	summary := Summary{RunID: uuid.NewString()}
	log := r.log.With(zap.String("run_id", summary.RunID))
	log.Info("campaign run starting", zap.Int("sources", len(r.cfg.Sources)))

	r.setState(StateAcquiring)
	offers := r.acquire(ctx, log)
	if len(offers) == 0 {
		log.Info("no offers acquired, finalizing")
		r.finalize(ctx, log, nil)
		return summary, nil
	}
	log.Info("offers acquired", zap.Int("count", len(offers)))

	r.setState(StateDelivering)
	attempts, aborted, fatalErr := r.deliver(ctx, log, offers)

	summary.Aborted = aborted
	summary.Attempted = len(attempts)
	for _, a := range attempts {
		if a.Status == history.StatusSuccess {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	r.finalize(ctx, log, attempts)

	log.Info("campaign run finished",
		zap.Int("attempted", summary.Attempted),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Bool("aborted", summary.Aborted))
	return summary, fatalErr
}

// acquire fetches from every source concurrently but keeps results in
// configured source order. Source failures are logged and skipped.
func (r *Runner) acquire(ctx context.Context, log *zap.Logger) []offer.Offer {
	results := make([][]offer.Offer, len(r.cfg.Sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range r.cfg.Sources {
		i, src := i, src
		g.Go(func() error {
			offers, err := src.Fetch(gctx, r.cfg.OfferLimit)
			if err != nil {
				log.Warn("offer source failed",
					zap.String("source", src.Name()),
					zap.Error(&AcquisitionError{Source: src.Name(), Err: err}))
				return nil
			}
			results[i] = offers
			return nil
		})
	}
	_ = g.Wait()

	var offers []offer.Offer
	for _, batch := range results {
		offers = append(offers, batch...)
	}
	return offers
}

// deliver brings the channel up and sends each offer in order. A failure
// before the first Deliver aborts the whole loop; a failed Deliver records a
// failure outcome and continues.
func (r *Runner) deliver(ctx context.Context, log *zap.Logger, offers []offer.Offer) (attempts []history.Attempt, aborted bool, fatal error) {
	ch := r.cfg.Channel

	if err := ch.Connect(ctx); err != nil {
		log.Error("channel connect failed", zap.Error(err))
		return nil, true, err
	}
	if err := ch.AwaitReady(ctx, r.cfg.ReadyTimeout); err != nil {
		log.Error("channel readiness failed", zap.Error(err))
		return nil, true, err
	}
	if err := ch.ResolveDestination(ctx, r.cfg.Destination); err != nil {
		log.Error("destination resolution failed",
			zap.String("destination", r.cfg.Destination), zap.Error(err))
		return nil, true, err
	}

	for i, o := range offers {
		if r.control.StopRequested() {
			log.Info("stop requested, skipping remaining offers",
				zap.Int("delivered", i), zap.Int("remaining", len(offers)-i))
			return attempts, true, nil
		}

		status := history.StatusSuccess
		if err := ch.Deliver(ctx, o); err != nil {
			status = history.StatusFailure
			log.Warn("delivery failed",
				zap.String("offer", o.Title),
				zap.Error(&DeliveryError{OfferTitle: o.Title, Err: err}))
		} else {
			log.Info("offer delivered",
				zap.Int("index", i+1), zap.Int("total", len(offers)),
				zap.String("offer", o.Title))
		}

		attempts = append(attempts, history.Attempt{
			SentAt:     time.Now(),
			OfferTitle: o.Title,
			Channel:    ch.Name(),
			Status:     status,
		})
	}
	return attempts, false, nil
}

// finalize closes the channel unconditionally and persists the attempt log in
// acquisition order. Persistence failures are logged, never propagated.
func (r *Runner) finalize(ctx context.Context, log *zap.Logger, attempts []history.Attempt) {
	r.setState(StateFinalizing)

	if err := r.cfg.Channel.Close(); err != nil {
		log.Warn("channel close failed", zap.Error(err))
	}

	if r.cfg.History == nil {
		return
	}
	for _, a := range attempts {
		if err := r.cfg.History.Append(ctx, a); err != nil {
			log.Warn("history append failed",
				zap.String("offer", a.OfferTitle),
				zap.Error(&PersistenceError{Err: err}))
		}
	}
}
