package campaign

import "sync/atomic"

// RunControl is the shared run/stop state between a runner and its callers.
// There is exactly one writer per flag: the runner owns the running flag and
// callers own the stop request. No global state is involved; any caller that
// needs to signal cancellation holds a reference to this value.
type RunControl struct {
	running atomic.Bool
	stop    atomic.Bool
}

// tryAcquire flips the running flag if no run is active, clearing any stale
// stop request from the previous run. Returns false while a run is in flight.
func (c *RunControl) tryAcquire() bool {
	if !c.running.CompareAndSwap(false, true) {
		return false
	}
	c.stop.Store(false)
	return true
}

// release marks the run finished.
func (c *RunControl) release() {
	c.running.Store(false)
}

// Running reports whether a run currently holds the single-flight flag.
func (c *RunControl) Running() bool {
	return c.running.Load()
}

// RequestStop asks the active run to finish early. The runner observes the
// flag between offers, so the in-flight delivery step completes first.
// Returns false when no run is active.
func (c *RunControl) RequestStop() bool {
	if !c.running.Load() {
		return false
	}
	c.stop.Store(true)
	return true
}

// StopRequested reports whether a stop was requested for the active run.
func (c *RunControl) StopRequested() bool {
	return c.stop.Load()
}
