// Package worker provides Interval, a restartable timer chain that runs a
// unit of work repeatedly with a fixed pause between the end of one run and
// the start of the next.
//
// Start schedules the first run immediately. Each run is isolated: returned
// errors and panics are logged with zerolog and counted in
// grocybot_worker_errors_total, and the next run is always scheduled. Stop
// cancels the pending timer only; a run already in progress completes but
// does not re-arm the chain.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-grocy-bot/internal/observability"
)

// Func is a unit of work executed by an Interval.
type Func func(ctx context.Context) error

// Interval runs a Func every interval until stopped. It is safe for
// concurrent use.
type Interval struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	run      Func
	lg       zerolog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	running bool
	gen     uint64 // bumped on every Start/Stop; stale runs compare against it

	lastRun time.Time
	lastErr error
	runs    uint64
}

// Option customizes an Interval.
type Option func(*Interval)

// WithTimeout bounds the context handed to each run.
func WithTimeout(d time.Duration) Option {
	return func(w *Interval) { w.timeout = d }
}

// New returns a stopped worker named name.
func New(name string, interval time.Duration, run Func, opts ...Option) *Interval {
	w := &Interval{
		name:     name,
		interval: interval,
		run:      run,
		lg:       log.With().Str("component", "worker").Str("worker", name).Logger(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Name returns the worker name used in logs and metric labels.
func (w *Interval) Name() string { return w.name }

// Interval returns the pause between runs.
func (w *Interval) Interval() time.Duration { return w.interval }

// Start schedules the first run immediately. Calling Start on a running
// worker is a no-op.
func (w *Interval) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		w.lg.Debug().Msg("already running, ignoring start")
		return
	}
	w.lg.Debug().Dur("interval", w.interval).Msg("starting worker")
	w.running = true
	w.gen++
	w.scheduleLocked(0, w.gen)
}

// Stop cancels the pending run. It is safe to call on a stopped or never
// started worker and does not wait for an in-flight run.
func (w *Interval) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if w.running {
		w.lg.Debug().Msg("worker stopped")
	}
	w.running = false
	w.gen++
}

// Running reports whether the worker is scheduled.
func (w *Interval) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// LastRun returns the completion time and result of the latest run.
func (w *Interval) LastRun() (time.Time, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRun, w.lastErr
}

// Runs returns the number of completed runs.
func (w *Interval) Runs() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs
}

// RunOnce executes the work unit synchronously with the same isolation as a
// scheduled run. It does not touch the timer chain.
func (w *Interval) RunOnce(ctx context.Context) error {
	err := w.execute(ctx)
	w.mu.Lock()
	w.lastRun = time.Now()
	w.lastErr = err
	w.runs++
	w.mu.Unlock()
	return err
}

func (w *Interval) scheduleLocked(delay time.Duration, gen uint64) {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(delay, func() { w.tick(gen) })
}

func (w *Interval) tick(gen uint64) {
	w.mu.Lock()
	if !w.running || w.gen != gen {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	ctx := context.Background()
	var cancel context.CancelFunc = func() {}
	if w.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
	}
	err := w.execute(ctx)
	cancel()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastRun = time.Now()
	w.lastErr = err
	w.runs++
	if w.running && w.gen == gen {
		w.scheduleLocked(w.interval, gen)
	}
}

// execute runs the work unit, converting panics to errors. Failures are
// logged and counted here so callers never have to.
func (w *Interval) execute(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("worker %s panicked: %v", w.name, rec)
			observability.WorkerErrors.WithLabelValues(w.name, "panic").Inc()
			w.lg.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered in worker run")
		}
		observability.WorkerRunSeconds.WithLabelValues(w.name).Observe(time.Since(start).Seconds())
	}()

	if err = w.run(ctx); err != nil {
		observability.WorkerErrors.WithLabelValues(w.name, StageOf(err)).Inc()
		w.lg.Error().Err(err).Dur("took", time.Since(start)).Msg("worker run failed")
	}
	return err
}
