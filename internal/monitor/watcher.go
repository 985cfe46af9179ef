// Package monitor polls Grocy for chores, stock, volatile stock, shopping
// lists and tasks, and reacts to changes between consecutive snapshots.
//
// A Watcher owns one entity type. Every cycle it fetches the current list,
// compares its identities with the previous snapshot and, when they differ,
// hands (old, new) to its change handler. The first successful fetch only
// primes the snapshot. The Monitor wires five watchers to gauges and to the
// Notifier.
package monitor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tbourn/go-grocy-bot/internal/observability"
	"github.com/tbourn/go-grocy-bot/internal/worker"
)

var tracer = otel.Tracer("monitor")

// WatcherConfig describes one watched entity type.
type WatcherConfig[T any] struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single cycle. Zero means no bound.
	Timeout time.Duration

	Fetch    func(ctx context.Context) ([]T, error)
	Identity KeyFunc[T]

	OnChange func(ctx context.Context, old, new []T) error
	// OnPrime runs once with the first snapshot. It must not notify.
	OnPrime func(ctx context.Context, items []T)
}

// Status is a point-in-time view of a watcher for the admin API.
type Status struct {
	Name      string        `json:"name"`
	Running   bool          `json:"running"`
	Primed    bool          `json:"primed"`
	Items     int           `json:"items"`
	Changes   uint64        `json:"changes"`
	Runs      uint64        `json:"runs"`
	Interval  time.Duration `json:"interval"`
	LastRun   time.Time     `json:"last_run,omitempty"`
	LastError string        `json:"last_error,omitempty"`
}

// Watcher polls one entity type. It is safe for concurrent use; cycles of a
// single watcher never overlap.
type Watcher[T any] struct {
	*worker.Interval

	cfg WatcherConfig[T]
	lg  zerolog.Logger

	cycle sync.Mutex // serializes scheduled and manual cycles

	mu       sync.Mutex
	snapshot []T
	primed   bool
	changes  uint64
}

// NewWatcher returns a stopped watcher.
func NewWatcher[T any](cfg WatcherConfig[T]) *Watcher[T] {
	w := &Watcher[T]{
		cfg: cfg,
		lg:  log.With().Str("component", "watcher").Str("watcher", cfg.Name).Logger(),
	}
	var opts []worker.Option
	if cfg.Timeout > 0 {
		opts = append(opts, worker.WithTimeout(cfg.Timeout))
	}
	w.Interval = worker.New(cfg.Name, cfg.Interval, w.run, opts...)
	return w
}

// Poll runs one cycle immediately, outside the timer chain.
func (w *Watcher[T]) Poll(ctx context.Context) error {
	return w.RunOnce(ctx)
}

// Snapshot returns a copy of the latest snapshot and whether one exists.
func (w *Watcher[T]) Snapshot() ([]T, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]T(nil), w.snapshot...), w.primed
}

// Status reports the watcher state.
func (w *Watcher[T]) Status() Status {
	lastRun, lastErr := w.LastRun()
	w.mu.Lock()
	defer w.mu.Unlock()
	st := Status{
		Name:     w.cfg.Name,
		Running:  w.Running(),
		Primed:   w.primed,
		Items:    len(w.snapshot),
		Changes:  w.changes,
		Runs:     w.Runs(),
		Interval: w.Interval.Interval(),
		LastRun:  lastRun,
	}
	if lastErr != nil {
		st.LastError = lastErr.Error()
	}
	return st
}

// run is one poll cycle. Fetch and identity failures are returned to the
// worker, which logs and counts them; the previous snapshot is kept.
func (w *Watcher[T]) run(ctx context.Context) error {
	w.cycle.Lock()
	defer w.cycle.Unlock()

	ctx, span := tracer.Start(ctx, "watcher."+w.cfg.Name)
	defer span.End()

	items, err := w.cfg.Fetch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return worker.WithStage(worker.StageFetch, err)
	}
	span.SetAttributes(attribute.Int("items", len(items)))

	w.mu.Lock()
	old, primed := w.snapshot, w.primed
	w.mu.Unlock()

	if !primed {
		if _, err := keySet(items, w.cfg.Identity); err != nil {
			span.RecordError(err)
			return worker.WithStage(worker.StageIdentity, err)
		}
		w.store(items, false)
		if w.cfg.OnPrime != nil {
			w.guard(func() error { w.cfg.OnPrime(ctx, items); return nil })
		}
		w.lg.Debug().Int("items", len(items)).Msg("snapshot primed")
		return nil
	}

	changed, err := HasChanged(old, items, w.cfg.Identity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "identity failed")
		return worker.WithStage(worker.StageIdentity, err)
	}
	span.SetAttributes(attribute.Bool("changed", changed))

	if changed {
		w.lg.Debug().Int("old", len(old)).Int("new", len(items)).Msg("change detected")
		w.guard(func() error { return w.cfg.OnChange(ctx, old, items) })
	}
	w.store(items, changed)
	return nil
}

func (w *Watcher[T]) store(items []T, changed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.snapshot = items
	w.primed = true
	if changed {
		w.changes++
	}
}

// guard runs a handler, absorbing its error or panic so that the snapshot
// still advances.
func (w *Watcher[T]) guard(fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			observability.WorkerErrors.WithLabelValues(w.cfg.Name, worker.StageCallback).Inc()
			w.lg.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered in change handler")
		}
	}()
	if err := fn(); err != nil {
		observability.WorkerErrors.WithLabelValues(w.cfg.Name, worker.StageCallback).Inc()
		w.lg.Error().Err(fmt.Errorf("change handler: %w", err)).Msg("change handler failed")
	}
}
