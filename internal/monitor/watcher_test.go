package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tbourn/go-grocy-bot/internal/domain"
	"github.com/tbourn/go-grocy-bot/internal/observability"
	"github.com/tbourn/go-grocy-bot/internal/worker"
)

// source is a scripted fetch function.
type source struct {
	mu    sync.Mutex
	items []domain.Chore
	err   error
}

func (s *source) set(items []domain.Chore, err error) {
	s.mu.Lock()
	s.items, s.err = items, err
	s.mu.Unlock()
}

func (s *source) fetch(context.Context) ([]domain.Chore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.Chore(nil), s.items...), nil
}

type change struct{ old, new []domain.Chore }

// recorder captures handler invocations.
type recorder struct {
	mu      sync.Mutex
	primes  [][]domain.Chore
	changes []change
	fail    error
	panic   bool
}

func (r *recorder) onPrime(_ context.Context, items []domain.Chore) {
	r.mu.Lock()
	r.primes = append(r.primes, items)
	r.mu.Unlock()
}

func (r *recorder) onChange(_ context.Context, old, new []domain.Chore) error {
	r.mu.Lock()
	r.changes = append(r.changes, change{old, new})
	fail, p := r.fail, r.panic
	r.mu.Unlock()
	if p {
		panic("handler blew up")
	}
	return fail
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.primes), len(r.changes)
}

func newTestWatcher(t *testing.T, src *source, rec *recorder) *Watcher[domain.Chore] {
	t.Helper()
	w := NewWatcher(WatcherConfig[domain.Chore]{
		Name:     t.Name(),
		Interval: time.Hour,
		Fetch:    src.fetch,
		Identity: ChoreID,
		OnChange: rec.onChange,
		OnPrime:  rec.onPrime,
	})
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_PrimesWithoutChangeEvent(t *testing.T) {
	src, rec := &source{items: chores(1, 2)}, &recorder{}
	w := newTestWatcher(t, src, rec)

	if err := w.Poll(context.Background()); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	primes, changes := rec.counts()
	if primes != 1 || changes != 0 {
		t.Fatalf("primes=%d changes=%d, want 1/0", primes, changes)
	}
	snap, ok := w.Snapshot()
	if !ok || len(snap) != 2 {
		t.Fatalf("snapshot=%v primed=%v", snap, ok)
	}
}

func TestWatcher_NoChangeNoEvent(t *testing.T) {
	src, rec := &source{items: chores(1, 2)}, &recorder{}
	w := newTestWatcher(t, src, rec)
	ctx := context.Background()

	_ = w.Poll(ctx)
	src.set([]domain.Chore{{ID: 2, Name: "renamed"}, {ID: 1}}, nil)
	_ = w.Poll(ctx)
	_ = w.Poll(ctx)

	if _, changes := rec.counts(); changes != 0 {
		t.Fatalf("changes=%d, want 0", changes)
	}
}

func TestWatcher_ChangeDeliversOldAndNew(t *testing.T) {
	src, rec := &source{items: chores(1)}, &recorder{}
	w := newTestWatcher(t, src, rec)
	ctx := context.Background()

	_ = w.Poll(ctx)
	src.set(chores(1, 2), nil)
	if err := w.Poll(ctx); err != nil {
		t.Fatal(err)
	}
	src.set(chores(1, 2), nil)
	_ = w.Poll(ctx)

	_, n := rec.counts()
	if n != 1 {
		t.Fatalf("changes=%d, want exactly 1", n)
	}
	got := rec.changes[0]
	if len(got.old) != 1 || len(got.new) != 2 {
		t.Fatalf("old=%v new=%v", ids(got.old), ids(got.new))
	}
	if st := w.Status(); st.Changes != 1 || st.Items != 2 || !st.Primed {
		t.Fatalf("status = %+v", st)
	}
}

func TestWatcher_FetchErrorKeepsSnapshot(t *testing.T) {
	src, rec := &source{items: chores(1)}, &recorder{}
	w := newTestWatcher(t, src, rec)
	ctx := context.Background()
	base := testutil.ToFloat64(observability.WorkerErrors.WithLabelValues(t.Name(), worker.StageFetch))

	_ = w.Poll(ctx)
	src.set(nil, errors.New("grocy down"))
	err := w.Poll(ctx)
	if err == nil || worker.StageOf(err) != worker.StageFetch {
		t.Fatalf("want fetch-stage error, got %v", err)
	}
	if got := testutil.ToFloat64(observability.WorkerErrors.WithLabelValues(t.Name(), worker.StageFetch)) - base; got != 1 {
		t.Fatalf("fetch errors delta = %v, want 1", got)
	}

	src.set(chores(1), nil)
	_ = w.Poll(ctx)
	if _, n := rec.counts(); n != 0 {
		t.Fatalf("recovered source with same ids must not fire a change, got %d", n)
	}
}

func TestWatcher_FetchErrorBeforePrimingStaysUnprimed(t *testing.T) {
	src, rec := &source{err: errors.New("boom")}, &recorder{}
	w := newTestWatcher(t, src, rec)

	_ = w.Poll(context.Background())
	if _, ok := w.Snapshot(); ok {
		t.Fatal("failed first fetch must not prime")
	}
	src.set(chores(1), nil)
	_ = w.Poll(context.Background())
	if primes, changes := rec.counts(); primes != 1 || changes != 0 {
		t.Fatalf("primes=%d changes=%d", primes, changes)
	}
}

func TestWatcher_IdentityFailureKeepsPreviousSnapshot(t *testing.T) {
	src, rec := &source{items: chores(1)}, &recorder{}
	w := newTestWatcher(t, src, rec)
	ctx := context.Background()

	_ = w.Poll(ctx)
	src.set([]domain.Chore{{ID: 1}, {Name: "no id"}}, nil)
	err := w.Poll(ctx)
	if !errors.Is(err, ErrIdentity) || worker.StageOf(err) != worker.StageIdentity {
		t.Fatalf("want identity-stage ErrIdentity, got %v", err)
	}

	snap, _ := w.Snapshot()
	if len(snap) != 1 || snap[0].ID != 1 {
		t.Fatalf("snapshot replaced after identity failure: %v", snap)
	}
	if _, n := rec.counts(); n != 0 {
		t.Fatalf("handler ran on identity failure")
	}
}

func TestWatcher_HandlerFailuresAreAbsorbed(t *testing.T) {
	for name, rec := range map[string]*recorder{
		"error": {fail: errors.New("send failed")},
		"panic": {panic: true},
	} {
		t.Run(name, func(t *testing.T) {
			src := &source{items: chores(1)}
			w := newTestWatcher(t, src, rec)
			ctx := context.Background()
			base := testutil.ToFloat64(observability.WorkerErrors.WithLabelValues(t.Name(), worker.StageCallback))

			_ = w.Poll(ctx)
			src.set(chores(2), nil)
			if err := w.Poll(ctx); err != nil {
				t.Fatalf("handler failure leaked out of the cycle: %v", err)
			}

			snap, _ := w.Snapshot()
			if len(snap) != 1 || snap[0].ID != 2 {
				t.Fatalf("snapshot must advance after handler failure, got %v", ids(snap))
			}
			if got := testutil.ToFloat64(observability.WorkerErrors.WithLabelValues(t.Name(), worker.StageCallback)) - base; got != 1 {
				t.Fatalf("callback errors delta = %v, want 1", got)
			}
		})
	}
}

func TestWatcher_AttributeChangesWithSameIdentitiesAreIgnored(t *testing.T) {
	src, rec := &source{items: []domain.Chore{{ID: 1, Name: "a", NextEstimatedExecutionTime: at(2024, 5, 9, 10)}}}, &recorder{}
	w := newTestWatcher(t, src, rec)
	ctx := context.Background()

	_ = w.Poll(ctx)
	src.set([]domain.Chore{{ID: 1, Name: "b", NextEstimatedExecutionTime: at(2024, 5, 17, 10)}}, nil)
	if err := w.Poll(ctx); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if _, n := rec.counts(); n != 0 {
		t.Fatalf("changes=%d, want 0 for an unchanged identity set", n)
	}
	if snap, _ := w.Snapshot(); snap[0].Name != "b" {
		t.Fatalf("snapshot must still advance, got %+v", snap)
	}
}

func TestWatcher_StartPollsImmediately(t *testing.T) {
	src, rec := &source{items: chores(1)}, &recorder{}
	w := newTestWatcher(t, src, rec)

	w.Start()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if primes, _ := rec.counts(); primes == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("watcher did not poll after Start")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !w.Status().Running {
		t.Fatal("status must report running")
	}
	w.Stop()
	if w.Status().Running {
		t.Fatal("status must report stopped")
	}
}
