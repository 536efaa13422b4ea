package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/jask/demandboard/internal/api"
)

type countingTarget struct {
	kind  api.Kind
	calls atomic.Int64
	err   error
}

func (c *countingTarget) Kind() api.Kind { return c.kind }

func (c *countingTarget) Refresh(ctx context.Context) error {
	c.calls.Add(1)
	return c.err
}

func targets() (*countingTarget, *countingTarget, *countingTarget) {
	return &countingTarget{kind: api.KindDemands},
		&countingTarget{kind: api.KindProjects},
		&countingTarget{kind: api.KindAllocations}
}

func TestStartRefreshesEveryKindImmediately(t *testing.T) {
	d, p, a := targets()
	s := New([]Target{d, p, a}, WithInterval(time.Hour))
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return d.calls.Load() == 1 && p.calls.Load() == 1 && a.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestStartPollsOnInterval(t *testing.T) {
	d, p, a := targets()
	s := New([]Target{d, p, a}, WithInterval(10*time.Millisecond))
	s.Start(context.Background())

	require.Eventually(t, func() bool {
		return d.calls.Load() >= 3 && p.calls.Load() >= 3 && a.calls.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	after := d.calls.Load()
	time.Sleep(40 * time.Millisecond)
	require.Equal(t, after, d.calls.Load(), "no refreshes after Stop")
}

func TestStartTwiceIsNoop(t *testing.T) {
	d, _, _ := targets()
	s := New([]Target{d}, WithInterval(time.Hour))
	s.Start(context.Background())
	s.Start(context.Background())
	s.Stop()
	require.Equal(t, int64(1), d.calls.Load())
}

func TestRefreshAllRunsOncePerKindIndependentOfTimer(t *testing.T) {
	d, p, a := targets()
	s := New([]Target{d, p, a}, WithInterval(time.Hour))

	s.RefreshAll(context.Background())
	s.Stop()

	require.Equal(t, int64(1), d.calls.Load())
	require.Equal(t, int64(1), p.calls.Load())
	require.Equal(t, int64(1), a.calls.Load())

	s.RefreshAll(context.Background())
	require.Equal(t, int64(1), d.calls.Load(), "RefreshAll after Stop does nothing")
}

func TestFailedRefreshIsNotRetriedAndIsReported(t *testing.T) {
	d := &countingTarget{kind: api.KindDemands, err: errors.New("boom")}
	p := &countingTarget{kind: api.KindProjects}

	var mu sync.Mutex
	seen := map[api.Kind]error{}
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	s := New([]Target{d, p},
		WithMetrics(m),
		WithNotify(func(kind api.Kind, err error) {
			mu.Lock()
			seen[kind] = err
			mu.Unlock()
		}),
	)

	s.RefreshAll(context.Background())
	s.Stop()

	require.Equal(t, int64(1), d.calls.Load())
	mu.Lock()
	require.EqualError(t, seen[api.KindDemands], "boom")
	require.NoError(t, seen[api.KindProjects])
	mu.Unlock()

	require.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("demands", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("projects", "ok")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.attempts.WithLabelValues("projects", "error")))
}

func TestContextCancelEndsPolling(t *testing.T) {
	d, _, _ := targets()
	ctx, cancel := context.WithCancel(context.Background())
	s := New([]Target{d}, WithInterval(5*time.Millisecond))
	s.Start(ctx)
	require.Eventually(t, func() bool { return d.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	s.Stop()
}

func TestWithIntervalIgnoresNonPositive(t *testing.T) {
	s := New(nil, WithInterval(0))
	require.Equal(t, DefaultInterval, s.Interval())
}

type hangingTarget struct {
	entered chan struct{}
}

func (h *hangingTarget) Kind() api.Kind { return api.KindDemands }

func (h *hangingTarget) Refresh(ctx context.Context) error {
	close(h.entered)
	<-ctx.Done()
	return ctx.Err()
}

func TestStopCancelsHungRefresh(t *testing.T) {
	h := &hangingTarget{entered: make(chan struct{})}
	got := make(chan error, 1)
	s := New([]Target{h}, WithInterval(time.Hour), WithNotify(func(_ api.Kind, err error) {
		got <- err
	}))
	s.Start(context.Background())
	<-h.entered

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on a hung refresh")
	}
	require.ErrorIs(t, <-got, context.Canceled)
}
