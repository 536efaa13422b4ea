// Package refresh keeps record stores approximately fresh: once at start,
// on a fixed interval, and out of band after every mutation.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jask/demandboard/internal/api"
)

// DefaultInterval is the polling period when none is configured.
const DefaultInterval = 5 * time.Second

// Target is one refreshable collection. *store.Store satisfies it.
type Target interface {
	Kind() api.Kind
	Refresh(ctx context.Context) error
}

// NotifyFunc is called after every refresh attempt, from the refreshing
// goroutine.
type NotifyFunc func(kind api.Kind, err error)

// Scheduler drives refreshes for a fixed set of targets.
type Scheduler struct {
	targets  []Target
	interval time.Duration
	notify   NotifyFunc
	metrics  *Metrics
	log      *logrus.Entry

	mu      sync.Mutex
	started bool
	stopped bool
	// done ends with Stop; every refresh context is also cancelled by it.
	done   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Scheduler)

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithNotify(fn NotifyFunc) Option {
	return func(s *Scheduler) { s.notify = fn }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func WithLogger(l *logrus.Logger) Option {
	return func(s *Scheduler) { s.log = l.WithField("component", "refresh") }
}

func New(targets []Target, opts ...Option) *Scheduler {
	s := &Scheduler{
		targets:  targets,
		interval: DefaultInterval,
		log:      logrus.NewEntry(logrus.StandardLogger()),
	}
	s.done, s.cancel = context.WithCancel(context.Background())
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Scheduler) Interval() time.Duration { return s.interval }

// Start refreshes every target immediately and then once per interval until
// Stop is called or ctx ends. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.wg.Add(1)
	s.mu.Unlock()

	s.log.WithField("interval", s.interval).Info("refresh scheduler started")
	s.RefreshAll(ctx)

	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.RefreshAll(ctx)
			case <-s.done.Done():
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RefreshAll starts one refresh per target and returns without waiting.
// Failures are logged and otherwise ignored; there is no retry. After Stop
// it does nothing.
func (s *Scheduler) RefreshAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	for _, t := range s.targets {
		s.wg.Add(1)
		go func(t Target) {
			defer s.wg.Done()
			rctx, cancel := context.WithCancel(ctx)
			defer cancel()
			release := context.AfterFunc(s.done, cancel)
			defer release()
			s.refreshOne(rctx, t)
		}(t)
	}
}

func (s *Scheduler) refreshOne(ctx context.Context, t Target) {
	began := time.Now()
	err := t.Refresh(ctx)
	s.metrics.observe(t.Kind(), time.Since(began), err)
	if err != nil {
		s.log.WithFields(logrus.Fields{"kind": string(t.Kind())}).WithError(err).Debug("refresh failed")
	}
	if s.notify != nil {
		s.notify(t.Kind(), err)
	}
}

// Stop ends periodic refreshes, cancels the ones in flight and waits for
// them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}
