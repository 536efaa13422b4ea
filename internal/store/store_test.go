package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/demandboard/internal/api"
)

func rec(key string) api.Record {
	return api.Record{Key: key, Data: json.RawMessage(`{"linearId":{"id":"` + key + `"}}`)}
}

func keys(recs []api.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Key)
	}
	return out
}

type stubFetcher struct {
	recs []api.Record
	err  error
}

func (f *stubFetcher) List(ctx context.Context, kind api.Kind) ([]api.Record, error) {
	return f.recs, f.err
}

func TestRefreshReversesServerOrder(t *testing.T) {
	f := &stubFetcher{recs: []api.Record{rec("a"), rec("b"), rec("c")}}
	s := New(api.KindDemands, f, nil)

	require.Nil(t, s.Records())
	require.NoError(t, s.Refresh(context.Background()))
	require.Equal(t, []string{"c", "b", "a"}, keys(s.Records()))

	c, ok := s.Collection()
	require.True(t, ok)
	require.False(t, c.FetchedAt.IsZero())
}

func TestRefreshFailureKeepsPreviousCollection(t *testing.T) {
	f := &stubFetcher{recs: []api.Record{rec("a"), rec("b")}}
	s := New(api.KindProjects, f, nil)
	require.NoError(t, s.Refresh(context.Background()))
	before, _ := s.Collection()

	f.recs, f.err = nil, errors.New("connection refused")
	require.Error(t, s.Refresh(context.Background()))

	after, _ := s.Collection()
	require.Equal(t, before, after)
	require.Equal(t, []string{"b", "a"}, keys(s.Records()))
}

func TestRefreshEmptyCollectionReplaces(t *testing.T) {
	f := &stubFetcher{recs: []api.Record{rec("a")}}
	s := New(api.KindAllocations, f, nil)
	require.NoError(t, s.Refresh(context.Background()))

	f.recs = nil
	require.NoError(t, s.Refresh(context.Background()))
	require.Empty(t, s.Records())
	_, ok := s.Collection()
	require.True(t, ok)
}

// gatedFetcher hands out one response per call, released by the test in
// whatever order it likes.
type gatedFetcher struct {
	mu      sync.Mutex
	calls   int
	started chan int
	gates   []chan []api.Record
}

func newGatedFetcher(n int) *gatedFetcher {
	g := &gatedFetcher{started: make(chan int, n)}
	for i := 0; i < n; i++ {
		g.gates = append(g.gates, make(chan []api.Record))
	}
	return g
}

func (g *gatedFetcher) List(ctx context.Context, kind api.Kind) ([]api.Record, error) {
	g.mu.Lock()
	idx := g.calls
	g.calls++
	g.mu.Unlock()
	g.started <- idx
	return <-g.gates[idx], nil
}

// Overlapping refreshes of one kind are deliberately unordered: the response
// that completes last wins even if its request was issued first.
func TestOverlappingRefreshesLastCompletionWins(t *testing.T) {
	g := newGatedFetcher(2)
	s := New(api.KindDemands, g, nil)
	ctx := context.Background()

	done := make(chan struct{}, 2)
	go func() { _ = s.Refresh(ctx); done <- struct{}{} }()
	require.Equal(t, 0, <-g.started)
	go func() { _ = s.Refresh(ctx); done <- struct{}{} }()
	require.Equal(t, 1, <-g.started)

	// The later request answers first.
	g.gates[1] <- []api.Record{rec("new")}
	<-done
	require.Equal(t, []string{"new"}, keys(s.Records()))

	// The earlier, slower request lands afterwards and overwrites it.
	g.gates[0] <- []api.Record{rec("old")}
	<-done
	require.Equal(t, []string{"old"}, keys(s.Records()))
}

func TestSetByKind(t *testing.T) {
	set := NewSet(&stubFetcher{}, nil)
	require.Len(t, set.All(), 3)
	require.Same(t, set.Projects, set.ByKind(api.KindProjects))
	require.Nil(t, set.ByKind(api.Kind("bogus")))
}
