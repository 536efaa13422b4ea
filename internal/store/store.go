// Package store keeps the latest known collection for each entity kind.
//
// A Store is an overwrite-on-completion cell: whichever refresh finishes its
// fetch last writes the collection, regardless of when it was started.
// Nothing orders overlapping refreshes of the same kind.
package store

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jask/demandboard/internal/api"
)

// Fetcher reads a whole collection from the backend, in server order.
type Fetcher interface {
	List(ctx context.Context, kind api.Kind) ([]api.Record, error)
}

// Collection is one successful fetch, newest first.
type Collection struct {
	Records   []api.Record
	FetchedAt time.Time
}

// Store holds the collection for one kind.
type Store struct {
	kind    api.Kind
	fetcher Fetcher
	current atomic.Pointer[Collection]
	log     *logrus.Entry
	now     func() time.Time
}

func New(kind api.Kind, f Fetcher, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{
		kind:    kind,
		fetcher: f,
		log:     log.WithFields(logrus.Fields{"component": "store", "kind": string(kind)}),
		now:     time.Now,
	}
}

func (s *Store) Kind() api.Kind { return s.kind }

// Refresh fetches the kind and replaces the collection with the records in
// reverse arrival order. On error the previous collection stays in place.
func (s *Store) Refresh(ctx context.Context) error {
	recs, err := s.fetcher.List(ctx, s.kind)
	if err != nil {
		s.log.WithError(err).Debug("refresh failed, keeping previous collection")
		return err
	}
	reversed := make([]api.Record, len(recs))
	for i, r := range recs {
		reversed[len(recs)-1-i] = r
	}
	s.current.Store(&Collection{Records: reversed, FetchedAt: s.now()})
	return nil
}

// Records returns the current snapshot. Callers must not modify it.
func (s *Store) Records() []api.Record {
	if c := s.current.Load(); c != nil {
		return c.Records
	}
	return nil
}

// Collection returns the last successful fetch and whether there was one.
func (s *Store) Collection() (Collection, bool) {
	c := s.current.Load()
	if c == nil {
		return Collection{}, false
	}
	return *c, true
}

// Set groups the stores for every tracked kind.
type Set struct {
	Demands     *Store
	Projects    *Store
	Allocations *Store
}

func NewSet(f Fetcher, log *logrus.Logger) *Set {
	return &Set{
		Demands:     New(api.KindDemands, f, log),
		Projects:    New(api.KindProjects, f, log),
		Allocations: New(api.KindAllocations, f, log),
	}
}

// All returns the stores in display order.
func (s *Set) All() []*Store {
	return []*Store{s.Demands, s.Projects, s.Allocations}
}

// ByKind returns the store for kind, or nil.
func (s *Set) ByKind(kind api.Kind) *Store {
	for _, st := range s.All() {
		if st.kind == kind {
			return st
		}
	}
	return nil
}
