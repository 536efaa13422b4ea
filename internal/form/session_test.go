package form

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/demandboard/internal/api"
	"github.com/jask/demandboard/internal/refresh"
	"github.com/jask/demandboard/internal/store"
)

type fakeMutator struct {
	sent   []api.Mutation
	result api.Result
}

func (f *fakeMutator) Mutate(ctx context.Context, m api.Mutation) api.Result {
	f.sent = append(f.sent, m)
	return f.result
}

type fakeRefresher struct{ calls int }

func (f *fakeRefresher) RefreshAll(ctx context.Context) { f.calls++ }

type fakeMessages struct{ shown []api.Result }

func (f *fakeMessages) ShowResult(v Variant, r api.Result) { f.shown = append(f.shown, r) }

type harness struct {
	mut    *fakeMutator
	ref    *fakeRefresher
	msgs   *fakeMessages
	closed int
}

func newHarness(res api.Result) *harness {
	return &harness{mut: &fakeMutator{result: res}, ref: &fakeRefresher{}, msgs: &fakeMessages{}}
}

func (h *harness) open(v Variant, in Input) *Session {
	deps := Deps{Mutator: h.mut, Refresher: h.ref, Messages: h.msgs}
	return New(v, in, deps, func() { h.closed++ })
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func TestSubmitRejectsMissingRequiredFields(t *testing.T) {
	cases := []struct {
		name    string
		variant Variant
		draft   Draft
		fields  []string
	}{
		{"create demand empty", CreateDemand, Draft{}, []string{FieldDescription, FieldCounterparty}},
		{"create demand blank description", CreateDemand, Draft{Description: "   ", Counterparty: "O=PLTeam1"}, []string{FieldDescription}},
		{"update demand no dates", UpdateDemand, Draft{Amount: "100"}, []string{FieldStartDate, FieldEndDate}},
		{"update demand non-numeric", UpdateDemand, Draft{Amount: "lots", StartDate: day(2024, 1, 1), EndDate: day(2024, 2, 1)}, []string{FieldAmount}},
		{"update demand negative", UpdateDemand, Draft{Amount: "-5", StartDate: day(2024, 1, 1), EndDate: day(2024, 2, 1)}, []string{FieldAmount}},
		{"allocate fractional", CreateAllocation, Draft{Amount: "1.5", DeliveryTeam: "O=DLTeam1", StartDate: day(2024, 1, 1), EndDate: day(2024, 2, 1)}, []string{FieldAmount}},
		{"update demand no amount", UpdateDemand, Draft{StartDate: day(2024, 1, 1), EndDate: day(2024, 2, 1)}, []string{FieldAmount}},
		{"allocate no team", CreateAllocation, Draft{Amount: "10", StartDate: day(2024, 1, 1), EndDate: day(2024, 2, 1)}, []string{FieldDeliveryTeam}},
		{"update allocation missing end", UpdateAllocation, Draft{Amount: "10", DeliveryTeam: "O=DLTeam1", StartDate: day(2024, 1, 1)}, []string{FieldEndDate}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(api.Result{Status: http.StatusCreated})
			s := h.open(tc.variant, Input{TargetID: "id-1", Initial: tc.draft})

			sub, err := s.Submit()
			require.Nil(t, sub)
			require.ErrorIs(t, err, ErrInvalid)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			for _, f := range tc.fields {
				require.Contains(t, verr.Fields, f)
			}
			require.Len(t, verr.Fields, len(tc.fields))

			require.Equal(t, Editing, s.State())
			require.True(t, s.FormError())
			require.Equal(t, verr.Fields, s.FieldErrors())
			require.Empty(t, h.mut.sent)
			require.Zero(t, h.ref.calls)
			require.Zero(t, h.closed)
		})
	}
}

func TestResubmitAfterFixClearsErrorFlag(t *testing.T) {
	h := newHarness(api.Result{Status: http.StatusCreated})
	s := h.open(CreateDemand, Input{})

	_, err := s.Submit()
	require.ErrorIs(t, err, ErrInvalid)
	require.True(t, s.FormError())

	require.NoError(t, s.Edit(func(d *Draft) {
		d.Description = "Data platform"
		d.Counterparty = "O=PLTeam1, L=Singapore, C=SG"
	}))
	sub, err := s.Submit()
	require.NoError(t, err)
	require.NotNil(t, sub)
	require.False(t, s.FormError())
	require.Nil(t, s.FieldErrors())
}

func TestValidSubmitClosesBeforeSending(t *testing.T) {
	h := newHarness(api.Result{Status: http.StatusCreated, Body: "ok"})
	s := h.open(UpdateDemand, Input{
		TargetID: "d-42",
		Initial:  Draft{Amount: " 2500 ", StartDate: day(2024, 1, 5), EndDate: day(2024, 12, 31)},
	})

	sub, err := s.Submit()
	require.NoError(t, err)
	require.Equal(t, Closed, s.State())
	require.Equal(t, 1, h.closed)
	require.Empty(t, h.mut.sent, "nothing is sent until Send")

	require.Equal(t, api.UpdateDemand("2500", "05/01/2024", "31/12/2024", "d-42"), sub.Mutation())

	res := sub.Send(context.Background())
	require.Equal(t, "ok", res.Body)
	require.Len(t, h.mut.sent, 1)
	require.Equal(t, 1, h.ref.calls)
	require.Equal(t, []api.Result{res}, h.msgs.shown)

	require.ErrorIs(t, s.Edit(func(d *Draft) {}), ErrNotEditing)
	_, err = s.Submit()
	require.ErrorIs(t, err, ErrNotEditing)
}

func TestSendIsIdempotent(t *testing.T) {
	h := newHarness(api.Result{Status: http.StatusCreated})
	s := h.open(CreateDemand, Input{Initial: Draft{Description: "x", Counterparty: "y"}})
	sub, err := s.Submit()
	require.NoError(t, err)

	sub.Send(context.Background())
	sub.Send(context.Background())
	require.Len(t, h.mut.sent, 1)
	require.Equal(t, 1, h.ref.calls)
	require.Len(t, h.msgs.shown, 1)
}

// A rejected mutation is only reported; the session does not reopen and the
// collections are still refreshed exactly once.
func TestRejectedMutationStillRefreshesOnce(t *testing.T) {
	for _, res := range []api.Result{
		{Status: http.StatusBadRequest, Body: "Party named X cannot be found.\n"},
		{Err: errors.New("connection refused")},
	} {
		h := newHarness(res)
		s := h.open(CreateAllocation, Input{
			TargetID: "p-1",
			Initial: Draft{
				Amount:       "100",
				DeliveryTeam: "O=DLTeam1, L=Singapore, C=SG",
				StartDate:    day(2024, 3, 1),
				EndDate:      day(2024, 4, 1),
			},
		})
		sub, err := s.Submit()
		require.NoError(t, err)

		got := sub.Send(context.Background())
		require.True(t, got.Failed())
		require.Equal(t, Closed, s.State())
		require.Equal(t, 1, h.ref.calls)
		require.Len(t, h.msgs.shown, 1)
		require.Equal(t, res.Message(), h.msgs.shown[0].Message())
	}
}

func TestCreateAllocationMutation(t *testing.T) {
	h := newHarness(api.Result{Status: http.StatusCreated})
	s := h.open(CreateAllocation, Input{
		TargetID: "p-9",
		Initial: Draft{
			Amount:       "750",
			DeliveryTeam: "O=DLTeam2, L=Singapore, C=SG",
			StartDate:    day(2025, 2, 1),
			EndDate:      day(2025, 2, 28),
		},
	})
	sub, err := s.Submit()
	require.NoError(t, err)
	require.Equal(t, api.AllocateDeliveryTeam("750", "01/02/2025", "28/02/2025", "p-9", "O=DLTeam2, L=Singapore, C=SG"), sub.Mutation())
}

func TestUpdateAllocationMutationOmitsTeam(t *testing.T) {
	h := newHarness(api.Result{Status: http.StatusCreated})
	s := h.open(UpdateAllocation, Input{
		TargetID: "a-3",
		Initial: Draft{
			Amount:       "20",
			DeliveryTeam: "O=DLTeam1, L=Singapore, C=SG",
			StartDate:    day(2025, 1, 1),
			EndDate:      day(2025, 1, 2),
		},
	})
	sub, err := s.Submit()
	require.NoError(t, err)
	require.Equal(t, api.UpdateAllocation("20", "01/01/2025", "02/01/2025", "a-3"), sub.Mutation())
}

func TestCancelIssuesNothing(t *testing.T) {
	h := newHarness(api.Result{})
	s := h.open(CreateDemand, Input{Initial: Draft{Description: "x", Counterparty: "y"}})
	s.Cancel()
	require.Equal(t, Cancelled, s.State())
	_, err := s.Submit()
	require.ErrorIs(t, err, ErrNotEditing)
	require.Empty(t, h.mut.sent)
	require.Zero(t, h.closed)
}

type syncMessages struct {
	mu    sync.Mutex
	shown []api.Result
}

func (m *syncMessages) ShowResult(v Variant, r api.Result) {
	m.mu.Lock()
	m.shown = append(m.shown, r)
	m.mu.Unlock()
}

func TestCreateDemandEndToEnd(t *testing.T) {
	var mu sync.Mutex
	var posts []string
	gets := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if r.Method == http.MethodPost {
			posts = append(posts, r.URL.Path+"?"+r.URL.RawQuery)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("Party named Acme cannot be found.\n"))
			return
		}
		gets[r.URL.Path]++
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := api.New(srv.URL)
	stores := store.NewSet(client, nil)
	sched := refresh.New([]refresh.Target{stores.Demands, stores.Projects, stores.Allocations})
	msgs := &syncMessages{}

	s := New(CreateDemand, Input{Initial: Draft{Counterparty: "Acme", Description: "Q1 rollout"}},
		Deps{Mutator: client, Refresher: sched, Messages: msgs}, nil)
	sub, err := s.Submit()
	require.NoError(t, err)
	res := sub.Send(context.Background())
	sched.Stop()

	require.True(t, res.Failed())
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"/api/demand/create-demand?partyName=Acme&description=Q1%20rollout"}, posts)
	require.Equal(t, map[string]int{
		"/api/demand/":             1,
		"/api/project/":            1,
		"/api/project/allocations": 1,
	}, gets)
	require.Len(t, msgs.shown, 1)
	require.Equal(t, "Party named Acme cannot be found.\n", msgs.shown[0].Message())
}
