package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/jask/demandboard/internal/form"
	"github.com/jask/demandboard/internal/party"
	"github.com/jask/demandboard/internal/service"
)

func (s *Server) whoami(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"me": s.me.Raw})
}

// others lists every known party except this node that keep passes.
func (s *Server) others(r *http.Request, keep func(party.Name) bool) ([]string, error) {
	all, err := s.ledger.Parties(r.Context())
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, p := range all {
		if party.Same(p.Name, s.me.Raw) {
			continue
		}
		if keep(party.Parse(p.Name)) {
			out = append(out, p.Name)
		}
	}
	return out, nil
}

func (s *Server) names(field string, keep func(party.Name) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := s.others(r, keep)
		if err != nil {
			status, msg := s.fail(r, err)
			writeText(w, status, msg)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{field: names})
	}
}

func (s *Server) peers(w http.ResponseWriter, r *http.Request) {
	s.names("peers", func(party.Name) bool { return true })(w, r)
}

func (s *Server) platformLeads(w http.ResponseWriter, r *http.Request) {
	s.names("plPeers", party.Name.IsPlatformLead)(w, r)
}

func (s *Server) deliveryTeams(w http.ResponseWriter, r *http.Request) {
	s.names("deliveryTeams", party.Name.IsDeliveryTeam)(w, r)
}

func (s *Server) listDemands(w http.ResponseWriter, r *http.Request) {
	ds, err := s.ledger.Demands(r.Context(), s.me.Raw)
	if err != nil {
		status, msg := s.fail(r, err)
		writeText(w, status, msg)
		return
	}
	out := make([]stateAndRef, 0, len(ds))
	for _, d := range ds {
		out = append(out, encodeDemand(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	ps, err := s.ledger.Projects(r.Context(), s.me.Raw)
	if err != nil {
		status, msg := s.fail(r, err)
		writeText(w, status, msg)
		return
	}
	out := make([]stateAndRef, 0, len(ps))
	for _, p := range ps {
		out = append(out, encodeProject(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listAllocations(w http.ResponseWriter, r *http.Request) {
	as, err := s.ledger.Allocations(r.Context(), s.me.Raw)
	if err != nil {
		status, msg := s.fail(r, err)
		writeText(w, status, msg)
		return
	}
	out := make([]stateAndRef, 0, len(as))
	for _, a := range as {
		out = append(out, encodeAllocation(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) projectByCode(w http.ResponseWriter, r *http.Request) {
	p, err := s.ledger.ProjectByCode(r.Context(), mux.Vars(r)["projectCode"])
	if errors.Is(err, service.ErrNotFound) {
		writeText(w, http.StatusNotFound, "Project with specified project code not found.")
		return
	}
	if err != nil {
		status, msg := s.fail(r, err)
		writeText(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, encodeProject(p))
}

// priced holds the amount and period shared by every update form.
type priced struct {
	amount     int64
	start, end time.Time
}

// parsePriced reads amount, startDate and endDate. The returned message is
// non-empty when a parameter is unusable.
func parsePriced(r *http.Request) (priced, string) {
	q := r.URL.Query()
	var p priced
	amount, err := strconv.ParseInt(strings.TrimSpace(q.Get("amount")), 10, 64)
	if err != nil {
		return p, "Query parameter 'amount' missing or not a number."
	}
	if amount < 0 {
		return p, "Query parameter 'Budget Amount' must be greater than zero."
	}
	p.amount = amount
	if p.start, err = form.ParseDate(q.Get("startDate")); err != nil {
		return p, "Query parameter 'startDate' missing or has wrong format."
	}
	if p.end, err = form.ParseDate(q.Get("endDate")); err != nil {
		return p, "Query parameter 'endDate' missing or has wrong format."
	}
	return p, ""
}

// Demand mutations answer in plain text.

func (s *Server) createDemand(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	description := q.Get("description")
	if strings.TrimSpace(description) == "" {
		writeText(w, http.StatusBadRequest, "Query parameter 'description' must exist.")
		return
	}
	partyName := q.Get("partyName")
	if strings.TrimSpace(partyName) == "" {
		writeText(w, http.StatusBadRequest, "Query parameter 'partyName' missing or has wrong format.")
		return
	}
	rc, err := s.ledger.CreateDemand(r.Context(), s.me.Raw, partyName, description)
	if err != nil {
		status, msg := s.fail(r, err)
		writeText(w, status, msg)
		return
	}
	writeText(w, http.StatusCreated, fmt.Sprintf("Transaction id %s committed to ledger.", rc.TxID))
}

func (s *Server) updateDemand(w http.ResponseWriter, r *http.Request) {
	p, bad := parsePriced(r)
	if bad != "" {
		writeText(w, http.StatusBadRequest, bad)
		return
	}
	q := r.URL.Query()
	id := q.Get("id")
	if id == "" {
		writeText(w, http.StatusBadRequest, "Query parameter 'id' missing.")
		return
	}
	if _, err := s.ledger.UpdateDemand(r.Context(), s.me.Raw, id, p.amount, p.start, p.end); err != nil {
		status, msg := s.fail(r, err)
		writeText(w, status, msg)
		return
	}
	writeText(w, http.StatusCreated, fmt.Sprintf(
		"Transaction id %s with amount [%s] & startDate[%s] & endDate[%s] is updated to ledger.",
		id, q.Get("amount"), q.Get("startDate"), q.Get("endDate")))
}

// Project mutations answer {"status","message"} once parameters parse.

type outcome struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) projectOutcome(w http.ResponseWriter, r *http.Request, rc service.Receipt, err error, done string) {
	if err != nil {
		status, msg := s.fail(r, err)
		writeJSON(w, status, outcome{Status: "error", Message: msg})
		return
	}
	writeJSON(w, http.StatusCreated, outcome{
		Status:  "success",
		Message: fmt.Sprintf("Transaction id %s committed to ledger.\n%s", rc.TxID, done),
	})
}

func (s *Server) allocateDeliveryTeam(w http.ResponseWriter, r *http.Request) {
	p, bad := parsePriced(r)
	if bad != "" {
		writeText(w, http.StatusBadRequest, bad)
		return
	}
	q := r.URL.Query()
	team := q.Get("deliveryTeam")
	if strings.TrimSpace(team) == "" {
		writeText(w, http.StatusBadRequest, "Query parameter 'deliveryTeam' missing or has wrong format.")
		return
	}
	projectID := q.Get("projectId")
	if projectID == "" {
		writeText(w, http.StatusBadRequest, "Query parameter 'projectId' missing.")
		return
	}
	rc, err := s.ledger.AllocateDeliveryTeam(r.Context(), s.me.Raw, projectID, team, p.amount, p.start, p.end)
	s.projectOutcome(w, r, rc, err, "Allocation has been created.")
}

func (s *Server) updateAllocation(w http.ResponseWriter, r *http.Request) {
	p, bad := parsePriced(r)
	if bad != "" {
		writeText(w, http.StatusBadRequest, bad)
		return
	}
	allocationID := r.URL.Query().Get("allocationId")
	if allocationID == "" {
		writeText(w, http.StatusBadRequest, "Query parameter 'allocationId' missing.")
		return
	}
	rc, err := s.ledger.UpdateAllocation(r.Context(), s.me.Raw, allocationID, p.amount, p.start, p.end)
	s.projectOutcome(w, r, rc, err, "Allocation has been successfully updated.")
}
