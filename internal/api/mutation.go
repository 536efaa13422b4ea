package api

import (
	"net/url"
	"strings"
)

// Base selects which API root a mutation is posted under.
type Base int

const (
	DemandBase Base = iota
	ProjectBase
)

// Param is one query-string field. Order is preserved on the wire.
type Param struct {
	Name  string
	Value string
}

// Mutation is a POST whose parameters travel in the query string.
type Mutation struct {
	Base   Base
	Path   string
	Params []Param
}

// Query encodes the parameters in order. Spaces become %20.
func (m Mutation) Query() string {
	var b strings.Builder
	for i, p := range m.Params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(escape(p.Name))
		b.WriteByte('=')
		b.WriteString(escape(p.Value))
	}
	return b.String()
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func CreateDemand(partyName, description string) Mutation {
	return Mutation{
		Base: DemandBase,
		Path: "create-demand",
		Params: []Param{
			{"partyName", partyName},
			{"description", description},
		},
	}
}

func UpdateDemand(amount, startDate, endDate, id string) Mutation {
	return Mutation{
		Base: DemandBase,
		Path: "update-demand",
		Params: []Param{
			{"amount", amount},
			{"startDate", startDate},
			{"endDate", endDate},
			{"id", id},
		},
	}
}

func AllocateDeliveryTeam(amount, startDate, endDate, projectID, deliveryTeam string) Mutation {
	return Mutation{
		Base: ProjectBase,
		Path: "allocate-delivery-team",
		Params: []Param{
			{"amount", amount},
			{"startDate", startDate},
			{"endDate", endDate},
			{"projectId", projectID},
			{"deliveryTeam", deliveryTeam},
		},
	}
}

func UpdateAllocation(amount, startDate, endDate, allocationID string) Mutation {
	return Mutation{
		Base: ProjectBase,
		Path: "update-allocation",
		Params: []Param{
			{"amount", amount},
			{"startDate", startDate},
			{"endDate", endDate},
			{"allocationId", allocationID},
		},
	}
}

// Result is the outcome of a mutation. The body is kept verbatim.
type Result struct {
	Status int
	Body   string
	Err    error
}

// Failed reports a transport error or a non-2xx status.
func (r Result) Failed() bool {
	return r.Err != nil || r.Status < 200 || r.Status > 299
}

// Message is the text shown to the user.
func (r Result) Message() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return r.Body
}
