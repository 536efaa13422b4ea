package server

import (
	"time"

	"github.com/jask/demandboard/internal/database/repository"
	"github.com/jask/demandboard/internal/form"
	"github.com/jask/demandboard/internal/service"
)

// The wire shapes follow the ledger's state-and-ref envelopes: every
// collection element is {"state":{"data":...},"ref":{...}}.

type linearID struct {
	ExternalID *string `json:"externalId"`
	ID         string  `json:"id"`
}

type ref struct {
	TxHash string `json:"txhash"`
	Index  int    `json:"index"`
}

type state struct {
	Data     any    `json:"data"`
	Contract string `json:"contract"`
}

type stateAndRef struct {
	State state `json:"state"`
	Ref   ref   `json:"ref"`
}

func envelope(data any, contract, txID string) stateAndRef {
	return stateAndRef{State: state{Data: data, Contract: contract}, Ref: ref{TxHash: txID}}
}

type demandData struct {
	Description     string   `json:"description"`
	Amount          int64    `json:"amount"`
	StartDate       *string  `json:"startDate"`
	EndDate         *string  `json:"endDate"`
	Sponsor         string   `json:"sponsor"`
	PlatformLead    string   `json:"platformLead"`
	ApprovalParties []string `json:"approvalParties"`
	LinearID        linearID `json:"linearId"`
	Participants    []string `json:"participants"`
}

type projectData struct {
	ProjectCode   string   `json:"projectCode"`
	AllocationKey string   `json:"allocationKey"`
	Description   string   `json:"description"`
	Budget        int64    `json:"budget"`
	StartDate     string   `json:"startDate"`
	EndDate       string   `json:"endDate"`
	Sponsor       string   `json:"sponsor"`
	PlatformLead  string   `json:"platformLead"`
	CIO           string   `json:"cio"`
	COO           string   `json:"coo"`
	DeliveryTeams []string `json:"deliveryTeams"`
	DemandID      string   `json:"demandId"`
	LinearID      linearID `json:"linearId"`
}

type allocationData struct {
	ProjectCode      string   `json:"projectCode"`
	AllocationKey    string   `json:"allocationKey"`
	Description      string   `json:"description"`
	PlatformLead     string   `json:"platformLead"`
	DeliveryTeam     string   `json:"deliveryTeam"`
	AllocationAmount int64    `json:"allocationAmount"`
	StartDate        string   `json:"startDate"`
	EndDate          string   `json:"endDate"`
	LinearID         linearID `json:"linearId"`
}

func optionalDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := form.FormatDate(*t)
	return &s
}

func encodeDemand(d repository.Demand) stateAndRef {
	approvals := d.ApprovalParties
	if approvals == nil {
		approvals = []string{}
	}
	return envelope(demandData{
		Description:     d.Description,
		Amount:          d.Amount,
		StartDate:       optionalDate(d.StartDate),
		EndDate:         optionalDate(d.EndDate),
		Sponsor:         d.Sponsor,
		PlatformLead:    d.PlatformLead,
		ApprovalParties: approvals,
		LinearID:        linearID{ID: d.ID},
		Participants:    append([]string{d.Sponsor, d.PlatformLead}, approvals...),
	}, "DemandContract", d.TxID)
}

func encodeProject(p service.ProjectView) stateAndRef {
	return envelope(projectData{
		ProjectCode:   p.ProjectCode,
		AllocationKey: p.AllocationKey,
		Description:   p.Description,
		Budget:        p.Budget,
		StartDate:     form.FormatDate(p.StartDate),
		EndDate:       form.FormatDate(p.EndDate),
		Sponsor:       p.Sponsor,
		PlatformLead:  p.PlatformLead,
		CIO:           p.CIO,
		COO:           p.COO,
		DeliveryTeams: p.DeliveryTeams,
		DemandID:      p.DemandID,
		LinearID:      linearID{ID: p.ID},
	}, "ProjectContract", p.TxID)
}

func encodeAllocation(a repository.Allocation) stateAndRef {
	return envelope(allocationData{
		ProjectCode:      a.ProjectCode,
		AllocationKey:    a.AllocationKey,
		Description:      a.Description,
		PlatformLead:     a.PlatformLead,
		DeliveryTeam:     a.DeliveryTeam,
		AllocationAmount: a.Amount,
		StartDate:        form.FormatDate(a.StartDate),
		EndDate:          form.FormatDate(a.EndDate),
		LinearID:         linearID{ID: a.ID},
	}, "AllocationContract", a.TxID)
}
