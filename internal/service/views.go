package service

import (
	"context"
	"errors"

	"github.com/jask/demandboard/internal/database/repository"
	"github.com/jask/demandboard/internal/party"
)

// ProjectView is a project plus the delivery teams allocated to it.
type ProjectView struct {
	repository.Project
	DeliveryTeams []string
}

func (v ProjectView) participants() []string {
	return append([]string{v.Sponsor, v.PlatformLead, v.CIO, v.COO}, v.DeliveryTeams...)
}

func involves(viewer string, names ...string) bool {
	for _, n := range names {
		if party.Same(viewer, n) {
			return true
		}
	}
	return false
}

// Parties lists every known node.
func (l *Ledger) Parties(ctx context.Context) ([]repository.Party, error) {
	return repository.NewPartyRepo(l.DB).List(ctx)
}

// Demands returns the demands viewer takes part in.
func (l *Ledger) Demands(ctx context.Context, viewer string) ([]repository.Demand, error) {
	all, err := repository.NewDemandRepo(l.DB).List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]repository.Demand, 0, len(all))
	for _, d := range all {
		if involves(viewer, append([]string{d.Sponsor, d.PlatformLead}, d.ApprovalParties...)...) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Projects returns the projects viewer takes part in.
func (l *Ledger) Projects(ctx context.Context, viewer string) ([]ProjectView, error) {
	r := reposFor(l.DB)
	all, err := r.projects.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProjectView, 0, len(all))
	for _, p := range all {
		v, err := l.view(ctx, r, p)
		if err != nil {
			return nil, err
		}
		if involves(viewer, v.participants()...) {
			out = append(out, v)
		}
	}
	return out, nil
}

// ProjectByCode looks a project up by its P#### code regardless of viewer.
func (l *Ledger) ProjectByCode(ctx context.Context, code string) (ProjectView, error) {
	r := reposFor(l.DB)
	p, err := r.projects.GetByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return ProjectView{}, missing("Project with specified project code not found.")
	}
	if err != nil {
		return ProjectView{}, err
	}
	return l.view(ctx, r, p)
}

func (l *Ledger) view(ctx context.Context, r repos, p repository.Project) (ProjectView, error) {
	teams, err := r.allocations.TeamsForProject(ctx, p.ID)
	if err != nil {
		return ProjectView{}, err
	}
	if teams == nil {
		teams = []string{}
	}
	return ProjectView{Project: p, DeliveryTeams: teams}, nil
}

// Allocations returns the allocations viewer takes part in.
func (l *Ledger) Allocations(ctx context.Context, viewer string) ([]repository.Allocation, error) {
	all, err := repository.NewAllocationRepo(l.DB).List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]repository.Allocation, 0, len(all))
	for _, a := range all {
		if involves(viewer, a.PlatformLead, a.DeliveryTeam) {
			out = append(out, a)
		}
	}
	return out, nil
}
