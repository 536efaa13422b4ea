package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jask/demandboard/internal/database"
	"github.com/jask/demandboard/internal/database/repository"
	"github.com/jask/demandboard/internal/party"
)

// Per-allocation ceilings the delivery teams accept.
var teamCaps = map[string]struct {
	limit int64
	msg   string
}{
	"DLTeam1": {100000, "Delivery Team 1 does not accept an allocation amount of more than 100,000."},
	"DLTeam2": {80000, "Delivery Team 2 does not accept an allocation amount of more than 80,000."},
}

// Receipt identifies the ledger change a mutation produced.
type Receipt struct {
	TxID string
	// ID is the linear id of the record created or updated.
	ID string
}

// Ledger applies demand, project and allocation rules on top of the
// sqlite store. Every mutation runs in one transaction.
type Ledger struct {
	DB  *sql.DB
	Log *logrus.Logger
	// Now is the clock used for "not in the past" checks; nil means time.Now.
	Now func() time.Time
}

func (l *Ledger) today() time.Time {
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	t := now()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}

func (l *Ledger) entry() *logrus.Entry {
	log := l.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return log.WithField("component", "ledger")
}

type repos struct {
	parties     *repository.PartyRepo
	demands     *repository.DemandRepo
	projects    *repository.ProjectRepo
	allocations *repository.AllocationRepo
}

func reposFor(db repository.DBTX) repos {
	return repos{
		parties:     repository.NewPartyRepo(db),
		demands:     repository.NewDemandRepo(db),
		projects:    repository.NewProjectRepo(db),
		allocations: repository.NewAllocationRepo(db),
	}
}

func (l *Ledger) inTx(ctx context.Context, fn func(r repos) error) error {
	return database.WithTx(ctx, l.DB, func(tx *sql.Tx) error {
		return fn(reposFor(tx))
	})
}

// resolve finds a known party by name, tolerating attribute order and
// spacing differences.
func resolve(ctx context.Context, r repos, name string) (repository.Party, error) {
	all, err := r.parties.List(ctx)
	if err != nil {
		return repository.Party{}, err
	}
	for _, p := range all {
		if party.Same(p.Name, name) {
			return p, nil
		}
	}
	return repository.Party{}, missing("Party named %s cannot be found.", name)
}

func checkPeriod(start, end time.Time) error {
	if start.IsZero() {
		return rule("Start date must exist.")
	}
	if end.IsZero() {
		return rule("End date must exist.")
	}
	if !start.Before(end) {
		return rule("The startDate should not be equal to or later than end date.")
	}
	return nil
}

// CreateDemand records a new demand from a sponsor to a platform lead.
func (l *Ledger) CreateDemand(ctx context.Context, initiator, counterparty, description string) (Receipt, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return Receipt{}, rule("Description must exist.")
	}
	if !party.Parse(initiator).IsSponsor() {
		return Receipt{}, rule("Only a sponsor can create a demand.")
	}
	rc := Receipt{TxID: uuid.NewString(), ID: uuid.NewString()}
	err := l.inTx(ctx, func(r repos) error {
		sponsor, err := resolve(ctx, r, initiator)
		if err != nil {
			return err
		}
		lead, err := resolve(ctx, r, counterparty)
		if err != nil {
			return err
		}
		if party.Same(sponsor.Name, lead.Name) {
			return rule("The sponsor and platform lead cannot be the same entity.")
		}
		if !party.Parse(lead.Name).IsPlatformLead() {
			return rule("Platform Lead must exist.")
		}
		return r.demands.Insert(ctx, repository.Demand{
			ID:           rc.ID,
			Description:  description,
			Sponsor:      sponsor.Name,
			PlatformLead: lead.Name,
			TxID:         rc.TxID,
		})
	})
	if err != nil {
		return Receipt{}, err
	}
	l.entry().WithFields(logrus.Fields{"demand": rc.ID, "tx": rc.TxID}).Info("demand created")
	return rc, nil
}

// UpdateDemand prices a demand, sends it for CIO/COO approval and opens the
// project that carries its budget. A demand converts once.
func (l *Ledger) UpdateDemand(ctx context.Context, initiator, id string, amount int64, start, end time.Time) (Receipt, error) {
	if amount < 0 {
		return Receipt{}, rule("The demand's amount must be non-negative.")
	}
	if err := checkPeriod(start, end); err != nil {
		return Receipt{}, err
	}
	if !start.After(l.today()) {
		return Receipt{}, rule("The startDate should not be earlier than current date.")
	}
	if amount == 0 {
		return Receipt{}, rule("Budget must be > 0.")
	}

	rc := Receipt{TxID: uuid.NewString()}
	err := l.inTx(ctx, func(r repos) error {
		d, err := r.demands.Get(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return missing("Demand with id %s not found.", id)
		}
		if err != nil {
			return err
		}
		if !party.Same(d.PlatformLead, initiator) {
			return rule("Only the platform lead of a demand can update it.")
		}
		if _, err := r.projects.GetByDemand(ctx, d.ID); err == nil {
			return rule("Demand %s has already been converted to a project.", d.ID)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		cio, err := r.parties.ByOrganisation(ctx, "CIO")
		if err != nil {
			return rule("CIO must exist.")
		}
		coo, err := r.parties.ByOrganisation(ctx, "COO")
		if err != nil {
			return rule("COO must exist.")
		}

		d.Amount = amount
		d.StartDate, d.EndDate = &start, &end
		d.ApprovalParties = []string{cio.Name, coo.Name}
		d.TxID = rc.TxID
		if err := r.demands.Update(ctx, d); err != nil {
			return err
		}

		n, err := r.projects.Count(ctx)
		if err != nil {
			return err
		}
		seq := 1001 + n
		rc.ID = uuid.NewString()
		return r.projects.Insert(ctx, repository.Project{
			ID:            rc.ID,
			ProjectCode:   fmt.Sprintf("P%04d", seq),
			AllocationKey: fmt.Sprintf("A%04d", seq),
			Description:   d.Description,
			Budget:        amount,
			StartDate:     start,
			EndDate:       end,
			Sponsor:       d.Sponsor,
			PlatformLead:  d.PlatformLead,
			CIO:           cio.Name,
			COO:           coo.Name,
			DemandID:      d.ID,
			TxID:          rc.TxID,
		})
	})
	if err != nil {
		return Receipt{}, err
	}
	l.entry().WithFields(logrus.Fields{"demand": id, "project": rc.ID, "tx": rc.TxID}).Info("demand converted")
	return rc, nil
}

func checkAllocation(team string, amount int64, start, end time.Time) error {
	if amount < 0 {
		return rule("Allocation amount must be non-negative.")
	}
	if err := checkPeriod(start, end); err != nil {
		return err
	}
	if c, ok := teamCaps[party.Parse(team).Organisation()]; ok && amount > c.limit {
		return rule("%s", c.msg)
	}
	return nil
}

// overlaps treats both periods as closed intervals.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	maxStart := aStart
	if bStart.After(maxStart) {
		maxStart = bStart
	}
	minEnd := aEnd
	if bEnd.Before(minEnd) {
		minEnd = bEnd
	}
	return !maxStart.After(minEnd)
}

func checkOverlap(ctx context.Context, r repos, projectID, team, skipID string, start, end time.Time) error {
	existing, err := r.allocations.ListForProjectTeam(ctx, projectID, team)
	if err != nil {
		return err
	}
	for _, a := range existing {
		if a.ID == skipID {
			continue
		}
		if overlaps(start, end, a.StartDate, a.EndDate) {
			return rule("Dates specified must not overlap with existing allocation for delivery team.")
		}
	}
	return nil
}

// AllocateDeliveryTeam gives part of a project's remaining budget to a
// delivery team.
func (l *Ledger) AllocateDeliveryTeam(ctx context.Context, initiator, projectID, team string, amount int64, start, end time.Time) (Receipt, error) {
	rc := Receipt{TxID: uuid.NewString(), ID: uuid.NewString()}
	err := l.inTx(ctx, func(r repos) error {
		p, err := r.projects.Get(ctx, projectID)
		if errors.Is(err, repository.ErrNotFound) {
			return missing("Project with id %s not found.", projectID)
		}
		if err != nil {
			return err
		}
		if !party.Same(p.PlatformLead, initiator) {
			return rule("Only the platform lead of a project can allocate delivery teams.")
		}
		dl, err := resolve(ctx, r, team)
		if err != nil {
			return err
		}
		if !party.Parse(dl.Name).IsDeliveryTeam() {
			return rule("Delivery Team must exist.")
		}
		if err := checkAllocation(dl.Name, amount, start, end); err != nil {
			return err
		}
		remaining := p.Budget - amount
		if remaining < 0 {
			return rule("Remaining Budget must not be negative.")
		}
		if err := checkOverlap(ctx, r, p.ID, dl.Name, "", start, end); err != nil {
			return err
		}
		if err := r.allocations.Insert(ctx, repository.Allocation{
			ID:            rc.ID,
			ProjectID:     p.ID,
			ProjectCode:   p.ProjectCode,
			AllocationKey: p.AllocationKey,
			Description:   p.Description,
			PlatformLead:  p.PlatformLead,
			DeliveryTeam:  dl.Name,
			Amount:        amount,
			StartDate:     start,
			EndDate:       end,
			TxID:          rc.TxID,
		}); err != nil {
			return err
		}
		return r.projects.UpdateBudget(ctx, p.ID, remaining, rc.TxID)
	})
	if err != nil {
		return Receipt{}, err
	}
	l.entry().WithFields(logrus.Fields{"project": projectID, "allocation": rc.ID, "tx": rc.TxID}).Info("delivery team allocated")
	return rc, nil
}

// UpdateAllocation changes an allocation's amount and period and moves the
// difference to or from the project budget.
func (l *Ledger) UpdateAllocation(ctx context.Context, initiator, allocationID string, amount int64, start, end time.Time) (Receipt, error) {
	rc := Receipt{TxID: uuid.NewString(), ID: allocationID}
	err := l.inTx(ctx, func(r repos) error {
		a, err := r.allocations.Get(ctx, allocationID)
		if errors.Is(err, repository.ErrNotFound) {
			return missing("Allocation with id %s not found.", allocationID)
		}
		if err != nil {
			return err
		}
		if !party.Same(a.PlatformLead, initiator) {
			return rule("Only the platform lead of a project can update its allocations.")
		}
		if err := checkAllocation(a.DeliveryTeam, amount, start, end); err != nil {
			return err
		}
		p, err := r.projects.Get(ctx, a.ProjectID)
		if err != nil {
			return fmt.Errorf("project for allocation %s: %w", a.ID, err)
		}
		remaining := p.Budget + a.Amount - amount
		if remaining < 0 {
			return rule("Remaining Budget must not be negative.")
		}
		if err := checkOverlap(ctx, r, p.ID, a.DeliveryTeam, a.ID, start, end); err != nil {
			return err
		}
		a.Amount, a.StartDate, a.EndDate, a.TxID = amount, start, end, rc.TxID
		if err := r.allocations.Update(ctx, a); err != nil {
			return err
		}
		return r.projects.UpdateBudget(ctx, p.ID, remaining, rc.TxID)
	})
	if err != nil {
		return Receipt{}, err
	}
	l.entry().WithFields(logrus.Fields{"allocation": allocationID, "tx": rc.TxID}).Info("allocation updated")
	return rc, nil
}
