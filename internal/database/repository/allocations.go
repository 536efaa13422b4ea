package repository

import (
	"context"
)

// AllocationRepo handles allocations.
type AllocationRepo struct {
	db DBTX
}

func NewAllocationRepo(db DBTX) *AllocationRepo { return &AllocationRepo{db: db} }

const allocationColumns = `id, project_id, project_code, allocation_key, description, platform_lead, delivery_team,
 amount, start_date, end_date, tx_id, created_at, updated_at`

func (r *AllocationRepo) Insert(ctx context.Context, a Allocation) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO allocations(
	 id, project_id, project_code, allocation_key, description, platform_lead, delivery_team,
	 amount, start_date, end_date, tx_id, created_at, updated_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP);
	`,
		a.ID, a.ProjectID, a.ProjectCode, a.AllocationKey, a.Description, a.PlatformLead, a.DeliveryTeam,
		a.Amount, formatDay(a.StartDate), formatDay(a.EndDate), a.TxID)
	return err
}

// Update rewrites the amount and period of an allocation.
func (r *AllocationRepo) Update(ctx context.Context, a Allocation) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE allocations SET
	 amount = ?, start_date = ?, end_date = ?, tx_id = ?, updated_at = CURRENT_TIMESTAMP
	WHERE id = ?`,
		a.Amount, formatDay(a.StartDate), formatDay(a.EndDate), a.TxID, a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AllocationRepo) Get(ctx context.Context, id string) (Allocation, error) {
	a, err := scanAllocation(r.db.QueryRowContext(ctx, `SELECT `+allocationColumns+` FROM allocations WHERE id = ?`, id))
	if err != nil {
		return Allocation{}, notFound(err)
	}
	return a, nil
}

func (r *AllocationRepo) List(ctx context.Context) ([]Allocation, error) {
	return r.list(ctx, `SELECT `+allocationColumns+` FROM allocations ORDER BY updated_at, rowid`)
}

// ListForProjectTeam returns the allocations of one delivery team on one project.
func (r *AllocationRepo) ListForProjectTeam(ctx context.Context, projectID, team string) ([]Allocation, error) {
	return r.list(ctx, `SELECT `+allocationColumns+` FROM allocations WHERE project_id = ? AND delivery_team = ? ORDER BY rowid`, projectID, team)
}

// TeamsForProject returns the distinct delivery teams allocated to a project.
func (r *AllocationRepo) TeamsForProject(ctx context.Context, projectID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT delivery_team FROM allocations WHERE project_id = ? ORDER BY delivery_team`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var team string
		if err := rows.Scan(&team); err != nil {
			return nil, err
		}
		out = append(out, team)
	}
	return out, rows.Err()
}

func (r *AllocationRepo) list(ctx context.Context, query string, args ...any) ([]Allocation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAllocation(s scanner) (Allocation, error) {
	var (
		a          Allocation
		start, end string
	)
	if err := s.Scan(&a.ID, &a.ProjectID, &a.ProjectCode, &a.AllocationKey, &a.Description, &a.PlatformLead,
		&a.DeliveryTeam, &a.Amount, &start, &end, &a.TxID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Allocation{}, err
	}
	var err error
	if a.StartDate, err = parseDay(start); err != nil {
		return Allocation{}, err
	}
	if a.EndDate, err = parseDay(end); err != nil {
		return Allocation{}, err
	}
	return a, nil
}
