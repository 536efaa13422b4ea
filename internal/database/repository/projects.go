package repository

import (
	"context"
)

// ProjectRepo handles projects.
type ProjectRepo struct {
	db DBTX
}

func NewProjectRepo(db DBTX) *ProjectRepo { return &ProjectRepo{db: db} }

const projectColumns = `id, project_code, allocation_key, description, budget, start_date, end_date,
 sponsor, platform_lead, cio, coo, demand_id, tx_id, created_at, updated_at`

func (r *ProjectRepo) Insert(ctx context.Context, p Project) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO projects(
	 id, project_code, allocation_key, description, budget, start_date, end_date,
	 sponsor, platform_lead, cio, coo, demand_id, tx_id, created_at, updated_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP);
	`,
		p.ID, p.ProjectCode, p.AllocationKey, p.Description, p.Budget, formatDay(p.StartDate), formatDay(p.EndDate),
		p.Sponsor, p.PlatformLead, p.CIO, p.COO, p.DemandID, p.TxID)
	return err
}

// UpdateBudget stores the remaining budget after an allocation change.
func (r *ProjectRepo) UpdateBudget(ctx context.Context, id string, budget int64, txID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE projects SET budget = ?, tx_id = ?, updated_at=CURRENT_TIMESTAMP WHERE id = ?`, budget, txID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ProjectRepo) Get(ctx context.Context, id string) (Project, error) {
	return r.one(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
}

func (r *ProjectRepo) GetByCode(ctx context.Context, code string) (Project, error) {
	return r.one(ctx, `SELECT `+projectColumns+` FROM projects WHERE project_code = ?`, code)
}

func (r *ProjectRepo) GetByDemand(ctx context.Context, demandID string) (Project, error) {
	return r.one(ctx, `SELECT `+projectColumns+` FROM projects WHERE demand_id = ?`, demandID)
}

// Count is used to number new project codes.
func (r *ProjectRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&n)
	return n, err
}

func (r *ProjectRepo) List(ctx context.Context) ([]Project, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY updated_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProjectRepo) one(ctx context.Context, query string, arg any) (Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return Project{}, notFound(err)
	}
	return p, nil
}

func scanProject(s scanner) (Project, error) {
	var (
		p          Project
		start, end string
	)
	if err := s.Scan(&p.ID, &p.ProjectCode, &p.AllocationKey, &p.Description, &p.Budget, &start, &end,
		&p.Sponsor, &p.PlatformLead, &p.CIO, &p.COO, &p.DemandID, &p.TxID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Project{}, err
	}
	var err error
	if p.StartDate, err = parseDay(start); err != nil {
		return Project{}, err
	}
	if p.EndDate, err = parseDay(end); err != nil {
		return Project{}, err
	}
	return p, nil
}
