package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// DemandRepo handles demands.
type DemandRepo struct {
	db DBTX
}

func NewDemandRepo(db DBTX) *DemandRepo { return &DemandRepo{db: db} }

const demandColumns = `id, description, amount, start_date, end_date, sponsor, platform_lead, approval_parties, tx_id, created_at, updated_at`

func (r *DemandRepo) Insert(ctx context.Context, d Demand) error {
	approvals, err := encodeParties(d.ApprovalParties)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
	INSERT INTO demands(
	 id, description, amount, start_date, end_date, sponsor, platform_lead, approval_parties, tx_id,
	 created_at, updated_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP);
	`,
		d.ID, d.Description, d.Amount, formatDayPtr(d.StartDate), formatDayPtr(d.EndDate),
		d.Sponsor, d.PlatformLead, approvals, d.TxID)
	return err
}

// Update rewrites the priced fields of a demand.
func (r *DemandRepo) Update(ctx context.Context, d Demand) error {
	approvals, err := encodeParties(d.ApprovalParties)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
	UPDATE demands SET
	 amount = ?, start_date = ?, end_date = ?, approval_parties = ?, tx_id = ?,
	 updated_at = CURRENT_TIMESTAMP
	WHERE id = ?`,
		d.Amount, formatDayPtr(d.StartDate), formatDayPtr(d.EndDate), approvals, d.TxID, d.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *DemandRepo) Get(ctx context.Context, id string) (Demand, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+demandColumns+` FROM demands WHERE id = ?`, id)
	d, err := scanDemand(row)
	if err != nil {
		return Demand{}, notFound(err)
	}
	return d, nil
}

// List returns every demand, oldest change first.
func (r *DemandRepo) List(ctx context.Context) ([]Demand, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+demandColumns+` FROM demands ORDER BY updated_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Demand
	for rows.Next() {
		d, err := scanDemand(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDemand(s scanner) (Demand, error) {
	var (
		d          Demand
		start, end sql.NullString
		approvals  string
	)
	if err := s.Scan(&d.ID, &d.Description, &d.Amount, &start, &end, &d.Sponsor, &d.PlatformLead,
		&approvals, &d.TxID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return Demand{}, err
	}
	var err error
	if d.StartDate, err = parseDayPtr(start); err != nil {
		return Demand{}, err
	}
	if d.EndDate, err = parseDayPtr(end); err != nil {
		return Demand{}, err
	}
	if err := json.Unmarshal([]byte(approvals), &d.ApprovalParties); err != nil {
		return Demand{}, fmt.Errorf("demand %s approval parties: %w", d.ID, err)
	}
	return d, nil
}

func encodeParties(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	b, err := json.Marshal(names)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
