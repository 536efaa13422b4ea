package repository

import (
	"context"
)

// PartyRepo handles parties.
type PartyRepo struct {
	db DBTX
}

func NewPartyRepo(db DBTX) *PartyRepo {
	return &PartyRepo{db: db}
}

func (r *PartyRepo) Upsert(ctx context.Context, p Party) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO parties(name, organisation, created_at)
	VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(name) DO UPDATE SET
	 organisation=excluded.organisation;
	`, p.Name, p.Organisation)
	return err
}

func (r *PartyRepo) List(ctx context.Context) ([]Party, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, organisation, created_at FROM parties ORDER BY organisation`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Party
	for rows.Next() {
		var p Party
		if err := rows.Scan(&p.Name, &p.Organisation, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ByOrganisation returns the first party whose O attribute is org.
func (r *PartyRepo) ByOrganisation(ctx context.Context, org string) (Party, error) {
	var p Party
	err := r.db.QueryRowContext(ctx, `SELECT name, organisation, created_at FROM parties WHERE organisation = ? ORDER BY name LIMIT 1`, org).
		Scan(&p.Name, &p.Organisation, &p.CreatedAt)
	if err != nil {
		return Party{}, notFound(err)
	}
	return p, nil
}
