package database

import (
	"context"
	"database/sql"

	"github.com/jask/demandboard/internal/database/repository"
	"github.com/jask/demandboard/internal/party"
)

// DemoParties is the network every demo database starts with.
var DemoParties = []string{
	"O=Sponsor, L=London, C=GB",
	"O=PLTeam1, L=Singapore, C=SG",
	"O=PLTeam2, L=Singapore, C=SG",
	"O=DLTeam1, L=Singapore, C=SG",
	"O=DLTeam2, L=Singapore, C=SG",
	"O=CIO, L=Singapore, C=SG",
	"O=COO, L=Singapore, C=SG",
}

// SeedParties ensures the demo network exists. It is idempotent and safe to
// run on every startup.
func SeedParties(ctx context.Context, db *sql.DB, names ...string) error {
	if len(names) == 0 {
		names = DemoParties
	}
	return WithTx(ctx, db, func(tx *sql.Tx) error {
		parties := repository.NewPartyRepo(tx)
		for _, name := range names {
			p := repository.Party{Name: name, Organisation: party.Parse(name).Organisation()}
			if err := parties.Upsert(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
}
