package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/demandboard/internal/database/repository"
)

func TestMigrateAndSeedAreIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))
	require.NoError(t, SeedParties(ctx, db))
	require.NoError(t, SeedParties(ctx, db))

	parties, err := repository.NewPartyRepo(db).List(ctx)
	require.NoError(t, err)
	require.Len(t, parties, len(DemoParties))

	cio, err := repository.NewPartyRepo(db).ByOrganisation(ctx, "CIO")
	require.NoError(t, err)
	require.Equal(t, "O=CIO, L=Singapore, C=SG", cio.Name)
}

func TestRunMigrationsFromDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "file.db")
	migrations, err := filepath.Abs("migrations")
	require.NoError(t, err)
	require.NoError(t, RunMigrations(dbPath, migrations))
	require.NoError(t, RunMigrations(dbPath, migrations))

	db, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM demands`).Scan(&n))
	require.Zero(t, n)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "tx.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(db))

	boom := errors.New("boom")
	err = WithTx(ctx, db, func(tx *sql.Tx) error {
		if err := repository.NewPartyRepo(tx).Upsert(ctx, repository.Party{Name: "O=Ghost", Organisation: "Ghost"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = repository.NewPartyRepo(db).ByOrganisation(ctx, "Ghost")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
