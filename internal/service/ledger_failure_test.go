package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestCreateDemandRollsBackWhenInsertFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	parties := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"name", "organisation", "created_at"}).
			AddRow(sponsor, "Sponsor", time.Now()).
			AddRow(pl1, "PLTeam1", time.Now())
	}
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT name, organisation, created_at FROM parties").WillReturnRows(parties())
	mock.ExpectQuery("SELECT name, organisation, created_at FROM parties").WillReturnRows(parties())
	mock.ExpectExec("INSERT INTO demands").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	log := logrus.New()
	log.SetOutput(io.Discard)
	l := &Ledger{DB: db, Log: log}

	_, err = l.CreateDemand(context.Background(), sponsor, pl1, "Q1 rollout")
	require.ErrorContains(t, err, "disk I/O error")
	var re *RuleError
	require.False(t, errors.As(err, &re), "storage failures are not rule violations")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAllocationRollsBackWhenLookupFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM allocations WHERE id").WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	l := &Ledger{DB: db}
	start := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.Local)
	_, err = l.UpdateAllocation(context.Background(), pl1, "a-1", 10, start, start.AddDate(0, 1, 0))
	require.ErrorContains(t, err, "database is locked")
	require.NoError(t, mock.ExpectationsWereMet())
}
