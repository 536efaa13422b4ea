package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jask/demandboard/internal/database"
)

// MaintenanceService houses destructive ops actions exposed through the CLI.
type MaintenanceService struct {
	DB *sql.DB
}

// Reset wipes all ledger records. Parties and the schema stay intact so the
// backend can continue running.
func (s *MaintenanceService) Reset(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("maintenance: db not configured")
	}
	if err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		tables := []string{
			"allocations",
			"projects",
			"demands",
		}
		for _, t := range tables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("reset table %s: %w", t, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	_, _ = s.DB.ExecContext(ctx, "VACUUM")
	return nil
}
