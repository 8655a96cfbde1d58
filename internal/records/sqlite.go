package records

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/chronic-risk-monitor/internal/domain"
)

// NewSQLiteStore opens (or creates) a SQLite record database at dbPath. The
// schema is created if missing and an empty table is filled with
// SeedRecords.
func NewSQLiteStore(ctx context.Context, dbPath string, logger *logrus.Logger) (*SQLStore, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	seeded, err := seedIfEmpty(ctx, db, SeedRecords())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed patients: %w", err)
	}

	store, err := NewSQLStore(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	store.log.WithFields(logrus.Fields{
		"path":   dbPath,
		"seeded": seeded,
	}).Info("SQLite patient store opened")
	return store, nil
}

// createSchema creates the patients table.
func createSchema(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS patients (
		id INTEGER PRIMARY KEY,
		gender INTEGER NOT NULL CHECK (gender IN (0, 1)),
		age INTEGER NOT NULL CHECK (age BETWEEN 0 AND 120),
		heart_disease BOOLEAN NOT NULL DEFAULT 0,
		smoking_history TEXT NOT NULL DEFAULT 'No Info'
	);
	`
	_, err := db.ExecContext(ctx, schema)
	return err
}

func seedIfEmpty(ctx context.Context, db *sql.DB, seed []domain.PatientRecord) (int, error) {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM patients").Scan(&count); err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	for _, r := range seed {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO patients (id, gender, age, heart_disease, smoking_history) VALUES (?, ?, ?, ?, ?)",
			r.ID, r.Gender, r.Age, r.HeartDisease, string(r.SmokingHistory),
		); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(seed), nil
}
