package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/chronic-risk-monitor/internal/domain"
)

const (
	selectRecordsSQL = `SELECT id, gender, age, heart_disease, smoking_history FROM patients ORDER BY id`
	selectRecordSQL  = `SELECT id, gender, age, heart_disease, smoking_history FROM patients WHERE id = ?`
)

// SQLStore reads patient records through database/sql. It backs the SQLite
// lite mode and any other driver with ?-style placeholders.
type SQLStore struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewSQLStore wraps an open database. The patients table must exist.
func NewSQLStore(db *sql.DB, logger *logrus.Logger) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SQLStore{db: db, log: logger}, nil
}

// Records returns every record in ascending id order.
func (s *SQLStore) Records(ctx context.Context) ([]domain.PatientRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectRecordsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying patients: %w", err)
	}
	defer rows.Close()

	var out []domain.PatientRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning patient: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating patients: %w", err)
	}

	s.log.WithField("patients", len(out)).Debug("Loaded patient records")
	return out, nil
}

// Get returns one record.
func (s *SQLStore) Get(ctx context.Context, id int) (domain.PatientRecord, error) {
	r, err := scanRecord(s.db.QueryRowContext(ctx, selectRecordSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PatientRecord{}, fmt.Errorf("patient %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.PatientRecord{}, fmt.Errorf("querying patient %d: %w", id, err)
	}
	return r, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
