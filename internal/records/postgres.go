package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/chronic-risk-monitor/internal/domain"
)

// PostgresStore reads patient records from PostgreSQL. The schema and seed
// rows are created by the migrations in ./migrations.
type PostgresStore struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPostgresStore creates a new Postgres record store
func NewPostgresStore(db *pgxpool.Pool, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{
		db:  db,
		log: logger,
	}
}

// Records returns every record in ascending id order.
func (s *PostgresStore) Records(ctx context.Context) ([]domain.PatientRecord, error) {
	query := `
		SELECT id, gender, age, heart_disease, smoking_history
		FROM patients
		ORDER BY id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		s.log.WithError(err).Error("Failed to query patients")
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

// Get retrieves a patient by id
func (s *PostgresStore) Get(ctx context.Context, id int) (domain.PatientRecord, error) {
	query := `
		SELECT id, gender, age, heart_disease, smoking_history
		FROM patients
		WHERE id = $1`

	r, err := scanRecord(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PatientRecord{}, fmt.Errorf("patient %d: %w", id, domain.ErrNotFound)
		}
		s.log.WithFields(logrus.Fields{
			"patient_id": id,
			"error":      err,
		}).Error("Failed to get patient")
		return domain.PatientRecord{}, fmt.Errorf("getting patient %d: %w", id, err)
	}
	return r, nil
}

// Close is a no-op; the pool is owned by database.DB.
func (s *PostgresStore) Close() error { return nil }
