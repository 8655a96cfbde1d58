// Package records provides the read-only patient record store backends.
package records

import (
	"context"
	"fmt"
	"sort"

	"github.com/chronic-risk-monitor/internal/domain"
)

// Backend names accepted by records.backend.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// SeedRecords returns the five demonstration patients the dashboards were
// built around.
func SeedRecords() []domain.PatientRecord {
	return []domain.PatientRecord{
		{ID: 1, Gender: 1, Age: 45, HeartDisease: true, SmokingHistory: domain.SMOKING_CURRENT},
		{ID: 2, Gender: 0, Age: 50, HeartDisease: false, SmokingHistory: domain.SMOKING_NEVER},
		{ID: 3, Gender: 1, Age: 35, HeartDisease: false, SmokingHistory: domain.SMOKING_FORMER},
		{ID: 4, Gender: 0, Age: 60, HeartDisease: true, SmokingHistory: domain.SMOKING_NEVER},
		{ID: 5, Gender: 1, Age: 40, HeartDisease: false, SmokingHistory: domain.SMOKING_CURRENT},
	}
}

// Preload reads every record from store once and returns an immutable
// in-memory copy. The monitor works from this copy for the process lifetime.
func Preload(ctx context.Context, store domain.PatientRecordStore) (*MemoryStore, error) {
	all, err := store.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading patient records: %w", err)
	}
	return NewMemoryStore(all)
}

// scanner is an interface for sql.Row, sql.Rows and pgx.Row
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord scans a row into a PatientRecord.
func scanRecord(s scanner) (domain.PatientRecord, error) {
	var r domain.PatientRecord
	var smoking string
	if err := s.Scan(&r.ID, &r.Gender, &r.Age, &r.HeartDisease, &smoking); err != nil {
		return domain.PatientRecord{}, err
	}
	r.SmokingHistory = domain.SmokingHistory(smoking)
	return r, nil
}

func sortByID(rs []domain.PatientRecord) {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].ID < rs[j].ID })
}
