package records

import (
	"context"
	"fmt"

	"github.com/chronic-risk-monitor/internal/domain"
)

// MemoryStore is an immutable in-process record set.
type MemoryStore struct {
	records []domain.PatientRecord
	byID    map[int]int
}

// NewMemoryStore validates and copies records. Duplicate ids are rejected.
// Smoking categories are not checked here; an unmapped value surfaces when
// the record is composed into a feature vector.
func NewMemoryStore(records []domain.PatientRecord) (*MemoryStore, error) {
	rs := make([]domain.PatientRecord, len(records))
	copy(rs, records)
	sortByID(rs)

	byID := make(map[int]int, len(rs))
	for i, r := range rs {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("patient %d: %w", r.ID, err)
		}
		if _, dup := byID[r.ID]; dup {
			return nil, fmt.Errorf("duplicate patient id %d", r.ID)
		}
		byID[r.ID] = i
	}
	return &MemoryStore{records: rs, byID: byID}, nil
}

// NewSeededMemoryStore returns a store holding SeedRecords.
func NewSeededMemoryStore() *MemoryStore {
	s, err := NewMemoryStore(SeedRecords())
	if err != nil {
		panic(err)
	}
	return s
}

// Records returns a copy of every record in ascending id order.
func (s *MemoryStore) Records(ctx context.Context) ([]domain.PatientRecord, error) {
	out := make([]domain.PatientRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

// Get returns one record.
func (s *MemoryStore) Get(ctx context.Context, id int) (domain.PatientRecord, error) {
	i, ok := s.byID[id]
	if !ok {
		return domain.PatientRecord{}, fmt.Errorf("patient %d: %w", id, domain.ErrNotFound)
	}
	return s.records[i], nil
}

// IDs returns every patient id in ascending order.
func (s *MemoryStore) IDs() []int {
	ids := make([]int, len(s.records))
	for i, r := range s.records {
		ids[i] = r.ID
	}
	return ids
}

// Len returns the number of records.
func (s *MemoryStore) Len() int { return len(s.records) }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
