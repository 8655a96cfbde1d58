// Package livestate holds the current tick's readings. Exactly one Producer
// publishes; every other component reads immutable snapshots.
package livestate

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/chronic-risk-monitor/internal/domain"
)

// Snapshot is one tick's published state. It is never modified after
// publication; accessors return copies.
type Snapshot struct {
	tick        uint64
	id          uuid.UUID
	generatedAt time.Time
	readings    []domain.DynamicReading
	vectors     []domain.CompositeFeatureVector
	skipped     []int
}

func newSnapshot(tick uint64, readings map[int]domain.DynamicReading, vectors []domain.CompositeFeatureVector, skipped []int) *Snapshot {
	rs := make([]domain.DynamicReading, 0, len(readings))
	for _, r := range readings {
		rs = append(rs, r)
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].PatientID < rs[j].PatientID })

	return &Snapshot{
		tick:        tick,
		id:          uuid.New(),
		generatedAt: time.Now().UTC(),
		readings:    rs,
		vectors:     append([]domain.CompositeFeatureVector(nil), vectors...),
		skipped:     append([]int(nil), skipped...),
	}
}

// Tick returns the monotonically increasing tick number, starting at 1.
func (s *Snapshot) Tick() uint64 { return s.tick }

// ID returns the unique snapshot id.
func (s *Snapshot) ID() uuid.UUID { return s.id }

// GeneratedAt returns the publication time.
func (s *Snapshot) GeneratedAt() time.Time { return s.generatedAt }

// Stale reports whether a newer tick than this snapshot's is known.
func (s *Snapshot) Stale(latest uint64) bool { return s.tick < latest }

// Readings returns every reading in ascending patient id order.
func (s *Snapshot) Readings() []domain.DynamicReading {
	return append([]domain.DynamicReading(nil), s.readings...)
}

// Reading returns one patient's reading.
func (s *Snapshot) Reading(patientID int) (domain.DynamicReading, bool) {
	for _, r := range s.readings {
		if r.PatientID == patientID {
			return r, true
		}
	}
	return domain.DynamicReading{}, false
}

// Vectors returns the composed feature vectors in record store order.
func (s *Snapshot) Vectors() []domain.CompositeFeatureVector {
	return append([]domain.CompositeFeatureVector(nil), s.vectors...)
}

// Vector returns one patient's composed vector. A patient skipped this tick
// has none.
func (s *Snapshot) Vector(patientID int) (domain.CompositeFeatureVector, bool) {
	for _, v := range s.vectors {
		if v.PatientID == patientID {
			return v, true
		}
	}
	return domain.CompositeFeatureVector{}, false
}

// Skipped returns the ids of known patients that have no vector this tick.
func (s *Snapshot) Skipped() []int {
	return append([]int(nil), s.skipped...)
}

type snapshotJSON struct {
	Tick        uint64                          `json:"tick"`
	ID          uuid.UUID                       `json:"id"`
	GeneratedAt time.Time                       `json:"generated_at"`
	Readings    []domain.DynamicReading         `json:"readings"`
	Vectors     []domain.CompositeFeatureVector `json:"vectors"`
	Skipped     []int                           `json:"skipped,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{
		Tick:        s.tick,
		ID:          s.id,
		GeneratedAt: s.generatedAt,
		Readings:    s.readings,
		Vectors:     s.vectors,
		Skipped:     s.skipped,
	})
}

// UnmarshalJSON implements json.Unmarshaler. It is used only to rebuild a
// mirrored snapshot in a reader process.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var w snapshotJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Snapshot{
		tick:        w.Tick,
		id:          w.ID,
		generatedAt: w.GeneratedAt,
		readings:    w.Readings,
		vectors:     w.Vectors,
		skipped:     w.Skipped,
	}
	return nil
}
