package service

import (
	"errors"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/chronic-risk-monitor/internal/domain"
)

// CompositionFailure records a patient whose vector could not be built.
type CompositionFailure struct {
	PatientID int
	Err       error
}

// Composition is the result of joining one tick's readings with the record
// store.
type Composition struct {
	// Vectors in record store order.
	Vectors []domain.CompositeFeatureVector
	// Failures are per-patient encoding or validation errors.
	Failures []CompositionFailure
	// Missing lists known patients without a reading.
	Missing []int
	// Orphans lists readings whose patient is unknown.
	Orphans []int
}

// Skipped returns every known patient without a vector, in record order.
func (c Composition) Skipped(records []domain.PatientRecord) []int {
	skipped := make(map[int]bool, len(c.Missing)+len(c.Failures))
	for _, id := range c.Missing {
		skipped[id] = true
	}
	for _, f := range c.Failures {
		skipped[f.PatientID] = true
	}

	out := make([]int, 0, len(skipped))
	for _, r := range records {
		if skipped[r.ID] {
			out = append(out, r.ID)
		}
	}
	return out
}

// Composer joins readings to records and encodes categorical attributes.
type Composer struct {
	log *logrus.Logger
}

// NewComposer creates a composer that logs data-integrity warnings.
func NewComposer(logger *logrus.Logger) *Composer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Composer{log: logger}
}

// Compose inner-joins readings with records on patient id. A patient with an
// unmapped category or a missing feature is dropped from this tick only;
// the rest of the batch is unaffected.
func (c *Composer) Compose(records []domain.PatientRecord, readings map[int]domain.DynamicReading) Composition {
	var out Composition
	known := make(map[int]bool, len(records))

	for _, record := range records {
		known[record.ID] = true

		reading, ok := readings[record.ID]
		if !ok {
			out.Missing = append(out.Missing, record.ID)
			c.log.WithField("patient_id", record.ID).Warn("No reading for known patient, skipping for this tick")
			continue
		}

		v, err := domain.NewCompositeFeatureVector(record, reading)
		if err == nil {
			err = v.Validate()
		}
		if err != nil {
			out.Failures = append(out.Failures, CompositionFailure{PatientID: record.ID, Err: err})
			c.logFailure(record.ID, err)
			continue
		}
		out.Vectors = append(out.Vectors, v)
	}

	for id := range readings {
		if !known[id] {
			out.Orphans = append(out.Orphans, id)
		}
	}
	sort.Ints(out.Orphans)
	for _, id := range out.Orphans {
		c.log.WithField("patient_id", id).Warn("Reading for unknown patient dropped")
	}

	return out
}

func (c *Composer) logFailure(patientID int, err error) {
	entry := c.log.WithField("patient_id", patientID).WithError(err)

	var unknown *domain.UnknownCategoryError
	var missing *domain.MissingFeatureError
	switch {
	case errors.As(err, &unknown):
		entry.WithFields(logrus.Fields{
			"field": unknown.Field,
			"value": unknown.Value,
		}).Warn("Unknown category, patient skipped")
	case errors.As(err, &missing):
		entry.WithField("feature", missing.Feature).Warn("Missing feature, patient skipped")
	default:
		entry.Warn("Patient skipped")
	}
}
