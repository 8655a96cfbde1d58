package domain

import (
	"context"
)

// PatientRecordStore supplies the static patient attributes. It is read-only
// to the monitor; implementations return records in ascending id order.
type PatientRecordStore interface {
	Records(ctx context.Context) ([]PatientRecord, error)
	Get(ctx context.Context, id int) (PatientRecord, error)
	Close() error
}

