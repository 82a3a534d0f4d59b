package ports

import (
	"context"

	"eventtrack/internal/domain/record"
)

// RecordStore is generic keyed storage for records, independent of their kind.
// Every backend failure is returned classified as errs.KindStorageUnavailable.
type RecordStore interface {
	// Create inserts or silently overwrites the record with the same id.
	Create(ctx context.Context, rec record.Record) error
	// Get returns found=false when no record has the id.
	Get(ctx context.Context, id string) (rec record.Record, found bool, err error)
	// Scan returns at most limit records in no particular order. Callers clamp limit.
	Scan(ctx context.Context, limit int) ([]record.Record, error)
	// Update applies fields atomically and returns the merged record.
	// A missing id fails with errs.KindNotFound and writes nothing.
	Update(ctx context.Context, id string, fields record.Fields) (record.Record, error)
	// Delete removes the record; a missing id is not an error.
	Delete(ctx context.Context, id string) error
}

// RecordTables groups the two stores the service writes to.
type RecordTables struct {
	Jobs          RecordStore
	Notifications RecordStore
}
