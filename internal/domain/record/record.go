package record

import (
	"strings"
	"time"
)

type Kind string

const (
	KindStorageProcessing  Kind = "storage_processing"
	KindDirectProcessing   Kind = "direct_processing"
	KindPubSubNotification Kind = "pubsub_notification"
	KindAPINotification    Kind = "api_notification"
)

var knownKinds = map[Kind]struct{}{
	KindStorageProcessing:  {},
	KindDirectProcessing:   {},
	KindPubSubNotification: {},
	KindAPINotification:    {},
}

func (k Kind) Valid() bool {
	_, ok := knownKinds[k]
	return ok
}

// Common field names. Anything else in Fields lands in the payload.
const (
	FieldID           = "id"
	FieldKind         = "kind"
	FieldStatus       = "status"
	FieldCreatedAt    = "created_at"
	FieldProcessingAt = "processing_at"
	FieldCompletedAt  = "completed_at"
	FieldFailedAt     = "failed_at"
	FieldError        = "error"
)

// Record is one tracked unit of work or notification state.
type Record struct {
	ID           string         `json:"id" yaml:"id" toml:"id"`
	Kind         Kind           `json:"kind" yaml:"kind" toml:"kind"`
	Status       Status         `json:"status" yaml:"status" toml:"status"`
	CreatedAt    string         `json:"created_at" yaml:"created_at" toml:"created_at"`
	ProcessingAt string         `json:"processing_at,omitempty" yaml:"processing_at,omitempty" toml:"processing_at,omitempty"`
	CompletedAt  string         `json:"completed_at,omitempty" yaml:"completed_at,omitempty" toml:"completed_at,omitempty"`
	FailedAt     string         `json:"failed_at,omitempty" yaml:"failed_at,omitempty" toml:"failed_at,omitempty"`
	Error        string         `json:"error,omitempty" yaml:"error,omitempty" toml:"error,omitempty"`
	Payload      map[string]any `json:"payload,omitempty" yaml:"payload,omitempty" toml:"payload,omitempty"`
}

// Clone returns a deep copy so callers can mutate the result freely.
func (r Record) Clone() Record {
	out := r
	if r.Payload != nil {
		out.Payload = cloneValue(r.Payload).(map[string]any)
	}
	return out
}

// Normalize canonicalizes payload values to their stored JSON form. An empty payload becomes nil.
func (r Record) Normalize() (Record, error) {
	out := r
	out.ID = strings.TrimSpace(r.ID)
	if len(r.Payload) == 0 {
		out.Payload = nil
		return out, nil
	}
	payload, err := NormalizeMap(r.Payload)
	if err != nil {
		return Record{}, err
	}
	out.Payload = payload
	return out, nil
}

// Validate checks the fields every stored record needs.
func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return validationf("record id is required")
	}
	if !r.Kind.Valid() {
		return validationf("unknown record kind %q", r.Kind)
	}
	if !r.Status.Valid() {
		return validationf("unknown record status %q", r.Status)
	}
	if strings.TrimSpace(r.CreatedAt) == "" {
		return validationf("created_at is required")
	}
	return nil
}

// Timestamp formats t the way every record timestamp is stored: ISO-8601 UTC.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ScanLimitCeiling bounds every listing request.
const ScanLimitCeiling = 100

// ClampScanLimit maps non-positive limits to the ceiling and caps larger ones.
func ClampScanLimit(limit int) int {
	if limit <= 0 || limit > ScanLimitCeiling {
		return ScanLimitCeiling
	}
	return limit
}
