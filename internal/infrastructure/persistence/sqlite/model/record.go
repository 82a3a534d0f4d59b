package model

import (
	"gorm.io/datatypes"

	"eventtrack/internal/domain/record"
)

// Record is the row shape shared by every record table. It has no TableName:
// stores bind it to a table with db.Table(name).
type Record struct {
	ID           string         `gorm:"column:id;type:text;primaryKey"`
	Kind         string         `gorm:"column:kind;type:text;not null"`
	Status       string         `gorm:"column:status;type:text;not null"`
	CreatedAt    string         `gorm:"column:created_at;type:text;not null"`
	ProcessingAt string         `gorm:"column:processing_at;type:text;not null;default:''"`
	CompletedAt  string         `gorm:"column:completed_at;type:text;not null;default:''"`
	FailedAt     string         `gorm:"column:failed_at;type:text;not null;default:''"`
	Error        string         `gorm:"column:error;type:text;not null;default:''"`
	Payload      datatypes.JSON `gorm:"column:payload;not null"`
}

func FromDomain(rec record.Record) (Record, error) {
	payload, err := record.EncodePayload(rec.Payload)
	if err != nil {
		return Record{}, err
	}

	return Record{
		ID:           rec.ID,
		Kind:         string(rec.Kind),
		Status:       string(rec.Status),
		CreatedAt:    rec.CreatedAt,
		ProcessingAt: rec.ProcessingAt,
		CompletedAt:  rec.CompletedAt,
		FailedAt:     rec.FailedAt,
		Error:        rec.Error,
		Payload:      datatypes.JSON(payload),
	}, nil
}

func (r Record) ToDomain() (record.Record, error) {
	payload, err := record.DecodePayload(r.Payload)
	if err != nil {
		return record.Record{}, err
	}

	return record.Record{
		ID:           r.ID,
		Kind:         record.Kind(r.Kind),
		Status:       record.Status(r.Status),
		CreatedAt:    r.CreatedAt,
		ProcessingAt: r.ProcessingAt,
		CompletedAt:  r.CompletedAt,
		FailedAt:     r.FailedAt,
		Error:        r.Error,
		Payload:      payload,
	}, nil
}
