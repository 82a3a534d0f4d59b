package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"eventtrack/internal/domain/record"
	"eventtrack/internal/errs"
	"eventtrack/internal/infrastructure/persistence/sqlite/model"
	"eventtrack/internal/ports"
)

// RecordStore keeps records in one SQLite table through gorm.
type RecordStore struct {
	db    *gorm.DB
	table string
}

var _ ports.RecordStore = (*RecordStore)(nil)

func NewRecordStore(db *gorm.DB, table string) *RecordStore {
	return &RecordStore{db: db, table: table}
}

func (s *RecordStore) Table() string { return s.table }

// Migrate creates or upgrades the table.
func (s *RecordStore) Migrate(ctx context.Context) error {
	if err := s.session(ctx).AutoMigrate(&model.Record{}); err != nil {
		return errs.Storage(err, fmt.Sprintf("migrate table %q", s.table))
	}
	return nil
}

func (s *RecordStore) Create(ctx context.Context, rec record.Record) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	normalized, err := rec.Normalize()
	if err != nil {
		return err
	}
	if err := normalized.Validate(); err != nil {
		return err
	}

	row, err := model.FromDomain(normalized)
	if err != nil {
		return errs.Wrap(err, "encode record")
	}

	if err := s.session(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error; err != nil {
		return errs.Storage(err, "upsert record")
	}
	return nil
}

func (s *RecordStore) Get(ctx context.Context, id string) (record.Record, bool, error) {
	if err := checkContext(ctx); err != nil {
		return record.Record{}, false, err
	}

	trimmedID, err := requireID(id)
	if err != nil {
		return record.Record{}, false, err
	}

	var row model.Record
	if err := s.session(ctx).Where("id = ?", trimmedID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return record.Record{}, false, nil
		}
		return record.Record{}, false, errs.Storage(err, "query record by id")
	}

	rec, err := row.ToDomain()
	if err != nil {
		return record.Record{}, false, errs.Storage(err, "decode record")
	}
	return rec, true, nil
}

func (s *RecordStore) Scan(ctx context.Context, limit int) ([]record.Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []record.Record{}, nil
	}

	var rows []model.Record
	if err := s.session(ctx).Limit(limit).Find(&rows).Error; err != nil {
		return nil, errs.Storage(err, "scan records")
	}

	items := make([]record.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.ToDomain()
		if err != nil {
			return nil, errs.Storage(err, fmt.Sprintf("decode record %q", row.ID))
		}
		items = append(items, rec)
	}
	return items, nil
}

// Update reads, merges and writes inside one transaction so concurrent readers
// never observe a half-applied field set.
func (s *RecordStore) Update(ctx context.Context, id string, fields record.Fields) (record.Record, error) {
	if err := checkContext(ctx); err != nil {
		return record.Record{}, err
	}

	trimmedID, err := requireID(id)
	if err != nil {
		return record.Record{}, err
	}
	columns, attrs, err := fields.Split()
	if err != nil {
		return record.Record{}, err
	}

	var merged record.Record
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row model.Record
		if err := tx.Table(s.table).Where("id = ?", trimmedID).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound(fmt.Sprintf("record %q not found", trimmedID))
			}
			return errs.Storage(err, "query record for update")
		}

		current, err := row.ToDomain()
		if err != nil {
			return errs.Storage(err, "decode record")
		}
		merged, err = record.Apply(current, fields)
		if err != nil {
			return err
		}

		updates := make(map[string]any, len(columns)+1)
		for name, value := range columns {
			updates[name] = value
		}
		if len(attrs) > 0 {
			next, err := model.FromDomain(merged)
			if err != nil {
				return errs.Wrap(err, "encode payload")
			}
			updates["payload"] = next.Payload
		}

		if err := tx.Table(s.table).Where("id = ?", trimmedID).Updates(updates).Error; err != nil {
			return errs.Storage(err, "update record")
		}
		return nil
	})
	if txErr != nil {
		if errs.KindOf(txErr) == errs.KindUnknown {
			return record.Record{}, errs.Storage(txErr, "update record transaction")
		}
		return record.Record{}, txErr
	}
	return merged, nil
}

func (s *RecordStore) Delete(ctx context.Context, id string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	trimmedID, err := requireID(id)
	if err != nil {
		return err
	}

	if err := s.session(ctx).Where("id = ?", trimmedID).Delete(&model.Record{}).Error; err != nil {
		return errs.Storage(err, "delete record")
	}
	return nil
}

func (s *RecordStore) session(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.table)
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	return nil
}

func requireID(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", errs.Validation("record id is required")
	}
	return trimmed, nil
}
