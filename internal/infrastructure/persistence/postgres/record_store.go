package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"eventtrack/internal/domain/record"
	"eventtrack/internal/errs"
	"eventtrack/internal/ports"
)

const selectColumns = `id, kind, status, created_at, processing_at, completed_at, failed_at, error, payload`

// RecordStore keeps records in one PostgreSQL table with a JSONB payload column.
type RecordStore struct {
	pool  *pgxpool.Pool
	table string
}

var _ ports.RecordStore = (*RecordStore)(nil)

func NewRecordStore(pool *pgxpool.Pool, table string) *RecordStore {
	return &RecordStore{pool: pool, table: table}
}

func (s *RecordStore) Table() string { return s.table }

// Migrate creates the table when missing. Safe to run multiple times.
func (s *RecordStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createTableSQL(s.table)); err != nil {
		return errs.Storage(err, fmt.Sprintf("migrate table %q", s.table))
	}
	return nil
}

func createTableSQL(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + quote(table) + ` (
	id            TEXT PRIMARY KEY,
	kind          TEXT NOT NULL,
	status        TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	processing_at TEXT NOT NULL DEFAULT '',
	completed_at  TEXT NOT NULL DEFAULT '',
	failed_at     TEXT NOT NULL DEFAULT '',
	error         TEXT NOT NULL DEFAULT '',
	payload       JSONB NOT NULL DEFAULT '{}'::jsonb
)`
}

func (s *RecordStore) Create(ctx context.Context, rec record.Record) error {
	normalized, err := rec.Normalize()
	if err != nil {
		return err
	}
	if err := normalized.Validate(); err != nil {
		return err
	}
	payload, err := record.EncodePayload(normalized.Payload)
	if err != nil {
		return errs.Wrap(err, "encode payload")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO `+quote(s.table)+` (`+selectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind,
			status = EXCLUDED.status,
			created_at = EXCLUDED.created_at,
			processing_at = EXCLUDED.processing_at,
			completed_at = EXCLUDED.completed_at,
			failed_at = EXCLUDED.failed_at,
			error = EXCLUDED.error,
			payload = EXCLUDED.payload
	`,
		normalized.ID,
		string(normalized.Kind),
		string(normalized.Status),
		normalized.CreatedAt,
		normalized.ProcessingAt,
		normalized.CompletedAt,
		normalized.FailedAt,
		normalized.Error,
		string(payload),
	)
	if err != nil {
		return errs.Storage(err, "upsert record")
	}
	return nil
}

func (s *RecordStore) Get(ctx context.Context, id string) (record.Record, bool, error) {
	trimmedID, err := requireID(id)
	if err != nil {
		return record.Record{}, false, err
	}

	row := s.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM `+quote(s.table)+` WHERE id = $1`, trimmedID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return record.Record{}, false, nil
		}
		return record.Record{}, false, errs.Storage(err, "query record by id")
	}
	return rec, true, nil
}

func (s *RecordStore) Scan(ctx context.Context, limit int) ([]record.Record, error) {
	if limit <= 0 {
		return []record.Record{}, nil
	}

	rows, err := s.pool.Query(ctx, `SELECT `+selectColumns+` FROM `+quote(s.table)+` LIMIT $1`, limit)
	if err != nil {
		return nil, errs.Storage(err, "scan records")
	}
	defer rows.Close()

	items := make([]record.Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errs.Storage(err, "decode record")
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage(err, "scan records")
	}
	return items, nil
}

// Update applies fields in a single UPDATE ... RETURNING statement. Payload
// attributes are merged with the JSONB || operator so unnamed keys survive.
func (s *RecordStore) Update(ctx context.Context, id string, fields record.Fields) (record.Record, error) {
	trimmedID, err := requireID(id)
	if err != nil {
		return record.Record{}, err
	}
	columns, attrs, err := fields.Split()
	if err != nil {
		return record.Record{}, err
	}

	query, args, err := buildUpdate(s.table, trimmedID, columns, attrs)
	if err != nil {
		return record.Record{}, err
	}

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return record.Record{}, errs.NotFound(fmt.Sprintf("record %q not found", trimmedID))
		}
		return record.Record{}, errs.Storage(err, "update record")
	}
	return rec, nil
}

func (s *RecordStore) Delete(ctx context.Context, id string) error {
	trimmedID, err := requireID(id)
	if err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM `+quote(s.table)+` WHERE id = $1`, trimmedID); err != nil {
		return errs.Storage(err, "delete record")
	}
	return nil
}

// buildUpdate renders the partial update for one id. Column names come from
// record.Fields.Split, so only known columns are ever interpolated.
func buildUpdate(table string, id string, columns record.Columns, attrs record.Attributes) (string, []any, error) {
	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)

	sets := make([]string, 0, len(names)+1)
	args := make([]any, 0, len(names)+2)
	for _, name := range names {
		args = append(args, columns[name])
		sets = append(sets, fmt.Sprintf("%s = $%d", quote(name), len(args)))
	}

	if len(attrs) > 0 {
		raw, err := json.Marshal(map[string]any(attrs))
		if err != nil {
			return "", nil, errs.Wrap(err, "encode payload attributes")
		}
		args = append(args, string(raw))
		sets = append(sets, fmt.Sprintf("payload = payload || $%d::jsonb", len(args)))
	}
	if len(sets) == 0 {
		return "", nil, errs.Validation("update requires at least one field")
	}

	args = append(args, id)
	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = $%d RETURNING %s",
		quote(table), strings.Join(sets, ", "), len(args), selectColumns,
	)
	return query, args, nil
}

func scanRecord(row pgx.Row) (record.Record, error) {
	var (
		rec     record.Record
		kind    string
		status  string
		payload []byte
	)
	if err := row.Scan(
		&rec.ID,
		&kind,
		&status,
		&rec.CreatedAt,
		&rec.ProcessingAt,
		&rec.CompletedAt,
		&rec.FailedAt,
		&rec.Error,
		&payload,
	); err != nil {
		return record.Record{}, err
	}

	decoded, err := record.DecodePayload(payload)
	if err != nil {
		return record.Record{}, err
	}
	rec.Kind = record.Kind(kind)
	rec.Status = record.Status(status)
	rec.Payload = decoded
	return rec, nil
}

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func requireID(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", errs.Validation("record id is required")
	}
	return trimmed, nil
}
