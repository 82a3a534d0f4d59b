package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eventtrack/internal/bootstrap/logging"
	"eventtrack/internal/domain/record"
	"eventtrack/internal/errs"
	"eventtrack/internal/ports"
)

// ErrIllegalTransition is the cause of every rejected status change.
var ErrIllegalTransition = errors.New("illegal lifecycle transition")

type Options struct {
	// Strict reads the current status before each Advance and rejects moves the
	// state machine does not allow. Without it the caller is trusted.
	Strict bool
	Now    func() time.Time
}

// Lifecycle drives records through queued -> processing -> completed|failed and
// stamps the timestamp that belongs to each state.
type Lifecycle struct {
	store  ports.RecordStore
	now    func() time.Time
	strict bool
}

func New(store ports.RecordStore, opts Options) *Lifecycle {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Lifecycle{store: store, now: now, strict: opts.Strict}
}

// Now returns the lifecycle clock formatted as a record timestamp.
func (l *Lifecycle) Now() string {
	return record.Timestamp(l.now())
}

// Begin stamps created_at and persists rec in its initial status. A record
// already stored under the same id is overwritten in both modes; the strict
// guard covers Advance only.
func (l *Lifecycle) Begin(ctx context.Context, rec record.Record) (record.Record, error) {
	if !rec.Status.Initial() {
		return record.Record{}, errs.E(
			errs.KindValidation,
			fmt.Sprintf("record cannot start in status %q", rec.Status),
			ErrIllegalTransition,
		)
	}

	created := rec.Clone()
	created.CreatedAt = l.Now()
	if created.Status == record.StatusProcessing {
		created.ProcessingAt = created.CreatedAt
	}

	if err := l.store.Create(ctx, created); err != nil {
		return record.Record{}, err
	}

	logging.Debug(ctx, "record created",
		slog.String("record_id", created.ID),
		slog.String("kind", string(created.Kind)),
		slog.String("status", string(created.Status)),
	)
	return created, nil
}

// Advance moves id to status, stamping the status timestamp and writing extra
// in the same partial update. extra cannot override status or its timestamp.
func (l *Lifecycle) Advance(ctx context.Context, id string, status record.Status, extra record.Fields) (record.Record, error) {
	if !status.Valid() {
		return record.Record{}, errs.Validation(fmt.Sprintf("unknown record status %q", status))
	}

	if l.strict {
		current, found, err := l.store.Get(ctx, id)
		if err != nil {
			return record.Record{}, err
		}
		if !found {
			return record.Record{}, errs.NotFound(fmt.Sprintf("record %q not found", id))
		}
		if !record.CanTransition(current.Status, status) {
			return record.Record{}, errs.E(
				errs.KindValidation,
				fmt.Sprintf("record %q cannot move from %q to %q", id, current.Status, status),
				ErrIllegalTransition,
			)
		}
	}

	fields := extra.Merge(record.Fields{record.FieldStatus: status})
	if ts := record.TimestampField(status); ts != "" {
		fields[ts] = l.Now()
	}

	updated, err := l.store.Update(ctx, id, fields)
	if err != nil {
		return record.Record{}, err
	}

	logging.Debug(ctx, "record advanced",
		slog.String("record_id", id),
		slog.String("status", string(status)),
	)
	return updated, nil
}

// Complete advances id to completed with the action's result fields.
func (l *Lifecycle) Complete(ctx context.Context, id string, result record.Fields) (record.Record, error) {
	return l.Advance(ctx, id, record.StatusCompleted, result)
}

// Fail advances id to failed, recording cause as the error message.
func (l *Lifecycle) Fail(ctx context.Context, id string, cause error) (record.Record, error) {
	message := "unknown error"
	if cause != nil {
		message = cause.Error()
	}
	return l.Advance(ctx, id, record.StatusFailed, record.Fields{record.FieldError: message})
}
