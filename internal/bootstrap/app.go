package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nats-io/nats.go"

	"eventtrack/internal/bootstrap/config"
	"eventtrack/internal/bootstrap/logging"
	"eventtrack/internal/errs"
	"eventtrack/internal/infrastructure/objectstore"
	"eventtrack/internal/ports"
	"eventtrack/internal/usecase/ingest"
)

// Migrator is implemented by every record store backend.
type Migrator interface {
	Table() string
	Migrate(ctx context.Context) error
}

// Stores holds the two record tables and the backends that own their schema.
type Stores struct {
	Tables    ports.RecordTables
	migrators []Migrator
}

type App struct {
	Config  config.Config
	Stores  *Stores
	Objects *objectstore.Local
	Ingest  *ingest.Service
	// NATS is nil when nats.url is empty.
	NATS *nats.Conn
}

// Table resolves a record table by its CLI and API name.
func (a *App) Table(name string) (ports.RecordStore, bool) {
	switch name {
	case "jobs":
		return a.Stores.Tables.Jobs, true
	case "notifications":
		return a.Stores.Tables.Notifications, true
	default:
		return nil, false
	}
}

func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration")

	for _, m := range a.Stores.migrators {
		if err := m.Migrate(ctx); err != nil {
			return errs.Wrapf(err, "migrate table %q", m.Table())
		}
		logging.Info(logCtx, "table migrated", slog.String("table", m.Table()))
	}

	logging.Info(logCtx, "schema migration completed")
	return nil
}
