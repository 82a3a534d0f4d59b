package bootstrap

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"

	"eventtrack/internal/bootstrap/config"
	"eventtrack/internal/bootstrap/database"
	"eventtrack/internal/bootstrap/logging"
	"eventtrack/internal/infrastructure/messaging/natsbus"
	"eventtrack/internal/infrastructure/notifier"
	"eventtrack/internal/infrastructure/objectstore"
	pgstore "eventtrack/internal/infrastructure/persistence/postgres"
	sqliterepo "eventtrack/internal/infrastructure/persistence/sqlite/repository"
	"eventtrack/internal/ports"
	"eventtrack/internal/usecase/ingest"
	"eventtrack/internal/usecase/lifecycle"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideStores),
	fx.Provide(provideTables),
	fx.Provide(provideObjectStore),
	fx.Provide(provideInspector),
	fx.Provide(provideNATS),
	fx.Provide(provideDispatcher),
	fx.Provide(provideIngest),
	fx.Provide(provideApp),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

// provideStores opens the configured backend and binds one store per table.
func provideStores(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*Stores, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	if cfg.Database.IsPostgres() {
		pool, err := database.OpenPool(logCtx, cfg.Database)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(_ context.Context) error {
				pool.Close()
				return nil
			},
		})

		jobs := pgstore.NewRecordStore(pool, cfg.Tables.Jobs)
		notifications := pgstore.NewRecordStore(pool, cfg.Tables.Notifications)
		return &Stores{
			Tables:    ports.RecordTables{Jobs: jobs, Notifications: notifications},
			migrators: []Migrator{jobs, notifications},
		}, nil
	}

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	jobs := sqliterepo.NewRecordStore(db, cfg.Tables.Jobs)
	notifications := sqliterepo.NewRecordStore(db, cfg.Tables.Notifications)
	return &Stores{
		Tables:    ports.RecordTables{Jobs: jobs, Notifications: notifications},
		migrators: []Migrator{jobs, notifications},
	}, nil
}

func provideTables(stores *Stores) ports.RecordTables {
	return stores.Tables
}

func provideObjectStore(cfg config.Config) *objectstore.Local {
	return objectstore.NewLocal(cfg.Storage.Root)
}

func provideInspector(store *objectstore.Local) ports.ObjectInspector {
	return store
}

// provideNATS returns a nil connection when nats.url is empty.
func provideNATS(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*nats.Conn, error) {
	if cfg.NATS.URL == "" {
		return nil, nil
	}

	conn, err := natsbus.Connect(ctx, cfg.NATS.URL, cfg.App.Name)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return conn.Drain()
		},
	})
	return conn, nil
}

func provideDispatcher(conn *nats.Conn, cfg config.Config) ports.Dispatcher {
	if conn == nil {
		return notifier.LogDispatcher{}
	}
	return natsbus.NewDispatcher(conn, cfg.NATS.NotifyPrefix)
}

func provideIngest(
	cfg config.Config,
	tables ports.RecordTables,
	inspector ports.ObjectInspector,
	dispatcher ports.Dispatcher,
) *ingest.Service {
	opts := lifecycle.Options{Strict: cfg.Lifecycle.Strict}
	return ingest.NewService(
		lifecycle.New(tables.Jobs, opts),
		lifecycle.New(tables.Notifications, opts),
		inspector,
		dispatcher,
	)
}

func provideApp(
	cfg config.Config,
	stores *Stores,
	objects *objectstore.Local,
	service *ingest.Service,
	conn *nats.Conn,
) *App {
	return &App{
		Config:  cfg,
		Stores:  stores,
		Objects: objects,
		Ingest:  service,
		NATS:    conn,
	}
}
