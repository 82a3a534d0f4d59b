package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"eventtrack/internal/bootstrap"
	"eventtrack/internal/bootstrap/logging"
	"eventtrack/internal/errs"
	"eventtrack/internal/infrastructure/messaging/natsbus"
	"eventtrack/internal/infrastructure/objectstore"
	"eventtrack/internal/transport/httpapi"
	"eventtrack/internal/usecase/ingest"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and, when configured, the NATS and bucket watch event sources",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))

		migrate, _ := cmd.Flags().GetBool("migrate")
		if migrate {
			if err := app.InitSchema(ctx); err != nil {
				return errs.Wrap(err, "initialize schema")
			}
		}

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = app.Config.HTTP.Addr
		}

		server := &http.Server{
			Addr: addr,
			Handler: httpapi.NewRouter(ctx, app.Ingest, app.Stores.Tables, httpapi.HealthInfo{
				Service:     app.Config.App.Name,
				Environment: app.Config.App.Env,
				Version:     app.Config.App.Version,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		var sub subscription
		if app.NATS != nil {
			sub = natsbus.NewSubscriber(app.NATS, app.Config.NATS.Subject, app.Config.NATS.Queue, natsHandler(app.Ingest))
		}
		var watch watcher
		if len(app.Config.Storage.Watch) > 0 {
			watch = objectstore.NewWatcher(app.Objects, app.Config.Storage.Watch, watchSink(app.Ingest))
		}

		err := runServe(ctx, server, sub, watch)
		logging.Info(ctx, "serve stopped")
		return err
	}),
}

type subscription interface {
	Start(ctx context.Context) error
	Stop() error
}

type watcher interface {
	Run(ctx context.Context) error
}

// runServe starts sub before anything else, so a failed subscription returns
// with nothing left running. sub and watch may be nil.
func runServe(ctx context.Context, server *http.Server, sub subscription, watch watcher) error {
	if sub != nil {
		if err := sub.Start(ctx); err != nil {
			return errs.Wrap(err, "start nats subscriber")
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Info(gctx, "http server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errs.Wrap(err, "serve http")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errs.Wrap(server.Shutdown(shutdownCtx), "shutdown http server")
	})
	if sub != nil {
		g.Go(func() error {
			<-gctx.Done()
			return sub.Stop()
		})
	}
	if watch != nil {
		g.Go(func() error {
			return watch.Run(gctx)
		})
	}
	return g.Wait()
}

func natsHandler(svc *ingest.Service) natsbus.Handler {
	return func(ctx context.Context, messageID string, data []byte) (any, error) {
		return svc.Handle(ctx, ingest.Invocation{ID: messageID, Origin: "nats"}, data)
	}
}

func watchSink(svc *ingest.Service) objectstore.Sink {
	return func(ctx context.Context, event []byte) {
		inv := ingest.NewInvocation("watch")
		ctx = logging.WithInvocation(ctx, inv.ID, inv.Origin)
		result, err := svc.Handle(ctx, inv, event)
		if err != nil {
			logging.Error(ctx, "bucket event failed", slog.Any("err", errs.Loggable(err)))
			return
		}
		logging.Info(ctx, "bucket event processed", slog.Int("processed", result.Processed))
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (overrides http.addr)")
	serveCmd.Flags().Bool("migrate", false, "Create record tables before serving")
}
