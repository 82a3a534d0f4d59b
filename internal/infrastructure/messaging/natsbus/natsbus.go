package natsbus

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"eventtrack/internal/bootstrap/logging"
	"eventtrack/internal/errs"
)

const flushTimeout = 5 * time.Second

// Connect opens a connection that keeps reconnecting until closed.
func Connect(ctx context.Context, url string, name string) (*nats.Conn, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "messaging.nats"))

	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn(logCtx, "nats disconnected", slog.Any("error", errs.Loggable(err)))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logging.Info(logCtx, "nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, errs.Wrapf(err, "connect nats %q", url)
	}

	logging.Info(logCtx, "nats connected", slog.String("url", conn.ConnectedUrl()))
	return conn, nil
}
