package notifier

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"eventtrack/internal/bootstrap/logging"
	"eventtrack/internal/domain/notify"
	"eventtrack/internal/ports"
)

// LogDispatcher accepts every notification and only logs it. It is the
// dispatcher used when no message broker is configured.
type LogDispatcher struct{}

var _ ports.Dispatcher = LogDispatcher{}

func (LogDispatcher) Dispatch(ctx context.Context, msg notify.Message) (ports.Delivery, error) {
	id := uuid.NewString()
	logging.Info(ctx, "notification dispatched to log",
		slog.String("component", "notifier.log"),
		slog.String("message_id", id),
		slog.String("channel", string(msg.Channel)),
		slog.String("recipient", msg.Recipient),
		slog.String("subject", msg.Subject),
	)
	return ports.Delivery{MessageID: id, Provider: "log"}, nil
}
