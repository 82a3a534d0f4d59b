package natsbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"eventtrack/internal/bootstrap/logging"
	"eventtrack/internal/errs"
)

// Handler processes one inbound message. messageID is the publisher's
// Nats-Msg-Id header when present, otherwise a generated id.
type Handler func(ctx context.Context, messageID string, data []byte) (any, error)

// Reply is sent back on request/reply subjects.
type Reply struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Result any    `json:"result,omitempty"`
}

// Subscriber feeds a queue group subscription into a Handler. Messages are
// handled one at a time in delivery order.
type Subscriber struct {
	conn    *nats.Conn
	subject string
	queue   string
	handle  Handler

	mu  sync.Mutex
	sub *nats.Subscription
	ctx context.Context
}

func NewSubscriber(conn *nats.Conn, subject string, queue string, handle Handler) *Subscriber {
	return &Subscriber{
		conn:    conn,
		subject: subject,
		queue:   queue,
		handle:  handle,
	}
}

// Start subscribes; ctx is the base context for every handled message.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil {
		return nil
	}
	s.ctx = logging.WithAttrs(ctx,
		slog.String("component", "messaging.nats.subscriber"),
		slog.String("subject", s.subject),
	)

	sub, err := s.conn.QueueSubscribe(s.subject, s.queue, s.receive)
	if err != nil {
		return errs.Wrapf(err, "subscribe %q", s.subject)
	}
	s.sub = sub
	logging.Info(s.ctx, "nats subscription started", slog.String("queue", s.queue))
	return nil
}

// Stop drains the subscription so in-flight messages finish.
func (s *Subscriber) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub == nil {
		return nil
	}
	err := s.sub.Drain()
	s.sub = nil
	return errs.Wrap(err, "drain subscription")
}

func (s *Subscriber) receive(msg *nats.Msg) {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	reply := s.process(ctx, msg)
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(reply)
	if err != nil {
		logging.Error(ctx, "encode reply failed", slog.Any("error", errs.Loggable(err)))
		return
	}
	if err := msg.Respond(data); err != nil {
		logging.Warn(ctx, "reply failed", slog.Any("error", errs.Loggable(err)))
	}
}

func (s *Subscriber) process(ctx context.Context, msg *nats.Msg) Reply {
	messageID := MessageID(msg)
	result, err := s.handle(ctx, messageID, msg.Data)
	if err != nil {
		logging.Error(ctx, "message handling failed",
			slog.String("message_id", messageID),
			slog.Any("error", errs.Loggable(err)),
		)
		return Reply{OK: false, Error: errs.Public(err, "Internal server error"), Result: result}
	}
	return Reply{OK: true, Result: result}
}

// MessageID returns the Nats-Msg-Id header or a fresh id.
func MessageID(msg *nats.Msg) string {
	if msg.Header != nil {
		if id := msg.Header.Get(nats.MsgIdHdr); id != "" {
			return id
		}
	}
	return uuid.NewString()
}
