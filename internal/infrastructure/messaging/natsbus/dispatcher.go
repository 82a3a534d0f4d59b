package natsbus

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"eventtrack/internal/domain/notify"
	"eventtrack/internal/errs"
	"eventtrack/internal/ports"
)

const providerName = "nats"

// Dispatcher publishes notifications to <prefix>.<channel> for a downstream
// email or SMS sender to pick up.
type Dispatcher struct {
	conn   *nats.Conn
	prefix string
}

var _ ports.Dispatcher = (*Dispatcher)(nil)

func NewDispatcher(conn *nats.Conn, prefix string) *Dispatcher {
	return &Dispatcher{conn: conn, prefix: strings.Trim(prefix, ".")}
}

type outboundMessage struct {
	ID        string `json:"id"`
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
}

// Subject returns the subject a channel's notifications are published on.
func (d *Dispatcher) Subject(channel notify.Channel) string {
	if d.prefix == "" {
		return string(channel)
	}
	return d.prefix + "." + string(channel)
}

// Dispatch publishes msg and waits for the server to acknowledge the flush.
func (d *Dispatcher) Dispatch(ctx context.Context, msg notify.Message) (ports.Delivery, error) {
	out, err := buildMessage(d.Subject(msg.Channel), uuid.NewString(), msg)
	if err != nil {
		return ports.Delivery{}, err
	}

	if err := d.conn.PublishMsg(out); err != nil {
		return ports.Delivery{}, errs.Wrapf(err, "publish %q", out.Subject)
	}

	flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := d.conn.FlushWithContext(flushCtx); err != nil {
		return ports.Delivery{}, errs.Wrap(err, "flush nats connection")
	}

	return ports.Delivery{MessageID: out.Header.Get(nats.MsgIdHdr), Provider: providerName}, nil
}

func buildMessage(subject string, id string, msg notify.Message) (*nats.Msg, error) {
	data, err := json.Marshal(outboundMessage{
		ID:        id,
		Channel:   string(msg.Channel),
		Recipient: msg.Recipient,
		Subject:   msg.Subject,
		Message:   msg.Body,
	})
	if err != nil {
		return nil, errs.Wrap(err, "encode notification")
	}

	out := nats.NewMsg(subject)
	out.Header.Set(nats.MsgIdHdr, id)
	out.Data = data
	return out, nil
}
