package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"eventtrack/internal/bootstrap/logging"
	"eventtrack/internal/domain/notify"
	"eventtrack/internal/domain/record"
	"eventtrack/internal/errs"
	"eventtrack/internal/ports"
	"eventtrack/internal/usecase/lifecycle"
)

const (
	StatusOK    = "ok"
	StatusError = "error"

	defaultSubject     = "No Subject"
	unknownContentType = "unknown"
)

// Invocation identifies one handling of one inbound event. ID seeds the ids
// of the records it creates; Origin names the transport for logs.
type Invocation struct {
	ID     string
	Origin string
}

func NewInvocation(origin string) Invocation {
	return Invocation{ID: uuid.NewString(), Origin: origin}
}

// Result is the transport-independent outcome of an invocation.
type Result struct {
	Status    string         `json:"status"`
	RecordID  string         `json:"record_id,omitempty"`
	Message   string         `json:"message,omitempty"`
	Result    map[string]any `json:"result,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Processed int            `json:"processed,omitempty"`
	Failed    int            `json:"failed,omitempty"`
}

type Service struct {
	jobs          *lifecycle.Lifecycle
	notifications *lifecycle.Lifecycle
	inspector     ports.ObjectInspector
	dispatcher    ports.Dispatcher
}

// NewService wires the ingest paths. jobs tracks storage and direct processing
// records; notifications tracks pub/sub and API notification records.
func NewService(
	jobs *lifecycle.Lifecycle,
	notifications *lifecycle.Lifecycle,
	inspector ports.ObjectInspector,
	dispatcher ports.Dispatcher,
) *Service {
	return &Service{
		jobs:          jobs,
		notifications: notifications,
		inspector:     inspector,
		dispatcher:    dispatcher,
	}
}

// Handle classifies raw and routes it to the matching path.
func (s *Service) Handle(ctx context.Context, inv Invocation, raw []byte) (Result, error) {
	logCtx := logging.WithInvocation(ctx, inv.ID, inv.Origin)
	logging.Debug(logCtx, "event received", slog.String("event", string(raw)))

	source, env, err := classify(raw)
	if err != nil {
		logging.Warn(logCtx, "event rejected", slog.Any("error", errs.Loggable(err)))
		return errorResult("", err, "Unknown event type"), err
	}

	switch source {
	case sourceBatch:
		return s.HandleBatch(ctx, inv, env.Records)
	case SourceDirectNotify:
		return s.SendNotification(ctx, inv.orRequestID(env.RequestContext.RequestID), env.DecodeBody())
	default:
		return s.ProcessData(ctx, inv.orRequestID(env.RequestContext.RequestID), env.DecodeBody())
	}
}

// HandleBatch processes every record in order. A failing record does not stop
// the rest; all failures are joined and returned once the batch is done.
func (s *Service) HandleBatch(ctx context.Context, inv Invocation, records []json.RawMessage) (Result, error) {
	logCtx := logging.WithInvocation(ctx, inv.ID, inv.Origin)

	var (
		failures []error
		sources  = map[Source]struct{}{}
	)
	for index, raw := range records {
		source := classifyRecord(raw)
		sources[source] = struct{}{}

		var err error
		switch source {
		case SourceStorageBatch:
			var rec StorageRecord
			if err = json.Unmarshal(raw, &rec); err != nil {
				err = errs.E(errs.KindValidation, "malformed storage record", err)
				break
			}
			err = s.processStorage(logCtx, fmt.Sprintf("%s-%d", inv.ID, index), rec)
		case SourcePubSubBatch:
			var rec PubSubRecord
			if err = json.Unmarshal(raw, &rec); err != nil {
				err = errs.E(errs.KindValidation, "malformed pub/sub record", err)
				break
			}
			err = s.processPubSub(logCtx, rec)
		default:
			err = errs.Unrecognized("Unknown event source")
		}

		if err != nil {
			logging.Error(logCtx, "batch record failed",
				slog.Int("index", index),
				slog.Any("error", errs.Loggable(err)),
			)
			failures = append(failures, errs.Wrapf(err, "batch record %d", index))
		}
	}

	result := Result{
		Status:    StatusOK,
		Message:   batchMessage(sources),
		Processed: len(records) - len(failures),
		Failed:    len(failures),
	}
	if len(failures) > 0 {
		result.Status = StatusError
		result.Message = "Batch processed with failures"
		return result, errors.Join(failures...)
	}
	logging.Info(logCtx, "batch processed", slog.Int("records", len(records)))
	return result, nil
}

// processStorage records one object-store notification and completes it with
// the object's size and content type.
func (s *Service) processStorage(ctx context.Context, id string, event StorageRecord) error {
	bucket := event.S3.Bucket.Name
	key := event.S3.Object.Key
	if strings.TrimSpace(bucket) == "" || strings.TrimSpace(key) == "" {
		return errs.Validation("storage record requires bucket name and object key")
	}

	ctx = logging.WithAttrs(ctx,
		slog.String("record_id", id),
		slog.String("kind", string(record.KindStorageProcessing)),
	)
	logging.Info(ctx, "processing storage event",
		slog.String("event_name", event.EventName),
		slog.String("bucket", bucket),
		slog.String("key", key),
	)

	if _, err := s.jobs.Begin(ctx, record.Record{
		ID:     id,
		Kind:   record.KindStorageProcessing,
		Status: record.StatusProcessing,
		Payload: map[string]any{
			"bucket":      bucket,
			"key":         key,
			"event_name":  event.EventName,
			"object_size": event.S3.Object.Size,
		},
	}); err != nil {
		return err
	}

	meta, err := s.inspector.HeadObject(ctx, bucket, key)
	if err != nil {
		return s.fail(ctx, s.jobs, id, errs.Action(err, fmt.Sprintf("head object %s/%s", bucket, key)))
	}

	contentType := meta.ContentType
	if contentType == "" {
		contentType = unknownContentType
	}
	if _, err := s.jobs.Complete(ctx, id, record.Fields{
		"file_size":    meta.Size,
		"content_type": contentType,
	}); err != nil {
		return err
	}
	return nil
}

// processPubSub records one pub/sub message. Messages mentioning URGENT are flagged.
func (s *Service) processPubSub(ctx context.Context, event PubSubRecord) error {
	msg := event.Sns
	id := strings.TrimSpace(msg.MessageID)
	if id == "" {
		return errs.Validation("pub/sub record requires a message id")
	}
	subject := msg.Subject
	if subject == "" {
		subject = defaultSubject
	}

	ctx = logging.WithAttrs(ctx,
		slog.String("record_id", id),
		slog.String("kind", string(record.KindPubSubNotification)),
	)
	logging.Info(ctx, "processing pub/sub message", slog.String("topic", msg.TopicArn))

	if _, err := s.notifications.Begin(ctx, record.Record{
		ID:     id,
		Kind:   record.KindPubSubNotification,
		Status: record.StatusProcessing,
		Payload: map[string]any{
			"topic":   msg.TopicArn,
			"subject": subject,
			"message": msg.Message,
			"source":  "pubsub",
		},
	}); err != nil {
		return err
	}

	result := record.Fields{}
	if IsUrgent(msg.Message) {
		logging.Warn(ctx, "urgent notification detected")
		result["urgent"] = true
	}
	if _, err := s.notifications.Complete(ctx, id, result); err != nil {
		return err
	}
	return nil
}

// ProcessData records a direct processing request and completes it with the
// summary of its data field.
func (s *Service) ProcessData(ctx context.Context, inv Invocation, body map[string]any) (Result, error) {
	inv = inv.orRequestID("")
	ctx = logging.WithAttrs(logging.WithInvocation(ctx, inv.ID, inv.Origin),
		slog.String("record_id", inv.ID),
		slog.String("kind", string(record.KindDirectProcessing)),
	)

	raw, ok := body["data"]
	if !ok {
		err := errs.Validation(`Request body must contain "data" field`)
		return errorResult("", err, ""), err
	}
	data, err := record.NormalizeValue(raw)
	if err != nil {
		return errorResult("", err, "Invalid data field"), err
	}
	metadata, err := record.NormalizeValue(body["metadata"])
	if err != nil {
		return errorResult("", err, "Invalid metadata field"), err
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	if _, err := s.jobs.Begin(ctx, record.Record{
		ID:      inv.ID,
		Kind:    record.KindDirectProcessing,
		Status:  record.StatusQueued,
		Payload: map[string]any{"data": data, "metadata": metadata},
	}); err != nil {
		logging.Error(ctx, "create processing record failed", slog.Any("error", errs.Loggable(err)))
		return errorResult(inv.ID, err, "Failed to process data"), err
	}

	summary := record.ParseData(data).Summarize(s.jobs.Now())
	if _, err := s.jobs.Complete(ctx, inv.ID, record.Fields{"result": summary}); err != nil {
		logging.Error(ctx, "complete processing record failed", slog.Any("error", errs.Loggable(err)))
		return errorResult(inv.ID, err, "Failed to process data"), err
	}

	logging.Info(ctx, "data processed")
	return Result{
		Status:   StatusOK,
		RecordID: inv.ID,
		Message:  "Data processed successfully",
		Result:   summary,
	}, nil
}

// SendNotification validates body, dispatches it and records the outcome.
// Invalid requests are rejected before any record is written or provider called.
func (s *Service) SendNotification(ctx context.Context, inv Invocation, body map[string]any) (Result, error) {
	inv = inv.orRequestID("")
	ctx = logging.WithAttrs(logging.WithInvocation(ctx, inv.ID, inv.Origin),
		slog.String("record_id", inv.ID),
		slog.String("kind", string(record.KindAPINotification)),
	)

	msg, err := notify.ParseMessage(body)
	if err != nil {
		return errorResult("", err, ""), err
	}

	if _, err := s.notifications.Begin(ctx, record.Record{
		ID:     inv.ID,
		Kind:   record.KindAPINotification,
		Status: record.StatusQueued,
		Payload: map[string]any{
			"recipient": msg.Recipient,
			"subject":   msg.Subject,
			"message":   msg.Body,
			"channel":   string(msg.Channel),
			"source":    "api",
		},
	}); err != nil {
		logging.Error(ctx, "create notification record failed", slog.Any("error", errs.Loggable(err)))
		return errorResult(inv.ID, err, "Failed to send notification"), err
	}

	delivery, err := s.dispatcher.Dispatch(ctx, msg)
	if err != nil {
		cause := s.fail(ctx, s.notifications, inv.ID, errs.Action(err, "dispatch "+string(msg.Channel)+" notification"))
		result := errorResult(inv.ID, cause, "Failed to send notification")
		result.Details = map[string]any{"success": false}
		return result, cause
	}

	if _, err := s.notifications.Complete(ctx, inv.ID, record.Fields{
		"message_id": delivery.MessageID,
		"provider":   delivery.Provider,
	}); err != nil {
		logging.Error(ctx, "complete notification record failed", slog.Any("error", errs.Loggable(err)))
		return errorResult(inv.ID, err, "Failed to send notification"), err
	}

	logging.Info(ctx, "notification sent",
		slog.String("channel", string(msg.Channel)),
		slog.String("message_id", delivery.MessageID),
	)
	return Result{
		Status:   StatusOK,
		RecordID: inv.ID,
		Message:  "Notification sent successfully",
		Details:  map[string]any{"success": true, "message_id": delivery.MessageID},
	}, nil
}

// fail writes the failed state and returns cause. A failed write is logged;
// cause is still what the caller sees.
func (s *Service) fail(ctx context.Context, lc *lifecycle.Lifecycle, id string, cause error) error {
	if _, err := lc.Fail(ctx, id, cause); err != nil {
		logging.Error(ctx, "record failure state not written",
			slog.Any("error", errs.Loggable(err)),
			slog.Any("cause", errs.Loggable(cause)),
		)
	}
	logging.Error(ctx, "action failed", slog.Any("error", errs.Loggable(cause)))
	return cause
}

// IsUrgent reports whether a pub/sub message body asks for urgent handling.
func IsUrgent(message string) bool {
	return strings.Contains(strings.ToUpper(message), "URGENT")
}

func (inv Invocation) orRequestID(requestID string) Invocation {
	if strings.TrimSpace(inv.ID) != "" {
		return inv
	}
	if id := strings.TrimSpace(requestID); id != "" {
		inv.ID = id
		return inv
	}
	inv.ID = uuid.NewString()
	return inv
}

func errorResult(recordID string, err error, fallback string) Result {
	return Result{
		Status:   StatusError,
		RecordID: recordID,
		Message:  errs.Public(err, fallback),
	}
}

func batchMessage(sources map[Source]struct{}) string {
	if len(sources) == 1 {
		if _, ok := sources[SourceStorageBatch]; ok {
			return "Storage event processed successfully"
		}
		if _, ok := sources[SourcePubSubBatch]; ok {
			return "Pub/sub events processed successfully"
		}
	}
	return "Events processed successfully"
}
