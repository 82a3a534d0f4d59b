package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"eventtrack/internal/bootstrap/logging"
	"eventtrack/internal/domain/record"
	"eventtrack/internal/errs"
	"eventtrack/internal/ports"
	"eventtrack/internal/usecase/ingest"
)

const (
	RequestIDHeader = "X-Request-Id"
	maxBodyBytes    = 1 << 20
)

// Ingestor is the part of the ingest service the API drives.
type Ingestor interface {
	Handle(ctx context.Context, inv ingest.Invocation, raw []byte) (ingest.Result, error)
	ProcessData(ctx context.Context, inv ingest.Invocation, body map[string]any) (ingest.Result, error)
	SendNotification(ctx context.Context, inv ingest.Invocation, body map[string]any) (ingest.Result, error)
}

// HealthInfo is reported verbatim by GET /health.
type HealthInfo struct {
	Service     string
	Environment string
	Version     string
}

type handler struct {
	ingest Ingestor
	health HealthInfo
	now    func() time.Time
}

// NewRouter builds the HTTP surface: direct processing and notification
// requests, raw event envelopes, record reads and the health check.
func NewRouter(ctx context.Context, svc Ingestor, tables ports.RecordTables, health HealthInfo) http.Handler {
	h := &handler{ingest: svc, health: health, now: time.Now}
	baseCtx := logging.WithAttrs(ctx, slog.String("component", "transport.http"))

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(withLogContext(baseCtx))
	r.Use(CORS)

	r.Get("/health", h.healthCheck)
	r.Post("/process", h.processData)
	r.Post("/notifications", h.sendNotification)
	r.Post("/events", h.ingestEvent)

	r.Get("/jobs", h.listRecords(tables.Jobs))
	r.Get("/jobs/{id}", h.getRecord(tables.Jobs))
	r.Get("/notifications", h.listRecords(tables.Notifications))
	r.Get("/notifications/{id}", h.getRecord(tables.Notifications))
	return r
}

func (h *handler) healthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"timestamp":   record.Timestamp(h.now()),
		"environment": h.health.Environment,
		"version":     h.health.Version,
		"service":     h.health.Service,
	})
}

func (h *handler) processData(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	result, err := h.ingest.ProcessData(r.Context(), invocation(r), ingest.DirectRequest{Body: body}.DecodeBody())
	h.respond(w, r, result, err, "Failed to process data")
}

func (h *handler) sendNotification(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	result, err := h.ingest.SendNotification(r.Context(), invocation(r), ingest.DirectRequest{Body: body}.DecodeBody())
	h.respond(w, r, result, err, "Failed to send notification")
}

func (h *handler) ingestEvent(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	result, err := h.ingest.Handle(r.Context(), invocation(r), body)
	h.respond(w, r, result, err, "Internal server error")
}

func (h *handler) listRecords(store ports.RecordStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				h.fail(w, r, errs.Validation("limit must be an integer"), "")
				return
			}
			limit = parsed
		}

		items, err := store.Scan(r.Context(), record.ClampScanLimit(limit))
		if err != nil {
			h.fail(w, r, err, "Failed to list records")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
	}
}

func (h *handler) getRecord(store ports.RecordStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		rec, found, err := store.Get(r.Context(), id)
		if err != nil {
			h.fail(w, r, err, "Failed to get record")
			return
		}
		if !found {
			h.fail(w, r, errs.NotFound(fmt.Sprintf("record %q not found", id)), "")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

type errorResponse struct {
	Error     string         `json:"error"`
	RecordID  string         `json:"record_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Processed int            `json:"processed,omitempty"`
	Failed    int            `json:"failed,omitempty"`
}

func (h *handler) respond(w http.ResponseWriter, r *http.Request, result ingest.Result, err error, fallback string) {
	if err == nil {
		writeJSON(w, http.StatusOK, result)
		return
	}

	message := result.Message
	if message == "" {
		message = errs.Public(err, fallback)
	}
	logFailure(r, err)
	writeJSON(w, errs.KindOf(err).HTTPStatus(), errorResponse{
		Error:     message,
		RecordID:  result.RecordID,
		Details:   result.Details,
		Processed: result.Processed,
		Failed:    result.Failed,
	})
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	if fallback == "" {
		fallback = "Internal server error"
	}
	logFailure(r, err)
	writeJSON(w, errs.KindOf(err).HTTPStatus(), errorResponse{Error: errs.Public(err, fallback)})
}

func logFailure(r *http.Request, err error) {
	kind := errs.KindOf(err)
	attrs := []slog.Attr{
		slog.String("path", r.URL.Path),
		slog.Int("status", kind.HTTPStatus()),
		slog.Any("error", errs.Loggable(err)),
	}
	if kind.HTTPStatus() >= http.StatusInternalServerError {
		logging.Error(r.Context(), "request failed", attrs...)
		return
	}
	logging.Warn(r.Context(), "request rejected", attrs...)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "Request body too large"})
		return nil, false
	}
	return body, true
}

func invocation(r *http.Request) ingest.Invocation {
	return ingest.Invocation{ID: RequestID(r.Context()), Origin: "http"}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type requestIDKey struct{}

// RequestID returns the id assigned to the current request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestID keeps a caller-supplied X-Request-Id or assigns a uuid, and echoes
// it on the response. chi's middleware.RequestID mints host-prefixed counters
// and never sets the response header.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// withLogContext carries the server's logger and attrs into request contexts.
func withLogContext(base context.Context) func(http.Handler) http.Handler {
	logger := logging.Logger(base)
	attrs := logging.Attrs(base)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logging.WithLogger(r.Context(), logger)
			ctx = logging.WithAttrs(ctx, attrs...)
			ctx = logging.WithAttrs(ctx, slog.String("request_id", RequestID(ctx)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
