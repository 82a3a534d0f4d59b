package errs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"testing"
)

func TestKindOfWalksWrappedChain(t *testing.T) {
	base := NotFound("record not found")
	wrapped := Wrapf(Wrap(base, "get record"), "handle %s", "job-1")

	if got := KindOf(wrapped); got != KindNotFound {
		t.Fatalf("KindOf() = %v, want %v", got, KindNotFound)
	}
	if !errors.Is(wrapped, ErrNotFound) {
		t.Fatalf("errors.Is(wrapped, ErrNotFound) = false")
	}
	if errors.Is(wrapped, ErrValidation) {
		t.Fatalf("errors.Is(wrapped, ErrValidation) = true")
	}
}

func TestKindOfUnclassified(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindUnknown {
		t.Fatalf("KindOf() = %v", got)
	}
	if got := KindOf(nil); got != KindUnknown {
		t.Fatalf("KindOf(nil) = %v", got)
	}
}

func TestPublicHidesBackendText(t *testing.T) {
	storage := Storage(errors.New("dial tcp 10.0.0.3:5432: connection refused"), "update record")
	if got := Public(storage, "Internal server error"); got != "Internal server error" {
		t.Fatalf("Public(storage) = %q", got)
	}

	validation := Validation(`Request body must contain "data" field`)
	if got := Public(fmt.Errorf("wrap: %w", validation), "fallback"); got != `Request body must contain "data" field` {
		t.Fatalf("Public(validation) = %q", got)
	}

	if got := Public(errors.New("raw"), "fallback"); got != "fallback" {
		t.Fatalf("Public(raw) = %q", got)
	}
}

func TestStorageAndActionKeepNil(t *testing.T) {
	if Storage(nil, "x") != nil {
		t.Fatalf("Storage(nil) should be nil")
	}
	if Action(nil, "x") != nil {
		t.Fatalf("Action(nil) should be nil")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:         http.StatusBadRequest,
		KindUnrecognizedEvent:  http.StatusBadRequest,
		KindNotFound:           http.StatusNotFound,
		KindStorageUnavailable: http.StatusServiceUnavailable,
		KindActionFailure:      http.StatusInternalServerError,
		KindUnknown:            http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := kind.HTTPStatus(); got != want {
			t.Fatalf("%v.HTTPStatus() = %d, want %d", kind, got, want)
		}
	}
}

func TestErrorChainStrings(t *testing.T) {
	err := Wrap(Action(errors.New("head object: 403"), "inspect object"), "process record 2")
	chain := ErrorChainStrings(err)
	if len(chain) != 4 {
		t.Fatalf("ErrorChainStrings() len = %d, chain = %v", len(chain), chain)
	}
	if chain[3] != "head object: 403" {
		t.Fatalf("innermost = %q", chain[3])
	}
}

func TestLoggableIncludesStackForClassifiedBackendErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := Wrap(Storage(errors.New("database is locked"), "update record"), "complete job-1")
	logger.Error("update failed", slog.Any("err", Loggable(err)))

	var entry struct {
		Err struct {
			Message string   `json:"message"`
			Kind    string   `json:"kind"`
			Stack   string   `json:"stack"`
			Chain   []string `json:"chain"`
		} `json:"err"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry.Err.Kind != "storage_unavailable" {
		t.Fatalf("kind = %q", entry.Err.Kind)
	}
	if !strings.Contains(entry.Err.Stack, "errs.Storage") {
		t.Fatalf("stack = %q, want it to name errs.Storage", entry.Err.Stack)
	}
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("errors.Is(err, ErrStorageUnavailable) = false")
	}
}

func TestWithStackCapturesOnce(t *testing.T) {
	first := WithStack(errors.New("boom"))
	if again := WithStack(Wrap(first, "retry")); !errors.Is(again, first) || len(ErrorChainStrings(again)) != 3 {
		t.Fatalf("WithStack() rewrapped a stacked error: %v", ErrorChainStrings(again))
	}
}
