package record

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"eventtrack/internal/errs"
)

func TestApplyChangesOnlyNamedFields(t *testing.T) {
	base := Record{
		ID:        "job-1",
		Kind:      KindStorageProcessing,
		Status:    StatusProcessing,
		CreatedAt: "2026-10-14T09:00:00Z",
		Payload: map[string]any{
			"bucket": "uploads",
			"key":    "a.txt",
		},
	}

	got, err := Apply(base, Fields{
		FieldStatus:      StatusCompleted,
		FieldCompletedAt: "2026-10-14T09:00:01Z",
		"file_size":      42,
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	want := base.Clone()
	want.Status = StatusCompleted
	want.CompletedAt = "2026-10-14T09:00:01Z"
	want.Payload["file_size"] = int64(42)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Apply() = %#v, want %#v", got, want)
	}
	if _, ok := base.Payload["file_size"]; ok {
		t.Fatalf("Apply() mutated the input record")
	}
}

func TestSplitRejectsImmutableAndInvalidFields(t *testing.T) {
	cases := []Fields{
		{},
		{FieldID: "other"},
		{FieldCreatedAt: "2026-10-14T09:00:00Z"},
		{FieldStatus: "sent"},
		{FieldStatus: 3},
		{FieldKind: "user"},
		{FieldError: 12},
		{" padded": "x"},
		{"bad": make(chan int)},
	}
	for _, fields := range cases {
		if _, _, err := fields.Split(); !errors.Is(err, errs.ErrValidation) {
			t.Fatalf("Split(%v) error = %v, want validation failure", fields, err)
		}
	}
}

func TestNormalizeValueCanonicalizesNumbers(t *testing.T) {
	got, err := NormalizeValue(map[string]any{
		"int":      7,
		"uint":     uint16(3),
		"integral": 42.0,
		"fraction": 1.5,
		"nested":   []any{int32(1), "x", map[string]any{"n": json.Number("9")}},
		"strings":  []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("NormalizeValue() error = %v", err)
	}

	want := map[string]any{
		"int":      int64(7),
		"uint":     int64(3),
		"integral": int64(42),
		"fraction": 1.5,
		"nested":   []any{int64(1), "x", map[string]any{"n": int64(9)}},
		"strings":  []any{"a", "b"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeValue() = %#v, want %#v", got, want)
	}
}

func TestPayloadEncodingRoundTrip(t *testing.T) {
	payload := map[string]any{
		"size":     int64(42),
		"ratio":    0.25,
		"tags":     []any{"a", int64(2)},
		"metadata": map[string]any{"ok": true, "none": nil},
	}

	raw, err := EncodePayload(payload)
	if err != nil {
		t.Fatalf("EncodePayload() error = %v", err)
	}
	decoded, err := DecodePayload(raw)
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if !reflect.DeepEqual(decoded, payload) {
		t.Fatalf("DecodePayload() = %#v, want %#v", decoded, payload)
	}

	empty, err := DecodePayload(nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("DecodePayload(nil) = %v, %v", empty, err)
	}
	if _, err := DecodePayload([]byte(`[1,2]`)); err == nil {
		t.Fatalf("DecodePayload(array) expected error")
	}
}

func TestTransitions(t *testing.T) {
	legal := [][2]Status{
		{StatusQueued, StatusProcessing},
		{StatusQueued, StatusCompleted},
		{StatusQueued, StatusFailed},
		{StatusProcessing, StatusCompleted},
		{StatusProcessing, StatusFailed},
	}
	for _, pair := range legal {
		if !CanTransition(pair[0], pair[1]) {
			t.Fatalf("CanTransition(%s, %s) = false", pair[0], pair[1])
		}
	}

	all := []Status{StatusQueued, StatusProcessing, StatusCompleted, StatusFailed}
	for _, from := range []Status{StatusCompleted, StatusFailed} {
		for _, to := range all {
			if CanTransition(from, to) {
				t.Fatalf("CanTransition(%s, %s) = true, terminal states must not move", from, to)
			}
		}
	}
	if CanTransition(StatusProcessing, StatusQueued) {
		t.Fatalf("CanTransition(processing, queued) = true")
	}
}

func TestTimestampField(t *testing.T) {
	if TimestampField(StatusCompleted) != FieldCompletedAt ||
		TimestampField(StatusFailed) != FieldFailedAt ||
		TimestampField(StatusProcessing) != FieldProcessingAt ||
		TimestampField(StatusQueued) != "" {
		t.Fatalf("TimestampField mapping is wrong")
	}
}

func TestClampScanLimit(t *testing.T) {
	cases := map[int]int{-1: 100, 0: 100, 1: 1, 50: 50, 100: 100, 101: 100, 5000: 100}
	for in, want := range cases {
		if got := ClampScanLimit(in); got != want {
			t.Fatalf("ClampScanLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestTimestampIsUTC(t *testing.T) {
	loc := time.FixedZone("JST", 9*60*60)
	got := Timestamp(time.Date(2026, 10, 14, 18, 0, 0, 0, loc))
	if got != "2026-10-14T09:00:00Z" {
		t.Fatalf("Timestamp() = %q", got)
	}
}

func TestValidate(t *testing.T) {
	ok := Record{ID: "a", Kind: KindAPINotification, Status: StatusQueued, CreatedAt: "2026-10-14T09:00:00Z"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	bad := ok
	bad.ID = " "
	if err := bad.Validate(); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("Validate(empty id) error = %v", err)
	}
	bad = ok
	bad.Kind = "user"
	if err := bad.Validate(); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("Validate(bad kind) error = %v", err)
	}
}
