package cmd

import (
	"bytes"
	"strings"
	"testing"

	"eventtrack/internal/domain/record"
	"eventtrack/internal/errs"
)

func TestEncodeAsFormats(t *testing.T) {
	t.Parallel()

	list := recordList{
		Items: []record.Record{{
			ID:        "job-1",
			Kind:      record.KindDirectProcessing,
			Status:    record.StatusCompleted,
			CreatedAt: "2026-10-14T09:00:00Z",
			Payload:   map[string]any{"data": "a b"},
		}},
		Count: 1,
	}

	cases := map[string]string{
		"json": `"id": "job-1"`,
		"yaml": "id: job-1",
		"toml": "[[items]]",
	}
	for format, want := range cases {
		var buf bytes.Buffer
		if err := encodeAs(&buf, format, list); err != nil {
			t.Fatalf("encodeAs(%s) error = %v", format, err)
		}
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("encodeAs(%s) = %q, want it to contain %q", format, buf.String(), want)
		}
	}
}

func TestEncodeAsRejectsUnknownFormat(t *testing.T) {
	t.Parallel()

	err := encodeAs(&bytes.Buffer{}, "xml", recordList{})
	if errs.KindOf(err) != errs.KindValidation {
		t.Fatalf("encodeAs(xml) error = %v, want validation", err)
	}
}

func TestRecordsListFlags(t *testing.T) {
	t.Parallel()

	if err := recordsListCmd.ParseFlags([]string{"--limit", "5", "-o", "yaml"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	limit, _ := recordsListCmd.Flags().GetInt("limit")
	if limit != 5 {
		t.Fatalf("limit = %d, want 5", limit)
	}
	output, _ := recordsListCmd.Flags().GetString("output")
	if output != "yaml" {
		t.Fatalf("output = %q, want yaml", output)
	}
}

func TestEncodeAsTOMLDropsNullPayloadValues(t *testing.T) {
	t.Parallel()

	rec := record.Record{
		ID:        "job-2",
		Kind:      record.KindDirectProcessing,
		Status:    record.StatusCompleted,
		CreatedAt: "2026-10-14T09:00:00Z",
		Payload: map[string]any{
			"data":     []any{int64(1), nil, "x"},
			"metadata": map[string]any{"owner": nil, "team": "ops"},
		},
	}

	for _, v := range []any{rec, recordList{Items: []record.Record{rec}, Count: 1}} {
		var buf bytes.Buffer
		if err := encodeAs(&buf, "toml", v); err != nil {
			t.Fatalf("encodeAs(toml) error = %v", err)
		}
		if !strings.Contains(buf.String(), "job-2") || !strings.Contains(buf.String(), "ops") {
			t.Fatalf("encodeAs(toml) = %q", buf.String())
		}
		if strings.Contains(buf.String(), "owner") {
			t.Fatalf("encodeAs(toml) kept a null value: %q", buf.String())
		}
	}

	if rec.Payload["data"].([]any)[1] != nil {
		t.Fatalf("encodeAs(toml) mutated the record payload")
	}
}
