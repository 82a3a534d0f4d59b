package objectstore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"eventtrack/internal/errs"
)

func writeObject(t *testing.T, root string, bucket string, key string, content []byte) {
	t.Helper()
	path := filepath.Join(root, bucket, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write object: %v", err)
	}
}

func TestHeadObjectSizeAndContentType(t *testing.T) {
	root := t.TempDir()
	content := []byte("this text file is exactly forty-two bytes\n")
	if len(content) != 42 {
		t.Fatalf("fixture length = %d", len(content))
	}
	writeObject(t, root, "uploads", "reports/a.txt", content)
	writeObject(t, root, "uploads", "data.json", []byte(`{"a":1}`))

	store := NewLocal(root)
	meta, err := store.HeadObject(context.Background(), "uploads", "reports/a.txt")
	if err != nil {
		t.Fatalf("HeadObject() error = %v", err)
	}
	if meta.Size != 42 || meta.ContentType != "text/plain" {
		t.Fatalf("HeadObject() = %#v", meta)
	}

	meta, err = store.HeadObject(context.Background(), "uploads", "data.json")
	if err != nil {
		t.Fatalf("HeadObject(json) error = %v", err)
	}
	if meta.ContentType != "application/json" {
		t.Fatalf("HeadObject(json) content type = %q", meta.ContentType)
	}
}

func TestHeadObjectMissing(t *testing.T) {
	store := NewLocal(t.TempDir())

	_, err := store.HeadObject(context.Background(), "uploads", "nope.txt")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("HeadObject() error = %v, want not found", err)
	}
}

func TestObjectPathRejectsEscapes(t *testing.T) {
	store := NewLocal(t.TempDir())

	for _, key := range []string{"", "..", "../secret", "a/../../secret"} {
		if _, err := store.ObjectPath("uploads", key); !errors.Is(err, errs.ErrValidation) {
			t.Fatalf("ObjectPath(%q) error = %v, want validation failure", key, err)
		}
	}
	for _, bucket := range []string{"", "..", "a/b"} {
		if _, err := store.ObjectPath(bucket, "k"); !errors.Is(err, errs.ErrValidation) {
			t.Fatalf("ObjectPath(bucket %q) error = %v, want validation failure", bucket, err)
		}
	}

	path, err := store.ObjectPath("uploads", "/nested/k.txt")
	if err != nil {
		t.Fatalf("ObjectPath() error = %v", err)
	}
	if !strings.HasSuffix(filepath.ToSlash(path), "uploads/nested/k.txt") {
		t.Fatalf("ObjectPath() = %q", path)
	}
}

func TestStorageEventShape(t *testing.T) {
	raw, err := StorageEvent("uploads", "a.txt", 42, time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("StorageEvent() error = %v", err)
	}

	var env struct {
		Records []struct {
			EventSource string `json:"eventSource"`
			EventName   string `json:"eventName"`
			S3          struct {
				Bucket struct {
					Name string `json:"name"`
				} `json:"bucket"`
				Object struct {
					Key  string `json:"key"`
					Size int64  `json:"size"`
				} `json:"object"`
			} `json:"s3"`
		} `json:"Records"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(env.Records) != 1 {
		t.Fatalf("records = %d", len(env.Records))
	}
	rec := env.Records[0]
	if rec.EventSource != "aws:s3" || rec.EventName != EventObjectCreated || rec.S3.Bucket.Name != "uploads" || rec.S3.Object.Key != "a.txt" || rec.S3.Object.Size != 42 {
		t.Fatalf("record = %#v", rec)
	}
}

func TestWatcherEmitsCreatedObjects(t *testing.T) {
	root := t.TempDir()
	staging := t.TempDir()
	store := NewLocal(root)

	events := make(chan []byte, 4)
	watcher := NewWatcher(store, []string{"uploads"}, func(_ context.Context, event []byte) {
		events <- event
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-watcher.Ready():
	case err := <-done:
		t.Fatalf("Run() exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("watcher not ready")
	}

	staged := filepath.Join(staging, "a.txt")
	if err := os.WriteFile(staged, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write staged: %v", err)
	}
	if err := os.Rename(staged, filepath.Join(root, "uploads", "a.txt")); err != nil {
		// t.TempDir dirs normally share a filesystem; fall back to a direct write.
		writeObject(t, root, "uploads", "a.txt", []byte("hello"))
	}

	select {
	case raw := <-events:
		if !strings.Contains(string(raw), `"key":"a.txt"`) || !strings.Contains(string(raw), `"name":"uploads"`) {
			t.Fatalf("event = %s", raw)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no storage event emitted")
	}
}
