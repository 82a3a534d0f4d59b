package objectstore

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"eventtrack/internal/bootstrap/logging"
	"eventtrack/internal/errs"
)

const EventObjectCreated = "ObjectCreated:Put"

// Sink receives one storage notification envelope per created object.
type Sink func(ctx context.Context, event []byte)

// Watcher turns files appearing under watched buckets into storage
// notifications. Only create events are reported, so writers should move
// finished files into place rather than write them in the bucket directly.
type Watcher struct {
	store   *Local
	buckets []string
	sink    Sink
	now     func() time.Time
	ready   chan struct{}
}

func NewWatcher(store *Local, buckets []string, sink Sink) *Watcher {
	return &Watcher{
		store:   store,
		buckets: append([]string(nil), buckets...),
		sink:    sink,
		now:     time.Now,
		ready:   make(chan struct{}),
	}
}

// Ready is closed once every bucket directory is being watched.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	ctx = logging.WithAttrs(ctx, slog.String("component", "objectstore.watcher"))

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, "create fs watcher")
	}
	defer fw.Close()

	dirs := make(map[string]string, len(w.buckets))
	for _, bucket := range w.buckets {
		dir, err := w.store.BucketDir(bucket)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.Wrapf(err, "create bucket directory %q", dir)
		}
		if err := addTree(fw, dir); err != nil {
			return err
		}
		dirs[dir] = bucket
	}
	close(w.ready)
	logging.Info(ctx, "watching buckets", slog.Any("buckets", w.buckets))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			w.handleCreate(ctx, fw, dirs, event.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logging.Warn(ctx, "fs watcher error", slog.Any("error", errs.Loggable(err)))
		}
	}
}

func (w *Watcher) handleCreate(ctx context.Context, fw *fsnotify.Watcher, dirs map[string]string, path string) {
	info, err := os.Stat(path)
	if err != nil {
		logging.Debug(ctx, "created path vanished", slog.String("path", path))
		return
	}
	if info.IsDir() {
		if err := addTree(fw, path); err != nil {
			logging.Warn(ctx, "watch new directory failed", slog.String("path", path), slog.Any("error", errs.Loggable(err)))
		}
		return
	}

	bucket := bucketOf(dirs, path)
	if bucket == "" {
		return
	}
	key, err := w.store.KeyFor(bucket, path)
	if err != nil {
		logging.Warn(ctx, "resolve object key failed", slog.String("path", path), slog.Any("error", errs.Loggable(err)))
		return
	}

	event, err := StorageEvent(bucket, key, info.Size(), w.now())
	if err != nil {
		logging.Error(ctx, "build storage event failed", slog.Any("error", errs.Loggable(err)))
		return
	}
	logging.Debug(ctx, "object created", slog.String("bucket", bucket), slog.String("key", key))
	w.sink(ctx, event)
}

// StorageEvent builds the single-record notification envelope for a created object.
func StorageEvent(bucket string, key string, size int64, at time.Time) ([]byte, error) {
	return json.Marshal(map[string]any{
		"Records": []map[string]any{{
			"eventSource": "aws:s3",
			"eventName":   EventObjectCreated,
			"eventTime":   at.UTC().Format(time.RFC3339Nano),
			"s3": map[string]any{
				"bucket": map[string]any{"name": bucket},
				"object": map[string]any{"key": key, "size": size},
			},
		}},
	})
}

func addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.Add(path); err != nil {
			return errs.Wrapf(err, "watch directory %q", path)
		}
		return nil
	})
}

func bucketOf(dirs map[string]string, path string) string {
	for dir := path; ; {
		parent := filepath.Dir(dir)
		if bucket, ok := dirs[parent]; ok {
			return bucket
		}
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
