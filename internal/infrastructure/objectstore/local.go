package objectstore

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"eventtrack/internal/errs"
	"eventtrack/internal/ports"
)

// Local serves objects from a directory tree laid out as <root>/<bucket>/<key>.
type Local struct {
	root string
}

var _ ports.ObjectInspector = (*Local)(nil)

func NewLocal(root string) *Local {
	return &Local{root: filepath.Clean(root)}
}

// BucketDir returns the directory holding bucket's objects.
func (l *Local) BucketDir(bucket string) (string, error) {
	if err := validateBucket(bucket); err != nil {
		return "", err
	}
	return filepath.Join(l.root, bucket), nil
}

// ObjectPath resolves bucket/key to a file path, refusing keys that escape the bucket.
func (l *Local) ObjectPath(bucket string, key string) (string, error) {
	dir, err := l.BucketDir(bucket)
	if err != nil {
		return "", err
	}

	cleaned := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(key, "/")))
	if key == "" || cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return "", errs.Validation(fmt.Sprintf("invalid object key %q", key))
	}
	return filepath.Join(dir, cleaned), nil
}

// HeadObject stats the object and sniffs its content type.
func (l *Local) HeadObject(ctx context.Context, bucket string, key string) (ports.ObjectMeta, error) {
	if err := ctx.Err(); err != nil {
		return ports.ObjectMeta{}, errs.Wrap(err, "check context")
	}

	path, err := l.ObjectPath(bucket, key)
	if err != nil {
		return ports.ObjectMeta{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ports.ObjectMeta{}, errs.NotFound(fmt.Sprintf("object %s/%s not found", bucket, key))
		}
		return ports.ObjectMeta{}, errs.Storage(err, fmt.Sprintf("stat object %s/%s", bucket, key))
	}
	if info.IsDir() {
		return ports.ObjectMeta{}, errs.NotFound(fmt.Sprintf("object %s/%s is a directory", bucket, key))
	}

	contentType, err := detectContentType(path)
	if err != nil {
		return ports.ObjectMeta{}, errs.Storage(err, fmt.Sprintf("read object %s/%s", bucket, key))
	}
	return ports.ObjectMeta{Size: info.Size(), ContentType: contentType}, nil
}

// KeyFor maps a file path under bucket back to its object key.
func (l *Local) KeyFor(bucket string, path string) (string, error) {
	dir, err := l.BucketDir(bucket)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return "", errs.Wrapf(err, "resolve key for %q", path)
	}
	if rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %q is outside bucket %q", path, bucket)
	}
	return filepath.ToSlash(rel), nil
}

// detectContentType returns the media type without parameters, e.g. "text/plain".
func detectContentType(path string) (string, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	mediaType, _, err := mime.ParseMediaType(mtype.String())
	if err != nil {
		return mtype.String(), nil
	}
	return mediaType, nil
}

func validateBucket(bucket string) error {
	if bucket == "" || bucket == "." || bucket == ".." || strings.ContainsAny(bucket, `/\`) {
		return errs.Validation(fmt.Sprintf("invalid bucket name %q", bucket))
	}
	return nil
}
