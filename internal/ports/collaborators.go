package ports

import (
	"context"

	"eventtrack/internal/domain/notify"
)

// ObjectMeta is what the storage path records about an object.
type ObjectMeta struct {
	Size        int64
	ContentType string
}

// ObjectInspector reads object metadata from an object store.
type ObjectInspector interface {
	HeadObject(ctx context.Context, bucket string, key string) (ObjectMeta, error)
}

// Delivery is the provider's acknowledgement of a dispatched notification.
type Delivery struct {
	MessageID string
	Provider  string
}

// Dispatcher hands a validated notification to an outbound provider.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg notify.Message) (Delivery, error)
}
