package ingest

import (
	"bytes"
	"encoding/json"
	"strings"

	"eventtrack/internal/domain/record"
	"eventtrack/internal/errs"
)

// Event source markers carried by batch records.
const (
	EventSourceStorage = "aws:s3"
	EventSourcePubSub  = "aws:sns"
)

// Source names the event family an invocation was classified into.
type Source string

const (
	SourceUnknown       Source = ""
	SourceStorageBatch  Source = "storage"
	SourcePubSubBatch   Source = "pubsub"
	SourceDirectProcess Source = "direct"
	SourceDirectNotify  Source = "notification"
	sourceBatch         Source = "batch"
)

// Envelope is the top-level shape of an inbound event. Either Records or
// HTTPMethod is set; anything else is unrecognized.
type Envelope struct {
	Records    []json.RawMessage `json:"Records,omitempty" jsonschema:"description=Batch of storage notifications or pub/sub messages"`
	HTTPMethod string            `json:"httpMethod,omitempty" jsonschema:"description=Set on direct API requests"`

	DirectRequest
}

// StorageRecord is one object-store notification inside a batch.
type StorageRecord struct {
	EventSource string        `json:"eventSource" jsonschema:"enum=aws:s3"`
	EventName   string        `json:"eventName" jsonschema:"example=ObjectCreated:Put"`
	EventTime   string        `json:"eventTime,omitempty"`
	S3          StorageEntity `json:"s3"`
}

type StorageEntity struct {
	Bucket StorageBucket `json:"bucket"`
	Object StorageObject `json:"object"`
}

type StorageBucket struct {
	Name string `json:"name" jsonschema:"minLength=1"`
}

type StorageObject struct {
	Key  string `json:"key" jsonschema:"minLength=1"`
	Size int64  `json:"size,omitempty"`
	ETag string `json:"eTag,omitempty"`
}

// PubSubRecord is one pub/sub message inside a batch.
type PubSubRecord struct {
	EventSource string        `json:"EventSource" jsonschema:"enum=aws:sns"`
	Sns         PubSubMessage `json:"Sns"`
}

type PubSubMessage struct {
	MessageID string `json:"MessageId" jsonschema:"minLength=1"`
	TopicArn  string `json:"TopicArn"`
	Subject   string `json:"Subject,omitempty"`
	Message   string `json:"Message"`
	Timestamp string `json:"Timestamp,omitempty"`
}

// DirectRequest is an HTTP-style request forwarded as an event.
type DirectRequest struct {
	Path           string            `json:"path,omitempty"`
	Resource       string            `json:"resource,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           json.RawMessage   `json:"body,omitempty" jsonschema:"type=string,description=JSON document or a string holding one"`
	RequestContext RequestContext    `json:"requestContext,omitempty"`
}

type RequestContext struct {
	RequestID string `json:"requestId,omitempty"`
}

// Target reports whether the request addresses notification dispatch or data processing.
func (r DirectRequest) Target() Source {
	route := strings.ToLower(r.Resource + " " + r.Path)
	if strings.Contains(route, "notification") {
		return SourceDirectNotify
	}
	return SourceDirectProcess
}

// DecodeBody returns the request body as a JSON object. A string body holding
// JSON is decoded once more; an empty or unparseable body yields an empty object.
func (r DirectRequest) DecodeBody() map[string]any {
	raw := []byte(strings.TrimSpace(string(r.Body)))
	if len(raw) == 0 || string(raw) == "null" {
		return map[string]any{}
	}

	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return map[string]any{}
		}
		raw = []byte(text)
	}
	body, err := DecodeObject(raw)
	if err != nil {
		return map[string]any{}
	}
	return body
}

// DecodeObject parses raw as a JSON object into canonical payload values.
func DecodeObject(raw []byte) (map[string]any, error) {
	value, err := decodeJSON(raw)
	if err != nil {
		return nil, err
	}
	body, ok := value.(map[string]any)
	if !ok {
		return nil, errs.Validation("request body must be a JSON object")
	}
	return body, nil
}

// classify inspects the top-level shape of raw.
func classify(raw []byte) (Source, Envelope, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return SourceUnknown, Envelope{}, errs.E(errs.KindUnrecognizedEvent, "Unknown event type", err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return SourceUnknown, Envelope{}, errs.E(errs.KindUnrecognizedEvent, "Unknown event type", err)
	}

	if _, ok := keys["Records"]; ok && len(env.Records) > 0 {
		return sourceBatch, env, nil
	}
	if _, ok := keys["httpMethod"]; ok {
		return env.Target(), env, nil
	}
	return SourceUnknown, env, errs.Unrecognized("Unknown event type")
}

// classifyRecord disambiguates a batch record by its originating service field.
// Keys are matched exactly: storage uses eventSource, pub/sub uses EventSource.
func classifyRecord(raw json.RawMessage) Source {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return SourceUnknown
	}

	var lower, upper string
	if v, ok := keys["eventSource"]; ok {
		_ = json.Unmarshal(v, &lower)
	}
	if v, ok := keys["EventSource"]; ok {
		_ = json.Unmarshal(v, &upper)
	}

	switch {
	case lower == EventSourceStorage:
		return SourceStorageBatch
	case upper == EventSourcePubSub:
		return SourcePubSubBatch
	default:
		return SourceUnknown
	}
}

func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, errs.E(errs.KindValidation, "request body must be valid JSON", err)
	}
	if dec.More() {
		return nil, errs.Validation("request body must hold a single JSON document")
	}
	return record.NormalizeValue(value)
}
