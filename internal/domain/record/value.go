package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"eventtrack/internal/errs"
)

func validationf(format string, args ...any) error {
	return errs.Validation(fmt.Sprintf(format, args...))
}

// NormalizeValue converts v into the canonical JSON-compatible form used by every store:
// nil, bool, string, int64, float64, map[string]any or []any. Integral numbers become int64.
func NormalizeValue(v any) (any, error) {
	switch t := v.(type) {
	case nil, bool, string, int64:
		return t, nil
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint:
		return uintValue(uint64(t))
	case uint64:
		return uintValue(t)
	case float32:
		return floatValue(float64(t))
	case float64:
		return floatValue(t)
	case json.Number:
		return numberValue(t)
	case map[string]any:
		return NormalizeMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			normalized, err := NormalizeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = normalized
		}
		return out, nil
	case json.RawMessage:
		return decodeValue(t)
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return nil, validationf("value of type %T is not JSON compatible", v)
		}
		return decodeValue(raw)
	}
}

func NormalizeMap(in map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(in))
	for key, value := range in {
		normalized, err := NormalizeValue(value)
		if err != nil {
			return nil, errs.Wrapf(err, "field %q", key)
		}
		out[key] = normalized
	}
	return out, nil
}

// DecodePayload reads a stored payload document. Empty input and {} decode to nil.
func DecodePayload(raw []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	value, err := decodeValue(raw)
	if err != nil {
		return nil, err
	}
	switch m := value.(type) {
	case map[string]any:
		if len(m) == 0 {
			return nil, nil
		}
		return m, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("payload must be a JSON object, got %T", value)
	}
}

// EncodePayload writes a payload as a JSON object; nil encodes as {}.
func EncodePayload(payload map[string]any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(payload)
}

func decodeValue(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, errs.Wrap(err, "decode json value")
	}
	return NormalizeValue(value)
}

func numberValue(n json.Number) (any, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, validationf("invalid number %q", n.String())
	}
	return floatValue(f)
}

func floatValue(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, validationf("number %v is not JSON compatible", f)
	}
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return int64(f), nil
	}
	return f, nil
}

func uintValue(u uint64) (any, error) {
	if u > math.MaxInt64 {
		return float64(u), nil
	}
	return int64(u), nil
}

// cloneValue deep-copies canonical values.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for key, value := range t {
			out[key] = cloneValue(value)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, value := range t {
			out[i] = cloneValue(value)
		}
		return out
	default:
		return t
	}
}
