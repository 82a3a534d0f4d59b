package record

import (
	"strings"
	"unicode/utf8"
)

// DataShape tags the variant held by Data.
type DataShape int

const (
	ShapeOther DataShape = iota
	ShapeText
	ShapeMapping
	ShapeSequence
)

// Data is the caller-supplied "data" value of a direct processing request.
type Data struct {
	shape    DataShape
	text     string
	mapping  map[string]any
	sequence []any
	other    any
}

// ParseData tags a canonical JSON value.
func ParseData(v any) Data {
	switch t := v.(type) {
	case string:
		return Data{shape: ShapeText, text: t}
	case map[string]any:
		return Data{shape: ShapeMapping, mapping: t}
	case []any:
		return Data{shape: ShapeSequence, sequence: t}
	default:
		return Data{shape: ShapeOther, other: t}
	}
}

func (d Data) Shape() DataShape { return d.shape }

// Summarize derives the processing result for d, stamped with timestamp.
func (d Data) Summarize(timestamp string) map[string]any {
	out := map[string]any{
		"processed": true,
		"timestamp": timestamp,
	}

	switch d.shape {
	case ShapeText:
		out["original_length"] = int64(utf8.RuneCountInString(d.text))
		out["word_count"] = int64(len(strings.Fields(d.text)))
	case ShapeMapping:
		out["key_count"] = int64(len(d.mapping))
	case ShapeSequence:
		out["item_count"] = int64(len(d.sequence))
	case ShapeOther:
		out["type"] = jsonTypeName(d.other)
	}
	return out
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case int64, float64:
		return "number"
	default:
		return "unknown"
	}
}
