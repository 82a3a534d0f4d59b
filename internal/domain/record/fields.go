package record

import (
	"sort"
	"strings"
)

// Fields is a partial update: field name -> new value. Common field names set the
// matching Record field; every other name sets a payload attribute.
type Fields map[string]any

// Names returns the field names in sorted order.
func (f Fields) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge returns a copy of f with extra applied on top.
func (f Fields) Merge(extra Fields) Fields {
	out := make(Fields, len(f)+len(extra))
	for name, value := range f {
		out[name] = value
	}
	for name, value := range extra {
		out[name] = value
	}
	return out
}

// Columns and Attributes are the two halves of a normalized update.
type Columns map[string]any
type Attributes map[string]any

// Split validates f and separates common fields from payload attributes.
// id and created_at are immutable and rejected.
func (f Fields) Split() (Columns, Attributes, error) {
	if len(f) == 0 {
		return nil, nil, validationf("update requires at least one field")
	}

	columns := Columns{}
	attrs := Attributes{}
	for _, name := range f.Names() {
		value := f[name]
		if strings.TrimSpace(name) == "" || name != strings.TrimSpace(name) {
			return nil, nil, validationf("invalid field name %q", name)
		}

		switch name {
		case FieldID, FieldCreatedAt:
			return nil, nil, validationf("field %q cannot be updated", name)
		case FieldKind:
			kind, err := kindValue(value)
			if err != nil {
				return nil, nil, err
			}
			columns[name] = string(kind)
		case FieldStatus:
			status, err := statusValue(value)
			if err != nil {
				return nil, nil, err
			}
			columns[name] = string(status)
		case FieldProcessingAt, FieldCompletedAt, FieldFailedAt, FieldError:
			s, ok := value.(string)
			if !ok {
				return nil, nil, validationf("field %q must be a string, got %T", name, value)
			}
			columns[name] = s
		default:
			normalized, err := NormalizeValue(value)
			if err != nil {
				return nil, nil, err
			}
			attrs[name] = normalized
		}
	}
	return columns, attrs, nil
}

// Apply returns r with f applied. Names absent from f keep their value.
func Apply(r Record, f Fields) (Record, error) {
	columns, attrs, err := f.Split()
	if err != nil {
		return Record{}, err
	}

	out := r.Clone()
	for name, value := range columns {
		s := value.(string)
		switch name {
		case FieldKind:
			out.Kind = Kind(s)
		case FieldStatus:
			out.Status = Status(s)
		case FieldProcessingAt:
			out.ProcessingAt = s
		case FieldCompletedAt:
			out.CompletedAt = s
		case FieldFailedAt:
			out.FailedAt = s
		case FieldError:
			out.Error = s
		}
	}
	if len(attrs) > 0 && out.Payload == nil {
		out.Payload = make(map[string]any, len(attrs))
	}
	for name, value := range attrs {
		out.Payload[name] = value
	}
	return out, nil
}

func statusValue(v any) (Status, error) {
	var status Status
	switch t := v.(type) {
	case Status:
		status = t
	case string:
		status = Status(t)
	default:
		return "", validationf("field %q must be a string, got %T", FieldStatus, v)
	}
	if !status.Valid() {
		return "", validationf("unknown record status %q", status)
	}
	return status, nil
}

func kindValue(v any) (Kind, error) {
	var kind Kind
	switch t := v.(type) {
	case Kind:
		kind = t
	case string:
		kind = Kind(t)
	default:
		return "", validationf("field %q must be a string, got %T", FieldKind, v)
	}
	if !kind.Valid() {
		return "", validationf("unknown record kind %q", kind)
	}
	return kind, nil
}
