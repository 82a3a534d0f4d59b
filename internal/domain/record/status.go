package record

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var transitions = map[Status][]Status{
	StatusQueued:     {StatusProcessing, StatusCompleted, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  nil,
	StatusFailed:     nil,
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Initial reports whether a record may be created in this status.
func (s Status) Initial() bool {
	return s == StatusQueued || s == StatusProcessing
}

// CanTransition reports whether from -> to is a forward move of the lifecycle.
// queued may jump straight to a terminal state when work finishes synchronously.
func CanTransition(from Status, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TimestampField names the field stamped when a record enters s.
func TimestampField(s Status) string {
	switch s {
	case StatusProcessing:
		return FieldProcessingAt
	case StatusCompleted:
		return FieldCompletedAt
	case StatusFailed:
		return FieldFailedAt
	default:
		return ""
	}
}
