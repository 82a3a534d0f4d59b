package errs

import (
	"errors"
	"net/http"
)

// Kind classifies a failure for callers that need to branch on it.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindStorageUnavailable
	KindUnrecognizedEvent
	KindActionFailure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_failure"
	case KindNotFound:
		return "not_found"
	case KindStorageUnavailable:
		return "storage_unavailable"
	case KindUnrecognizedEvent:
		return "unrecognized_event"
	case KindActionFailure:
		return "action_failure"
	default:
		return "unknown"
	}
}

// HTTPStatus maps a kind to the status code exposed to API callers.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindUnrecognizedEvent:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure. Message is safe to show to API callers;
// Cause keeps the full detail for operators.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	switch {
	case e.Cause == nil:
		return e.Message
	case e.Message == "":
		return e.Cause.Error()
	default:
		return e.Message + ": " + e.Cause.Error()
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error of the same kind, so sentinels like ErrNotFound work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Cause == nil
}

var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable}
	ErrUnrecognizedEvent  = &Error{Kind: KindUnrecognizedEvent}
	ErrActionFailure      = &Error{Kind: KindActionFailure}
)

func E(kind Kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Validation(message string) error { return E(KindValidation, message, nil) }

func NotFound(message string) error { return E(KindNotFound, message, nil) }

func Unrecognized(message string) error { return E(KindUnrecognizedEvent, message, nil) }

// Storage classifies a backend failure and captures its stack. A nil err stays nil.
func Storage(err error, message string) error {
	if err == nil {
		return nil
	}
	return E(KindStorageUnavailable, message, WithStack(err))
}

// Action classifies a failed kind-specific action and captures its stack. A nil err stays nil.
func Action(err error, message string) error {
	if err == nil {
		return nil
	}
	return E(KindActionFailure, message, WithStack(err))
}

// KindOf returns the first classified kind found in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Public returns the message an API caller may see. Backend text never leaks;
// unknown and infrastructure failures fall back to the given generic text.
func Public(err error, fallback string) string {
	var e *Error
	if !errors.As(err, &e) {
		return fallback
	}
	switch e.Kind {
	case KindValidation, KindNotFound, KindUnrecognizedEvent:
		if e.Message != "" {
			return e.Message
		}
	}
	return fallback
}
