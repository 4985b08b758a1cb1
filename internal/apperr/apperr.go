package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so handlers can map it to an HTTP status and
// operators can separate "engine is slow" from "engine is broken" in logs.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindPermission       Kind = "permission"
	KindOwnership        Kind = "ownership"
	KindNotFound         Kind = "not_found"
	KindEngineSubmission Kind = "engine_submission"
	KindEnginePoll       Kind = "engine_poll"
	KindEngineUpload     Kind = "engine_upload"
	KindEngineDownload   Kind = "engine_download"
	KindTimeout          Kind = "timeout"
	KindStorage          Kind = "storage"
)

type Error struct {
	Kind    Kind
	Message string
	// UpstreamStatus and Details carry the engine's HTTP status and
	// diagnostic payload. Logged, never echoed to clients.
	UpstreamStatus int
	Details        string
	Err            error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or "" if err carries no *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps an error to the status the client should see.
// Unclassified errors are treated as internal.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindPermission, KindOwnership:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns a client-safe message. Engine, timeout, and storage
// failures collapse to a generic message; the detailed cause stays in logs.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "an unexpected error occurred"
	}
	switch e.Kind {
	case KindValidation, KindPermission, KindOwnership, KindNotFound:
		return e.Message
	case KindTimeout:
		return "generation is taking too long, please try again later"
	default:
		return "an unexpected error occurred"
	}
}
