package errs

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type Kind string

const (
	KindDirectoryNotFound Kind = "DirectoryNotFound"
	KindReportNotFound    Kind = "ReportNotFound"
	KindMalformedReport   Kind = "MalformedReport"
	KindModelLoad         Kind = "ModelLoadError"
	KindNoModelSelected   Kind = "NoModelSelected"
	KindBadImage          Kind = "BadImage"
	KindBadRequest        Kind = "BadRequest"
	KindNotFound          Kind = "NotFound"
	KindServerError       Kind = "ServerError"
)

// Error is an error tagged with a Kind so the front-ends can decide how to
// surface it without string matching.
type Error struct {
	kind    Kind
	message string
	cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

// Wrap tags cause with kind. The cause keeps its stack from pkg/errors when it
// was created there.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{kind: kind, message: message, cause: cause}
}

func (e *Error) Kind() Kind {
	return e.kind
}

func (e *Error) Message() string {
	return e.message
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.message
	}
	if e.message == "" {
		return e.cause.Error()
	}
	return e.message + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Cause satisfies the causer interface used by errors.Cause.
func (e *Error) Cause() error {
	return e.cause
}

func (e *Error) HTTPStatus() int {
	return statusFor(e.kind)
}

func (e *Error) ToHTTPError() *echo.HTTPError {
	return echo.NewHTTPError(e.HTTPStatus(), e.Error())
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindServerError when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindServerError
}

func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// HTTPError converts any error into an echo error, defaulting to 500.
func HTTPError(err error) *echo.HTTPError {
	var e *Error
	if errors.As(err, &e) {
		return e.ToHTTPError()
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func statusFor(kind Kind) int {
	switch kind {
	case KindBadRequest, KindBadImage, KindNoModelSelected:
		return http.StatusBadRequest
	case KindNotFound, KindReportNotFound:
		return http.StatusNotFound
	case KindMalformedReport, KindModelLoad:
		return http.StatusUnprocessableEntity
	case KindDirectoryNotFound, KindServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
