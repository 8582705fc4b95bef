package api

import (
	"errors"
	"net/http"

	"github.com/okian/tiergate/internal/adapters/logsource"
	"github.com/okian/tiergate/internal/adapters/repository"
	service "github.com/okian/tiergate/internal/app"
	"github.com/okian/tiergate/internal/domain/history"
	"github.com/okian/tiergate/internal/domain/killproof"
	"github.com/okian/tiergate/internal/domain/mechanics"
	"github.com/okian/tiergate/internal/domain/performance"
	"github.com/okian/tiergate/internal/domain/validation"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrBackpressure  = errors.New("backpressure")
	ErrUnprocessable = errors.New("unprocessable log")
	ErrUpstream      = errors.New("log source unavailable")
	ErrUnavailable   = errors.New("service unavailable")
	ErrInternal      = errors.New("internal error")
)

// Error carries the failing operation and its kind. errors.Is matches both
// the kind and the wrapped cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewKind returns an error of kind without a cause.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// WrapKind wraps err with an explicit kind.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Wrap wraps err with the kind derived from it.
func Wrap(op string, err error) error {
	return &Error{Op: op, Kind: kindOf(err), Err: err}
}

func kindOf(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidSubmission),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, killproof.ErrInvalidTier),
		errors.Is(err, history.ErrInvalidTier):
		return ErrBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, service.ErrInFlight),
		errors.Is(err, repository.ErrConflict),
		errors.Is(err, repository.ErrExists):
		return ErrConflict
	case errors.Is(err, service.ErrBackpressure):
		return ErrBackpressure
	case errors.Is(err, validation.ErrMalformedRecord),
		errors.Is(err, mechanics.ErrAccountNotInLog),
		errors.Is(err, performance.ErrAccountNotInLog),
		errors.Is(err, logsource.ErrDecode):
		return ErrUnprocessable
	case errors.Is(err, logsource.ErrFetch):
		return ErrUpstream
	case errors.Is(err, service.ErrNotStarted):
		return ErrUnavailable
	}
	return ErrInternal
}

type kindInfo struct {
	status int
	code   string
}

var kinds = []struct {
	kind error
	info kindInfo
}{
	{ErrBadRequest, kindInfo{http.StatusBadRequest, "bad_request"}},
	{ErrNotFound, kindInfo{http.StatusNotFound, "not_found"}},
	{ErrConflict, kindInfo{http.StatusConflict, "conflict"}},
	{ErrBackpressure, kindInfo{http.StatusTooManyRequests, "backpressure"}},
	{ErrUnprocessable, kindInfo{http.StatusUnprocessableEntity, "unprocessable"}},
	{ErrUpstream, kindInfo{http.StatusBadGateway, "upstream_error"}},
	{ErrUnavailable, kindInfo{http.StatusServiceUnavailable, "unavailable"}},
}

// StatusOf returns the HTTP status and error code for err.
func StatusOf(err error) (int, string) {
	for _, k := range kinds {
		if errors.Is(err, k.kind) {
			return k.info.status, k.info.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}
