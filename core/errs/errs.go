// Package errs is the error taxonomy shared by every body-streaming component.
//
// Each failure is an immutable *Error carrying one Kind and the context that
// kind needs: a message, a status code, or a wrapped upstream error. All
// constructors and conversions are total; they always return exactly one
// *Error and never panic.
package errs

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"worker/core/host"
)

// Kind identifies a class of failure. New kinds may be appended; callers
// switching on Kind should keep a default branch.
type Kind int

const (
	// BadEncoding: the declared content type does not match the requested decode.
	BadEncoding Kind = iota + 1
	// BodyUsed: a single-read body was already consumed.
	BodyUsed
	// JSON: a structured error with a status code, surfaced as a JSON body.
	JSON
	// Host: an error raised by the host runtime, stringified.
	Host
	// Binding: a named environment binding was not found.
	Binding
	// RouteNoData: a matched route has no shared application data.
	RouteNoData
	// InvalidStatusCode: a status code outside the HTTP range.
	InvalidStatusCode
	// RouteInsert: registering a route failed.
	RouteInsert
	// Internal: a generic error built from a plain message.
	Internal
	// Serialization: JSON encoding or decoding failed.
	Serialization
	// ValueConversion: converting between host values and Go values failed.
	ValueConversion
	// KV: the key-value store failed.
	KV
	// URLParse: a URL string could not be parsed.
	URLParse
)

var kindNames = map[Kind]string{
	BadEncoding:       "bad_encoding",
	BodyUsed:          "body_used",
	JSON:              "json",
	Host:              "host",
	Binding:           "binding",
	RouteNoData:       "route_no_data",
	InvalidStatusCode: "invalid_status_code",
	RouteInsert:       "route_insert",
	Internal:          "internal",
	Serialization:     "serialization",
	ValueConversion:   "value_conversion",
	KV:                "kv",
	URLParse:          "url_parse",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a single failure. It is never mutated after construction.
type Error struct {
	kind    Kind
	message string
	status  int
	cause   error
}

// Kind returns the failure kind.
func (e *Error) Kind() Kind { return e.kind }

// Message returns the kind-specific context string: the message, binding
// name, or the rendered cause for wrapping kinds.
func (e *Error) Message() string {
	if e.message == "" && e.cause != nil {
		return e.cause.Error()
	}
	return e.message
}

// Status returns the status code carried by JSON and InvalidStatusCode errors.
func (e *Error) Status() int { return e.status }

// Unwrap returns the upstream error for wrapping kinds.
func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Error() string {
	switch e.kind {
	case BadEncoding:
		return "content-type mismatch"
	case BodyUsed:
		return "body has already been read"
	case JSON:
		return fmt.Sprintf("%s (status: %d)", e.message, e.status)
	case Host:
		return "host error: " + e.message
	case Binding:
		return fmt.Sprintf("no binding found for `%s`", e.message)
	case RouteNoData:
		return "route has no corresponding shared data"
	case InvalidStatusCode:
		return fmt.Sprintf("invalid status code: %d", e.status)
	case RouteInsert:
		return "failed to insert route: " + e.Message()
	case Internal:
		if msg := e.Message(); msg != "" {
			return msg
		}
		return "internal error"
	case Serialization:
		return "json error: " + e.Message()
	case ValueConversion:
		return "value conversion error: " + e.Message()
	case KV:
		return "kv error: " + e.Message()
	case URLParse:
		return "url parse error: " + e.Message()
	default:
		return fmt.Sprintf("%s: %s", e.kind, e.Message())
	}
}

// Is reports whether target is an *Error of the same kind. It lets callers
// write errors.Is(err, errs.ErrBodyUsed).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.kind == e.kind && t.message == "" && t.cause == nil
}

// Exception renders the error into a host exception.
func (e *Error) Exception() *host.Exception {
	return host.NewException(e.Error())
}

// ToHost renders the error into a host-reportable value. It never fails.
func (e *Error) ToHost() host.Value {
	return e.Exception()
}

// Sentinels for kinds without context, usable with errors.Is.
var (
	ErrBadEncoding = &Error{kind: BadEncoding}
	ErrBodyUsed    = &Error{kind: BodyUsed}
	ErrRouteNoData = &Error{kind: RouteNoData}
)

// New creates an Internal error from a plain message.
func New(msg string) *Error {
	return &Error{kind: Internal, message: msg}
}

// Newf creates an Internal error from a format string.
func Newf(format string, args ...any) *Error {
	return New(fmt.Sprintf(format, args...))
}

// JSONError creates a structured error with an HTTP status.
func JSONError(msg string, status int) *Error {
	return &Error{kind: JSON, message: msg, status: status}
}

// HostError creates a Host error from an already rendered message.
func HostError(msg string) *Error {
	return &Error{kind: Host, message: msg}
}

// BindingError reports that the binding called name is not configured.
func BindingError(name string) *Error {
	return &Error{kind: Binding, message: name}
}

// InvalidStatus reports an out-of-range status code.
func InvalidStatus(code int) *Error {
	return &Error{kind: InvalidStatusCode, status: code}
}

// ValueConversionError creates a ValueConversion error from a message.
func ValueConversionError(msg string) *Error {
	return &Error{kind: ValueConversion, message: msg}
}

// KVError creates a KV error from a message.
func KVError(msg string) *Error {
	return &Error{kind: KV, message: msg}
}

// FromHost converts a host value, usually a raised exception, into a Host error.
func FromHost(v host.Value) *Error {
	return HostError(host.Stringify(v))
}

// FromJSON wraps an encoding/json failure.
func FromJSON(err error) *Error {
	return wrap(Serialization, err)
}

// FromURL wraps a net/url parse failure.
func FromURL(err error) *Error {
	return wrap(URLParse, err)
}

// FromKV wraps a key-value store failure.
func FromKV(err error) *Error {
	return wrap(KV, err)
}

// FromValueConversion wraps a host value conversion failure.
func FromValueConversion(err error) *Error {
	return wrap(ValueConversion, err)
}

// FromRouteInsert wraps a route registration failure for pattern.
func FromRouteInsert(pattern string, err error) *Error {
	if err == nil {
		err = errors.New("unknown error")
	}
	return &Error{kind: RouteInsert, cause: fmt.Errorf("%s: %w", pattern, err)}
}

func wrap(kind Kind, err error) *Error {
	if err == nil {
		return &Error{kind: kind, message: "unknown error"}
	}
	return &Error{kind: kind, cause: err}
}

// From converts any error into an *Error. An *Error already in the chain is
// returned as is; well-known upstream errors map to their kind; anything
// else becomes Internal.
func From(err error) *Error {
	if err == nil {
		return New("unknown error")
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var exc *host.Exception
	if errors.As(err, &exc) {
		return FromHost(exc)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return FromURL(err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return FromJSON(err)
	}

	return &Error{kind: Internal, message: err.Error(), cause: err}
}

// ToHost renders any error into a host exception.
func ToHost(err error) host.Value {
	return From(err).ToHost()
}

// CheckStatus validates an HTTP status code.
func CheckStatus(code int) error {
	if code < 100 || code > 599 {
		return InvalidStatus(code)
	}
	return nil
}

// HTTPStatus picks the response status used when err is reported to an
// HTTP client.
func HTTPStatus(err error) int {
	e := From(err)
	switch e.kind {
	case JSON:
		if CheckStatus(e.status) == nil {
			return e.status
		}
		return http.StatusInternalServerError
	case BadEncoding:
		return http.StatusUnsupportedMediaType
	case BodyUsed:
		return http.StatusConflict
	case Serialization, ValueConversion, URLParse:
		return http.StatusBadRequest
	case Host:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
