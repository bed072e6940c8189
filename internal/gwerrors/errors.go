// Package gwerrors defines the gateway's closed error taxonomy (spec §7).
package gwerrors

import "fmt"

// Kind is a closed enumeration of gateway error categories. Kind values are
// compared with errors.Is against a *Error's Kind field, never by string
// matching a formatted message.
type Kind int

const (
	// KindUnknown is never intentionally returned; its presence in a chain
	// indicates a wrapping bug.
	KindUnknown Kind = iota
	KindConfigLoad
	KindConfigValidation
	KindTransportDNS
	KindTransportTCP
	KindTransportTLS
	KindTransportWS
	KindTransportRead
	KindTransportWrite
	KindTimeout
	KindReconnectExhausted
	KindClosed
)

func (k Kind) String() string {
	switch k {
	case KindConfigLoad:
		return "ConfigLoad"
	case KindConfigValidation:
		return "ConfigValidation"
	case KindTransportDNS:
		return "TransportDns"
	case KindTransportTCP:
		return "TransportTcp"
	case KindTransportTLS:
		return "TransportTls"
	case KindTransportWS:
		return "TransportWs"
	case KindTransportRead:
		return "TransportRead"
	case KindTransportWrite:
		return "TransportWrite"
	case KindTimeout:
		return "Timeout"
	case KindReconnectExhausted:
		return "ReconnectExhausted"
	case KindClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Error is the gateway's concrete error type. Field is optional and names
// the offending config/template field (spec §7 "precise error message
// identifying the offending field and file").
type Error struct {
	Kind    Kind
	File    string
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.File != "" && e.Field != "":
		return fmt.Sprintf("%s: %s: field %q: %s", e.Kind, e.File, e.Field, e.Message)
	case e.File != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.File, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is(err, gwerrors.KindX) by treating a bare Kind value
// as a sentinel that matches any *Error carrying the same Kind.
func (e *Error) Is(target error) bool {
	if k, ok := target.(kindSentinel); ok {
		return e.Kind == Kind(k)
	}
	return false
}

// kindSentinel lets callers write errors.Is(err, gwerrors.Sentinel(KindClosed)).
type kindSentinel Kind

// Sentinel wraps a Kind so it can be used as the target of errors.Is.
func Sentinel(k Kind) error { return kindSentinel(k) }

func (k kindSentinel) Error() string { return Kind(k).String() }

// New builds a new *Error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds a new *Error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and message to an underlying error.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithFile sets the offending file on a copy of the error.
func (e *Error) WithFile(file string) *Error {
	c := *e
	c.File = file
	return &c
}

// WithField sets the offending field on a copy of the error.
func (e *Error) WithField(field string) *Error {
	c := *e
	c.Field = field
	return &c
}
