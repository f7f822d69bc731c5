package connstr

import (
	"errors"
	"fmt"
)

// Sentinel parse error kinds. Match them with errors.Is.
var (
	ErrEmpty             = errors.New("connstr: empty connection string")
	ErrMalformed         = errors.New("connstr: malformed connection string")
	ErrUnsupportedScheme = errors.New("connstr: unsupported scheme")
	ErrUnsupportedOption = errors.New("connstr: query parameters and fragments are not supported")
	ErrMissingUser       = errors.New("connstr: user is required")
	ErrMissingHost       = errors.New("connstr: host is required")
	ErrMissingPort       = errors.New("connstr: port is required")
	ErrInvalidPort       = errors.New("connstr: port must be a number between 1 and 65535")
	ErrMissingDatabase   = errors.New("connstr: database is required")
	ErrInvalidField      = errors.New("connstr: invalid field")
)

// ParseError describes why a connection string could not be turned into a config.
type ParseError struct {
	Kind  error  // one of the sentinel errors above
	Field string // offending field, if known
	Input string // input with the password masked
	Err   error  // underlying cause, if any
}

func (e *ParseError) Error() string {
	msg := e.Kind.Error()
	if e.Field != "" && errors.Is(e.Kind, ErrInvalidField) {
		msg = fmt.Sprintf("%s %q", msg, e.Field)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Input != "" {
		msg = fmt.Sprintf("%s (input %q)", msg, e.Input)
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
