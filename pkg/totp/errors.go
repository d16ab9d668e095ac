package totp

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a failure of the code generator
type Kind int

const (
	Unknown Kind = iota
	InvalidEncoding
	MalformedURL
	UnsupportedScheme
	UnsupportedMode
	MissingSecret
	InvalidParameter
	UnsupportedAlgorithm
	ClockError
	NoCredentialsConfigured
)

var kindNames = map[Kind]string{
	Unknown:                 "unknown error",
	InvalidEncoding:         "invalid base32 encoding",
	MalformedURL:            "malformed url",
	UnsupportedScheme:       "unsupported scheme",
	UnsupportedMode:         "unsupported mode",
	MissingSecret:           "missing secret",
	InvalidParameter:        "invalid parameter",
	UnsupportedAlgorithm:    "unsupported algorithm",
	ClockError:              "clock error",
	NoCredentialsConfigured: "no credentials configured",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[Unknown]
}

// Error is returned by every failing operation in this package.
// Param names the offending query parameter for InvalidParameter.
type Error struct {
	Kind  Kind
	Param string
	Err   error
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func paramError(param string, err error) *Error {
	return &Error{Kind: InvalidParameter, Param: param, Err: err}
}

func (e *Error) Error() string {
	var msg = e.Kind.String()
	if e.Param != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Param)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Param == "" || t.Param == e.Param)
}

// ItemError attributes a failure to one URL of a batch.
// The URL itself is never included since it carries the secret.
type ItemError struct {
	Index int
	Label string
	Err   error
}

func (e *ItemError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("token #%d (%s): %v", e.Index+1, e.Label, e.Err)
	}
	return fmt.Sprintf("token #%d: %v", e.Index+1, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
