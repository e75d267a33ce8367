package store

import (
	"errors"
	"strings"
)

// Kind is the machine-readable class of a storage failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfiguration: the storage location is unset or does not exist.
	KindConfiguration
	// KindNotFound: the referenced content is absent.
	KindNotFound
	// KindIO: a create, write, read or remove failed.
	KindIO
	// KindUnsupported: the backend cannot perform the operation.
	KindUnsupported
	// KindPathSafety: a logical path or filename would escape the storage root.
	KindPathSafety
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration error"
	case KindNotFound:
		return "not found"
	case KindIO:
		return "i/o error"
	case KindUnsupported:
		return "unsupported operation"
	case KindPathSafety:
		return "unsafe path"
	default:
		return "unknown error"
	}
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrIO            = &Error{Kind: KindIO}
	ErrUnsupported   = &Error{Kind: KindUnsupported}
	ErrPathSafety    = &Error{Kind: KindPathSafety}
)

// Error is returned by every Driver operation that cannot complete.
type Error struct {
	Kind    Kind
	Op      string // store, retrieve, delete
	Backend string // plugin name
	Path    string // logical key the operation touched, if any
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Backend != "" {
		b.WriteString(e.Backend)
		b.WriteString(" ")
	}
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(" ")
	}
	s := strings.TrimSuffix(b.String(), " ")
	if s != "" {
		s += ": "
	}
	s += e.Kind.String()
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Backend == "" && t.Path == "" && t.Err == nil
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// NewError builds an *Error.
func NewError(kind Kind, op, backend, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Backend: backend, Path: path, Err: err}
}

// WithOp returns a copy of err with the operation and backend filled in
// when err is an *Error raised by a helper such as NormalizePath.
func WithOp(err error, op, backend string) error {
	var se *Error
	if !errors.As(err, &se) {
		return err
	}
	c := *se
	c.Op = op
	c.Backend = backend
	return &c
}
