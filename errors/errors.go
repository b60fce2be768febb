package errors

import (
	"fmt"
	"strings"
)

// Kind categorizes a filesystem error. The kind decides the message that
// crosses the plugin boundary, so the rendered strings are part of the
// wire contract.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindPermissionDenied Kind = "permission_denied"
	KindAlreadyExists    Kind = "already_exists"
	KindIsDirectory      Kind = "is_directory"
	KindNotDirectory     Kind = "not_directory"
	KindReadOnly         Kind = "read_only"
	KindInvalidInput     Kind = "invalid_input"
	KindIO               Kind = "io"
	KindOther            Kind = "other"
)

// Boundary messages per kind. Hosts parse these back into kinds, so they
// must stay stable.
const (
	msgNotFound         = "file not found"
	msgPermissionDenied = "permission denied"
	msgAlreadyExists    = "file already exists"
	msgIsDirectory      = "is a directory"
	msgNotDirectory     = "not a directory"
	msgReadOnly         = "read-only filesystem"
	prefixInvalidInput  = "invalid input: "
	prefixIO            = "I/O error: "
)

// Error is the structured error type used on both sides of the boundary.
type Error struct {
	Cause  error
	Kind   Kind
	Detail string
}

// Error renders the human-readable message that crosses the boundary.
func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return withDetail(msgNotFound, e.Detail)
	case KindPermissionDenied:
		return withDetail(msgPermissionDenied, e.Detail)
	case KindAlreadyExists:
		return withDetail(msgAlreadyExists, e.Detail)
	case KindIsDirectory:
		return withDetail(msgIsDirectory, e.Detail)
	case KindNotDirectory:
		return withDetail(msgNotDirectory, e.Detail)
	case KindReadOnly:
		return withDetail(msgReadOnly, e.Detail)
	case KindInvalidInput:
		return prefixInvalidInput + e.detailOrCause()
	case KindIO:
		return prefixIO + e.detailOrCause()
	default:
		return e.detailOrCause()
	}
}

func withDetail(msg, detail string) string {
	if detail == "" {
		return msg
	}
	return msg + ": " + detail
}

func (e *Error) detailOrCause() string {
	if e.Detail != "" {
		if e.Cause != nil {
			return e.Detail + ": " + e.Cause.Error()
		}
		return e.Detail
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "unknown error"
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on kind, so errors.Is(err, NotFound()) holds regardless of
// detail.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// KindOf returns the kind of err, KindOther for foreign errors, and ""
// for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindOther
}

// Convenience constructors for the taxonomy.

func NotFound() *Error {
	return &Error{Kind: KindNotFound}
}

func PermissionDenied() *Error {
	return &Error{Kind: KindPermissionDenied}
}

func AlreadyExists() *Error {
	return &Error{Kind: KindAlreadyExists}
}

func IsDirectory() *Error {
	return &Error{Kind: KindIsDirectory}
}

func NotDirectory() *Error {
	return &Error{Kind: KindNotDirectory}
}

func ReadOnly() *Error {
	return &Error{Kind: KindReadOnly}
}

func InvalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Detail: sprintf(format, args...)}
}

func IO(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindIO, Detail: sprintf(format, args...), Cause: cause}
}

func Other(format string, args ...any) *Error {
	return &Error{Kind: KindOther, Detail: sprintf(format, args...)}
}

// Wrap attaches a kind to an existing error.
func Wrap(kind Kind, cause error, detail string) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// FromMessage reconstructs a typed error from a boundary message. Unknown
// messages come back as KindOther with the message as detail.
func FromMessage(msg string) *Error {
	for _, m := range []struct {
		msg  string
		kind Kind
	}{
		{msgNotFound, KindNotFound},
		{msgPermissionDenied, KindPermissionDenied},
		{msgAlreadyExists, KindAlreadyExists},
		{msgIsDirectory, KindIsDirectory},
		{msgNotDirectory, KindNotDirectory},
		{msgReadOnly, KindReadOnly},
	} {
		if msg == m.msg {
			return &Error{Kind: m.kind}
		}
		if strings.HasPrefix(msg, m.msg+": ") {
			return &Error{Kind: m.kind, Detail: msg[len(m.msg)+2:]}
		}
	}
	if strings.HasPrefix(msg, prefixInvalidInput) {
		return &Error{Kind: KindInvalidInput, Detail: msg[len(prefixInvalidInput):]}
	}
	if strings.HasPrefix(msg, prefixIO) {
		return &Error{Kind: KindIO, Detail: msg[len(prefixIO):]}
	}
	return &Error{Kind: KindOther, Detail: msg}
}
