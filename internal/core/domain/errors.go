package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a DomainError by what the caller must do with it.
type Kind uint8

const (
	// KindCommand covers unknown commands, arity mismatches and bad
	// arguments. The client gets an error reply; the connection stays open.
	KindCommand Kind = iota + 1

	// KindFraming covers malformed or unrecognized wire bytes. Fatal to the
	// owning connection only.
	KindFraming

	// KindProtocol covers unexpected replies during the replica handshake.
	// Fatal to the replication link.
	KindProtocol

	// KindPersistence covers unreadable or malformed snapshot files.
	KindPersistence

	// KindUnsupported covers RDB encodings the decoder does not implement.
	// Fatal to the decode operation, not to the process.
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindFraming:
		return "framing"
	case KindProtocol:
		return "protocol"
	case KindPersistence:
		return "persistence"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// DomainError is an error with a kind and a RESP error prefix.
//
// Code is the first word of the error reply sent to clients (for example
// "ERR" or "WRONGTYPE"); Message is the rest.
type DomainError struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", e.Code, e.Message, e.Cause)
	}
	return e.Code + " " + e.Message
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError with the same kind and message.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code && e.Message == t.Message
}

// Reply returns the text sent to clients after the '-' type byte.
func (e *DomainError) Reply() string {
	return e.Code + " " + e.Message
}

// NewError creates a DomainError of the given kind with the "ERR" prefix.
func NewError(kind Kind, message string) *DomainError {
	return &DomainError{Kind: kind, Code: "ERR", Message: message}
}

// Errorf creates a DomainError with a formatted message.
func Errorf(kind Kind, format string, args ...any) *DomainError {
	return NewError(kind, fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: e.Message,
		Cause:   cause,
	}
}

// IsKind reports whether err is a DomainError of the given kind.
func IsKind(err error, kind Kind) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// KindOf extracts the kind from err, or 0 if err is not a DomainError.
func KindOf(err error) Kind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

// IsFatal reports whether err must terminate the connection or link it
// occurred on. Plain I/O errors are fatal; command errors are not.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindCommand, KindPersistence, KindUnsupported:
		return false
	default:
		return true
	}
}

// ReplyText formats err for a RESP error reply.
func ReplyText(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Reply()
	}
	return "ERR " + err.Error()
}

// Command errors.
var (
	ErrSyntax        = NewError(KindCommand, "syntax error")
	ErrNotInteger    = NewError(KindCommand, "value is not an integer or out of range")
	ErrInvalidExpire = NewError(KindCommand, "invalid expire time in 'set' command")
	ErrRateLimited   = NewError(KindCommand, "rate limit exceeded")
	ErrNotMaster     = NewError(KindCommand, "command not allowed on a replica")
	ErrWaitOnReplica = NewError(KindCommand, "WAIT cannot be used with replica instances")
	ErrNegativeWait  = NewError(KindCommand, "timeout is negative")
)

// ErrReadOnly is returned for client writes sent to a replica.
var ErrReadOnly = &DomainError{
	Kind:    KindCommand,
	Code:    "READONLY",
	Message: "You can't write against a read only replica.",
}

// Framing errors.
var (
	ErrFraming       = NewError(KindFraming, "protocol error")
	ErrLimitExceeded = NewError(KindFraming, "protocol limit exceeded")
)

// Persistence errors.
var (
	ErrSnapshotMalformed = NewError(KindPersistence, "malformed snapshot file")
	ErrSnapshotIO        = NewError(KindPersistence, "snapshot file unreadable")
)

// ErrUnsupportedEncoding is returned for RDB value types or integer
// encodings the decoder does not implement.
var ErrUnsupportedEncoding = NewError(KindUnsupported, "unsupported encoding")

// ErrHandshake is returned when the master answers a handshake step with
// something other than the expected reply.
var ErrHandshake = NewError(KindProtocol, "unexpected reply during replication handshake")

// ErrWrongArgs returns the arity error for the named command.
func ErrWrongArgs(cmd string) *DomainError {
	return Errorf(KindCommand, "wrong number of arguments for '%s' command", cmd)
}

// ErrUnknownCommand returns the error for an unrecognized command token.
func ErrUnknownCommand(token string) *DomainError {
	return Errorf(KindCommand, "unknown command '%s'", token)
}
