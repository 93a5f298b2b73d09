package stage

import (
	"errors"
	"fmt"
)

// Kind is the closed enumeration of pipeline failure classes. Callers
// branch on it to tell retryable external-call failures apart from
// non-retryable validation failures.
type Kind int

const (
	// KindConfigMissing: a required configuration value is absent.
	// Fatal to the whole invocation, raised before any external call.
	KindConfigMissing Kind = iota

	// KindMalformedNotification: an individual landing notification
	// lacks required fields. Non-fatal; the record is skipped.
	KindMalformedNotification

	// KindJobDispatch: the job execution service rejected a dispatch.
	KindJobDispatch

	// KindPublish: the event bus rejected a publish.
	KindPublish

	// KindPersist: the persistent store rejected a write.
	KindPersist

	// KindSchemaMismatch: a delimited row's value count does not match
	// its header count, or a mapping lacks the fields the loader needs.
	KindSchemaMismatch
)

func (k Kind) String() string {
	switch k {
	case KindConfigMissing:
		return "config_missing"
	case KindMalformedNotification:
		return "malformed_notification"
	case KindJobDispatch:
		return "job_dispatch"
	case KindPublish:
		return "publish"
	case KindPersist:
		return "persist"
	case KindSchemaMismatch:
		return "schema_mismatch"
	default:
		return "unknown"
	}
}

// Retryable reports whether redelivering the triggering message can
// succeed. Only external-call failures qualify; validation failures
// would fail identically on every redelivery.
func (k Kind) Retryable() bool {
	switch k {
	case KindJobDispatch, KindPublish, KindPersist:
		return true
	default:
		return false
	}
}

// Error wraps a failure with its kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind and operation context.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a kinded error from a format string.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from err, or (0, false) if err does not
// carry one.
func KindOf(err error) (Kind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Retryable reports whether err is worth redelivering.
func Retryable(err error) bool {
	k, ok := KindOf(err)
	return ok && k.Retryable()
}
