package valuestream

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error taxonomy (spec §7). Each kind is a distinct exported type so
// callers can recover it with errors.As; each wraps its cause (if any)
// with github.com/pkg/errors so the error carries a stack from the point
// where the codec first observed the problem.

// UnsupportedValueError is returned when a value has no matching plugin and
// no built-in kind. Fatal to the Encode call.
type UnsupportedValueError struct {
	cause error
	Value any
}

func (e *UnsupportedValueError) Error() string {
	return fmt.Sprintf("valuestream: unsupported value of type %T", e.Value)
}
func (e *UnsupportedValueError) Unwrap() error { return e.cause }

func newUnsupportedValueError(v any) error {
	return errors.WithStack(&UnsupportedValueError{Value: v})
}

// MalformedFrameError means a frame's grammar was invalid. Fatal to the
// Decode call; every pending placeholder is rejected with this error.
type MalformedFrameError struct {
	cause error
	Line  string
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("valuestream: malformed frame: %v", e.cause)
}
func (e *MalformedFrameError) Unwrap() error { return e.cause }

func newMalformedFrameError(line string, cause error) error {
	return errors.WithStack(&MalformedFrameError{Line: line, cause: cause})
}

// UnknownReferenceError means a frame cited an index never assigned. Fatal
// to the Decode call.
type UnknownReferenceError struct {
	Index int
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("valuestream: unknown reference index %d", e.Index)
}

func newUnknownReferenceError(idx int) error {
	return errors.WithStack(&UnknownReferenceError{Index: idx})
}

// UnexpectedResolutionError means a resolution frame targeted an index that
// is not pending. Fatal to the Decode call.
type UnexpectedResolutionError struct {
	Index int
}

func (e *UnexpectedResolutionError) Error() string {
	return fmt.Sprintf("valuestream: unexpected resolution for index %d", e.Index)
}

func newUnexpectedResolutionError(idx int) error {
	return errors.WithStack(&UnexpectedResolutionError{Index: idx})
}

// ClosedWithoutResolutionError rejects a placeholder whose stream ended
// while it was still pending. The top-level Decode call has already
// returned the root normally; the placeholder is rejected with this error,
// and Decode's cleanup function also returns these errors, aggregated.
type ClosedWithoutResolutionError struct {
	Index int
}

func (e *ClosedWithoutResolutionError) Error() string {
	return fmt.Sprintf("valuestream: stream closed without resolving index %d", e.Index)
}

func newClosedWithoutResolutionError(idx int) error {
	return errors.WithStack(&ClosedWithoutResolutionError{Index: idx})
}

// CancelledError wraps the caller-supplied cancellation reason used to
// reject every outstanding deferred/placeholder when the caller's
// cancellation handle fires.
type CancelledError struct {
	Reason error
}

func (e *CancelledError) Error() string {
	if e.Reason == nil {
		return "valuestream: cancelled"
	}
	return fmt.Sprintf("valuestream: cancelled: %v", e.Reason)
}
func (e *CancelledError) Unwrap() error { return e.Reason }

func newCancelledError(reason error) error {
	return errors.WithStack(&CancelledError{Reason: reason})
}

// PluginError wraps the value recovered from an encoder or decoder plugin
// that panicked. Fatal to the call that invoked it.
type PluginError struct {
	cause error
	Tag   string
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("valuestream: plugin error for tag %q: %v", e.Tag, e.cause)
}
func (e *PluginError) Unwrap() error { return e.cause }

func newPluginError(tag string, cause error) error {
	return errors.WithStack(&PluginError{Tag: tag, cause: cause})
}
