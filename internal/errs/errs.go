// Package errs implements the abstract error taxonomy from spec.md §7 as
// sentinel errors, checked with errors.Is on errors built by Wrap.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigInvalid: schema or cross-reference error. Surfaced at startup
	// or CreateCompositeDevice; the composite is refused.
	ErrConfigInvalid = errors.New("configuration invalid")

	// ErrSourceUnavailable: node disappeared or grab failed. The composite
	// continues if possible; the source is removed.
	ErrSourceUnavailable = errors.New("source device unavailable")

	// ErrTargetCreateFailed: kernel rejected the virtual device. The
	// composite refuses to start.
	ErrTargetCreateFailed = errors.New("target device creation failed")

	// ErrBusError: transport error on the D-Bus connection.
	ErrBusError = errors.New("bus transport error")

	// ErrProfileInvalid: LoadProfilePath failed; the prior profile is
	// retained.
	ErrProfileInvalid = errors.New("profile invalid")

	// ErrInternalInvariant: a bug was detected; the owning task exits and
	// the supervisor restarts it once before tearing the composite down.
	ErrInternalInvariant = errors.New("internal invariant violated")
)

// Wrap builds an error whose message is format applied to args and which
// unwraps to kind, one of the sentinel kinds above, so callers can recover
// the kind with errors.Is while still seeing the concrete message. Errors
// passed in args are formatted into the message, not wrapped.
func Wrap(kind error, format string, args ...any) error {
	return &wrapped{kind: kind, msg: fmt.Sprintf(format, args...)}
}

type wrapped struct {
	kind error
	msg  string
}

func (w *wrapped) Error() string { return w.msg }
func (w *wrapped) Unwrap() error { return w.kind }
