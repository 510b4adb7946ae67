// Package classify provides the small typed-error wrapper spec.md
// section 7's recoverable-vs-fatal error policy is built on: each
// sentinel error declares once, at the point it is defined, whether a
// caller may treat it as transient (drop this message/packet and keep
// going) or must treat it as terminal for the current operation.
package classify

import "errors"

// Error is a sentinel error that carries its own recoverability, mirroring
// original_source/comlock-crypto/src/lib.rs's ComLockError::recoverable().
type Error struct {
	msg         string
	recoverable bool
}

// New builds a sentinel error, recoverable per spec.md section 7's
// classification for the kind of fault it represents.
func New(msg string, recoverable bool) *Error {
	return &Error{msg: msg, recoverable: recoverable}
}

func (e *Error) Error() string     { return e.msg }
func (e *Error) Recoverable() bool { return e.recoverable }

// Recoverable reports whether err, or any error it wraps, classifies
// itself as recoverable. An error that never wraps a classify.Error is
// treated as non-recoverable: spec.md section 7 only ever names a fixed
// set of recoverable kinds, so anything outside that set defaults to
// the safer, more conservative outcome of surfacing rather than
// silently retrying.
func Recoverable(err error) bool {
	var c *Error
	if errors.As(err, &c) {
		return c.recoverable
	}
	return false
}
