package safety

import (
	"errors"
	"fmt"
)

var (
	// ErrConcurrentAccess is returned when a requested mode conflicts with a
	// token already outstanding on the region.
	ErrConcurrentAccess = errors.New("concurrent access")
	// ErrReadOnly is returned when ReadWrite access is requested on a region
	// marked read-only.
	ErrReadOnly = errors.New("region is read-only")
	// ErrDisposed means the region was freed. Retrying cannot succeed.
	ErrDisposed = errors.New("region disposed")
	// ErrSuperseded means the token was retired by a version bump. A fresh
	// token may be acquired.
	ErrSuperseded = errors.New("token superseded")
	// ErrReleased is returned by Check for a token its holder already released.
	ErrReleased = errors.New("token released")
	// ErrUnknownRegion is returned for regions this manager never allocated.
	ErrUnknownRegion = errors.New("unknown region")
)

// AccessError describes a rejected or failed memory access.
type AccessError struct {
	Op     string // "Acquire", "Check", "Free", ...
	Region Region
	Mode   Mode
	Cause  error
}

// Error implements the error interface.
func (e *AccessError) Error() string {
	if e.Mode == ModeNone {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Region, e.Cause)
	}
	return fmt.Sprintf("%s %s (%s): %v", e.Op, e.Region, e.Mode, e.Cause)
}

// Unwrap returns the underlying cause for error chain support.
func (e *AccessError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether re-acquiring may succeed.
func (e *AccessError) Retryable() bool {
	return errors.Is(e.Cause, ErrSuperseded) || errors.Is(e.Cause, ErrConcurrentAccess)
}
