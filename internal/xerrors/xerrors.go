// Package xerrors is a helper package for the error type used by the bus
// and timer packages. It mirrors the teacher's errors package: an Errno
// identifies the category of failure and a message table supplies the
// format string, so callers never hand-format the same message twice.
//
// Only the two real runtime-error kinds named in spec.md §7 are modeled
// here (BIOS load failure, save-state mismatch). Invalid bus accesses are
// not errors — reads return an all-ones value, writes are dropped, and the
// access is reported through pxlog instead (see spec.md §7.1). The bus's
// Read*/Write* methods return no separate success flag.
package xerrors

import "fmt"

// Errno identifies the kind of error.
type Errno int

// List of error categories.
const (
	BIOSSizeMismatch Errno = iota
	BIOSReadFailure
	SaveStateMismatch
	SaveStateReadFailure
)

var messages = map[Errno]string{
	BIOSSizeMismatch:     "BIOS image mismatch, expecting %d bytes, got %d bytes",
	BIOSReadFailure:      "failed to read BIOS image: %s",
	SaveStateMismatch:    "save state mismatch: %s",
	SaveStateReadFailure: "failed to read save state field %q: %s",
}

// Values holds the arguments substituted into an Errno's message.
type Values []interface{}

// BusError is the error type returned by this module.
type BusError struct {
	Errno  Errno
	Values Values
}

// New creates a BusError for the given category with the given message
// arguments.
func New(errno Errno, values ...interface{}) BusError {
	return BusError{Errno: errno, Values: values}
}

func (e BusError) Error() string {
	return fmt.Sprintf(messages[e.Errno], e.Values...)
}
