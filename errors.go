package kbus

import "github.com/kbusd/kbus/internal/kerr"

// Error is the structured error type every Bus operation returns.
// Re-exported from internal/kerr the way go-ublk's constants.go re-exports
// internal/constants values for the public API.
type Error = kerr.Error

// Kind is the high-level error category a caller switches on (spec.md §7).
type Kind = kerr.Kind

const (
	BadName          = kerr.BadName
	NameTooLong      = kerr.NameTooLong
	AlreadyBound     = kerr.AlreadyBound
	NotFound         = kerr.NotFound
	AddrNotAvailable = kerr.AddrNotAvailable
	ConnRefused      = kerr.ConnRefused
	Pipe             = kerr.Pipe
	Busy             = kerr.Busy
	Again            = kerr.Again
	NoLock           = kerr.NoLock
	BadMessage       = kerr.BadMessage
	AlreadyInUse     = kerr.AlreadyInUse
	NoMemory         = kerr.NoMemory
	Fault            = kerr.Fault
	Invalid          = kerr.Invalid
	NotTTY           = kerr.NotTTY
)

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return kerr.IsKind(err, kind)
}
