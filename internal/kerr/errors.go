// Package kerr defines the structured error type shared by every core
// package (internal/binding, internal/device, internal/ksock) and
// re-exported by the root package. Grounded on go-ublk's errors.go: a
// structured *Error carrying an operation, a high-level kind, an optional
// POSIX errno a conforming character-device boundary would have returned,
// a message, and an inner error, with Unwrap/Is support for errors.Is/As.
package kerr

import (
	"errors"
	"fmt"
	"syscall"
)

// Kind is the high-level error category a caller switches on (spec.md §7).
type Kind string

const (
	BadName          Kind = "bad name"
	NameTooLong      Kind = "name too long"
	AlreadyBound     Kind = "replier already bound"
	NotFound         Kind = "not found"
	AddrNotAvailable Kind = "address not available"
	ConnRefused      Kind = "connection refused"
	Pipe             Kind = "broken pipe"
	Busy             Kind = "busy"
	Again            Kind = "try again"
	NoLock           Kind = "no lock available"
	BadMessage       Kind = "bad message"
	AlreadyInUse     Kind = "already in use"
	NoMemory         Kind = "out of memory"
	Fault            Kind = "bad address"
	Invalid          Kind = "invalid argument"
	NotTTY           Kind = "inappropriate ioctl"
)

// errnoByKind maps each Kind onto the POSIX errno a real character-device
// boundary would surface to userspace for it. It is read only through
// Kind.Errno; internal/transport reports errors by their Kind string, and
// nothing in the core depends on it.
var errnoByKind = map[Kind]syscall.Errno{
	BadName:          syscall.EINVAL,
	NameTooLong:      syscall.ENAMETOOLONG,
	AlreadyBound:     syscall.EADDRINUSE,
	NotFound:         syscall.ENOENT,
	AddrNotAvailable: syscall.EADDRNOTAVAIL,
	ConnRefused:      syscall.ECONNREFUSED,
	Pipe:             syscall.EPIPE,
	Busy:             syscall.EBUSY,
	Again:            syscall.EAGAIN,
	NoLock:           syscall.ENOLCK,
	BadMessage:       syscall.EBADMSG,
	AlreadyInUse:     syscall.EBUSY,
	NoMemory:         syscall.ENOMEM,
	Fault:            syscall.EFAULT,
	Invalid:          syscall.EINVAL,
	NotTTY:           syscall.ENOTTY,
}

// Errno returns the POSIX errno associated with k.
func (k Kind) Errno() syscall.Errno {
	return errnoByKind[k]
}

// Error is KBUS's structured error type.
type Error struct {
	Op      string // operation that failed, e.g. "Bind", "Send"
	DevID   uint32
	KsockID uint32 // 0 if not applicable
	Kind    Kind
	Msg     string
	Inner   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	switch {
	case e.KsockID != 0 && e.Op != "":
		return fmt.Sprintf("kbus: %s (op=%s dev=%d ksock=%d)", msg, e.Op, e.DevID, e.KsockID)
	case e.Op != "":
		return fmt.Sprintf("kbus: %s (op=%s dev=%d)", msg, e.Op, e.DevID)
	default:
		return fmt.Sprintf("kbus: %s", msg)
	}
}

// Unwrap supports errors.Is/As against the wrapped inner error.
func (e *Error) Unwrap() error { return e.Inner }

// Is compares by Kind, so errors.Is(err, kerr.New("", 0, 0, kerr.Busy, "")) or
// errors.Is(err, someOtherKindErr) both work off Kind alone.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == te.Kind
}

// New builds an *Error for op/kind, optionally scoped to a device/Ksock.
func New(op string, devID, ksockID uint32, kind Kind, msg string) *Error {
	return &Error{Op: op, DevID: devID, KsockID: ksockID, Kind: kind, Msg: msg}
}

// Wrap attaches op/kind context to inner, preserving it for Unwrap.
func Wrap(op string, devID, ksockID uint32, kind Kind, inner error) *Error {
	msg := ""
	if inner != nil {
		msg = inner.Error()
	}
	return &Error{Op: op, DevID: devID, KsockID: ksockID, Kind: kind, Msg: msg, Inner: inner}
}

// IsKind reports whether err is (or wraps) a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
