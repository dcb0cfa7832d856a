package binding

import "errors"

// Sentinel errors returned by Table methods. internal/device maps these to
// the public ErrorKind values (spec.md §7).
var (
	ErrBadName      = errors.New("binding: bad name")
	ErrNameTooLong  = errors.New("binding: name too long")
	ErrAlreadyBound = errors.New("binding: replier already bound for this name")
	ErrNotFound     = errors.New("binding: no such binding")
	ErrReservedName = errors.New("binding: cannot bind as replier to a reserved synthetic name")
)
