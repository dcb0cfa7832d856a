package ksock

import "errors"

var (
	// ErrAlreadyInUse is returned when a write is attempted on a buffer
	// mid-retry (spec.md §4.4, §7).
	ErrAlreadyInUse = errors.New("ksock: write buffer locked pending retry")
	// ErrBadMessage covers guard mismatches, length overflows, and extra
	// bytes delivered after the message was already finished.
	ErrBadMessage = errors.New("ksock: malformed message")
	// ErrNoPinnedRegion is returned when a "pointy" header is written but
	// no region resolver was configured to look up the pointed-to bytes.
	ErrNoPinnedRegion = errors.New("ksock: pointy message with no region resolver")
)
