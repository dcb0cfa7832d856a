// Package store provides the reference-counted message-name and payload
// handles the routing engine copies between Ksocks (spec.md §3, §9).
package store

import "sync/atomic"

// nameCore is the shared, immutable backing for every reference to one
// name string. Retain/Release bookkeep the reference count the way the
// source's intrusive C strings did; Go's GC reclaims the memory regardless,
// but the count still lets tests and invariant checks catch a Release
// without a matching Retain.
type nameCore struct {
	s    string
	refs atomic.Int32
}

// Name is a reference-counted message-name string.
type Name struct {
	core *nameCore
}

// NewName creates a fresh Name handle with one reference.
func NewName(s string) *Name {
	c := &nameCore{s: s}
	c.refs.Store(1)
	return &Name{core: c}
}

// String returns the underlying name.
func (n *Name) String() string {
	if n == nil {
		return ""
	}
	return n.core.s
}

// Retain takes a fresh reference to the same backing string, for handing a
// copy of a message to another Ksock's queue.
func (n *Name) Retain() *Name {
	n.core.refs.Add(1)
	return &Name{core: n.core}
}

// Release drops a reference. Refs returns the remaining count, mainly for
// tests that assert every Retain was matched by a Release.
func (n *Name) Release() int32 {
	return n.core.refs.Add(-1)
}

// Refs reports the current reference count.
func (n *Name) Refs() int32 {
	return n.core.refs.Load()
}
