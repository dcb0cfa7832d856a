// Package kmsg composes the wire header (internal/wire) with the
// reference-counted name/payload handles (internal/store) into the
// in-memory Message the routing engine and per-Ksock queues pass around.
package kmsg

import (
	"github.com/kbusd/kbus/internal/store"
	"github.com/kbusd/kbus/internal/wire"
)

// Message is the core's in-memory representation of one message, already
// promoted into kernel-owned (here: device-owned) reference-counted
// memory. Precondition for Send: Name is non-nil and, if Payload is
// non-nil, both hold at least one reference owned by the caller.
type Message struct {
	ID        wire.MessageID
	InReplyTo wire.MessageID
	To        uint32
	From      uint32
	OrigFrom  wire.EndpointID
	FinalTo   wire.EndpointID
	Extra     uint32
	Flags     wire.Flags
	Name      *store.Name
	Payload   store.Payload // nil if no payload
}

// IsRequest reports whether m is a request (WANT_REPLY set).
func (m *Message) IsRequest() bool {
	return m.Flags.Has(wire.WantReply)
}

// IsReply reports whether m is a reply to some earlier request.
func (m *Message) IsReply() bool {
	return !m.InReplyTo.IsZero()
}

// IsStatefulRequest reports whether m is a request aimed at one specific
// recipient (`to` != 0) rather than "whoever the current replier is".
func (m *Message) IsStatefulRequest() bool {
	return m.IsRequest() && m.To != 0
}

// NameString returns the message name, or "" if Name is nil.
func (m *Message) NameString() string {
	return m.Name.String()
}

// PayloadLen returns the payload length, or 0 if there is none.
func (m *Message) PayloadLen() int {
	if m.Payload == nil {
		return 0
	}
	return m.Payload.Len()
}

// Clone makes a shallow copy of m suitable for pushing to a second
// recipient: it takes fresh references on Name and Payload (push protocol,
// spec.md §4.3) rather than sharing the caller's references.
func (m *Message) Clone() *Message {
	clone := *m
	if m.Name != nil {
		clone.Name = m.Name.Retain()
	}
	if m.Payload != nil {
		clone.Payload = m.Payload.Retain()
	}
	return &clone
}

// Release drops this Message's references to its name and payload. Called
// when a message is popped and fully read, discarded, or dropped.
func (m *Message) Release() {
	if m.Name != nil {
		m.Name.Release()
	}
	if m.Payload != nil {
		m.Payload.Release()
	}
}
