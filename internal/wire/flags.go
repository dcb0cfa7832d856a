package wire

// Flags occupies the bottom 16 bits of the message flags word; the core
// treats the top 16 bits as opaque, caller-defined data.
type Flags uint32

const (
	// WantReply marks a message as a request: sender wants a reply.
	WantReply Flags = 1 << iota
	// WantYouToReply is set by the core, per-recipient, on the copy pushed
	// to the chosen Replier. Senders must never set this themselves.
	WantYouToReply
	// Synthetic marks a core-generated diagnostic message.
	Synthetic
	// Urgent requests the message be prepended to the recipient's queue
	// rather than appended.
	Urgent
	// AllOrWait asks the sender to block (EAGAIN + retry) until every
	// required recipient has room, rather than dropping or failing.
	AllOrWait
	// AllOrFail asks the core to fail the send with Busy if any required
	// recipient's queue is full, rather than waiting or dropping.
	AllOrFail

	coreFlagsMask Flags = (1 << 16) - 1
)

// CoreBits returns f with everything outside the core's reserved 16 bits
// cleared. Callers use this when comparing flags the core cares about.
func (f Flags) CoreBits() Flags {
	return f & coreFlagsMask
}

// Has reports whether all bits in want are set in f.
func (f Flags) Has(want Flags) bool {
	return f&want == want
}

// ValidForSend reports whether the flag combination is one the routing
// engine will accept: ALL_OR_WAIT and ALL_OR_FAIL are mutually exclusive.
func (f Flags) ValidForSend() bool {
	return !(f.Has(AllOrWait) && f.Has(AllOrFail))
}
