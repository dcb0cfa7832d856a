// Package ksock implements per-Ksock state (spec.md §3, §4.4): the bounded
// inbound queue, the outstanding-requests and unreplied-requests tracking,
// and the streaming read/write buffers that marshal messages byte-by-byte
// across the user boundary.
//
// Grounded on go-ublk's internal/queue/runner.go: where go-ublk tracks a
// TagState (InFlightFetch / Owned / InFlightCommit) per I/O tag guarded by
// a per-tag mutex, Ksock tracks the write-buffer's HDR→...→END_GUARD
// progression and the read-buffer's cursor, guarded (like the rest of a
// device's mutable state) by the device's single Big Lock rather than a
// per-Ksock mutex — spec.md §5 calls the per-Ksock mutex a possible later
// refinement, not a requirement.
package ksock

import (
	"github.com/kbusd/kbus/internal/kmsg"
	"github.com/kbusd/kbus/internal/wire"
)

// Ksock is one endpoint's mutable state on a device.
type Ksock struct {
	ID uint32

	MaxMessages      int
	MessagesOnlyOnce bool
	MaybeHasSetAside bool
	HasTragicSetAside bool

	// Sending is true while a send is held pending retry (EAGAIN); the
	// write buffer stays locked against further writes while it is set.
	Sending bool

	LastSendAttempted wire.MessageID
	LastPushed        wire.MessageID

	// PendingSend holds the message a send is retrying, while Sending is
	// true. Set by the routing engine on EAGAIN, consumed (and cleared) on
	// the next SEND attempt for this Ksock.
	PendingSend *kmsg.Message

	inbound     []*kmsg.Message
	outstanding map[wire.MessageID]struct{}
	unreplied   []wire.MessageID

	Write *WriteBuffer
	Read  *ReadBuffer

	// readable is signaled (non-blocking send) whenever a message is
	// pushed onto inbound, so a blocked reader wakes up. Buffered size 1:
	// edge-triggered, harmless to over-signal (spec.md §9).
	readable chan struct{}
}

// New creates a Ksock with an empty queue and empty tracking sets.
func New(id uint32, maxMessages int) *Ksock {
	return &Ksock{
		ID:          id,
		MaxMessages: maxMessages,
		outstanding: make(map[wire.MessageID]struct{}),
		Write:       NewWriteBuffer(nil),
		readable:    make(chan struct{}, 1),
	}
}

// Readable returns the channel a blocking reader selects on.
func (k *Ksock) Readable() <-chan struct{} {
	return k.readable
}

// signalReadable wakes a blocked reader without blocking the signaler.
func (k *Ksock) signalReadable() {
	select {
	case k.readable <- struct{}{}:
	default:
	}
}

// QueueLen reports the number of messages currently queued for delivery.
func (k *Ksock) QueueLen() int {
	return len(k.inbound)
}

// OutstandingLen reports the number of requests sent by this Ksock for
// which a reply (or synthetic reply) is still owed.
func (k *Ksock) OutstandingLen() int {
	return len(k.outstanding)
}

// UnrepliedLen reports the number of requests this Ksock has read as
// Replier and not yet answered.
func (k *Ksock) UnrepliedLen() int {
	return len(k.unreplied)
}

// IsFull reports whether pushing one more non-reply message would violate
// the reserved-slots invariant: count(inbound) + count(outstanding) ≤
// max_messages (spec.md §3).
func (k *Ksock) IsFull() bool {
	return len(k.inbound)+len(k.outstanding) >= k.MaxMessages
}

// IsFullForReply reports the same check adjusted for a reply: the
// recipient already holds a reserved slot for this exact reply in its
// outstanding set (spec.md §4.3 step 5: "room computed minus one").
func (k *Ksock) IsFullForReply() bool {
	return len(k.inbound)+len(k.outstanding)-1 >= k.MaxMessages
}

// HasOutstanding reports whether id is a request this Ksock sent and is
// still owed a reply for.
func (k *Ksock) HasOutstanding(id wire.MessageID) bool {
	_, ok := k.outstanding[id]
	return ok
}

// AddOutstanding records that this Ksock now owns a pending reply for id.
func (k *Ksock) AddOutstanding(id wire.MessageID) {
	k.outstanding[id] = struct{}{}
}

// RemoveOutstanding drops id from the outstanding set, if present.
func (k *Ksock) RemoveOutstanding(id wire.MessageID) {
	delete(k.outstanding, id)
}

// OutstandingIDs returns every id still outstanding, for release-time
// bookkeeping (spec.md §4.5 step 7: contents are simply discarded).
func (k *Ksock) OutstandingIDs() []wire.MessageID {
	ids := make([]wire.MessageID, 0, len(k.outstanding))
	for id := range k.outstanding {
		ids = append(ids, id)
	}
	return ids
}

// AddUnreplied records that this Ksock has read id as Replier and owes an
// answer.
func (k *Ksock) AddUnreplied(id wire.MessageID) {
	k.unreplied = append(k.unreplied, id)
}

// RemoveUnreplied drops id from the unreplied list when this Ksock sends
// its reply. Reports whether it was present.
func (k *Ksock) RemoveUnreplied(id wire.MessageID) bool {
	for i, u := range k.unreplied {
		if u == id {
			k.unreplied = append(k.unreplied[:i], k.unreplied[i+1:]...)
			return true
		}
	}
	return false
}

// UnrepliedIDs returns every outstanding unreplied request id, in the
// order they were read, for release-time synthetic-reply generation
// (spec.md §4.5 step 3).
func (k *Ksock) UnrepliedIDs() []wire.MessageID {
	out := make([]wire.MessageID, len(k.unreplied))
	copy(out, k.unreplied)
	return out
}

// Inbound returns the live inbound queue, most-urgent/oldest first, for
// inspection (e.g. unbind's targeted removal, spec.md §4.2). Callers must
// not retain the slice past the next mutation.
func (k *Ksock) Inbound() []*kmsg.Message {
	return k.inbound
}

// Push enqueues msg (already oriented and cloned by the caller — the
// routing engine's push protocol, spec.md §4.3) onto this Ksock's inbound
// queue, or silently drops it if messages_only_once suppresses a duplicate
// non-replier push. Push takes ownership of msg: on a suppressed push it
// releases msg's references itself. Returns whether msg was enqueued.
//
// Push performs no admission/capacity check — callers (internal/device)
// decide admission before calling Push, exactly the way spec.md §4.3
// separates "admission check" (step 2/5/6/7) from "commit" (step 8).
func (k *Ksock) Push(msg *kmsg.Message, forReplier, urgent bool) bool {
	if forReplier {
		msg.Flags |= wire.WantYouToReply
	} else {
		msg.Flags &^= wire.WantYouToReply
	}

	if k.MessagesOnlyOnce && !forReplier && !k.LastPushed.IsZero() && k.LastPushed == msg.ID {
		msg.Release()
		return false
	}

	if msg.IsReply() {
		k.RemoveOutstanding(msg.InReplyTo)
	}

	if urgent {
		k.inbound = append([]*kmsg.Message{msg}, k.inbound...)
	} else {
		k.inbound = append(k.inbound, msg)
	}
	k.LastPushed = msg.ID
	k.signalReadable()
	return true
}

// Pop removes and returns the head of the inbound queue.
func (k *Ksock) Pop() (*kmsg.Message, bool) {
	if len(k.inbound) == 0 {
		return nil, false
	}
	m := k.inbound[0]
	k.inbound = k.inbound[1:]
	return m, true
}

// RemoveQueued removes every queued message for which match returns true,
// returning the removed messages in order. Used by unbind to pull back
// messages that were only queued because of the binding being removed
// (spec.md §4.2).
func (k *Ksock) RemoveQueued(match func(*kmsg.Message) bool) []*kmsg.Message {
	var removed []*kmsg.Message
	kept := k.inbound[:0]
	for _, m := range k.inbound {
		if match(m) {
			removed = append(removed, m)
		} else {
			kept = append(kept, m)
		}
	}
	k.inbound = kept
	return removed
}

// DrainAll removes and returns every queued message, for release-time
// teardown (spec.md §4.5).
func (k *Ksock) DrainAll() []*kmsg.Message {
	all := k.inbound
	k.inbound = nil
	return all
}
