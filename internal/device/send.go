package device

import (
	"github.com/kbusd/kbus/internal/kerr"
	"github.com/kbusd/kbus/internal/kmsg"
	"github.com/kbusd/kbus/internal/ksock"
	"github.com/kbusd/kbus/internal/wire"
)

// Send runs the routing engine (spec.md §4.3) for ksockID: either the
// message freshly finished in its write buffer, or — if a previous
// attempt returned Again — the pending retry. On success it returns the
// committed message's id. On Again the write buffer stays locked and the
// caller must wait for writability (WAIT) before calling Send again with
// no intervening write.
func (d *Device) Send(ksockID uint32) (wire.MessageID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sender, ok := d.lookupKsock(ksockID)
	if !ok {
		return wire.MessageID{}, kerr.New("Send", d.ID, ksockID, kerr.NotFound, "no such ksock")
	}

	var msg *kmsg.Message
	retry := sender.Sending
	if retry {
		msg = sender.PendingSend
	} else {
		m, err := sender.Write.Message()
		if err != nil {
			return wire.MessageID{}, kerr.New("Send", d.ID, ksockID, kerr.BadMessage, err.Error())
		}
		if !m.Flags.ValidForSend() {
			m.Release()
			sender.Write.Reset()
			return wire.MessageID{}, kerr.New("Send", d.ID, ksockID, kerr.Invalid, "ALL_OR_WAIT and ALL_OR_FAIL both set")
		}
		msg = m
	}

	id, again, err := d.route(sender, msg)
	if again {
		sender.Sending = true
		sender.PendingSend = msg
		sender.Write.Lock()
		return wire.MessageID{}, kerr.New("Send", d.ID, ksockID, kerr.Again, "no room yet, retry on writable")
	}

	// This attempt is settled one way or another: the write buffer is free
	// for the next message.
	sender.Sending = false
	sender.PendingSend = nil
	sender.Write.Unlock()
	sender.Write.Reset()

	if err != nil {
		if retry {
			// The request already left the sender's hand on a prior
			// attempt; a failure discovered only now is converted into a
			// synthetic reply rather than surfaced as this call's error
			// (spec.md §4.3 retry semantics, §7).
			name := wire.NameErrorSending
			if kerr.IsKind(err, kerr.AddrNotAvailable) {
				name = wire.NameReplierDisappeared
			}
			d.deliverSynthetic(ksockID, name, msg.ID, nil)
			msg.Release()
			sender.LastSendAttempted = msg.ID
			return msg.ID, nil
		}
		msg.Release()
		return wire.MessageID{}, err
	}

	sender.LastSendAttempted = id
	d.broadcastWritable()
	return id, nil
}

// route executes the admission-then-commit algorithm of spec.md §4.3 steps
// 1-8 against msg, sent by sender. again reports EAGAIN under ALL_OR_WAIT;
// msg is left untouched (neither released nor delivered) in that case.
func (d *Device) route(sender *ksock.Ksock, msg *kmsg.Message) (id wire.MessageID, again bool, err error) {
	// Step 1.
	msg.Flags &^= wire.Synthetic
	msg.Extra = 0
	msg.From = sender.ID
	if msg.ID.IsZero() {
		msg.ID = wire.MessageID{SerialNum: d.nextSerialID()}
	}

	wantReply := msg.IsRequest()

	// Step 2.
	if wantReply && sender.IsFull() {
		return wire.MessageID{}, false, kerr.New("Send", d.ID, sender.ID, kerr.NoLock, "no room reserved for the reply")
	}

	// Step 3.
	listeners, replier := d.bindings.FindListeners(msg.NameString())

	// Step 4.
	if wantReply && replier == nil {
		return wire.MessageID{}, false, kerr.New("Send", d.ID, sender.ID, kerr.AddrNotAvailable, "no replier for this name")
	}

	allOrWait := msg.Flags.Has(wire.AllOrWait)
	allOrFail := msg.Flags.Has(wire.AllOrFail)

	var replyTarget *ksock.Ksock
	var replierKsock *ksock.Ksock

	// Step 5: reply handling.
	if msg.IsReply() {
		recipient, ok := d.lookupKsock(msg.To)
		if !ok {
			return wire.MessageID{}, false, kerr.New("Send", d.ID, sender.ID, kerr.AddrNotAvailable, "reply target gone")
		}
		if !recipient.HasOutstanding(msg.InReplyTo) {
			return wire.MessageID{}, false, kerr.New("Send", d.ID, sender.ID, kerr.ConnRefused, "reply to a non-outstanding request")
		}
		if recipient.IsFullForReply() {
			if allOrWait {
				return wire.MessageID{}, true, nil
			}
			return wire.MessageID{}, false, kerr.New("Send", d.ID, sender.ID, kerr.Busy, "reply target queue full")
		}
		replyTarget = recipient
	}

	// Step 6: request-to-replier handling.
	if wantReply && replier != nil {
		if msg.To != 0 && msg.To != replier.OwnerID {
			return wire.MessageID{}, false, kerr.New("Send", d.ID, sender.ID, kerr.Pipe, "stateful request's replier has changed")
		}
		rk, ok := d.lookupKsock(replier.OwnerID)
		if !ok {
			return wire.MessageID{}, false, kerr.New("Send", d.ID, sender.ID, kerr.AddrNotAvailable, "replier gone")
		}
		if rk.IsFull() {
			if allOrWait {
				return wire.MessageID{}, true, nil
			}
			return wire.MessageID{}, false, kerr.New("Send", d.ID, sender.ID, kerr.Busy, "replier queue full")
		}
		replierKsock = rk
	}

	// Step 7: listener admission.
	deliverTo := make([]*ksock.Ksock, 0, len(listeners))
	for _, l := range listeners {
		lk, ok := d.lookupKsock(l.OwnerID)
		if !ok {
			continue
		}
		if lk.IsFull() {
			switch {
			case allOrWait:
				return wire.MessageID{}, true, nil
			case allOrFail:
				return wire.MessageID{}, false, kerr.New("Send", d.ID, sender.ID, kerr.Busy, "listener queue full")
			default:
				continue // drop this listener only
			}
		}
		deliverTo = append(deliverTo, lk)
	}

	// Step 8: commit.
	if replyTarget != nil {
		sender.RemoveUnreplied(msg.InReplyTo)
		replyTarget.Push(msg.Clone(), false, false)
	}
	if replierKsock != nil {
		sender.AddOutstanding(msg.ID)
		replierKsock.Push(msg.Clone(), true, msg.Flags.Has(wire.Urgent))
	}
	for _, lk := range deliverTo {
		lk.Push(msg.Clone(), false, msg.Flags.Has(wire.Urgent))
	}
	msg.Release()

	return msg.ID, false, nil
}
