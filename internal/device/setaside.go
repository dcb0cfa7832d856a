package device

import (
	"github.com/kbusd/kbus/internal/kmsg"
	"github.com/kbusd/kbus/internal/store"
	"github.com/kbusd/kbus/internal/wire"
)

// tryPublishBindEvent attempts the normal ALL_OR_FAIL publish of a
// ReplierBindEvent to every current Listener of that name (spec.md §4.2,
// §4.6). It reports whether every interested Listener had room; on
// success the event has already been pushed to all of them. Must be
// called while holding mu.
func (d *Device) tryPublishBindEvent(isBind bool, binderID uint32, name string) bool {
	listeners, _ := d.bindings.FindListeners(wire.NameReplierBindEvent)

	for _, b := range listeners {
		k, ok := d.lookupKsock(b.OwnerID)
		if !ok {
			continue
		}
		if k.IsFull() {
			return false
		}
	}

	payload := wire.MarshalBindEvent(wire.BindEvent{IsBind: isBind, BinderID: binderID, Name: name})
	proto := &kmsg.Message{
		ID:      wire.MessageID{SerialNum: d.nextSerialID()},
		Flags:   wire.Synthetic,
		Name:    store.NewName(wire.NameReplierBindEvent),
		Payload: store.NewEntirePayload(payload),
	}
	for _, b := range listeners {
		if k, ok := d.lookupKsock(b.OwnerID); ok {
			k.Push(proto.Clone(), false, false)
		}
	}
	proto.Release()
	return true
}

// publishOrSetAside runs the safe-report protocol (spec.md §4.7): try the
// normal publish first; on Busy, stash a copy for every interested
// Listener instead of dropping the event.
func (d *Device) publishOrSetAside(isBind bool, binderID uint32, name string) {
	if d.tryPublishBindEvent(isBind, binderID, name) {
		return
	}
	listeners, _ := d.bindings.FindListeners(wire.NameReplierBindEvent)
	payload := wire.MarshalBindEvent(wire.BindEvent{IsBind: isBind, BinderID: binderID, Name: name})
	for _, b := range listeners {
		proto := &kmsg.Message{
			ID:      wire.MessageID{SerialNum: d.nextSerialID()},
			Flags:   wire.Synthetic,
			Name:    store.NewName(wire.NameReplierBindEvent),
			Payload: store.NewEntirePayload(append([]byte(nil), payload...)),
		}
		d.stashSetAside(b.OwnerID, proto)
	}
}

// stashSetAside appends msg to the device-wide set-aside list for
// ksockID, or — if that Ksock already holds a tragic marker, or the list
// is at capacity — collapses it into a single $.KBUS.UnbindEventsLost
// (spec.md §4.7 step 2b). Must be called while holding mu.
func (d *Device) stashSetAside(ksockID uint32, msg *kmsg.Message) {
	k, ok := d.lookupKsock(ksockID)
	if !ok {
		msg.Release()
		return
	}
	if k.HasTragicSetAside {
		msg.Release()
		return
	}
	if len(d.setAside) >= d.setAsideMax {
		msg.Release()
		d.tragic = true
		k.HasTragicSetAside = true
		k.MaybeHasSetAside = true
		d.setAside = append(d.setAside, setAsideEntry{
			ksockID: ksockID,
			msg: &kmsg.Message{
				ID:    wire.MessageID{SerialNum: d.nextSerialID()},
				Flags: wire.Synthetic,
				Name:  store.NewName(wire.NameUnbindEventsLost),
			},
		})
		return
	}
	k.MaybeHasSetAside = true
	d.setAside = append(d.setAside, setAsideEntry{ksockID: ksockID, msg: msg})
}

// moveSetAsideFor moves exactly one set-aside message belonging to ksockID
// onto its inbound queue, if any, clearing maybe_has_set_aside if none
// remain; called whenever that Ksock frees a slot by reading or
// discarding (spec.md §4.7 step 3). Must be called while holding mu.
func (d *Device) moveSetAsideFor(ksockID uint32) {
	k, ok := d.lookupKsock(ksockID)
	if !ok || !k.MaybeHasSetAside {
		return
	}
	for i, e := range d.setAside {
		if e.ksockID != ksockID {
			continue
		}
		d.setAside = append(d.setAside[:i], d.setAside[i+1:]...)
		k.Push(e.msg, false, false)
		break
	}
	d.refreshSetAsideFlags(ksockID)
}

// dropSetAsideFor discards every set-aside entry for ksockID (Ksock
// release, spec.md §4.5 step 5). Must be called while holding mu.
func (d *Device) dropSetAsideFor(ksockID uint32) {
	kept := d.setAside[:0]
	for _, e := range d.setAside {
		if e.ksockID == ksockID {
			e.msg.Release()
			continue
		}
		kept = append(kept, e)
	}
	d.setAside = kept
	if len(d.setAside) == 0 {
		d.tragic = false
	}
}

func (d *Device) refreshSetAsideFlags(ksockID uint32) {
	k, ok := d.lookupKsock(ksockID)
	if !ok {
		return
	}
	for _, e := range d.setAside {
		if e.ksockID == ksockID {
			return
		}
	}
	k.MaybeHasSetAside = false
	k.HasTragicSetAside = false
	if len(d.setAside) == 0 {
		d.tragic = false
	}
}
