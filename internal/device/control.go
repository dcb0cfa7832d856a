package device

import (
	"github.com/kbusd/kbus/internal/kerr"
	"github.com/kbusd/kbus/internal/ksock"
	"github.com/kbusd/kbus/internal/wire"
)

// KsockID returns ksockID's own id — trivially whatever the caller already
// has, kept as a control operation for parity with the wire protocol's
// KSOCK_ID (spec.md §6).
func (d *Device) KsockID(ksockID uint32) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.lookupKsock(ksockID); !ok {
		return 0, kerr.New("KsockID", d.ID, ksockID, kerr.NotFound, "no such ksock")
	}
	return ksockID, nil
}

// FindReplier implements FIND_REPLIER: exact-match lookup, 0 if none.
func (d *Device) FindReplier(name string) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(name) > wire.MaxNameLen {
		return 0, kerr.New("FindReplier", d.ID, 0, kerr.NameTooLong, "")
	}
	id, _ := d.bindings.FindReplierExact(name)
	return id, nil
}

// NextMsg implements NEXT_MSG: discards any half-read prior message,
// advances to the head of the inbound queue if non-empty, and reports its
// byte length (0 if none is ready).
func (d *Device) NextMsg(ksockID uint32) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k, ok := d.lookupKsock(ksockID)
	if !ok {
		return 0, kerr.New("NextMsg", d.ID, ksockID, kerr.NotFound, "no such ksock")
	}
	if k.Read != nil {
		k.Read.Release()
		k.Read = nil
	}
	msg, ok := k.Pop()
	if !ok {
		return 0, nil
	}
	d.moveSetAsideFor(ksockID)
	d.broadcastWritable()
	if msg.Flags.Has(wire.WantYouToReply) {
		k.AddUnreplied(msg.ID)
	}
	k.Read = ksock.NewReadBuffer(msg)
	return uint32(k.Read.Len()), nil
}

// LenLeft implements LEN_LEFT: bytes left in the current read, 0 if none.
func (d *Device) LenLeft(ksockID uint32) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k, ok := d.lookupKsock(ksockID)
	if !ok {
		return 0, kerr.New("LenLeft", d.ID, ksockID, kerr.NotFound, "no such ksock")
	}
	return uint32(k.Read.Len()), nil
}

// Discard implements DISCARD: abandons the in-progress read.
func (d *Device) Discard(ksockID uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	k, ok := d.lookupKsock(ksockID)
	if !ok {
		return kerr.New("Discard", d.ID, ksockID, kerr.NotFound, "no such ksock")
	}
	if k.Read != nil {
		k.Read.Release()
		k.Read = nil
	}
	return nil
}

// LastSent implements LAST_SENT.
func (d *Device) LastSent(ksockID uint32) (wire.MessageID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k, ok := d.lookupKsock(ksockID)
	if !ok {
		return wire.MessageID{}, kerr.New("LastSent", d.ID, ksockID, kerr.NotFound, "no such ksock")
	}
	return k.LastSendAttempted, nil
}

// MaxMessages implements MAX_MESSAGES: newMax == 0 queries the current
// value; any other value sets it. Returns the previous value.
func (d *Device) MaxMessages(ksockID uint32, newMax uint32) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k, ok := d.lookupKsock(ksockID)
	if !ok {
		return 0, kerr.New("MaxMessages", d.ID, ksockID, kerr.NotFound, "no such ksock")
	}
	prev := uint32(k.MaxMessages)
	if newMax != 0 {
		k.MaxMessages = int(newMax)
		d.broadcastWritable()
	}
	return prev, nil
}

// NumMessages implements NUM_MESSAGES.
func (d *Device) NumMessages(ksockID uint32) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k, ok := d.lookupKsock(ksockID)
	if !ok {
		return 0, kerr.New("NumMessages", d.ID, ksockID, kerr.NotFound, "no such ksock")
	}
	return uint32(k.QueueLen()), nil
}

// UnrepliedTo implements UNREPLIED_TO.
func (d *Device) UnrepliedTo(ksockID uint32) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k, ok := d.lookupKsock(ksockID)
	if !ok {
		return 0, kerr.New("UnrepliedTo", d.ID, ksockID, kerr.NotFound, "no such ksock")
	}
	return uint32(k.UnrepliedLen()), nil
}

// msgOnlyOnceTristate validates the MSG_ONLY_ONCE/REPORT_REPLIER_BINDS
// tristate encoding (spec.md §6): 0 clears, 1 sets, 0xFFFFFFFF queries.
func msgOnlyOnceTristate(v uint32) (set, query bool, newVal bool, err error) {
	switch v {
	case 0:
		return true, false, false, nil
	case 1:
		return true, false, true, nil
	case 0xFFFFFFFF:
		return false, true, false, nil
	default:
		return false, false, false, kerr.New("", 0, 0, kerr.Invalid, "must be 0, 1, or 0xFFFFFFFF")
	}
}

// MsgOnlyOnce implements MSG_ONLY_ONCE. Returns the previous value (0/1).
func (d *Device) MsgOnlyOnce(ksockID uint32, v uint32) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k, ok := d.lookupKsock(ksockID)
	if !ok {
		return 0, kerr.New("MsgOnlyOnce", d.ID, ksockID, kerr.NotFound, "no such ksock")
	}
	set, query, newVal, err := msgOnlyOnceTristate(v)
	if err != nil {
		return 0, kerr.New("MsgOnlyOnce", d.ID, ksockID, kerr.Invalid, err.Error())
	}
	prev := uint32(0)
	if k.MessagesOnlyOnce {
		prev = 1
	}
	if query {
		return prev, nil
	}
	if set {
		k.MessagesOnlyOnce = newVal
	}
	return prev, nil
}

// ReportReplierBindsOp implements REPORT_REPLIER_BINDS, a device-wide
// toggle despite being issued through one Ksock's endpoint.
func (d *Device) ReportReplierBindsOp(ksockID uint32, v uint32) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.lookupKsock(ksockID); !ok {
		return 0, kerr.New("ReportReplierBinds", d.ID, ksockID, kerr.NotFound, "no such ksock")
	}
	set, query, newVal, err := msgOnlyOnceTristate(v)
	if err != nil {
		return 0, kerr.New("ReportReplierBinds", d.ID, ksockID, kerr.Invalid, err.Error())
	}
	prev := uint32(0)
	if d.ReportReplierBinds {
		prev = 1
	}
	if query {
		return prev, nil
	}
	if set {
		d.ReportReplierBinds = newVal
	}
	return prev, nil
}
