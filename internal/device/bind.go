package device

import (
	"errors"

	"github.com/kbusd/kbus/internal/binding"
	"github.com/kbusd/kbus/internal/kerr"
	"github.com/kbusd/kbus/internal/kmsg"
	"github.com/kbusd/kbus/internal/wire"
)

func translateBindErr(op string, devID, ksockID uint32, err error) error {
	switch {
	case errors.Is(err, binding.ErrBadName):
		return kerr.New(op, devID, ksockID, kerr.BadName, "")
	case errors.Is(err, binding.ErrNameTooLong):
		return kerr.New(op, devID, ksockID, kerr.NameTooLong, "")
	case errors.Is(err, binding.ErrAlreadyBound):
		return kerr.New(op, devID, ksockID, kerr.AlreadyBound, "")
	case errors.Is(err, binding.ErrNotFound):
		return kerr.New(op, devID, ksockID, kerr.NotFound, "")
	case errors.Is(err, binding.ErrReservedName):
		return kerr.New(op, devID, ksockID, kerr.BadMessage, "reserved bind-event name")
	default:
		return kerr.Wrap(op, devID, ksockID, kerr.BadName, err)
	}
}

// Bind adds a binding for ksockID (spec.md §4.2). If role is Replier and
// report-replier-binds is enabled, a bind event is published under
// ALL_OR_FAIL; if that publication is Busy, the bind itself is rolled back
// and refused with Busy.
func (d *Device) Bind(ksockID uint32, role binding.Role, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.lookupKsock(ksockID); !ok {
		return kerr.New("Bind", d.ID, ksockID, kerr.NotFound, "no such ksock")
	}

	b, err := d.bindings.Bind(ksockID, role, name)
	if err != nil {
		return translateBindErr("Bind", d.ID, ksockID, err)
	}

	if role == binding.Replier && d.ReportReplierBinds {
		if !d.tryPublishBindEvent(true, ksockID, name) {
			d.bindings.UnbindByID(b.ID)
			return kerr.New("Bind", d.ID, ksockID, kerr.Busy, "bind-event publication busy")
		}
	}
	return nil
}

// Unbind removes a binding for ksockID (spec.md §4.2). Any still-queued
// messages in this Ksock's own inbound queue that exist because of this
// exact binding are pulled back, generating Replier.Unbound synthetics for
// the ones that were requests. A replier unbind, with reporting enabled,
// publishes its event via the safe-report protocol rather than failing.
func (d *Device) Unbind(ksockID uint32, role binding.Role, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	k, ok := d.lookupKsock(ksockID)
	if !ok {
		return kerr.New("Unbind", d.ID, ksockID, kerr.NotFound, "no such ksock")
	}

	_, err := d.bindings.Unbind(ksockID, role, name)
	if err != nil {
		return translateBindErr("Unbind", d.ID, ksockID, err)
	}

	wantReplier := role == binding.Replier
	removed := k.RemoveQueued(func(m *kmsg.Message) bool {
		return wire.Matches(name, m.NameString()) && m.Flags.Has(wire.WantYouToReply) == wantReplier
	})
	for _, m := range removed {
		if m.IsRequest() {
			d.deliverSynthetic(m.From, wire.NameReplierUnbound, m.ID, nil)
		}
		m.Release()
	}

	if role == binding.Replier && d.ReportReplierBinds {
		d.publishOrSetAside(false, ksockID, name)
	}

	d.broadcastWritable()
	return nil
}
