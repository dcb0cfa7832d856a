package device

import (
	"github.com/kbusd/kbus/internal/kmsg"
	"github.com/kbusd/kbus/internal/store"
	"github.com/kbusd/kbus/internal/wire"
)

// deliverSynthetic builds and pushes a core-generated diagnostic message to
// targetID, bypassing normal admission (spec.md §4.6: "the reserved slot
// for a reply was guaranteed at the time the request was accepted for
// send"). It is a silent no-op if targetID no longer exists. Must be
// called while holding mu.
func (d *Device) deliverSynthetic(targetID uint32, name string, inReplyTo wire.MessageID, payload []byte) {
	target, ok := d.lookupKsock(targetID)
	if !ok {
		return
	}
	msg := &kmsg.Message{
		ID:        wire.MessageID{SerialNum: d.nextSerialID()},
		InReplyTo: inReplyTo,
		To:        targetID,
		From:      0,
		Flags:     wire.Synthetic,
		Name:      store.NewName(name),
	}
	if len(payload) > 0 {
		msg.Payload = store.NewEntirePayload(payload)
	}
	target.Push(msg, false, false)
}
