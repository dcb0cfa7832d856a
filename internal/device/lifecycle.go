package device

import (
	"github.com/kbusd/kbus/internal/binding"
	"github.com/kbusd/kbus/internal/kerr"
	"github.com/kbusd/kbus/internal/ksock"
	"github.com/kbusd/kbus/internal/wire"
)

// Open allocates a new Ksock, attaches it to the endpoint registry, and
// wakes the writable channel (a slot is now reachable that wasn't before —
// spec.md §4.5's open step).
func (d *Device) Open() *ksock.Ksock {
	d.mu.Lock()
	defer d.mu.Unlock()

	k := ksock.New(0, d.defaultMaxMessages)
	id := d.ksocks.Attach(k)
	k.ID = id
	d.broadcastWritable()
	d.debugf("ksock %d opened on device %d", id, d.ID)
	return k
}

// Close tears down a Ksock per spec.md §4.5's release algorithm: discards
// in-flight partial I/O, generates GoneAway/Ignored synthetics for
// messages that are now un-answerable, removes this Ksock's bindings
// (publishing unbind events through the safe-report protocol), removes its
// set-aside entries, and detaches it from the registry. Outstanding
// request ids are simply discarded (the eventual reply fails at send step
// 5 once the recipient no longer exists).
func (d *Device) Close(ksockID uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	k, ok := d.lookupKsock(ksockID)
	if !ok {
		return d.errf("Close", ksockID, kerr.NotFound, "no such ksock")
	}

	// Step 1: discard partial read/write.
	if k.Read != nil {
		k.Read.Release()
		k.Read = nil
	}
	k.Write.Reset()
	if k.Sending && k.PendingSend != nil {
		k.PendingSend.Release()
		k.PendingSend = nil
		k.Sending = false
	}

	// Step 2: GoneAway for every queued request still awaiting this Ksock's
	// reply, unless self-addressed.
	for _, msg := range k.DrainAll() {
		if msg.IsRequest() && msg.Flags.Has(wire.WantYouToReply) && msg.From != ksockID {
			d.deliverSynthetic(msg.From, wire.NameReplierGoneAway, msg.ID, nil)
		}
		msg.Release()
	}

	// Step 3: Ignored for every request this Ksock read as Replier and
	// never answered.
	for _, id := range k.UnrepliedIDs() {
		// The original sender is unknown from the id alone; it is
		// recovered from whichever Ksock still holds it outstanding.
		d.ksocks.Each(func(otherID uint32, other *ksock.Ksock) {
			if other.HasOutstanding(id) {
				d.deliverSynthetic(otherID, wire.NameReplierIgnored, id, nil)
			}
		})
	}

	// Step 4: drop this Ksock's bindings, publishing unbind events for
	// replier bindings when enabled.
	for _, b := range d.bindings.RemoveOwner(ksockID) {
		if b.Role == binding.Replier && d.ReportReplierBinds {
			d.publishOrSetAside(false, ksockID, b.Pattern)
		}
	}

	// Step 5: drop set-aside entries destined for this Ksock.
	d.dropSetAsideFor(ksockID)

	// Step 6: remove from the endpoint registry.
	d.ksocks.Detach(ksockID)

	// Step 7: outstanding-requests contents are simply discarded (no
	// explicit bookkeeping needed beyond dropping the Ksock itself).

	d.broadcastWritable()
	d.debugf("ksock %d closed on device %d", ksockID, d.ID)
	return nil
}
