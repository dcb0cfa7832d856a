package device

import (
	"context"
	"time"

	"github.com/kbusd/kbus/internal/kerr"
)

// ReadyFlags mirrors the WAIT control operation's {read|write} bitset
// (spec.md §6).
type ReadyFlags uint32

const (
	ReadyForRead ReadyFlags = 1 << iota
	ReadyForWrite
)

func (d *Device) poll(ksockID uint32, want ReadyFlags) (ReadyFlags, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k, ok := d.lookupKsock(ksockID)
	if !ok {
		return 0, kerr.New("Wait", d.ID, ksockID, kerr.NotFound, "no such ksock")
	}
	var ready ReadyFlags
	if want&ReadyForRead != 0 && k.QueueLen() > 0 {
		ready |= ReadyForRead
	}
	if want&ReadyForWrite != 0 && (!k.Sending || !k.IsFull()) {
		ready |= ReadyForWrite
	}
	return ready, nil
}

// Poll implements the non-blocking half of WAIT: it reports readiness
// immediately without sleeping.
func (d *Device) Poll(ksockID uint32, want ReadyFlags) (ReadyFlags, error) {
	return d.poll(ksockID, want)
}

// Wait implements the blocking half of WAIT (spec.md §5, §9): it sleeps on
// the Ksock's readable signal and/or the device's writable signal until at
// least one requested condition holds, the timeout elapses, or ctx is
// canceled. A canceled wait reports "restart" (ErrWaitCanceled) with no
// state changed; a timeout reports no ready flags with a nil error,
// matching a conforming boundary's poll-with-deadline
// semantics.
func (d *Device) Wait(ctx context.Context, ksockID uint32, want ReadyFlags, timeout time.Duration) (ReadyFlags, error) {
	var timer *time.Timer
	var deadlineC <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		deadlineC = timer.C
	}

	for {
		d.mu.Lock()
		k, ok := d.lookupKsock(ksockID)
		if !ok {
			d.mu.Unlock()
			return 0, kerr.New("Wait", d.ID, ksockID, kerr.NotFound, "no such ksock")
		}
		var ready ReadyFlags
		if want&ReadyForRead != 0 && k.QueueLen() > 0 {
			ready |= ReadyForRead
		}
		if want&ReadyForWrite != 0 && (!k.Sending || !k.IsFull()) {
			ready |= ReadyForWrite
		}
		if ready != 0 {
			d.mu.Unlock()
			return ready, nil
		}
		readableCh := k.Readable()
		writableCh := d.writable
		d.mu.Unlock()

		select {
		case <-ctx.Done():
			return 0, ErrWaitCanceled
		case <-deadlineC:
			return 0, nil
		case <-readableCh:
		case <-writableCh:
		}
	}
}

// ErrWaitCanceled is returned by Wait when ctx is canceled mid-sleep
// (spec.md §5: "an interruptible wait... returns with restart status,
// leaving no state changed").
var ErrWaitCanceled = kerr.New("Wait", 0, 0, kerr.Again, "wait canceled, restart")
