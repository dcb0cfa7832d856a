package device

import (
	"errors"

	"github.com/kbusd/kbus/internal/kerr"
	"github.com/kbusd/kbus/internal/ksock"
)

// translateWriteErr maps the ksock write-buffer's sentinel errors onto the
// matching Kind, the way translateBindErr does for the binding table.
func translateWriteErr(op string, devID, ksockID uint32, err error) error {
	switch {
	case errors.Is(err, ksock.ErrAlreadyInUse):
		return kerr.New(op, devID, ksockID, kerr.AlreadyInUse, "write buffer locked pending retry")
	case errors.Is(err, ksock.ErrNoPinnedRegion):
		return kerr.New(op, devID, ksockID, kerr.Fault, "pointy message with no region resolver")
	case errors.Is(err, ksock.ErrBadMessage):
		return kerr.New(op, devID, ksockID, kerr.BadMessage, "malformed message")
	default:
		return kerr.Wrap(op, devID, ksockID, kerr.BadMessage, err)
	}
}

// WriteBytes feeds the next piece of ksockID's outgoing message bytes into
// its streaming-write buffer (spec.md §4.4), under the Big Lock.
func (d *Device) WriteBytes(ksockID uint32, p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k, ok := d.lookupKsock(ksockID)
	if !ok {
		return 0, kerr.New("Write", d.ID, ksockID, kerr.NotFound, "no such ksock")
	}
	n, err := k.Write.Write(p)
	if err != nil {
		return n, translateWriteErr("Write", d.ID, ksockID, err)
	}
	return n, nil
}

// IsWriteFinished reports whether ksockID's write buffer holds a complete
// message ready for Send.
func (d *Device) IsWriteFinished(ksockID uint32) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k, ok := d.lookupKsock(ksockID)
	if !ok {
		return false, kerr.New("Write", d.ID, ksockID, kerr.NotFound, "no such ksock")
	}
	return k.Write.IsFinished(), nil
}

// ReadBytes copies the next piece of ksockID's currently-selected message
// (populated by NextMsg) into p.
func (d *Device) ReadBytes(ksockID uint32, p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k, ok := d.lookupKsock(ksockID)
	if !ok {
		return 0, kerr.New("Read", d.ID, ksockID, kerr.NotFound, "no such ksock")
	}
	return k.Read.Read(p)
}
