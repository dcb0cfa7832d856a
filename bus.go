// Package kbus is the public API for an in-process KBUS core: open a Bus,
// create devices on it, open Ksock endpoints against a device, and
// bind/send/receive messages through them. internal/transport wraps this
// same API behind a Unix-domain-socket boundary for out-of-process
// clients; cmd/kbusd is a thin caller of it, and cmd/kbusctl reaches it
// only through internal/transport.
package kbus

import (
	"context"
	"time"

	"github.com/kbusd/kbus/internal/binding"
	"github.com/kbusd/kbus/internal/device"
	"github.com/kbusd/kbus/internal/devreg"
	"github.com/kbusd/kbus/internal/wire"
)

// Params configures a Bus's devices. Re-exported from internal/device so
// callers never import an internal package directly.
type Params = device.Params

// DefaultParams returns sensible defaults, matching go-ublk's
// DefaultParams(backend) constructor shape minus the backend argument
// (KBUS has no storage backend to inject).
func DefaultParams() Params { return device.DefaultParams() }

// Bus owns every device and the per-device metrics registered against it.
// Grounded on go-ublk's Device/Backend split: here the "backend" concerns
// (storage) don't apply, so Bus plays the role backend.go's top-level
// Device struct does — the single object an embedder holds onto.
type Bus struct {
	devices *devreg.Registry
	metrics map[uint32]*Metrics
}

// NewBus creates an empty bus. Device 0 always exists, the way a freshly
// loaded kbus kernel module exposes /dev/kbus0 immediately.
func NewBus(params Params) *Bus {
	b := &Bus{
		devices: devreg.New(params),
		metrics: make(map[uint32]*Metrics),
	}
	b.NewDevice()
	return b
}

// NewDevice implements NEW_DEVICE: allocates a fresh device index.
func (b *Bus) NewDevice() uint32 {
	idx, _ := b.devices.NewDevice()
	b.metrics[idx] = NewMetrics()
	return idx
}

// Metrics returns the metrics for a device index, if it exists.
func (b *Bus) Metrics(devIdx uint32) (*Metrics, bool) {
	m, ok := b.metrics[devIdx]
	return m, ok
}

// Open opens a new Ksock endpoint against device devIdx.
func (b *Bus) Open(devIdx uint32) (*Conn, error) {
	d, ok := b.devices.Lookup(devIdx)
	if !ok {
		return nil, NotFoundErr("Open", devIdx)
	}
	k := d.Open()
	return &Conn{bus: b, dev: d, devIdx: devIdx, ksockID: k.ID}, nil
}

// NotFoundErr is a small helper so callers outside internal/kerr can still
// build a conforming NotFound error for a device-level lookup miss.
func NotFoundErr(op string, devIdx uint32) error {
	return &Error{Op: op, DevID: devIdx, Kind: NotFound, Msg: "no such device"}
}

// Conn is one open Ksock endpoint: the unit of binding, sending, and
// receiving (GLOSSARY).
type Conn struct {
	bus     *Bus
	dev     *device.Device
	devIdx  uint32
	ksockID uint32
}

// ID returns this endpoint's Ksock id (KSOCK_ID).
func (c *Conn) ID() uint32 { return c.ksockID }

// Bind binds this endpoint as Listener or Replier to name.
func (c *Conn) Bind(name string, asReplier bool) error {
	role := binding.Listener
	if asReplier {
		role = binding.Replier
	}
	err := c.dev.Bind(c.ksockID, role, name)
	if m, ok := c.bus.Metrics(c.devIdx); ok {
		m.RecordBind(false, err)
	}
	return err
}

// Unbind removes a binding previously created with Bind.
func (c *Conn) Unbind(name string, asReplier bool) error {
	role := binding.Listener
	if asReplier {
		role = binding.Replier
	}
	err := c.dev.Unbind(c.ksockID, role, name)
	if m, ok := c.bus.Metrics(c.devIdx); ok {
		m.RecordBind(true, err)
	}
	return err
}

// FindReplier implements FIND_REPLIER.
func (c *Conn) FindReplier(name string) (uint32, error) {
	return c.dev.FindReplier(name)
}

// Write feeds the next piece of an outgoing message's wire bytes
// (streaming write, spec.md §4.4). Call Send once IsFinished is true.
func (c *Conn) Write(p []byte) (int, error) {
	return c.dev.WriteBytes(c.ksockID, p)
}

// IsWriteFinished reports whether a complete message is buffered and
// ready for Send.
func (c *Conn) IsWriteFinished() bool {
	ok, err := c.dev.IsWriteFinished(c.ksockID)
	return err == nil && ok
}

// Send implements SEND.
func (c *Conn) Send() (wire.MessageID, error) {
	start := time.Now()
	id, err := c.dev.Send(c.ksockID)
	if m, ok := c.bus.Metrics(c.devIdx); ok {
		m.RecordSend(0, uint64(time.Since(start).Nanoseconds()), err)
	}
	return id, err
}

// NextMsg implements NEXT_MSG.
func (c *Conn) NextMsg() (uint32, error) {
	n, err := c.dev.NextMsg(c.ksockID)
	if err == nil && n > 0 {
		if m, ok := c.bus.Metrics(c.devIdx); ok {
			m.RecordReceive()
		}
	}
	return n, err
}

// LenLeft implements LEN_LEFT.
func (c *Conn) LenLeft() (uint32, error) { return c.dev.LenLeft(c.ksockID) }

// Read copies the next piece of the currently-selected message's wire
// bytes (streaming read, spec.md §4.4).
func (c *Conn) Read(p []byte) (int, error) {
	return c.dev.ReadBytes(c.ksockID, p)
}

// Discard implements DISCARD.
func (c *Conn) Discard() error { return c.dev.Discard(c.ksockID) }

// LastSent implements LAST_SENT.
func (c *Conn) LastSent() (wire.MessageID, error) { return c.dev.LastSent(c.ksockID) }

// MaxMessages implements MAX_MESSAGES.
func (c *Conn) MaxMessages(newMax uint32) (uint32, error) {
	return c.dev.MaxMessages(c.ksockID, newMax)
}

// NumMessages implements NUM_MESSAGES.
func (c *Conn) NumMessages() (uint32, error) { return c.dev.NumMessages(c.ksockID) }

// UnrepliedTo implements UNREPLIED_TO.
func (c *Conn) UnrepliedTo() (uint32, error) { return c.dev.UnrepliedTo(c.ksockID) }

// MsgOnlyOnce implements MSG_ONLY_ONCE.
func (c *Conn) MsgOnlyOnce(v uint32) (uint32, error) { return c.dev.MsgOnlyOnce(c.ksockID, v) }

// ReportReplierBinds implements REPORT_REPLIER_BINDS.
func (c *Conn) ReportReplierBinds(v uint32) (uint32, error) {
	return c.dev.ReportReplierBindsOp(c.ksockID, v)
}

// Poll implements the non-blocking half of WAIT.
func (c *Conn) Poll(want device.ReadyFlags) (device.ReadyFlags, error) {
	return c.dev.Poll(c.ksockID, want)
}

// Wait implements the blocking half of WAIT.
func (c *Conn) Wait(ctx context.Context, want device.ReadyFlags, timeout time.Duration) (device.ReadyFlags, error) {
	return c.dev.Wait(ctx, c.ksockID, want, timeout)
}

// Close implements Ksock release (spec.md §4.5).
func (c *Conn) Close() error {
	return c.dev.Close(c.ksockID)
}
