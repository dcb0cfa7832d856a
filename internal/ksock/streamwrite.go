package ksock

import (
	"github.com/kbusd/kbus/internal/kmsg"
	"github.com/kbusd/kbus/internal/store"
	"github.com/kbusd/kbus/internal/wire"
)

// MaxPayloadBytes bounds a single message's payload, a sanity cap the
// source's kernel allocator enforced implicitly via its page accounting;
// here it guards against an unbounded allocation from a malformed length
// field.
const MaxPayloadBytes = 64 << 20

type writeState int

const (
	writeHeader writeState = iota
	writeName
	writeNamePad
	writeData
	writeDataPad
	writeEndGuard
	writeDone
)

// RegionResolver looks up the bytes a "pointy" header's name/data pointer
// refers to. A real character device would copy from the calling process's
// address space; in this port, a resolver stands in for whatever mechanism
// the boundary layer uses to pin caller-owned buffers (spec.md §4.4's
// "copies them from user memory on demand"). internal/transport never
// constructs pointy headers (a socket has no shared address space to point
// into), so the default Ksock has no resolver configured and pointy writes
// fail with ErrNoPinnedRegion.
type RegionResolver func(ptr uint64, length uint32) ([]byte, error)

// WriteBuffer is the per-Ksock streaming-write state machine (spec.md
// §4.4). Bytes arrive in arbitrarily small pieces across many Write calls;
// WriteBuffer advances HDR → NAME → NAME-PAD → DATA → DATA-PAD →
// END_GUARD and reports IsFinished once a structurally valid message is
// fully buffered.
type WriteBuffer struct {
	resolve RegionResolver

	state writeState
	acc   []byte // accumulator for the current state's remaining bytes
	need  int    // bytes still needed to complete the current state

	hdr    wire.Header
	pointy bool

	nameBuf []byte
	dataBuf []byte

	locked bool
}

// NewWriteBuffer creates an empty write buffer. resolve may be nil if this
// Ksock never accepts pointy messages.
func NewWriteBuffer(resolve RegionResolver) *WriteBuffer {
	w := &WriteBuffer{resolve: resolve}
	w.reset()
	return w
}

func (w *WriteBuffer) reset() {
	w.state = writeHeader
	w.acc = make([]byte, 0, wire.HeaderSize)
	w.need = wire.HeaderSize
	w.hdr = wire.Header{}
	w.pointy = false
	w.nameBuf = nil
	w.dataBuf = nil
}

// Locked reports whether this buffer is held pending an EAGAIN retry.
func (w *WriteBuffer) Locked() bool { return w.locked }

// Lock marks the buffer as pending retry; further Write calls fail with
// ErrAlreadyInUse until Unlock.
func (w *WriteBuffer) Lock() { w.locked = true }

// Unlock clears the retry-pending state.
func (w *WriteBuffer) Unlock() { w.locked = false }

// IsFinished reports whether a complete, structurally valid message is
// ready to be read out with Message.
func (w *WriteBuffer) IsFinished() bool {
	return w.state == writeDone
}

// Write feeds the next piece of the incoming byte stream. It returns the
// number of bytes consumed and an error if the stream is malformed (bad
// guard, length overflow) or if bytes arrive after the message already
// finished, or while the buffer is locked pending retry.
func (w *WriteBuffer) Write(p []byte) (int, error) {
	if w.locked {
		return 0, ErrAlreadyInUse
	}
	total := 0
	for len(p) > 0 {
		if w.state == writeDone {
			return total, ErrBadMessage // extra bytes after is_finished
		}
		take := w.need
		if take > len(p) {
			take = len(p)
		}
		w.acc = append(w.acc, p[:take]...)
		w.need -= take
		p = p[take:]
		total += take
		if w.need > 0 {
			return total, nil
		}
		if err := w.advance(); err != nil {
			return total, err
		}
	}
	return total, nil
}

// advance is called whenever the current state's byte requirement has
// been fully met; it parses/validates what was accumulated and moves to
// the next state (or resolves a pointy message's name/data immediately).
func (w *WriteBuffer) advance() error {
	switch w.state {
	case writeHeader:
		if err := wire.UnmarshalHeader(w.acc, &w.hdr); err != nil {
			return ErrBadMessage
		}
		if w.hdr.Extra != 0 {
			return ErrBadMessage
		}
		if w.hdr.NameLen > wire.MaxNameLen {
			return ErrBadMessage
		}
		if w.hdr.DataLen > MaxPayloadBytes {
			return ErrBadMessage
		}
		w.pointy = w.hdr.IsPointy()
		if w.pointy {
			if err := w.resolvePointy(); err != nil {
				return err
			}
			w.state = writeDone
			return nil
		}
		w.state = writeName
		w.acc = make([]byte, 0, w.hdr.NameLen)
		w.need = int(w.hdr.NameLen)
		return nil

	case writeName:
		w.nameBuf = append([]byte(nil), w.acc...)
		padded := wire.Pad4(len(w.nameBuf) + 1) // + null terminator
		w.state = writeNamePad
		w.acc = w.acc[:0]
		w.need = padded - len(w.nameBuf)
		if w.need == 0 {
			return w.advance()
		}
		return nil

	case writeNamePad:
		w.state = writeData
		w.acc = make([]byte, 0, w.hdr.DataLen)
		w.need = int(w.hdr.DataLen)
		if w.need == 0 {
			return w.advance()
		}
		return nil

	case writeData:
		w.dataBuf = append([]byte(nil), w.acc...)
		padded := wire.Pad4(len(w.dataBuf))
		w.state = writeDataPad
		w.acc = w.acc[:0]
		w.need = padded - len(w.dataBuf)
		if w.need == 0 {
			return w.advance()
		}
		return nil

	case writeDataPad:
		w.state = writeEndGuard
		w.acc = w.acc[:0]
		w.need = 4
		return nil

	case writeEndGuard:
		guard := uint32(w.acc[0]) | uint32(w.acc[1])<<8 | uint32(w.acc[2])<<16 | uint32(w.acc[3])<<24
		if guard != wire.EndGuard {
			return ErrBadMessage
		}
		w.state = writeDone
		return nil
	}
	return nil
}

func (w *WriteBuffer) resolvePointy() error {
	if w.resolve == nil {
		return ErrNoPinnedRegion
	}
	if w.hdr.NamePtr != 0 {
		name, err := w.resolve(w.hdr.NamePtr, w.hdr.NameLen)
		if err != nil {
			return ErrBadMessage
		}
		w.nameBuf = append([]byte(nil), name...)
	}
	if w.hdr.DataPtr != 0 && w.hdr.DataLen > 0 {
		data, err := w.resolve(w.hdr.DataPtr, w.hdr.DataLen)
		if err != nil {
			return ErrBadMessage
		}
		w.dataBuf = append([]byte(nil), data...)
	}
	return nil
}

// Message builds the parsed Message once IsFinished is true. It validates
// the name against the send grammar; an unfinished buffer and a name that
// fails the grammar both return ErrBadMessage.
func (w *WriteBuffer) Message() (*kmsg.Message, error) {
	if !w.IsFinished() {
		return nil, ErrBadMessage
	}
	if !wire.ValidForSend(string(w.nameBuf)) {
		return nil, ErrBadMessage
	}
	msg := &kmsg.Message{
		ID:        w.hdr.ID,
		InReplyTo: w.hdr.InReplyTo,
		To:        w.hdr.To,
		OrigFrom:  w.hdr.OrigFrom,
		FinalTo:   w.hdr.FinalTo,
		Flags:     wire.Flags(w.hdr.Flags),
		Name:      store.NewName(string(w.nameBuf)),
	}
	if len(w.dataBuf) > 0 {
		msg.Payload = store.NewEntirePayload(append([]byte(nil), w.dataBuf...))
	}
	return msg, nil
}

// Reset clears the buffer for the next message, after Message (or a
// rejected message) has been consumed.
func (w *WriteBuffer) Reset() {
	w.reset()
}
