package ksock

import "github.com/kbusd/kbus/internal/kmsg"

// ReadBuffer is the per-Ksock streaming-read state machine (spec.md §4.4):
// once a message is popped off the inbound queue, its header/name/payload
// are laid out as one byte stream and a cursor tracks how much has been
// copied to the user. The message (and its references) is released only
// once the final byte — the trailing end guard — has been delivered, or
// the read is abandoned via Discard.
type ReadBuffer struct {
	msg    *kmsg.Message
	bytes  []byte
	cursor int
}

// NewReadBuffer lays out msg's wire bytes: header (with leading start
// guard), name + null + pad, data + pad, trailing end guard — the same six
// parts the write side parses, in the same order (spec.md §4.4, §6).
func NewReadBuffer(msg *kmsg.Message) *ReadBuffer {
	return &ReadBuffer{msg: msg, bytes: marshalEntire(msg)}
}

// Len reports the total bytes left to read for this message.
func (r *ReadBuffer) Len() int {
	if r == nil {
		return 0
	}
	return len(r.bytes) - r.cursor
}

// Read copies up to len(p) bytes starting at the cursor, advancing it.
func (r *ReadBuffer) Read(p []byte) (int, error) {
	if r == nil || r.Len() == 0 {
		return 0, nil
	}
	n := copy(p, r.bytes[r.cursor:])
	r.cursor += n
	if r.Len() == 0 {
		r.Release()
	}
	return n, nil
}

// Done reports whether every byte has been delivered.
func (r *ReadBuffer) Done() bool {
	return r != nil && r.Len() == 0
}

// Release drops the underlying message's name/payload references. Read
// calls it once the last byte has been delivered; NextMsg/Discard call it
// when the read is abandoned before it finished. Calling it again is a
// no-op.
func (r *ReadBuffer) Release() {
	if r == nil || r.msg == nil {
		return
	}
	r.msg.Release()
	r.msg = nil
}

// Message returns the message this buffer is serializing, for callers that
// want structured access (e.g. an in-process API) instead of raw bytes.
func (r *ReadBuffer) Message() *kmsg.Message {
	if r == nil {
		return nil
	}
	return r.msg
}
