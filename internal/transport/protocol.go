// Package transport is the boundary implementation of spec.md §6 over a
// Unix domain socket: the stand-in for the real KBUS character device.
// One connection is one Ksock; each request is a small length-prefixed
// frame carrying one control operation (or a raw write/read chunk of the
// spec's wire format, §6).
//
// Grounded on go-ublk's internal/uapi fixed-size-struct + manual
// binary.LittleEndian marshal style, adapted from "ioctl a real device
// node" to "write a framed request down a stream socket" — the framing
// itself mirrors jacobsa-fuse's connection loop (_examples/jacobsa-fuse),
// which drives a device purely through buffered reads/writes with no
// io_uring involved.
package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Op identifies one request frame's operation.
type Op uint8

const (
	OpBind Op = iota + 1
	OpUnbind
	OpKsockID
	OpFindReplier
	OpWriteChunk
	OpSend
	OpNextMsg
	OpLenLeft
	OpReadChunk
	OpDiscard
	OpLastSent
	OpMaxMessages
	OpNumMessages
	OpUnrepliedTo
	OpMsgOnlyOnce
	OpReportReplierBinds
	OpWait
	OpClose
)

// Status is the single byte every response frame leads with.
type Status uint8

const (
	StatusOK Status = iota
	StatusErr
)

// maxFrame bounds a single frame's payload, guarding against a
// malformed/hostile length prefix.
const maxFrame = 64 << 20

// Frame is one request or response: an 8-bit op/status tag, a 32-bit
// little-endian length prefix, and that many payload bytes.
type Frame struct {
	Tag     uint8
	Payload []byte
}

// WriteFrame writes tag + len(payload) + payload to w.
func WriteFrame(w io.Writer, tag uint8, payload []byte) error {
	hdr := make([]byte, 5)
	hdr[0] = tag
	binary.LittleEndian.PutUint32(hdr[1:], uint32(len(payload)))
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrame reads one frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	hdr := make([]byte, 5)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return Frame{}, err
	}
	n := binary.LittleEndian.Uint32(hdr[1:])
	if n > maxFrame {
		return Frame{}, fmt.Errorf("transport: frame too large (%d bytes)", n)
	}
	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, err
		}
	}
	return Frame{Tag: hdr[0], Payload: payload}, nil
}

func putU32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func getU32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func putU64Pair(a, b uint32) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint32(out[0:4], a)
	binary.LittleEndian.PutUint32(out[4:8], b)
	return out
}
