package wire

import (
	"encoding/binary"
	"errors"
)

// ErrInsufficientData is returned by UnmarshalHeader when the supplied
// buffer is shorter than HeaderSize.
var ErrInsufficientData = errors.New("wire: insufficient data")

// ErrBadGuard is returned when a guard word does not match its sentinel.
var ErrBadGuard = errors.New("wire: bad guard")

// MarshalHeader writes h's fields, in wire order, to a freshly allocated
// HeaderSize-byte buffer including the leading start guard. Matches
// go-ublk's internal/uapi hand-rolled binary.LittleEndian field packing
// rather than an unsafe struct copy, since Header's field sizes are mixed
// and a raw memory copy would not be portable across Go's struct padding.
func MarshalHeader(h *Header) []byte {
	buf := make([]byte, HeaderSize)
	putHeader(buf, h)
	return buf
}

func putHeader(buf []byte, h *Header) {
	off := 0
	put32 := func(v uint32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], v)
		off += 4
	}
	put64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[off:off+8], v)
		off += 8
	}

	put32(StartGuard)
	put32(h.ID.NetworkID)
	put32(h.ID.SerialNum)
	put32(h.InReplyTo.NetworkID)
	put32(h.InReplyTo.SerialNum)
	put32(h.To)
	put32(h.From)
	put32(h.OrigFrom.NetworkID)
	put32(h.OrigFrom.LocalID)
	put32(h.FinalTo.NetworkID)
	put32(h.FinalTo.LocalID)
	put32(h.Extra)
	put32(h.Flags)
	put32(h.NameLen)
	put32(h.DataLen)
	put64(h.NamePtr)
	put64(h.DataPtr)
}

// UnmarshalHeader parses HeaderSize bytes (including the leading start
// guard) into h. It returns ErrBadGuard if the start guard does not match.
func UnmarshalHeader(buf []byte, h *Header) error {
	if len(buf) < HeaderSize {
		return ErrInsufficientData
	}
	off := 0
	get32 := func() uint32 {
		v := binary.LittleEndian.Uint32(buf[off : off+4])
		off += 4
		return v
	}
	get64 := func() uint64 {
		v := binary.LittleEndian.Uint64(buf[off : off+8])
		off += 8
		return v
	}

	guard := get32()
	if guard != StartGuard {
		return ErrBadGuard
	}
	h.ID.NetworkID = get32()
	h.ID.SerialNum = get32()
	h.InReplyTo.NetworkID = get32()
	h.InReplyTo.SerialNum = get32()
	h.To = get32()
	h.From = get32()
	h.OrigFrom.NetworkID = get32()
	h.OrigFrom.LocalID = get32()
	h.FinalTo.NetworkID = get32()
	h.FinalTo.LocalID = get32()
	h.Extra = get32()
	h.Flags = get32()
	h.NameLen = get32()
	h.DataLen = get32()
	h.NamePtr = get64()
	h.DataPtr = get64()
	return nil
}

// Pad4 returns n rounded up to the next multiple of 4.
func Pad4(n int) int {
	return (n + 3) &^ 3
}

// PutEndGuard appends the trailing 4-byte end guard to buf.
func PutEndGuard(buf []byte) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], EndGuard)
	return append(buf, tmp[:]...)
}
