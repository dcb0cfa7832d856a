package wire

// Guard sentinels let a reader detect a torn or corrupt stream: StartGuard
// leads every header, and EndGuard trails the padded data of every
// "entire" message. A "pointy" message carries no end guard.
const (
	StartGuard uint32 = 0x7375624B
	EndGuard   uint32 = 0x4B627573
)

// Header is the fixed-size portion of a message as carried across the
// stream boundary (§6). Marshal/Unmarshal in marshal.go convert it to and
// from the little-endian, 4-byte-aligned byte layout; field order in this
// struct follows the wire order, not memory layout, since marshaling is
// always done field-by-field rather than by raw struct copy.
type Header struct {
	ID               MessageID
	InReplyTo        MessageID
	To               uint32
	From             uint32
	OrigFrom         EndpointID
	FinalTo          EndpointID
	Extra            uint32
	Flags            uint32
	NameLen          uint32
	DataLen          uint32
	NamePtr          uint64 // 0 => name follows inline ("entire" message)
	DataPtr          uint64 // 0 => data follows inline ("entire" message)
}

// HeaderSize is the number of bytes MarshalHeader writes, including the
// leading start guard; the end guard is not part of the header.
const HeaderSize = 4 + // start guard
	8 + 8 + // id, in_reply_to
	4 + 4 + // to, from
	8 + 8 + // orig_from, final_to
	4 + 4 + // extra, flags
	4 + 4 + // name_len, data_len
	8 + 8 // name_ptr, data_ptr

// IsPointy reports whether h describes a message whose name/data live in
// caller memory rather than inline in the stream.
func (h *Header) IsPointy() bool {
	return h.NamePtr != 0 || h.DataPtr != 0
}
