package kbus

import (
	"io"

	"github.com/kbusd/kbus/internal/wire"
)

// NewTestBus creates a Bus with default params, for use in tests and
// small examples that don't need daemon-level configuration. Grounded on
// go-ublk's testing.go, which likewise exports a ready-to-use fixture
// (MockBackend) rather than making every caller assemble one by hand.
func NewTestBus() *Bus {
	return NewBus(DefaultParams())
}

// SendMessage is a convenience wrapper around the streaming Write/Send
// pair: it marshals name/payload/flags as an "entire" message (spec.md
// §6), feeds it through Write in one call, and issues Send. It does not
// handle EAGAIN retries itself — callers that set ALL_OR_WAIT should use
// Write/Send directly so they can Wait on writability between attempts.
func (c *Conn) SendMessage(name string, payload []byte, flags wire.Flags) (wire.MessageID, error) {
	hdr := wire.Header{
		Flags:   uint32(flags),
		NameLen: uint32(len(name)),
		DataLen: uint32(len(payload)),
	}
	buf := wire.MarshalHeader(&hdr)

	namePadded := wire.Pad4(len(name) + 1)
	nameField := make([]byte, namePadded)
	copy(nameField, name)
	buf = append(buf, nameField...)

	dataPadded := wire.Pad4(len(payload))
	dataField := make([]byte, dataPadded)
	copy(dataField, payload)
	buf = append(buf, dataField...)

	buf = wire.PutEndGuard(buf)

	if _, err := c.Write(buf); err != nil {
		return wire.MessageID{}, err
	}
	return c.Send()
}

// ReplyMessage is SendMessage's counterpart for answering a request: it
// sets in_reply_to and to from the received request's envelope.
func (c *Conn) ReplyMessage(inReplyTo wire.MessageID, to uint32, name string, payload []byte) (wire.MessageID, error) {
	hdr := wire.Header{
		InReplyTo: inReplyTo,
		To:        to,
		NameLen:   uint32(len(name)),
		DataLen:   uint32(len(payload)),
	}
	buf := wire.MarshalHeader(&hdr)

	namePadded := wire.Pad4(len(name) + 1)
	nameField := make([]byte, namePadded)
	copy(nameField, name)
	buf = append(buf, nameField...)

	dataPadded := wire.Pad4(len(payload))
	dataField := make([]byte, dataPadded)
	copy(dataField, payload)
	buf = append(buf, dataField...)

	buf = wire.PutEndGuard(buf)

	if _, err := c.Write(buf); err != nil {
		return wire.MessageID{}, err
	}
	return c.Send()
}

// ReceivedMessage is the result of Receive: the unmarshaled fields of one
// popped-and-fully-read message.
type ReceivedMessage struct {
	ID        wire.MessageID
	InReplyTo wire.MessageID
	From      uint32
	To        uint32
	Flags     wire.Flags
	Name      string
	Payload   []byte
}

// Receive implements NEXT_MSG followed by draining the full read buffer,
// returning the unmarshaled message. It returns (nil, nil) if no message
// is currently queued.
func (c *Conn) Receive() (*ReceivedMessage, error) {
	n, err := c.NextMsg()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(structReader{c}, buf); err != nil {
		return nil, err
	}
	return parseEntireMessage(buf)
}

// structReader adapts Conn.Read to io.Reader for io.ReadFull.
type structReader struct{ c *Conn }

func (r structReader) Read(p []byte) (int, error) {
	n, err := r.c.Read(p)
	if n == 0 && err == nil {
		return 0, io.EOF
	}
	return n, err
}

func parseEntireMessage(buf []byte) (*ReceivedMessage, error) {
	var hdr wire.Header
	if err := wire.UnmarshalHeader(buf, &hdr); err != nil {
		return nil, err
	}
	off := wire.HeaderSize
	name := nullTerminated(buf[off : off+int(hdr.NameLen)+1])
	off += wire.Pad4(int(hdr.NameLen) + 1)
	payload := append([]byte(nil), buf[off:off+int(hdr.DataLen)]...)

	return &ReceivedMessage{
		ID:        hdr.ID,
		InReplyTo: hdr.InReplyTo,
		From:      hdr.From,
		To:        hdr.To,
		Flags:     wire.Flags(hdr.Flags),
		Name:      name,
		Payload:   payload,
	}, nil
}

func nullTerminated(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
