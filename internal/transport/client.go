package transport

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/kbusd/kbus/internal/device"
	"github.com/kbusd/kbus/internal/wire"
)

// Client is a thin blocking client for one connection to a Server: it
// opens exactly one Ksock for the lifetime of the net.Conn it wraps.
// cmd/kbusctl is its only caller — the debug CLI never touches
// internal/device directly, the same way a real KBUS user-space tool
// only ever opens the character device node.
type Client struct {
	nc net.Conn
}

// Dial opens a connection to a Server listening on network/addr (e.g.
// "unix", "/run/kbus/dev0.sock").
func Dial(network, addr string) (*Client, error) {
	nc, err := net.Dial(network, addr)
	if err != nil {
		return nil, err
	}
	return &Client{nc: nc}, nil
}

// Close closes the underlying connection, implicitly releasing the
// Ksock it opened.
func (c *Client) Close() error {
	return c.nc.Close()
}

func (c *Client) roundTrip(op Op, payload []byte) ([]byte, error) {
	if err := WriteFrame(c.nc, uint8(op), payload); err != nil {
		return nil, err
	}
	resp, err := ReadFrame(c.nc)
	if err != nil {
		return nil, err
	}
	if Status(resp.Tag) == StatusErr {
		return nil, parseRemoteErr(resp.Payload)
	}
	return resp.Payload, nil
}

// RemoteError is the client-side representation of an error frame: the
// kind string sent by the server plus its message, without pulling in
// the root kbus package (which would make internal/transport import its
// own importer).
type RemoteError struct {
	Kind string
	Msg  string
}

func (e *RemoteError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Msg) }

func parseRemoteErr(payload []byte) error {
	for i, b := range payload {
		if b == 0 {
			return &RemoteError{Kind: string(payload[:i]), Msg: string(payload[i+1:])}
		}
	}
	return &RemoteError{Kind: "unknown", Msg: string(payload)}
}

func bindPayload(name string, asReplier bool) []byte {
	b := make([]byte, 1+len(name))
	if asReplier {
		b[0] = 1
	}
	copy(b[1:], name)
	return b
}

// Bind implements BIND over the wire.
func (c *Client) Bind(name string, asReplier bool) error {
	_, err := c.roundTrip(OpBind, bindPayload(name, asReplier))
	return err
}

// Unbind implements UNBIND over the wire.
func (c *Client) Unbind(name string, asReplier bool) error {
	_, err := c.roundTrip(OpUnbind, bindPayload(name, asReplier))
	return err
}

// KsockID implements KSOCK_ID over the wire.
func (c *Client) KsockID() (uint32, error) {
	p, err := c.roundTrip(OpKsockID, nil)
	if err != nil {
		return 0, err
	}
	return getU32(p), nil
}

// FindReplier implements FIND_REPLIER over the wire.
func (c *Client) FindReplier(name string) (uint32, error) {
	p, err := c.roundTrip(OpFindReplier, []byte(name))
	if err != nil {
		return 0, err
	}
	return getU32(p), nil
}

// WriteChunk feeds one piece of an outgoing message's wire bytes.
func (c *Client) WriteChunk(b []byte) error {
	_, err := c.roundTrip(OpWriteChunk, b)
	return err
}

// Send implements SEND over the wire, returning the assigned message id.
func (c *Client) Send() (wire.MessageID, error) {
	p, err := c.roundTrip(OpSend, nil)
	if err != nil {
		return wire.MessageID{}, err
	}
	return unpackID(p), nil
}

// NextMsg implements NEXT_MSG over the wire, returning the selected
// message's total length (0 if none queued).
func (c *Client) NextMsg() (uint32, error) {
	p, err := c.roundTrip(OpNextMsg, nil)
	if err != nil {
		return 0, err
	}
	return getU32(p), nil
}

// LenLeft implements LEN_LEFT over the wire.
func (c *Client) LenLeft() (uint32, error) {
	p, err := c.roundTrip(OpLenLeft, nil)
	if err != nil {
		return 0, err
	}
	return getU32(p), nil
}

// ReadChunk implements a streaming READ of up to max bytes.
func (c *Client) ReadChunk(max uint32) ([]byte, error) {
	return c.roundTrip(OpReadChunk, putU32(max))
}

// Discard implements DISCARD over the wire.
func (c *Client) Discard() error {
	_, err := c.roundTrip(OpDiscard, nil)
	return err
}

// LastSent implements LAST_SENT over the wire.
func (c *Client) LastSent() (wire.MessageID, error) {
	p, err := c.roundTrip(OpLastSent, nil)
	if err != nil {
		return wire.MessageID{}, err
	}
	return unpackID(p), nil
}

// MaxMessages implements MAX_MESSAGES over the wire.
func (c *Client) MaxMessages(newMax uint32) (uint32, error) {
	p, err := c.roundTrip(OpMaxMessages, putU32(newMax))
	if err != nil {
		return 0, err
	}
	return getU32(p), nil
}

// NumMessages implements NUM_MESSAGES over the wire.
func (c *Client) NumMessages() (uint32, error) {
	p, err := c.roundTrip(OpNumMessages, nil)
	if err != nil {
		return 0, err
	}
	return getU32(p), nil
}

// UnrepliedTo implements UNREPLIED_TO over the wire.
func (c *Client) UnrepliedTo() (uint32, error) {
	p, err := c.roundTrip(OpUnrepliedTo, nil)
	if err != nil {
		return 0, err
	}
	return getU32(p), nil
}

// MsgOnlyOnce implements MSG_ONLY_ONCE over the wire.
func (c *Client) MsgOnlyOnce(v uint32) (uint32, error) {
	p, err := c.roundTrip(OpMsgOnlyOnce, putU32(v))
	if err != nil {
		return 0, err
	}
	return getU32(p), nil
}

// ReportReplierBinds implements REPORT_REPLIER_BINDS over the wire.
func (c *Client) ReportReplierBinds(v uint32) (uint32, error) {
	p, err := c.roundTrip(OpReportReplierBinds, putU32(v))
	if err != nil {
		return 0, err
	}
	return getU32(p), nil
}

// Wait implements the blocking half of WAIT over the wire. The server
// blocks on its side for up to timeout before replying.
func (c *Client) Wait(want device.ReadyFlags, timeout time.Duration) (device.ReadyFlags, error) {
	payload := make([]byte, 8)
	binary.LittleEndian.PutUint32(payload[0:4], uint32(want))
	binary.LittleEndian.PutUint32(payload[4:8], uint32(timeout/time.Millisecond))
	p, err := c.roundTrip(OpWait, payload)
	if err != nil {
		return 0, err
	}
	return device.ReadyFlags(getU32(p)), nil
}

func unpackID(p []byte) wire.MessageID {
	if len(p) < 8 {
		return wire.MessageID{}
	}
	return wire.MessageID{
		NetworkID: binary.LittleEndian.Uint32(p[0:4]),
		SerialNum: binary.LittleEndian.Uint32(p[4:8]),
	}
}
