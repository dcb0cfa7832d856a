package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	kbus "github.com/kbusd/kbus"
	"github.com/kbusd/kbus/internal/device"
	"github.com/kbusd/kbus/internal/logging"
)

// Server accepts connections on a Unix domain socket and serves spec.md §6
// against a single device index. One accepted connection is one Ksock,
// opened on accept and closed when the connection drops.
type Server struct {
	bus    *kbus.Bus
	devIdx uint32
	log    *logging.Logger
}

// NewServer builds a Server for one device on bus.
func NewServer(bus *kbus.Bus, devIdx uint32) *Server {
	return &Server{bus: bus, devIdx: devIdx, log: logging.Default()}
}

// Serve accepts connections on ln until it errors or ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return err
		}
		go s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, nc net.Conn) {
	connID := uuid.NewString()
	defer nc.Close()

	c, err := s.bus.Open(s.devIdx)
	if err != nil {
		s.log.Warnf("transport %s: open device %d failed: %v", connID, s.devIdx, err)
		return
	}
	if cred, ok := peerCredentials(nc); ok {
		s.log.Debugf("transport %s: ksock %d opened on device %d (peer pid=%d uid=%d)", connID, c.ID(), s.devIdx, cred.Pid, cred.Uid)
	} else {
		s.log.Debugf("transport %s: ksock %d opened on device %d", connID, c.ID(), s.devIdx)
	}
	defer func() {
		if err := c.Close(); err != nil {
			s.log.Warnf("transport %s: close ksock %d: %v", connID, c.ID(), err)
		}
	}()

	for {
		req, err := ReadFrame(nc)
		if err != nil {
			if err != io.EOF {
				s.log.Debugf("transport %s: read frame: %v", connID, err)
			}
			return
		}
		resp, ok := dispatch(ctx, c, Op(req.Tag), req.Payload)
		if !ok {
			return
		}
		if err := WriteFrame(nc, resp.Tag, resp.Payload); err != nil {
			s.log.Debugf("transport %s: write frame: %v", connID, err)
			return
		}
	}
}

// dispatch executes one request against c and returns the response
// frame. ok is false only when the connection itself should close (an
// explicit OpClose).
func dispatch(ctx context.Context, c *kbus.Conn, op Op, payload []byte) (Frame, bool) {
	switch op {
	case OpBind:
		if len(payload) < 1 {
			return errFrame(kbus.Invalid, "bind: short payload"), true
		}
		err := c.Bind(string(payload[1:]), payload[0] != 0)
		return okOrErr(err, nil), true

	case OpUnbind:
		if len(payload) < 1 {
			return errFrame(kbus.Invalid, "unbind: short payload"), true
		}
		err := c.Unbind(string(payload[1:]), payload[0] != 0)
		return okOrErr(err, nil), true

	case OpKsockID:
		return okOrErr(nil, putU32(c.ID())), true

	case OpFindReplier:
		id, err := c.FindReplier(string(payload))
		return okOrErr(err, putU32(id)), true

	case OpWriteChunk:
		_, err := c.Write(payload)
		return okOrErr(err, nil), true

	case OpSend:
		id, err := c.Send()
		return okOrErr(err, putU64Pair(id.NetworkID, id.SerialNum)), true

	case OpNextMsg:
		n, err := c.NextMsg()
		return okOrErr(err, putU32(n)), true

	case OpLenLeft:
		n, err := c.LenLeft()
		return okOrErr(err, putU32(n)), true

	case OpReadChunk:
		max := getU32(payload)
		buf := make([]byte, max)
		n, err := c.Read(buf)
		if err != nil {
			return errFrame(errKind(err), err.Error()), true
		}
		return Frame{Tag: uint8(StatusOK), Payload: buf[:n]}, true

	case OpDiscard:
		err := c.Discard()
		return okOrErr(err, nil), true

	case OpLastSent:
		id, err := c.LastSent()
		return okOrErr(err, putU64Pair(id.NetworkID, id.SerialNum)), true

	case OpMaxMessages:
		prev, err := c.MaxMessages(getU32(payload))
		return okOrErr(err, putU32(prev)), true

	case OpNumMessages:
		n, err := c.NumMessages()
		return okOrErr(err, putU32(n)), true

	case OpUnrepliedTo:
		n, err := c.UnrepliedTo()
		return okOrErr(err, putU32(n)), true

	case OpMsgOnlyOnce:
		prev, err := c.MsgOnlyOnce(getU32(payload))
		return okOrErr(err, putU32(prev)), true

	case OpReportReplierBinds:
		prev, err := c.ReportReplierBinds(getU32(payload))
		return okOrErr(err, putU32(prev)), true

	case OpWait:
		if len(payload) < 8 {
			return errFrame(kbus.Invalid, "wait: short payload"), true
		}
		want := device.ReadyFlags(getU32(payload[0:4]))
		timeoutMs := getU32(payload[4:8])
		ready, err := c.Wait(ctx, want, time.Duration(timeoutMs)*time.Millisecond)
		return okOrErr(err, putU32(uint32(ready))), true

	case OpClose:
		return Frame{Tag: uint8(StatusOK)}, false

	default:
		return errFrame(kbus.Invalid, "unknown op"), true
	}
}

// peerCredentials reads the connecting process's (pid, uid, gid) off a
// Unix domain socket via SO_PEERCRED, for the debug log line identifying
// who opened each Ksock. nc must be a *net.UnixConn exposing a raw fd
// (syscall.Conn); anything else (e.g. an in-process test transport)
// reports ok false.
func peerCredentials(nc net.Conn) (*unix.Ucred, bool) {
	sc, ok := nc.(syscall.Conn)
	if !ok {
		return nil, false
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return nil, false
	}
	var cred *unix.Ucred
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		cred, sockErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil || sockErr != nil {
		return nil, false
	}
	return cred, true
}

func okOrErr(err error, payload []byte) Frame {
	if err != nil {
		return errFrame(errKind(err), err.Error())
	}
	return Frame{Tag: uint8(StatusOK), Payload: payload}
}

func errFrame(kind kbus.Kind, msg string) Frame {
	return Frame{Tag: uint8(StatusErr), Payload: append([]byte(string(kind)+"\x00"), msg...)}
}

func errKind(err error) kbus.Kind {
	var e *kbus.Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return kbus.Invalid
}
