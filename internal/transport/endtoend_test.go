package transport

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	kbus "github.com/kbusd/kbus"
	"github.com/kbusd/kbus/internal/device"
	"github.com/kbusd/kbus/internal/wire"
)

func startTestServer(t *testing.T) string {
	t.Helper()
	bus := kbus.NewBus(kbus.DefaultParams())
	srv := NewServer(bus, 0)

	sock := filepath.Join(t.TempDir(), "kbus.sock")
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx, ln)
	t.Cleanup(cancel)
	return sock
}

func marshalEntireWire(to uint32, name string, payload []byte, flags wire.Flags) []byte {
	hdr := wire.Header{
		To:      to,
		Flags:   uint32(flags),
		NameLen: uint32(len(name)),
		DataLen: uint32(len(payload)),
	}
	buf := wire.MarshalHeader(&hdr)
	nameField := make([]byte, wire.Pad4(len(name)+1))
	copy(nameField, name)
	buf = append(buf, nameField...)
	dataField := make([]byte, wire.Pad4(len(payload)))
	copy(dataField, payload)
	buf = append(buf, dataField...)
	return wire.PutEndGuard(buf)
}

func TestClientBindAndFindReplier(t *testing.T) {
	sock := startTestServer(t)

	replier, err := Dial("unix", sock)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer replier.Close()

	if err := replier.Bind("$.foo.bar", true); err != nil {
		t.Fatalf("bind: %v", err)
	}

	id, err := replier.KsockID()
	if err != nil {
		t.Fatalf("ksock id: %v", err)
	}

	client, err := Dial("unix", sock)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	gotID, err := client.FindReplier("$.foo.bar")
	if err != nil {
		t.Fatalf("find replier: %v", err)
	}
	if gotID != id {
		t.Fatalf("expected replier id %d, got %d", id, gotID)
	}
}

func TestClientSendDeliversToListener(t *testing.T) {
	sock := startTestServer(t)

	listener, err := Dial("unix", sock)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer listener.Close()
	if err := listener.Bind("$.foo.bar", false); err != nil {
		t.Fatalf("bind: %v", err)
	}

	sender, err := Dial("unix", sock)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer sender.Close()

	msg := marshalEntireWire(0, "$.foo.bar", []byte("hi"), 0)
	if err := sender.WriteChunk(msg); err != nil {
		t.Fatalf("write chunk: %v", err)
	}
	if _, err := sender.Send(); err != nil {
		t.Fatalf("send: %v", err)
	}

	n, err := listener.NextMsg()
	if err != nil {
		t.Fatalf("next msg: %v", err)
	}
	if n == 0 {
		t.Fatal("expected a queued message for the listener")
	}

	got, err := listener.ReadChunk(n)
	if err != nil {
		t.Fatalf("read chunk: %v", err)
	}
	var hdr wire.Header
	if err := wire.UnmarshalHeader(got, &hdr); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if hdr.NameLen != uint32(len("$.foo.bar")) {
		t.Fatalf("unexpected name length: %d", hdr.NameLen)
	}
}

func TestClientFindReplierMissReturnsZero(t *testing.T) {
	sock := startTestServer(t)

	c, err := Dial("unix", sock)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	id, err := c.FindReplier("$.nobody.home")
	if err != nil {
		t.Fatalf("find replier: %v", err)
	}
	if id != 0 {
		t.Fatalf("expected id 0 for an unbound name, got %d", id)
	}
}

func TestClientWaitTimesOutWithoutReadiness(t *testing.T) {
	sock := startTestServer(t)

	c, err := Dial("unix", sock)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	start := time.Now()
	if _, err := c.Wait(device.ReadyForRead, 50*time.Millisecond); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if time.Since(start) < 40*time.Millisecond {
		t.Fatal("expected Wait to actually block for close to the requested timeout")
	}
}
