package kbus

import (
	"context"
	"testing"
	"time"

	"github.com/kbusd/kbus/internal/device"
	"github.com/kbusd/kbus/internal/wire"
)

func TestNewBusHasDeviceZero(t *testing.T) {
	b := NewTestBus()
	if _, err := b.Open(0); err != nil {
		t.Fatalf("expected device 0 to exist, got %v", err)
	}
}

func TestOpenUnknownDeviceFails(t *testing.T) {
	b := NewTestBus()
	if _, err := b.Open(99); err == nil {
		t.Fatal("expected an error opening a nonexistent device")
	}
}

func TestNewDeviceIsIndependentFromDeviceZero(t *testing.T) {
	b := NewTestBus()
	idx := b.NewDevice()
	if idx == 0 {
		t.Fatal("expected a new device to get a nonzero index")
	}

	c0, err := b.Open(0)
	if err != nil {
		t.Fatalf("open device 0: %v", err)
	}
	if err := c0.Bind("$.foo.bar", true); err != nil {
		t.Fatalf("bind on device 0: %v", err)
	}

	c1, err := b.Open(idx)
	if err != nil {
		t.Fatalf("open device %d: %v", idx, err)
	}
	if id, _ := c1.FindReplier("$.foo.bar"); id != 0 {
		t.Fatal("expected a binding on device 0 to be invisible on a different device")
	}
}

func TestSendMessageAndReceiveRoundTrip(t *testing.T) {
	b := NewTestBus()
	listener, err := b.Open(0)
	if err != nil {
		t.Fatalf("open listener: %v", err)
	}
	if err := listener.Bind("$.foo.bar", false); err != nil {
		t.Fatalf("bind: %v", err)
	}

	sender, err := b.Open(0)
	if err != nil {
		t.Fatalf("open sender: %v", err)
	}
	if _, err := sender.SendMessage("$.foo.bar", []byte("hello"), 0); err != nil {
		t.Fatalf("send message: %v", err)
	}

	got, err := listener.Receive()
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if got == nil {
		t.Fatal("expected a received message")
	}
	if got.Name != "$.foo.bar" || string(got.Payload) != "hello" {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestReceiveWithNothingQueuedReturnsNil(t *testing.T) {
	b := NewTestBus()
	c, err := b.Open(0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, err := c.Receive()
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil) with nothing queued, got (%+v, %v)", got, err)
	}
}

func TestRequestReplyMessageRoundTrip(t *testing.T) {
	b := NewTestBus()
	server, err := b.Open(0)
	if err != nil {
		t.Fatalf("open server: %v", err)
	}
	if err := server.Bind("$.foo.bar", true); err != nil {
		t.Fatalf("bind: %v", err)
	}

	client, err := b.Open(0)
	if err != nil {
		t.Fatalf("open client: %v", err)
	}
	if _, err := client.SendMessage("$.foo.bar", []byte("ping"), wire.WantReply); err != nil {
		t.Fatalf("send request: %v", err)
	}

	req, err := server.Receive()
	if err != nil || req == nil {
		t.Fatalf("expected request on server, got %+v/%v", req, err)
	}
	if !req.Flags.Has(wire.WantYouToReply) {
		t.Fatal("expected WantYouToReply on the delivered request")
	}

	if _, err := server.ReplyMessage(req.ID, req.From, "$.foo.bar", []byte("pong")); err != nil {
		t.Fatalf("reply: %v", err)
	}

	reply, err := client.Receive()
	if err != nil || reply == nil {
		t.Fatalf("expected reply on client, got %+v/%v", reply, err)
	}
	if reply.InReplyTo != req.ID || string(reply.Payload) != "pong" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestSendMessageWithNoListenersIsANoop(t *testing.T) {
	b := NewTestBus()
	c, err := b.Open(0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := c.SendMessage("$.nobody.home", nil, 0); err != nil {
		t.Fatalf("expected a best-effort broadcast with no listeners to succeed, got %v", err)
	}
}

func TestWaitReturnsImmediatelyWhenAlreadyReadable(t *testing.T) {
	b := NewTestBus()
	listener, err := b.Open(0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := listener.Bind("$.foo.bar", false); err != nil {
		t.Fatalf("bind: %v", err)
	}

	sender, err := b.Open(0)
	if err != nil {
		t.Fatalf("open sender: %v", err)
	}
	if _, err := sender.SendMessage("$.foo.bar", nil, 0); err != nil {
		t.Fatalf("send: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ready, err := listener.Wait(ctx, device.ReadyForRead, time.Second)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if ready&device.ReadyForRead == 0 {
		t.Fatal("expected ReadyForRead to be set")
	}
}

func TestMetricsTrackBindAndSend(t *testing.T) {
	b := NewTestBus()
	c, err := b.Open(0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := c.Bind("$.foo.bar", false); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if _, err := c.SendMessage("$.foo.bar", []byte("x"), 0); err != nil {
		t.Fatalf("send: %v", err)
	}

	m, ok := b.Metrics(0)
	if !ok {
		t.Fatal("expected metrics for device 0")
	}
	snap := m.Snapshot()
	if snap.BindOps != 1 {
		t.Fatalf("expected 1 bind op, got %d", snap.BindOps)
	}
	if snap.MessagesSent != 1 {
		t.Fatalf("expected 1 message sent, got %d", snap.MessagesSent)
	}
}
