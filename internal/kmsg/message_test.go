package kmsg

import (
	"testing"

	"github.com/kbusd/kbus/internal/store"
	"github.com/kbusd/kbus/internal/wire"
)

func newTestMessage(flags wire.Flags) *Message {
	return &Message{
		Flags:   flags,
		Name:    store.NewName("$.foo.bar"),
		Payload: store.NewEntirePayload([]byte("payload")),
	}
}

func TestMessageIsRequestAndReply(t *testing.T) {
	req := newTestMessage(wire.WantReply)
	if !req.IsRequest() {
		t.Error("expected WantReply message to be a request")
	}
	if req.IsReply() {
		t.Error("a fresh request should not be a reply")
	}

	reply := newTestMessage(0)
	reply.InReplyTo = wire.MessageID{SerialNum: 5}
	if !reply.IsReply() {
		t.Error("expected non-zero InReplyTo to mark a reply")
	}
}

func TestMessageIsStatefulRequest(t *testing.T) {
	m := newTestMessage(wire.WantReply)
	if m.IsStatefulRequest() {
		t.Error("request with To==0 should not be stateful")
	}
	m.To = 7
	if !m.IsStatefulRequest() {
		t.Error("request with non-zero To should be stateful")
	}
}

func TestMessageNameStringAndPayloadLen(t *testing.T) {
	m := newTestMessage(0)
	if m.NameString() != "$.foo.bar" {
		t.Errorf("unexpected name: %q", m.NameString())
	}
	if m.PayloadLen() != len("payload") {
		t.Errorf("unexpected payload len: %d", m.PayloadLen())
	}

	m.Payload = nil
	if m.PayloadLen() != 0 {
		t.Error("expected 0 payload len when Payload is nil")
	}
}

func TestMessageCloneTakesFreshReferences(t *testing.T) {
	m := newTestMessage(0)
	nameRefsBefore := m.Name.Refs()
	payloadRefsBefore := int32(1)

	clone := m.Clone()
	if clone.Name.Refs() != nameRefsBefore+1 {
		t.Errorf("expected name refs to increase by 1, got %d -> %d", nameRefsBefore, clone.Name.Refs())
	}
	if clone.NameString() != m.NameString() {
		t.Error("clone should carry the same name string")
	}
	_ = payloadRefsBefore

	m.Release()
	if clone.NameString() != "$.foo.bar" {
		t.Error("clone's name should survive releasing the original")
	}
	clone.Release()
}

func TestMessageReleaseIsSafeWithoutPayload(t *testing.T) {
	m := &Message{Name: store.NewName("$.foo.bar")}
	m.Release() // must not panic with a nil Payload
}
