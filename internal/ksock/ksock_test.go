package ksock

import (
	"testing"

	"github.com/kbusd/kbus/internal/kmsg"
	"github.com/kbusd/kbus/internal/store"
	"github.com/kbusd/kbus/internal/wire"
)

func newMsg(name string, flags wire.Flags) *kmsg.Message {
	return &kmsg.Message{
		ID:    wire.MessageID{SerialNum: 1},
		Flags: flags,
		Name:  store.NewName(name),
	}
}

func TestPushPopOrder(t *testing.T) {
	k := New(1, 10)
	k.Push(newMsg("$.a", 0), false, false)
	k.Push(newMsg("$.b", 0), false, false)

	m, ok := k.Pop()
	if !ok || m.NameString() != "$.a" {
		t.Fatalf("expected $.a first, got %v/%v", m, ok)
	}
	m, ok = k.Pop()
	if !ok || m.NameString() != "$.b" {
		t.Fatalf("expected $.b second, got %v/%v", m, ok)
	}
	if _, ok := k.Pop(); ok {
		t.Fatal("expected empty queue")
	}
}

func TestPushUrgentPrepends(t *testing.T) {
	k := New(1, 10)
	k.Push(newMsg("$.a", 0), false, false)
	k.Push(newMsg("$.b", 0), false, true)

	m, _ := k.Pop()
	if m.NameString() != "$.b" {
		t.Fatalf("expected urgent message first, got %v", m.NameString())
	}
}

func TestIsFullAccountsForOutstanding(t *testing.T) {
	k := New(1, 2)
	k.Push(newMsg("$.a", 0), false, false)
	if k.IsFull() {
		t.Fatal("1 queued of max 2 should not be full")
	}
	k.AddOutstanding(wire.MessageID{SerialNum: 99})
	if !k.IsFull() {
		t.Fatal("1 queued + 1 outstanding of max 2 should be full")
	}
}

func TestIsFullForReplyAllowsTheReservedSlot(t *testing.T) {
	k := New(1, 1)
	k.AddOutstanding(wire.MessageID{SerialNum: 1})
	if !k.IsFull() {
		t.Fatal("1 outstanding of max 1 should be full for a fresh send")
	}
	if k.IsFullForReply() {
		t.Fatal("the same slot should be available for the reply it's reserved for")
	}
}

func TestMessagesOnlyOnceSuppressesDuplicateNonReplierPush(t *testing.T) {
	k := New(1, 10)
	k.MessagesOnlyOnce = true
	msg := newMsg("$.a", 0)
	msg.ID = wire.MessageID{SerialNum: 5}

	if ok := k.Push(msg, false, false); !ok {
		t.Fatal("first push should be accepted")
	}
	dup := newMsg("$.a", 0)
	dup.ID = wire.MessageID{SerialNum: 5}
	if ok := k.Push(dup, false, false); ok {
		t.Fatal("duplicate id push should be suppressed")
	}
	if k.QueueLen() != 1 {
		t.Fatalf("expected 1 queued message, got %d", k.QueueLen())
	}
}

func TestPushSetsWantYouToReplyOnlyForReplier(t *testing.T) {
	k := New(1, 10)
	k.Push(newMsg("$.a", wire.WantReply), true, false)
	m, _ := k.Pop()
	if !m.Flags.Has(wire.WantYouToReply) {
		t.Fatal("expected WantYouToReply set for replier push")
	}
}

func TestRemoveQueuedFiltersMatching(t *testing.T) {
	k := New(1, 10)
	k.Push(newMsg("$.a", 0), false, false)
	k.Push(newMsg("$.b", 0), false, false)
	k.Push(newMsg("$.a", 0), false, false)

	removed := k.RemoveQueued(func(m *kmsg.Message) bool { return m.NameString() == "$.a" })
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed, got %d", len(removed))
	}
	if k.QueueLen() != 1 {
		t.Fatalf("expected 1 remaining, got %d", k.QueueLen())
	}
}

func TestUnrepliedTracking(t *testing.T) {
	k := New(1, 10)
	id := wire.MessageID{SerialNum: 7}
	k.AddUnreplied(id)
	if k.UnrepliedLen() != 1 {
		t.Fatalf("expected 1 unreplied, got %d", k.UnrepliedLen())
	}
	if !k.RemoveUnreplied(id) {
		t.Fatal("expected to find and remove the unreplied id")
	}
	if k.UnrepliedLen() != 0 {
		t.Fatalf("expected 0 unreplied after removal, got %d", k.UnrepliedLen())
	}
}

func TestWriteBufferRoundTripsEntireMessage(t *testing.T) {
	orig := newMsg("$.foo.bar", wire.WantReply)
	orig.Payload = store.NewEntirePayload([]byte("hello"))
	buf := marshalEntire(orig)

	w := NewWriteBuffer(nil)
	n, err := w.Write(buf)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("expected to consume %d bytes, got %d", len(buf), n)
	}
	if !w.IsFinished() {
		t.Fatal("expected write buffer to be finished")
	}

	msg, err := w.Message()
	if err != nil {
		t.Fatalf("message: %v", err)
	}
	if msg.NameString() != "$.foo.bar" {
		t.Fatalf("unexpected name: %q", msg.NameString())
	}
	if string(msg.Payload.Bytes()) != "hello" {
		t.Fatalf("unexpected payload: %q", msg.Payload.Bytes())
	}
	if !msg.Flags.Has(wire.WantReply) {
		t.Fatal("expected WantReply to survive the round trip")
	}
}

func TestWriteBufferFeedsOneByteAtATime(t *testing.T) {
	orig := newMsg("$.a", 0)
	buf := marshalEntire(orig)

	w := NewWriteBuffer(nil)
	for i := 0; i < len(buf); i++ {
		if _, err := w.Write(buf[i : i+1]); err != nil {
			t.Fatalf("write byte %d: %v", i, err)
		}
	}
	if !w.IsFinished() {
		t.Fatal("expected finished after feeding every byte individually")
	}
}

func TestWriteBufferRejectsBadGuard(t *testing.T) {
	buf := make([]byte, wire.HeaderSize)
	w := NewWriteBuffer(nil)
	if _, err := w.Write(buf); err != ErrBadMessage {
		t.Fatalf("expected ErrBadMessage, got %v", err)
	}
}

func TestWriteBufferLockedRejectsWrite(t *testing.T) {
	w := NewWriteBuffer(nil)
	w.Lock()
	if _, err := w.Write([]byte{0}); err != ErrAlreadyInUse {
		t.Fatalf("expected ErrAlreadyInUse, got %v", err)
	}
	w.Unlock()
	if w.Locked() {
		t.Fatal("expected unlocked after Unlock")
	}
}

func TestReadBufferDeliversFullStreamThenReleases(t *testing.T) {
	orig := newMsg("$.a", 0)
	orig.Payload = store.NewEntirePayload([]byte("xy"))
	r := NewReadBuffer(orig)

	total := r.Len()
	got := make([]byte, 0, total)
	buf := make([]byte, 3)
	for !r.Done() {
		n, err := r.Read(buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		got = append(got, buf[:n]...)
	}
	if len(got) != total {
		t.Fatalf("expected %d bytes delivered, got %d", total, len(got))
	}
	r.Release()
	if r.Message() != nil {
		t.Fatal("expected message reference cleared after Release")
	}
}
