package store

import "testing"

func TestNameRetainRelease(t *testing.T) {
	n := NewName("$.foo.bar")
	if n.String() != "$.foo.bar" {
		t.Fatalf("unexpected name: %q", n.String())
	}
	if n.Refs() != 1 {
		t.Fatalf("expected 1 ref, got %d", n.Refs())
	}

	n2 := n.Retain()
	if n.Refs() != 2 || n2.Refs() != 2 {
		t.Fatalf("expected 2 refs after Retain, got %d/%d", n.Refs(), n2.Refs())
	}
	if n2.String() != n.String() {
		t.Fatal("retained handle should see the same string")
	}

	n.Release()
	if n2.Refs() != 1 {
		t.Fatalf("expected 1 ref after one Release, got %d", n2.Refs())
	}
}

func TestNilNameString(t *testing.T) {
	var n *Name
	if n.String() != "" {
		t.Fatal("nil Name should stringify to empty string")
	}
}

func TestEntirePayloadRoundTrip(t *testing.T) {
	data := []byte("hello, kbus")
	p := NewEntirePayload(data)
	defer p.Release()

	if p.Len() != len(data) {
		t.Fatalf("expected len %d, got %d", len(data), p.Len())
	}
	if string(p.Bytes()) != string(data) {
		t.Fatalf("unexpected bytes: %q", p.Bytes())
	}

	p2 := p.Retain()
	defer p2.Release()
	if string(p2.Bytes()) != string(data) {
		t.Fatal("retained payload should see the same bytes")
	}
}

func TestChunkedPayloadRoundTrip(t *testing.T) {
	data := make([]byte, ChunkSize*2+17)
	for i := range data {
		data[i] = byte(i)
	}

	p := NewChunkedPayload(data)
	defer p.Release()

	if p.Len() != len(data) {
		t.Fatalf("expected len %d, got %d", len(data), p.Len())
	}
	got := p.Bytes()
	if len(got) != len(data) {
		t.Fatalf("expected %d bytes materialized, got %d", len(data), len(got))
	}
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("byte %d mismatch: got %d, want %d", i, got[i], data[i])
		}
	}
}

func TestChunkedPayloadEmptyFallsBackToEntire(t *testing.T) {
	p := NewChunkedPayload(nil)
	defer p.Release()
	if p.Len() != 0 {
		t.Fatalf("expected 0 length, got %d", p.Len())
	}
}
