package registry

import "testing"

func TestAttachAssignsNonZeroMonotonicIDs(t *testing.T) {
	r := New[string]()

	id1 := r.Attach("a")
	id2 := r.Attach("b")

	if id1 == 0 || id2 == 0 {
		t.Fatalf("ids must never be zero, got %d and %d", id1, id2)
	}
	if id2 <= id1 {
		t.Fatalf("expected monotonically increasing ids, got %d then %d", id1, id2)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", r.Len())
	}
}

func TestDetachRemovesEntry(t *testing.T) {
	r := New[int]()
	id := r.Attach(42)

	r.Detach(id)
	if _, ok := r.Lookup(id); ok {
		t.Fatal("expected lookup to miss after detach")
	}
	if r.Len() != 0 {
		t.Fatalf("expected 0 entries after detach, got %d", r.Len())
	}
}

func TestDetachUnknownIDIsNoop(t *testing.T) {
	r := New[int]()
	r.Attach(1)
	r.Detach(9999)
	if r.Len() != 1 {
		t.Fatalf("expected unaffected registry, got %d entries", r.Len())
	}
}

func TestLookupMiss(t *testing.T) {
	r := New[int]()
	if _, ok := r.Lookup(123); ok {
		t.Fatal("expected miss on empty registry")
	}
}

func TestAttachSkipsZeroOnWrap(t *testing.T) {
	r := New[int]()
	r.nextID = 0xFFFFFFFF

	id := r.Attach(1)
	if id != 1 {
		t.Fatalf("expected wrap to skip 0 and land on 1, got %d", id)
	}
}

func TestEachVisitsEveryEntry(t *testing.T) {
	r := New[string]()
	ids := map[uint32]string{
		r.Attach("a"): "a",
		r.Attach("b"): "b",
		r.Attach("c"): "c",
	}

	seen := make(map[uint32]string)
	r.Each(func(id uint32, v string) {
		seen[id] = v
	})

	if len(seen) != len(ids) {
		t.Fatalf("expected %d visited, got %d", len(ids), len(seen))
	}
	for id, v := range ids {
		if seen[id] != v {
			t.Errorf("entry %d: got %q, want %q", id, seen[id], v)
		}
	}
}
