package devreg

import (
	"testing"

	"github.com/kbusd/kbus/internal/device"
)

func TestNewDeviceAssignsSequentialIndexes(t *testing.T) {
	r := New(device.DefaultParams())

	idx0, d0 := r.NewDevice()
	idx1, d1 := r.NewDevice()

	if idx0 != 0 || idx1 != 1 {
		t.Fatalf("expected indexes 0,1, got %d,%d", idx0, idx1)
	}
	if d0 == nil || d1 == nil || d0 == d1 {
		t.Fatalf("expected two distinct devices, got %v/%v", d0, d1)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 live devices, got %d", r.Len())
	}
}

func TestLookupMissingIndex(t *testing.T) {
	r := New(device.DefaultParams())
	if _, ok := r.Lookup(99); ok {
		t.Fatal("expected no device at an unused index")
	}
}

func TestLookupFindsRegisteredDevice(t *testing.T) {
	r := New(device.DefaultParams())
	idx, d := r.NewDevice()

	got, ok := r.Lookup(idx)
	if !ok || got != d {
		t.Fatalf("expected to find the registered device, got %v/%v", got, ok)
	}
}

func TestRemoveDropsDeviceAndNeverRecyclesIndex(t *testing.T) {
	r := New(device.DefaultParams())
	idx, _ := r.NewDevice()
	r.Remove(idx)

	if _, ok := r.Lookup(idx); ok {
		t.Fatal("expected device to be gone after Remove")
	}
	if r.Len() != 0 {
		t.Fatalf("expected 0 live devices, got %d", r.Len())
	}

	nextIdx, _ := r.NewDevice()
	if nextIdx == idx {
		t.Fatal("expected a removed index to never be recycled")
	}
}

func TestEachVisitsEveryLiveDevice(t *testing.T) {
	r := New(device.DefaultParams())
	r.NewDevice()
	r.NewDevice()

	seen := map[uint32]bool{}
	r.Each(func(idx uint32, d *device.Device) { seen[idx] = true })
	if len(seen) != 2 {
		t.Fatalf("expected to visit 2 devices, got %d", len(seen))
	}
}
