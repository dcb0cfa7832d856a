// Package devreg is the small top-level registry of devices the system
// keeps beyond each device's own state (spec.md §9: "global state is
// limited to the set of devices and module-wide counters"). It backs the
// NEW_DEVICE control operation (spec.md §6) and the daemon's device-index
// addressing.
package devreg

import (
	"sync"

	"github.com/kbusd/kbus/internal/device"
)

// Registry owns every live Device, indexed by its 0-based device index.
type Registry struct {
	mu      sync.Mutex
	nextIdx uint32
	devices map[uint32]*device.Device
	params  device.Params
}

// New creates a registry that hands out fresh devices with the given
// default params.
func New(params device.Params) *Registry {
	return &Registry{
		devices: make(map[uint32]*device.Device),
		params:  params,
	}
}

// NewDevice implements NEW_DEVICE: allocates a fresh device index and
// Device, never recycling an index from a device that is still live.
func (r *Registry) NewDevice() (uint32, *device.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.nextIdx
	r.nextIdx++
	d := device.New(idx, r.params)
	r.devices[idx] = d
	return idx, d
}

// Lookup returns the device at idx, if any.
func (r *Registry) Lookup(idx uint32) (*device.Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[idx]
	return d, ok
}

// Remove drops idx from the registry (e.g. once every Ksock on it has
// closed and the daemon tears it down).
func (r *Registry) Remove(idx uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.devices, idx)
}

// Len reports the number of live devices.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// Each calls fn for every live device, in unspecified order.
func (r *Registry) Each(fn func(idx uint32, d *device.Device)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for idx, d := range r.devices {
		fn(idx, d)
	}
}
