// Package binding implements the Binding Table (spec.md §4.2): the ordered
// set of (pattern, Ksock, role) tuples, name matching, and the bind/unbind
// control operations. Callers (internal/device) must serialize all calls
// under the device's Big Lock; Table performs no locking of its own.
package binding

import "github.com/kbusd/kbus/internal/wire"

// Role distinguishes a Listener binding (receives copies, no obligation to
// reply) from a Replier binding (the unique responder for an exact name).
type Role int

const (
	Listener Role = iota
	Replier
)

func (r Role) String() string {
	if r == Replier {
		return "replier"
	}
	return "listener"
}

// Binding is one (pattern, owner, role) tuple. ID is a stable,
// table-assigned generational identifier — spec.md §9 asks for bindings to
// be addressable by a stable id rather than by pointer identity, so that
// unbind can remove "messages pushed because of exactly this binding."
type Binding struct {
	ID      uint64
	OwnerID uint32
	Role    Role
	Pattern string
	kind    wire.WildcardKind
}
