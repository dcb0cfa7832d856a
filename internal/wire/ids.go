// Package wire defines the KBUS message wire format: identifiers, flags,
// name grammar, and the marshaled header layout used by the streaming I/O
// buffers in internal/ksock.
package wire

// MessageID is the (network_id, serial_num) pair identifying a message.
// The zero value (0,0) means "unset". A non-zero network_id marks a message
// that arrived from a remote bus via a bridge and is preserved verbatim.
type MessageID struct {
	NetworkID uint32
	SerialNum uint32
}

// IsZero reports whether id is the unset (0,0) sentinel.
func (id MessageID) IsZero() bool {
	return id.NetworkID == 0 && id.SerialNum == 0
}

// IsLocal reports whether id was assigned by this device (network_id == 0).
func (id MessageID) IsLocal() bool {
	return id.NetworkID == 0
}

// EndpointID is the (network_id, local_id) pair used for orig_from and
// final_to. The core preserves and propagates these without interpretation.
type EndpointID struct {
	NetworkID uint32
	LocalID   uint32
}

// IsZero reports whether e carries no endpoint information.
func (e EndpointID) IsZero() bool {
	return e.NetworkID == 0 && e.LocalID == 0
}
