package wire

import "encoding/binary"

// BindEvent is the payload of every $.KBUS.ReplierBindEvent (and, by the
// same layout, every unbind announcement) message: (is_bind, binder_ksock_id,
// name_len, name_bytes + null + 4-byte padding).
type BindEvent struct {
	IsBind      bool
	BinderID    uint32
	Name        string
}

// MarshalBindEvent encodes e per §6's bind-event payload layout.
func MarshalBindEvent(e BindEvent) []byte {
	nameField := Pad4(len(e.Name) + 1) // + null terminator, padded to 4 bytes
	buf := make([]byte, 4+4+4+nameField)

	isBind := uint32(0)
	if e.IsBind {
		isBind = 1
	}
	binary.LittleEndian.PutUint32(buf[0:4], isBind)
	binary.LittleEndian.PutUint32(buf[4:8], e.BinderID)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(e.Name)))
	copy(buf[12:], e.Name)
	// buf[12+len(e.Name)] is already zero (null terminator + padding).
	return buf
}

// UnmarshalBindEvent decodes a bind-event payload.
func UnmarshalBindEvent(data []byte) (BindEvent, error) {
	if len(data) < 12 {
		return BindEvent{}, ErrInsufficientData
	}
	isBind := binary.LittleEndian.Uint32(data[0:4]) != 0
	binderID := binary.LittleEndian.Uint32(data[4:8])
	nameLen := binary.LittleEndian.Uint32(data[8:12])
	if int(12+nameLen) > len(data) {
		return BindEvent{}, ErrInsufficientData
	}
	name := string(data[12 : 12+nameLen])
	return BindEvent{IsBind: isBind, BinderID: binderID, Name: name}, nil
}
