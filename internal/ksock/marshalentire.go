package ksock

import (
	"github.com/kbusd/kbus/internal/kmsg"
	"github.com/kbusd/kbus/internal/wire"
)

// marshalEntire lays out msg as a self-contained "entire" byte stream:
// header, name + null + pad, data + pad, end guard (spec.md §6).
func marshalEntire(msg *kmsg.Message) []byte {
	name := msg.NameString()
	var data []byte
	if msg.Payload != nil {
		data = msg.Payload.Bytes()
	}

	hdr := wire.Header{
		ID:        msg.ID,
		InReplyTo: msg.InReplyTo,
		To:        msg.To,
		From:      msg.From,
		OrigFrom:  msg.OrigFrom,
		FinalTo:   msg.FinalTo,
		Extra:     msg.Extra,
		Flags:     uint32(msg.Flags),
		NameLen:   uint32(len(name)),
		DataLen:   uint32(len(data)),
	}

	buf := wire.MarshalHeader(&hdr)

	namePadded := wire.Pad4(len(name) + 1)
	nameField := make([]byte, namePadded)
	copy(nameField, name)
	buf = append(buf, nameField...)

	dataPadded := wire.Pad4(len(data))
	dataField := make([]byte, dataPadded)
	copy(dataField, data)
	buf = append(buf, dataField...)

	buf = wire.PutEndGuard(buf)
	return buf
}
