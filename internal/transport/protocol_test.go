package transport

import (
	"bytes"
	"io"
	"testing"
)

func TestWriteFrameThenReadFrameRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, uint8(OpBind), []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Tag != uint8(OpBind) {
		t.Errorf("expected tag %d, got %d", OpBind, f.Tag)
	}
	if string(f.Payload) != "hello" {
		t.Errorf("unexpected payload: %q", f.Payload)
	}
}

func TestReadFrameEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	WriteFrame(&buf, uint8(OpClose), nil)

	f, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(f.Payload) != 0 {
		t.Errorf("expected empty payload, got %q", f.Payload)
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(uint8(OpSend))
	buf.Write(putU32(maxFrame + 1))

	if _, err := ReadFrame(&buf); err == nil {
		t.Fatal("expected an error for an oversized frame length")
	}
}

func TestReadFrameTruncatedHeaderIsEOF(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(uint8(OpSend))

	if _, err := ReadFrame(&buf); err != io.ErrUnexpectedEOF && err != io.EOF {
		t.Fatalf("expected an EOF-flavored error, got %v", err)
	}
}

func TestPutGetU32RoundTrip(t *testing.T) {
	b := putU32(123456)
	if got := getU32(b); got != 123456 {
		t.Fatalf("expected 123456, got %d", got)
	}
}

func TestGetU32ShortBufferReturnsZero(t *testing.T) {
	if got := getU32([]byte{1, 2}); got != 0 {
		t.Fatalf("expected 0 for a short buffer, got %d", got)
	}
}
