package ipc

import (
	"bytes"
	"encoding/binary"
	"testing"

	"gestured/internal/gesture"
)

// =============================================================================
// Tests for Header
// =============================================================================

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Magic:     ProtocolMagic,
		Version:   ProtocolVersion,
		Flags:     FlagJSON | FlagEvent,
		Type:      MsgStats,
		RequestID: 42,
		Length:    17,
	}

	var buf bytes.Buffer
	if err := h.Write(&buf); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if buf.Len() != HeaderSize {
		t.Fatalf("header size = %d, want %d", buf.Len(), HeaderSize)
	}

	got, err := ReadHeader(&buf)
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	if *got != h {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", *got, h)
	}
}

func TestReadHeaderRejectsBadMagic(t *testing.T) {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], 0xDEADBEEF)

	if _, err := ReadHeader(bytes.NewReader(buf)); err == nil {
		t.Error("expected error for bad magic")
	}
}

func TestReadHeaderRejectsFutureVersion(t *testing.T) {
	h := Header{Magic: ProtocolMagic, Version: ProtocolVersion + 1, Type: MsgPing}
	var buf bytes.Buffer
	if err := h.Write(&buf); err != nil {
		t.Fatalf("write header: %v", err)
	}

	if _, err := ReadHeader(&buf); err == nil {
		t.Error("expected error for future protocol version")
	}
}

// =============================================================================
// Tests for Message
// =============================================================================

func TestMessageRoundTrip(t *testing.T) {
	payload, err := Encode(&ZoneIDRequest{ID: "zone-7"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	msg := NewMessage(MsgZoneRemove, 9, payload)

	var buf bytes.Buffer
	if err := msg.Write(&buf); err != nil {
		t.Fatalf("write message: %v", err)
	}

	got, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	if got.Header.Type != MsgZoneRemove || got.Header.RequestID != 9 {
		t.Errorf("header = %+v", got.Header)
	}

	var req ZoneIDRequest
	if err := Decode(got.Payload, &req); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if req.ID != "zone-7" {
		t.Errorf("id = %q, want zone-7", req.ID)
	}
}

func TestMessageWithoutPayload(t *testing.T) {
	msg := NewMessage(MsgPing, 1, nil)

	var buf bytes.Buffer
	if err := msg.Write(&buf); err != nil {
		t.Fatalf("write message: %v", err)
	}
	got, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	if len(got.Payload) != 0 {
		t.Errorf("payload length = %d, want 0", len(got.Payload))
	}
}

func TestReadMessageRejectsOversizedPayload(t *testing.T) {
	h := Header{
		Magic:   ProtocolMagic,
		Version: ProtocolVersion,
		Type:    MsgSubmit,
		Length:  MaxPayloadSize + 1,
	}
	var buf bytes.Buffer
	if err := h.Write(&buf); err != nil {
		t.Fatalf("write header: %v", err)
	}

	if _, err := ReadMessage(&buf); err == nil {
		t.Error("expected error for oversized payload")
	}
}

func TestErrorMessageCarriesFlagAndPayload(t *testing.T) {
	msg := NewErrorMessage(3, ErrNotFound, "zone missing")
	if msg.Header.Flags&FlagError == 0 {
		t.Error("error flag not set")
	}

	var er ErrorResponse
	if err := Decode(msg.Payload, &er); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if er.Code != ErrNotFound || er.Message != "zone missing" {
		t.Errorf("error response = %+v", er)
	}
}

func TestEventMessageCarriesFlag(t *testing.T) {
	msg, err := NewEventMessage(1, &Event{Type: EventGestureCompleted})
	if err != nil {
		t.Fatalf("new event message: %v", err)
	}
	if msg.Header.Flags&FlagEvent == 0 {
		t.Error("event flag not set")
	}
	if msg.Header.Type != MsgEvent {
		t.Errorf("type = %#x, want MsgEvent", msg.Header.Type)
	}
}

func TestSampleSurvivesEncoding(t *testing.T) {
	in := SubmitRequest{Samples: []gesture.Sample{{
		Kind:    gesture.Pinch,
		Phase:   gesture.Began,
		Touches: 2,
	}}}
	raw, err := Encode(&in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var out SubmitRequest
	if err := Decode(raw, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Samples) != 1 || out.Samples[0].Kind != gesture.Pinch || out.Samples[0].Phase != gesture.Began {
		t.Errorf("round trip = %+v", out)
	}
}
