package log

import (
	"bytes"
	"testing"
	"time"
)

func TestEncodeDecodeEvent(t *testing.T) {
	event := Event{
		Timestamp:    time.Date(2026, 8, 20, 10, 30, 0, 123456789, time.UTC),
		ConnectionID: "a1b2c3d4-0000-0000-0000-000000000000",
		Direction:    DirectionIn,
		Layer:        LayerTransport,
		Category:     CategoryHandshake,
		RemoteAddr:   "192.0.2.7:15000",
		Handshake: &HandshakeEvent{
			Requested:   true,
			ServerToken: 1,
			TLSActive:   false,
			FellBack:    true,
		},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !decoded.Timestamp.Equal(event.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v (nanosecond precision must survive)",
			decoded.Timestamp, event.Timestamp)
	}
	if decoded.ConnectionID != event.ConnectionID {
		t.Errorf("ConnectionID: got %q", decoded.ConnectionID)
	}
	if decoded.Handshake == nil {
		t.Fatal("Handshake is nil")
	}
	if !decoded.Handshake.FellBack || decoded.Handshake.ServerToken != 1 {
		t.Errorf("Handshake = %+v", decoded.Handshake)
	}
}

func TestEncodeEventOmitsEmptyFields(t *testing.T) {
	full, err := EncodeEvent(Event{
		Timestamp:  time.Now(),
		RemoteAddr: "192.0.2.7:15000",
		Error:      &ErrorEventData{Kind: "IO", Message: "reset", Context: "frame read"},
	})
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	minimal, err := EncodeEvent(Event{Timestamp: time.Now()})
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	if len(minimal) >= len(full) {
		t.Errorf("minimal event (%d bytes) not smaller than full event (%d bytes)",
			len(minimal), len(full))
	}
}

func TestEncoderDeterministic(t *testing.T) {
	event := Event{
		Timestamp:    time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		ConnectionID: "conn-1",
		Frame:        &FrameEvent{Size: 42},
	}

	a, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	b, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("identical events encoded differently")
	}
}

func TestStreamingEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	want := []string{"one", "two", "three"}
	for _, id := range want {
		if err := enc.Encode(Event{Timestamp: time.Now(), ConnectionID: id}); err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
	}

	dec := NewDecoder(&buf)
	for i, id := range want {
		var event Event
		if err := dec.Decode(&event); err != nil {
			t.Fatalf("Decode %d failed: %v", i, err)
		}
		if event.ConnectionID != id {
			t.Errorf("event %d: ConnectionID = %q, want %q", i, event.ConnectionID, id)
		}
	}
}

func TestDecodeEventGarbage(t *testing.T) {
	if _, err := DecodeEvent([]byte{0xff, 0xfe, 0xfd}); err == nil {
		t.Error("expected error decoding garbage")
	}
}
