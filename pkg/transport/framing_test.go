package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math/bits"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", []byte{}},
		{"single byte", []byte{0x42}},
		{"small payload", []byte("hello, world")},
		{"binary payload", []byte{0x00, 0xff, 0x80, 0x7f}},
		{"chunk boundary", bytes.Repeat([]byte{0xab}, ioChunkSize)},
		{"multiple chunks", bytes.Repeat([]byte{0xcd}, ioChunkSize*3+17)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			fw := NewFrameWriter(&buf, 0)
			if err := fw.WriteFrame(tt.payload); err != nil {
				t.Fatalf("WriteFrame failed: %v", err)
			}

			if got := buf.Len(); got != FrameSize(len(tt.payload)) {
				t.Errorf("wire size = %d, want %d", got, FrameSize(len(tt.payload)))
			}

			fr := NewFrameReader(&buf, 0)
			got, err := fr.ReadFrame()
			if err != nil {
				t.Fatalf("ReadFrame failed: %v", err)
			}
			if !bytes.Equal(got, tt.payload) {
				t.Errorf("payload mismatch: got %d bytes, want %d bytes", len(got), len(tt.payload))
			}
		})
	}
}

func TestFrameWriterZeroLength(t *testing.T) {
	// A zero-length payload puts exactly the 4-byte prefix on the wire.
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf, 0)
	if err := fw.WriteFrame(nil); err != nil {
		t.Fatalf("WriteFrame(nil) failed: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{0, 0, 0, 0}) {
		t.Errorf("wire = %x, want a bare zero prefix", buf.Bytes())
	}
}

func TestFrameWriterPayloadTooLarge(t *testing.T) {
	fw := NewFrameWriter(&bytes.Buffer{}, 16)
	if err := fw.WriteFrame(make([]byte, 17)); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("WriteFrame(17 bytes, max 16) = %v, want ErrPayloadTooLarge", err)
	}

	// At the bound is fine.
	if err := fw.WriteFrame(make([]byte, 16)); err != nil {
		t.Errorf("WriteFrame(16 bytes, max 16) failed: %v", err)
	}
}

func TestFrameReaderOversizedClaim(t *testing.T) {
	// An advertised length over the bound must fail before any body
	// bytes are consumed.
	var buf bytes.Buffer
	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], 1<<30)
	buf.Write(prefix[:])

	fr := NewFrameReader(&buf, 1024)
	if _, err := fr.ReadFrame(); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("ReadFrame = %v, want ErrPayloadTooLarge", err)
	}
}

func TestFrameReaderZeroLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0})

	fr := NewFrameReader(&buf, 0)
	payload, err := fr.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if len(payload) != 0 {
		t.Errorf("payload = %d bytes, want 0", len(payload))
	}
	if _, err := fr.ReadFrame(); err != io.EOF {
		t.Errorf("ReadFrame after zero-length frame = %v, want io.EOF", err)
	}
}

func TestPayloadBoundSurvivesPrefixWraparound(t *testing.T) {
	if bits.UintSize < 64 {
		t.Skip("needs 64-bit int")
	}
	// 2^32+5 truncates to 5 as uint32; the bound check must still see
	// the real size.
	n := 1
	n <<= 32
	n += 5
	if payloadFits(n, DefaultMaxPayloadSize) {
		t.Error("payloadFits accepted a payload larger than the prefix can express")
	}
	if !payloadFits(DefaultMaxPayloadSize, DefaultMaxPayloadSize) {
		t.Error("payloadFits rejected a payload at the bound")
	}
}

func TestFrameReaderCleanEOF(t *testing.T) {
	// A stream that ends exactly between frames is a plain EOF, not a
	// truncation.
	fr := NewFrameReader(&bytes.Buffer{}, 0)
	if _, err := fr.ReadFrame(); err != io.EOF {
		t.Errorf("ReadFrame on empty stream = %v, want io.EOF", err)
	}
}

func TestFrameReaderTruncated(t *testing.T) {
	tests := []struct {
		name string
		wire []byte
	}{
		{"partial prefix", []byte{0x00, 0x00}},
		{"prefix only", []byte{0x00, 0x00, 0x00, 0x08}},
		{"partial payload", []byte{0x00, 0x00, 0x00, 0x08, 0xaa, 0xbb}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := NewFrameReader(bytes.NewReader(tt.wire), 0)
			if _, err := fr.ReadFrame(); !errors.Is(err, ErrFrameTruncated) {
				t.Errorf("ReadFrame = %v, want ErrFrameTruncated", err)
			}
		})
	}
}

func TestMultipleFrames(t *testing.T) {
	payloads := [][]byte{
		[]byte("first"),
		[]byte("second message"),
		bytes.Repeat([]byte{0x55}, 1000),
	}

	var buf bytes.Buffer
	fw := NewFrameWriter(&buf, 0)
	for _, p := range payloads {
		if err := fw.WriteFrame(p); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}
	}

	fr := NewFrameReader(&buf, 0)
	for i, want := range payloads {
		got, err := fr.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame %d failed: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame %d mismatch", i)
		}
	}
	if _, err := fr.ReadFrame(); err != io.EOF {
		t.Errorf("ReadFrame after last frame = %v, want io.EOF", err)
	}
}

func TestFramerBidirectional(t *testing.T) {
	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()

	client := NewFramer(readWriter{clientR, clientW}, 0)
	server := NewFramer(readWriter{serverR, serverW}, 0)

	done := make(chan error, 1)
	go func() {
		payload, err := server.ReadFrame()
		if err != nil {
			done <- err
			return
		}
		done <- server.WriteFrame(append([]byte("echo: "), payload...))
	}()

	if err := client.WriteFrame([]byte("ping")); err != nil {
		t.Fatalf("client WriteFrame failed: %v", err)
	}
	reply, err := client.ReadFrame()
	if err != nil {
		t.Fatalf("client ReadFrame failed: %v", err)
	}
	if string(reply) != "echo: ping" {
		t.Errorf("reply = %q, want %q", reply, "echo: ping")
	}
	if err := <-done; err != nil {
		t.Fatalf("server side failed: %v", err)
	}
}

type readWriter struct {
	io.Reader
	io.Writer
}

func TestWriteProgressCallback(t *testing.T) {
	payload := bytes.Repeat([]byte{0x11}, ioChunkSize*2+100)

	var buf bytes.Buffer
	fw := NewFrameWriter(&buf, 0)

	total := 0
	calls := 0
	fw.SetProgressFunc(func(n int) {
		total += n
		calls++
	})

	if err := fw.WriteFrame(payload); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	if total != FrameSize(len(payload)) {
		t.Errorf("progress total = %d, want %d", total, FrameSize(len(payload)))
	}
	// Prefix plus three body chunks.
	if calls != 4 {
		t.Errorf("progress calls = %d, want 4", calls)
	}
}

func TestReadProgressAndLengthCallbacks(t *testing.T) {
	payload := bytes.Repeat([]byte{0x22}, ioChunkSize+50)

	var buf bytes.Buffer
	if err := NewFrameWriter(&buf, 0).WriteFrame(payload); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	fr := NewFrameReader(&buf, 0)

	total := 0
	fr.SetProgressFunc(func(n int) { total += n })

	var announced uint32
	fr.SetLengthFunc(func(length uint32) { announced = length })

	if _, err := fr.ReadFrame(); err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if total != FrameSize(len(payload)) {
		t.Errorf("progress total = %d, want %d", total, FrameSize(len(payload)))
	}
	if announced != uint32(len(payload)) {
		t.Errorf("announced length = %d, want %d", announced, len(payload))
	}
}

func TestLengthCallbackNotCalledForOversizedClaim(t *testing.T) {
	var buf bytes.Buffer
	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], 4096)
	buf.Write(prefix[:])

	fr := NewFrameReader(&buf, 1024)
	fr.SetLengthFunc(func(uint32) {
		t.Error("length callback fired for a rejected claim")
	})
	if _, err := fr.ReadFrame(); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("ReadFrame = %v, want ErrPayloadTooLarge", err)
	}
}

func TestFrameSize(t *testing.T) {
	tests := []struct {
		payload int
		want    int
	}{
		{0, 4},
		{1, 5},
		{1000, 1004},
		{DefaultMaxPayloadSize, DefaultMaxPayloadSize + 4},
	}
	for _, tt := range tests {
		if got := FrameSize(tt.payload); got != tt.want {
			t.Errorf("FrameSize(%d) = %d, want %d", tt.payload, got, tt.want)
		}
	}
}

func BenchmarkFrameWrite(b *testing.B) {
	payload := bytes.Repeat([]byte{0x42}, 1024)
	fw := NewFrameWriter(io.Discard, 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := fw.WriteFrame(payload); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFrameRead(b *testing.B) {
	var buf bytes.Buffer
	if err := NewFrameWriter(&buf, 0).WriteFrame(bytes.Repeat([]byte{0x42}, 1024)); err != nil {
		b.Fatal(err)
	}
	wire := buf.Bytes()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		fr := NewFrameReader(bytes.NewReader(wire), 0)
		if _, err := fr.ReadFrame(); err != nil {
			b.Fatal(err)
		}
	}
}
