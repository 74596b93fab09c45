package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Framing constants.
const (
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4

	// DefaultMaxPayloadSize is the default maximum frame payload (4 MiB).
	// Both ends of a deployment must agree on the bound.
	DefaultMaxPayloadSize = 4 << 20

	// ioChunkSize is the largest single read/write issued for a frame
	// body, so progress counters advance during large transfers.
	ioChunkSize = 32 << 10
)

// Framing errors.
var (
	// ErrPayloadTooLarge indicates the payload exceeds the maximum size.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrFrameTruncated indicates the stream ended mid-frame.
	ErrFrameTruncated = errors.New("frame truncated")
)

// FrameSize returns the total on-wire frame size for a payload.
func FrameSize(payloadSize int) int {
	return LengthPrefixSize + payloadSize
}

// payloadFits reports whether an n-byte payload respects max. The
// comparison widens to uint64 so a payload past 4 GiB cannot wrap the
// 32-bit length prefix and slip under the bound.
func payloadFits(n int, max uint32) bool {
	return uint64(n) <= uint64(max)
}

// FrameWriter writes length-prefixed frames to an underlying writer.
// Not safe for concurrent use; the connection serializes access.
type FrameWriter struct {
	w              io.Writer
	maxPayloadSize uint32

	// onProgress, if set, is called with the byte count of every
	// completed chunk write (length prefix included).
	onProgress func(n int)
}

// NewFrameWriter creates a frame writer with the given payload bound.
// A zero maxSize means DefaultMaxPayloadSize.
func NewFrameWriter(w io.Writer, maxSize uint32) *FrameWriter {
	if maxSize == 0 {
		maxSize = DefaultMaxPayloadSize
	}
	return &FrameWriter{w: w, maxPayloadSize: maxSize}
}

// SetProgressFunc configures per-chunk progress reporting.
func (fw *FrameWriter) SetProgressFunc(fn func(n int)) {
	fw.onProgress = fn
}

// WriteFrame writes a length-prefixed frame, looping over partial writes
// until the whole frame is on the wire or an I/O error occurs. A
// zero-length payload is a valid frame: just the prefix.
func (fw *FrameWriter) WriteFrame(payload []byte) error {
	if !payloadFits(len(payload), fw.maxPayloadSize) {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), fw.maxPayloadSize)
	}

	var lengthBuf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(payload)))

	if err := fw.writeAll(lengthBuf[:]); err != nil {
		return fmt.Errorf("failed to write length prefix: %w", err)
	}
	if err := fw.writeAll(payload); err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}

	return nil
}

// writeAll writes buf in bounded chunks, reporting progress per chunk.
func (fw *FrameWriter) writeAll(buf []byte) error {
	for len(buf) > 0 {
		chunk := buf
		if len(chunk) > ioChunkSize {
			chunk = chunk[:ioChunkSize]
		}
		n, err := fw.w.Write(chunk)
		if n > 0 && fw.onProgress != nil {
			fw.onProgress(n)
		}
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

// FrameReader reads length-prefixed frames from an underlying reader.
// Not safe for concurrent use; the connection serializes access.
type FrameReader struct {
	r              io.Reader
	maxPayloadSize uint32
	lengthBuf      [LengthPrefixSize]byte

	// onProgress, if set, is called with the byte count of every
	// completed chunk read (length prefix included).
	onProgress func(n int)

	// onLength, if set, is called with the advertised payload length
	// after it passes the size bound, before the body is read.
	onLength func(length uint32)
}

// NewFrameReader creates a frame reader with the given payload bound.
// A zero maxSize means DefaultMaxPayloadSize.
func NewFrameReader(r io.Reader, maxSize uint32) *FrameReader {
	if maxSize == 0 {
		maxSize = DefaultMaxPayloadSize
	}
	return &FrameReader{r: r, maxPayloadSize: maxSize}
}

// SetProgressFunc configures per-chunk progress reporting.
func (fr *FrameReader) SetProgressFunc(fn func(n int)) {
	fr.onProgress = fn
}

// SetLengthFunc configures notification of the advertised payload length.
func (fr *FrameReader) SetLengthFunc(fn func(length uint32)) {
	fr.onLength = fn
}

// ReadFrame reads one length-prefixed frame and returns the payload,
// which is empty for a zero-length frame. The advertised length is
// validated against the maximum before any payload buffer is allocated;
// an oversized claim costs no memory.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(fr.r, fr.lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, err
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("failed to read length prefix: %w", err)
	}
	if fr.onProgress != nil {
		fr.onProgress(LengthPrefixSize)
	}

	length := binary.BigEndian.Uint32(fr.lengthBuf[:])
	if length > fr.maxPayloadSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, length, fr.maxPayloadSize)
	}
	if fr.onLength != nil {
		fr.onLength(length)
	}

	payload := make([]byte, length)
	if err := fr.readAll(payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || err == io.EOF {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	return payload, nil
}

// readAll fills buf in bounded chunks, reporting progress per chunk.
func (fr *FrameReader) readAll(buf []byte) error {
	for len(buf) > 0 {
		chunk := buf
		if len(chunk) > ioChunkSize {
			chunk = chunk[:ioChunkSize]
		}
		n, err := io.ReadFull(fr.r, chunk)
		if n > 0 && fr.onProgress != nil {
			fr.onProgress(n)
		}
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

// Framer combines frame reading and writing over one stream.
type Framer struct {
	*FrameReader
	*FrameWriter
}

// NewFramer creates a framer for bidirectional communication.
// A zero maxSize means DefaultMaxPayloadSize.
func NewFramer(rw io.ReadWriter, maxSize uint32) *Framer {
	return &Framer{
		FrameReader: NewFrameReader(rw, maxSize),
		FrameWriter: NewFrameWriter(rw, maxSize),
	}
}
