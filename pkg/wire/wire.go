// Package wire implements the bit-exact frame layout used on the
// client<->server link: a metadata byte, a 16-bit message key, a
// per-type payload, and a 32-bit total-length trailer.
package wire

import (
	"bytes"
	"encoding/binary"
)

// Type is the 2-bit message type carried in bits 6-7 of the metadata byte.
type Type byte

const (
	Default     Type = 0
	VarTracking Type = 1
	Event       Type = 2
	Control     Type = 3
)

// preambleSize is metadata(1) + key(2).
const preambleSize = 3

// trailerSize is the 32-bit total-length field.
const trailerSize = 4

// PreambleSize and TrailerSize are exported for callers (e.g. the
// receiver) that need to slice the payload region out of a complete
// frame rather than read it field by field.
const PreambleSize = preambleSize
const TrailerSize = trailerSize

// MinFrameSize is the smallest legal frame: preamble + trailer, no payload.
const MinFrameSize = preambleSize + trailerSize

// Metadata packs a Type into bits 6-7 and preserves the low 6 bits of
// per-type flags verbatim, even though nothing interprets them yet.
type Metadata byte

func NewMetadata(t Type, flags byte) Metadata {
	return Metadata((byte(t) << 6) | (flags & 0x3F))
}

func (m Metadata) Type() Type   { return Type(byte(m) >> 6) }
func (m Metadata) Flags() byte  { return byte(m) & 0x3F }
func (m Metadata) Byte() byte   { return byte(m) }

// Reader reads frame fields from a byte slice, tracking how many bytes
// remain so every read can fail closed instead of panicking or
// over-reading on a short buffer.
type Reader struct {
	r *bytes.Reader
}

func NewReader(b []byte) *Reader {
	return &Reader{r: bytes.NewReader(b)}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return r.r.Len() }

// Read copies up to len(p) bytes, failing (without advancing) if fewer
// than len(p) bytes remain.
func (r *Reader) Read(p []byte) bool {
	if r.r.Len() < len(p) {
		return false
	}
	_, _ = r.r.Read(p)
	return true
}

func (r *Reader) ReadByte() (byte, bool) {
	var b [1]byte
	if !r.Read(b[:]) {
		return 0, false
	}
	return b[0], true
}

func (r *Reader) ReadUint16() (uint16, bool) {
	var b [2]byte
	if !r.Read(b[:]) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b[:]), true
}

func (r *Reader) ReadUint32() (uint32, bool) {
	var b [4]byte
	if !r.Read(b[:]) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b[:]), true
}

func (r *Reader) ReadUint64() (uint64, bool) {
	var b [8]byte
	if !r.Read(b[:]) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b[:]), true
}

// Writer accumulates an outgoing frame. Finalize appends the 4-byte
// total-length trailer after the preamble and payload are written.
type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) WriteByte(b byte)  { w.buf.WriteByte(b) }

func (w *Writer) WriteUint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) WriteUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) WriteUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) Write(p []byte) { w.buf.Write(p) }

func (w *Writer) Len() int { return w.buf.Len() }

// Bytes returns the buffer's current contents without finalizing (no
// trailer appended); used for the multicast template buffer, whose
// payload bytes are copied into each recipient's own framed writer.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// WritePreamble writes the metadata byte and message key; send pipelines
// run immediately after this and before the caller writes payload.
func WritePreamble(w *Writer, meta Metadata, key uint16) {
	w.WriteByte(meta.Byte())
	w.WriteUint16(key)
}

// Finalize appends the 4-byte total-length trailer (= preamble + payload
// already written + 4) and returns the complete frame.
func Finalize(w *Writer) []byte {
	total := uint32(w.buf.Len() + trailerSize)
	w.WriteUint32(total)
	return w.buf.Bytes()
}
