package wire

import "testing"

func TestMetadataPacksTypeAndFlags(t *testing.T) {
	m := NewMetadata(Control, 0x2A)
	if m.Type() != Control {
		t.Fatalf("Type() = %v, want Control", m.Type())
	}
	if m.Flags() != 0x2A {
		t.Fatalf("Flags() = %#x, want 0x2a", m.Flags())
	}
}

func TestMetadataFlagsMaskedTo6Bits(t *testing.T) {
	m := NewMetadata(Default, 0xFF)
	if m.Flags() != 0x3F {
		t.Fatalf("Flags() = %#x, want 0x3f (top 2 bits reserved for type)", m.Flags())
	}
}

func TestWritePreambleThenFinalizeRoundTrips(t *testing.T) {
	w := NewWriter()
	meta := NewMetadata(Event, 0x01)
	WritePreamble(w, meta, 99)
	frame := Finalize(w)

	if len(frame) != MinFrameSize {
		t.Fatalf("len(frame) = %v, want %v", len(frame), MinFrameSize)
	}

	r := NewReader(frame)
	gotMetaByte, ok := r.ReadByte()
	if !ok {
		t.Fatal("ReadByte failed on the metadata byte")
	}
	if Metadata(gotMetaByte) != meta {
		t.Fatalf("metadata byte = %#x, want %#x", gotMetaByte, meta.Byte())
	}

	gotKey, ok := r.ReadUint16()
	if !ok || gotKey != 99 {
		t.Fatalf("key = %v, %v; want 99, true", gotKey, ok)
	}

	total, ok := r.ReadUint32()
	if !ok || total != uint32(MinFrameSize) {
		t.Fatalf("trailer = %v, %v; want %v, true", total, ok, MinFrameSize)
	}
}

func TestReaderFailsClosedOnShortRead(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})
	if _, ok := r.ReadUint32(); ok {
		t.Fatal("ReadUint32 on a 2-byte buffer should fail")
	}
	if r.Remaining() != 2 {
		t.Fatalf("a failed read should not consume bytes, Remaining() = %v, want 2", r.Remaining())
	}
}

func TestReaderLittleEndian(t *testing.T) {
	r := NewReader([]byte{0x01, 0x00, 0x00, 0x00})
	v, ok := r.ReadUint32()
	if !ok || v != 1 {
		t.Fatalf("ReadUint32() = %v, %v; want 1, true (little-endian)", v, ok)
	}
}

func TestWriterBytesDoesNotAppendTrailer(t *testing.T) {
	w := NewWriter()
	w.WriteByte(0x01)
	if got := w.Bytes(); len(got) != 1 {
		t.Fatalf("Bytes() length = %v, want 1 (no trailer appended)", len(got))
	}
}

func TestFinalizeReportsTotalLengthIncludingTrailer(t *testing.T) {
	w := NewWriter()
	w.WriteByte(0x01)
	w.WriteUint16(2)
	w.Write([]byte{0xAA, 0xBB})

	frame := Finalize(w)
	r := NewReader(frame)
	r.Read(make([]byte, len(frame)-4))
	total, _ := r.ReadUint32()

	if int(total) != len(frame) {
		t.Fatalf("trailer total = %v, want %v (len of whole frame)", total, len(frame))
	}
}
