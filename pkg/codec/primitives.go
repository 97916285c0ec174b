package codec

import (
	"math"

	"github.com/nullchannel/relaynet/pkg/wire"
)

// Vec2 and Vec3 are the 2- and 3-component float vectors spec'd for the
// wire; kept as plain structs rather than pulling in a full math/vector
// dependency since nothing downstream needs more than field access.
type Vec2 struct{ X, Y float32 }
type Vec3 struct{ X, Y, Z float32 }

// Timestamp is a 64-bit signed tick count, matching the wire encoding of
// time.Time on the codec (the registry never carries a time.Time value
// directly so callers control clock source and resolution).
type Timestamp int64

func init() {
	Register[byte](
		func(w *wire.Writer, v byte) { w.WriteByte(v) },
		func(r *wire.Reader) (byte, bool) { return r.ReadByte() },
	)

	Register[int16](
		func(w *wire.Writer, v int16) { w.WriteUint16(uint16(v)) },
		func(r *wire.Reader) (int16, bool) {
			v, ok := r.ReadUint16()
			return int16(v), ok
		},
	)
	Register[uint16](
		func(w *wire.Writer, v uint16) { w.WriteUint16(v) },
		func(r *wire.Reader) (uint16, bool) { return r.ReadUint16() },
	)

	Register[int32](
		func(w *wire.Writer, v int32) { w.WriteUint32(uint32(v)) },
		func(r *wire.Reader) (int32, bool) {
			v, ok := r.ReadUint32()
			return int32(v), ok
		},
	)
	Register[uint32](
		func(w *wire.Writer, v uint32) { w.WriteUint32(v) },
		func(r *wire.Reader) (uint32, bool) { return r.ReadUint32() },
	)

	Register[int64](
		func(w *wire.Writer, v int64) { w.WriteUint64(uint64(v)) },
		func(r *wire.Reader) (int64, bool) {
			v, ok := r.ReadUint64()
			return int64(v), ok
		},
	)
	Register[uint64](
		func(w *wire.Writer, v uint64) { w.WriteUint64(v) },
		func(r *wire.Reader) (uint64, bool) { return r.ReadUint64() },
	)

	Register[float32](
		func(w *wire.Writer, v float32) { w.WriteUint32(math.Float32bits(v)) },
		func(r *wire.Reader) (float32, bool) {
			v, ok := r.ReadUint32()
			return math.Float32frombits(v), ok
		},
	)
	Register[float64](
		func(w *wire.Writer, v float64) { w.WriteUint64(math.Float64bits(v)) },
		func(r *wire.Reader) (float64, bool) {
			v, ok := r.ReadUint64()
			return math.Float64frombits(v), ok
		},
	)

	Register[Timestamp](
		func(w *wire.Writer, v Timestamp) { w.WriteUint64(uint64(v)) },
		func(r *wire.Reader) (Timestamp, bool) {
			v, ok := r.ReadUint64()
			return Timestamp(v), ok
		},
	)

	Register[string](
		func(w *wire.Writer, v string) {
			// length = -1 null, 0 empty, else byte count, then UTF-8 bytes
			w.WriteUint32(uint32(int32(len(v))))
			w.Write([]byte(v))
		},
		func(r *wire.Reader) (string, bool) {
			n, ok := r.ReadUint32()
			if !ok {
				return "", false
			}
			length := int32(n)
			if length < -1 {
				return "", false
			}
			if length <= 0 {
				return "", true
			}
			buf := make([]byte, length)
			if !r.Read(buf) {
				return "", false
			}
			return string(buf), true
		},
	)

	Register[Vec2](
		func(w *wire.Writer, v Vec2) {
			w.WriteUint32(math.Float32bits(v.X))
			w.WriteUint32(math.Float32bits(v.Y))
		},
		func(r *wire.Reader) (Vec2, bool) {
			x, ok := r.ReadUint32()
			if !ok {
				return Vec2{}, false
			}
			y, ok := r.ReadUint32()
			if !ok {
				return Vec2{}, false
			}
			return Vec2{X: math.Float32frombits(x), Y: math.Float32frombits(y)}, true
		},
	)

	Register[Vec3](
		func(w *wire.Writer, v Vec3) {
			w.WriteUint32(math.Float32bits(v.X))
			w.WriteUint32(math.Float32bits(v.Y))
			w.WriteUint32(math.Float32bits(v.Z))
		},
		func(r *wire.Reader) (Vec3, bool) {
			x, ok := r.ReadUint32()
			if !ok {
				return Vec3{}, false
			}
			y, ok := r.ReadUint32()
			if !ok {
				return Vec3{}, false
			}
			z, ok := r.ReadUint32()
			if !ok {
				return Vec3{}, false
			}
			return Vec3{X: math.Float32frombits(x), Y: math.Float32frombits(y), Z: math.Float32frombits(z)}, true
		},
	)
}
