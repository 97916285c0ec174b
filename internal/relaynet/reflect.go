package relaynet

import (
	"github.com/nullchannel/relaynet/pkg/codec"
	log "github.com/nullchannel/relaynet/pkg/minilog"
	"github.com/nullchannel/relaynet/pkg/wire"
)

// Reflective handlers (spec §4.5/§9) are built with generics instead of
// runtime reflection: each arity gets its own Register* entry point whose
// type parameters pin down, at compile time, which codec.Read[T] calls
// the wrapper performs before invoking the user function. The "reserved
// parameter" concept from the source (connection_uid, message_metadata)
// becomes the fixed (uid, meta) prefix every wrapper threads through; the
// remaining type parameters are the "every other parameter" the codec
// registry must supply.

// RegisterReflectiveDefault1 registers a default-data handler whose only
// non-reserved parameter is a T, deserialized from the wire with the
// registered codec for T. Registration fails loudly if no codec for T is
// registered -- a reflective handler's deserializer requirement is a
// registration-time precondition, not a per-message one.
func RegisterReflectiveDefault1[T any](d *Dispatcher, key uint16, required Flags, fn func(uid uint64, meta wire.Metadata, a T)) bool {
	if _, _, ok := codec.Lookup[T](); !ok {
		log.Error("relaynet: reflective registration for key %v rejected: no deserializer for parameter type", key)
		return false
	}

	d.RegisterDefault(key, required, func(uid uint64, meta wire.Metadata, r *wire.Reader) {
		a, ok := codec.Read[T](r)
		if !ok {
			return // malformed payload: message dropped silently (spec §4.5)
		}
		fn(uid, meta, a)
	})
	return true
}

// RegisterReflectiveDefault2 is the two-parameter analog of
// RegisterReflectiveDefault1; parameters are deserialized in declaration
// order and the handler is skipped if any deserializer fails.
func RegisterReflectiveDefault2[T1, T2 any](d *Dispatcher, key uint16, required Flags, fn func(uid uint64, meta wire.Metadata, a T1, b T2)) bool {
	if _, _, ok := codec.Lookup[T1](); !ok {
		log.Error("relaynet: reflective registration for key %v rejected: no deserializer for parameter 1", key)
		return false
	}
	if _, _, ok := codec.Lookup[T2](); !ok {
		log.Error("relaynet: reflective registration for key %v rejected: no deserializer for parameter 2", key)
		return false
	}

	d.RegisterDefault(key, required, func(uid uint64, meta wire.Metadata, r *wire.Reader) {
		a, ok := codec.Read[T1](r)
		if !ok {
			return
		}
		b, ok := codec.Read[T2](r)
		if !ok {
			return
		}
		fn(uid, meta, a, b)
	})
	return true
}

// RegisterReflectiveDefault3 is the three-parameter analog.
func RegisterReflectiveDefault3[T1, T2, T3 any](d *Dispatcher, key uint16, required Flags, fn func(uid uint64, meta wire.Metadata, a T1, b T2, c T3)) bool {
	if _, _, ok := codec.Lookup[T1](); !ok {
		log.Error("relaynet: reflective registration for key %v rejected: no deserializer for parameter 1", key)
		return false
	}
	if _, _, ok := codec.Lookup[T2](); !ok {
		log.Error("relaynet: reflective registration for key %v rejected: no deserializer for parameter 2", key)
		return false
	}
	if _, _, ok := codec.Lookup[T3](); !ok {
		log.Error("relaynet: reflective registration for key %v rejected: no deserializer for parameter 3", key)
		return false
	}

	d.RegisterDefault(key, required, func(uid uint64, meta wire.Metadata, r *wire.Reader) {
		a, ok := codec.Read[T1](r)
		if !ok {
			return
		}
		b, ok := codec.Read[T2](r)
		if !ok {
			return
		}
		c, ok := codec.Read[T3](r)
		if !ok {
			return
		}
		fn(uid, meta, a, b, c)
	})
	return true
}

// RegisterReflectiveControl1 is the control-message analog: the user
// function returns bool (granted) on the same principle as a plain
// ControlFunc.
func RegisterReflectiveControl1[T any](d *Dispatcher, key uint16, required Flags, expectedLength int, fn func(uid uint64, meta wire.Metadata, a T) bool) bool {
	if _, _, ok := codec.Lookup[T](); !ok {
		log.Error("relaynet: reflective control registration for key %v rejected: no deserializer", key)
		return false
	}

	d.RegisterControl(key, required, expectedLength, func(uid uint64, meta wire.Metadata, r *wire.Reader) bool {
		a, ok := codec.Read[T](r)
		if !ok {
			return false
		}
		return fn(uid, meta, a)
	})
	return true
}
