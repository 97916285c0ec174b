// Package codec holds the process-wide type -> (serializer, deserializer)
// registry used to move typed values on and off the wire. A missing codec
// is a configuration error, never a per-message failure: registration that
// needs a codec which isn't present is rejected up front (see relaynet's
// reflective-handler registration), while every successful read/write
// bottoms out in one of the functions here.
package codec

import (
	"reflect"
	"sync"

	"github.com/nullchannel/relaynet/pkg/wire"
)

type Serializer[T any] func(w *wire.Writer, v T)

// Deserializer reads a T from r, returning ok=false (without advancing
// past what it already consumed) if the bytes are malformed or the
// reader ran out before a complete value could be read.
type Deserializer[T any] func(r *wire.Reader) (T, bool)

type entry struct {
	ser any
	de  any
}

var (
	mu       sync.RWMutex
	registry = make(map[reflect.Type]entry)
)

// Register installs (or replaces) the serializer/deserializer pair for T.
func Register[T any](ser Serializer[T], de Deserializer[T]) {
	var zero T
	mu.Lock()
	defer mu.Unlock()
	registry[reflect.TypeOf(&zero).Elem()] = entry{ser: ser, de: de}
}

// Lookup returns the registered pair for T, or ok=false if T was never
// registered.
func Lookup[T any]() (Serializer[T], Deserializer[T], bool) {
	var zero T
	mu.RLock()
	e, ok := registry[reflect.TypeOf(&zero).Elem()]
	mu.RUnlock()
	if !ok {
		return nil, nil, false
	}
	ser, serOK := e.ser.(Serializer[T])
	de, deOK := e.de.(Deserializer[T])
	return ser, de, serOK && deOK
}

// Write serializes v using the registered codec for T. Callers that need
// to know whether a codec exists at all (e.g. reflective registration)
// should use Lookup instead; Write panics on a missing codec because by
// the time a handler is dispatching, the codec's presence was already a
// precondition of successful registration.
func Write[T any](w *wire.Writer, v T) {
	ser, _, ok := Lookup[T]()
	if !ok {
		panic("codec: no serializer registered for type")
	}
	ser(w, v)
}

// Read deserializes a T using the registered codec for T.
func Read[T any](r *wire.Reader) (T, bool) {
	var zero T
	_, de, ok := Lookup[T]()
	if !ok {
		return zero, false
	}
	return de(r)
}
