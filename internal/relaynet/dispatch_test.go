package relaynet

import (
	"testing"

	"github.com/nullchannel/relaynet/pkg/wire"
)

func TestDispatchDefaultInvokesAllHandlersInOrderWhenPermitted(t *testing.T) {
	dir := NewDirectory()
	dir.Register(1, 0, nil)
	d := NewDispatcher(SideServer, dir)

	var order []int
	d.RegisterDefault(10, 0, func(uid uint64, meta wire.Metadata, r *wire.Reader) { order = append(order, 1) })
	d.RegisterDefault(10, 0, func(uid uint64, meta wire.Metadata, r *wire.Reader) { order = append(order, 2) })

	d.DispatchDefault(1, 10, wire.NewMetadata(wire.Default, 0), wire.NewReader(nil))

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("handlers ran in order %v, want [1 2]", order)
	}
}

func TestDispatchDefaultSkipsHandlerWhenFlagsInsufficient(t *testing.T) {
	dir := NewDirectory()
	dir.Register(1, 0, nil) // no flags granted
	d := NewDispatcher(SideServer, dir)

	called := false
	d.RegisterDefault(10, Flags(0).Set(3), func(uid uint64, meta wire.Metadata, r *wire.Reader) { called = true })

	d.DispatchDefault(1, 10, wire.NewMetadata(wire.Default, 0), wire.NewReader(nil))

	if called {
		t.Fatal("handler requiring an ungranted flag should not be invoked")
	}
}

func TestDispatchDefaultUnknownKeyIsNoop(t *testing.T) {
	dir := NewDirectory()
	dir.Register(1, 0, nil)
	d := NewDispatcher(SideServer, dir)

	// No handler registered for key 99; should simply log and return.
	d.DispatchDefault(1, 99, wire.NewMetadata(wire.Default, 0), wire.NewReader(nil))
}

func TestDispatchControlRejectsOutOfRangeKey(t *testing.T) {
	dir := NewDirectory()
	dir.Register(1, 0, nil)
	d := NewDispatcher(SideServer, dir)

	called := false
	d.RegisterControl(16, 0, 0, func(uint64, wire.Metadata, *wire.Reader) bool { called = true; return true })
	if called {
		t.Fatal("RegisterControl with key >= 16 should be rejected at registration")
	}

	d.DispatchControl(1, 16, wire.NewMetadata(wire.Control, 0), wire.NewReader(nil))
	if called {
		t.Fatal("DispatchControl with key >= 16 should never invoke a handler")
	}
}

func TestDispatchControlGrantsPermissionBitOnTrue(t *testing.T) {
	dir := NewDirectory()
	dir.Register(1, 0, nil)
	d := NewDispatcher(SideServer, dir)

	d.RegisterControl(3, 0, 4, func(uid uint64, meta wire.Metadata, r *wire.Reader) bool {
		_, _ = r.ReadUint32()
		return true
	})

	payload := wire.NewWriter()
	payload.WriteUint32(42)
	r := wire.NewReader(payload.Bytes())

	d.DispatchControl(1, 3, wire.NewMetadata(wire.Control, 0), r)

	if !dir.Meets(1, Flags(0).Set(3)) {
		t.Fatal("control handler returning true should set permission bit 3")
	}
}

func TestDispatchControlLengthMismatchSkipsHandler(t *testing.T) {
	dir := NewDirectory()
	dir.Register(1, 0, nil)
	d := NewDispatcher(SideServer, dir)

	called := false
	d.RegisterControl(2, 0, 8, func(uint64, wire.Metadata, *wire.Reader) bool { called = true; return true })

	// Only 2 bytes remaining, handler expects 8.
	r := wire.NewReader([]byte{0x01, 0x02})
	d.DispatchControl(1, 2, wire.NewMetadata(wire.Control, 0), r)

	if called {
		t.Fatal("handler should be skipped when remaining payload length mismatches expectedLength")
	}
}

func TestDispatchEventUnknownUIDIsNoop(t *testing.T) {
	dir := NewDirectory()
	d := NewDispatcher(SideServer, dir)

	called := false
	d.RegisterEvent(1, 0, func(uint64, wire.Metadata) { called = true })

	d.DispatchEvent(999, 1, wire.NewMetadata(wire.Event, 0))
	if called {
		t.Fatal("event dispatch for an unregistered uid should never invoke a handler")
	}
}

func TestSafeCallRecoversPanic(t *testing.T) {
	safeCall(func() { panic("boom") })
}

func TestSideMatchesBitwiseIntersection(t *testing.T) {
	cases := []struct {
		handler, dispatcher Side
		want                bool
	}{
		{SideClient, SideClient, true},
		{SideClient, SideServer, false},
		{SideCommon, SideClient, true},
		{SideCommon, SideServer, true},
		{SideAny, SideClient, true},
		{SideAny, SideServer, true},
		{SideClient, SideAny, true},
		{SideNone, SideClient, false},
	}
	for _, c := range cases {
		if got := sideMatches(c.handler, c.dispatcher); got != c.want {
			t.Errorf("sideMatches(%v, %v) = %v, want %v", c.handler, c.dispatcher, got, c.want)
		}
	}
}

func TestUnregisterDefaultRemovesLastHandler(t *testing.T) {
	dir := NewDirectory()
	dir.Register(1, 0, nil)
	d := NewDispatcher(SideServer, dir)

	var calls int
	d.RegisterDefault(7, 0, func(uint64, wire.Metadata, *wire.Reader) { calls++ })
	d.RegisterDefault(7, 0, func(uint64, wire.Metadata, *wire.Reader) { calls++ })

	d.UnregisterDefault(7)
	d.DispatchDefault(1, 7, wire.NewMetadata(wire.Default, 0), wire.NewReader(nil))

	if calls != 1 {
		t.Fatalf("expected only the remaining handler to fire, got %v calls", calls)
	}

	d.UnregisterDefault(7)
	calls = 0
	d.DispatchDefault(1, 7, wire.NewMetadata(wire.Default, 0), wire.NewReader(nil))
	if calls != 0 {
		t.Fatal("after removing all handlers, key should be fully unregistered")
	}
}

func TestOnDisconnectHooksFireInOrder(t *testing.T) {
	dir := NewDirectory()
	d := NewDispatcher(SideServer, dir)

	var order []int
	d.OnDisconnect(func(uint64) { order = append(order, 1) })
	d.OnDisconnect(func(uint64) { order = append(order, 2) })

	d.fireDisconnect(42)

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("disconnect hooks ran in order %v, want [1 2]", order)
	}
}
