package relaynet

// EventHub is a multi-subscriber callback list (spec §9): ClientConnected
// and ClientDisconnected on the server, Connect and Disconnect on the
// client. Subscription is tick-safe because emission only ever happens
// from the tick thread.
type EventHub struct {
	subs []func(uid uint64)
}

func (h *EventHub) Subscribe(fn func(uid uint64)) {
	h.subs = append(h.subs, fn)
}

func (h *EventHub) Emit(uid uint64) {
	for _, fn := range h.subs {
		safeCall(func() { fn(uid) })
	}
}
