package relaynet

import (
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	log "github.com/nullchannel/relaynet/pkg/minilog"
)

// expirationWindow is the quarantine period a disconnected UID is held
// for before it could ever be considered free again (spec §3/§4.2). This
// engine never reuses UIDs (monotonic allocation), so the window's only
// effect is how long late-arriving references to the UID keep resolving
// cleanly via the tracker rather than failing directory lookups outright.
const expirationWindow = 5 * time.Minute

// reaperRate mirrors ron.REAPER_RATE (internal/ron/ron.go): the go-cache
// janitor's cleanup interval, i.e. how often its own background goroutine
// removes expired entries, instead of a hand-rolled sweep loop.
const reaperRate = 30 * time.Second

// Expirations is the UID -> tracker map from spec §3, backed by
// patrickmn/go-cache's TTL janitor (the same library phenix/web/cache
// wraps for its own short-lived entries) instead of a hand-swept map.
type Expirations struct {
	c *gocache.Cache
}

func NewExpirations() *Expirations {
	return &Expirations{c: gocache.New(gocache.NoExpiration, reaperRate)}
}

// Track quarantines uid for the expiration window, starting now. Called
// once a connection's transport handle has gone invalid.
func (e *Expirations) Track(uid uint64) {
	e.c.Set(expirationsKey(uid), struct{}{}, expirationWindow)
	log.Debug("relaynet: uid %v quarantined for %v", uid, expirationWindow)
}

// Tracked reports whether uid is still within its quarantine window.
func (e *Expirations) Tracked(uid uint64) bool {
	_, ok := e.c.Get(expirationsKey(uid))
	return ok
}

// Forget removes uid's quarantine entry immediately (e.g. process
// shutdown), bypassing the TTL.
func (e *Expirations) Forget(uid uint64) {
	e.c.Delete(expirationsKey(uid))
}

func expirationsKey(uid uint64) string {
	// go-cache is string-keyed; this prefix just keeps the keyspace
	// legible if ever dumped for diagnostics.
	return "uid:" + strconv.FormatUint(uid, 10)
}
