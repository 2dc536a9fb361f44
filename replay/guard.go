// Package replay implements the per-packet replay guard of the replay guard: a
// persistent set of 16-byte tags, keyed "packet-tag-" ‖ tag, that
// rejects any tag's second appearance. The contract is atomic —
// concurrent transforms of the same packet must see exactly one
// success and one rejection, never two successes (the concurrency model's same-tag
// serialization requirement) — so Guard additionally serializes by tag
// value with an in-process lock, on top of whatever atomicity the
// underlying kv.Store gives key writes.
package replay

import (
	"sync"

	"github.com/hoprnet/hopr-core/kv"
	"github.com/hoprnet/hopr-core/pcrypto"
)

// Tag is the fixed-size replay tag derived from a hop's shared secret
// via pcrypto.DeriveTagParameters.
type Tag = [pcrypto.ReplayTagSize]byte

// Guard is the replay-tag store. It is safe for concurrent use.
type Guard struct {
	store kv.Store

	// tagLocks serializes concurrent SeenOrInsert calls for the same
	// tag value, so that a store whose Get-then-Put is not itself
	// atomic still satisfies the replay guard's "one success, one rejection"
	// contract under concurrent callers.
	mu       sync.Mutex
	tagLocks map[Tag]*sync.Mutex
}

// New returns a Guard backed by store.
func New(store kv.Store) *Guard {
	return &Guard{
		store:    store,
		tagLocks: make(map[Tag]*sync.Mutex),
	}
}

// SeenOrInsert reports whether tag has been seen before. If it has
// not, it is inserted and SeenOrInsert returns false (not seen, proceed).
// If it has, SeenOrInsert returns true (seen, drop) and leaves the store
// unchanged. This is the sole line of defense against a replayed packet
// (an invariant: transform applied twice to the same packet at the same
// hop succeeds at most once).
func (g *Guard) SeenOrInsert(tag Tag) (seen bool, err error) {
	lock := g.lockFor(tag)
	lock.Lock()
	defer lock.Unlock()

	key := kv.PacketTagKey(tag)

	_, err = g.store.Get(key)
	switch err {
	case nil:
		return true, nil
	case kv.ErrNotFound:
		// fall through to insert
	default:
		return false, err
	}

	if err := g.store.Put(key, []byte{1}); err != nil {
		return false, err
	}
	return false, nil
}

func (g *Guard) lockFor(tag Tag) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()

	lock, ok := g.tagLocks[tag]
	if !ok {
		lock = &sync.Mutex{}
		g.tagLocks[tag] = lock
	}
	return lock
}
