package engine

import (
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/cespare/xxhash/v2"

	"github.com/eddid/v7go/bcode"
)

// ScriptCache memoizes compiled bcode by a content hash of its source, so
// repeatedly exec'ing identical source (a REPL re-running a snippet, a
// contract redeployed verbatim) skips lex/parse/compile entirely. fastcache
// only stores byte slices, and a *bcode.Bcode is a live object graph (with
// Nested function pointers) rather than a flat byte encoding, so the cache
// stores the hash -> *bcode.Bcode mapping in an ordinary Go map guarded by a
// mutex, while fastcache itself tracks just the hash set with bounded
// memory. Only that hash set is bounded by maxBytes: entries in the
// compiled map are never evicted, and a hash that fastcache has dropped
// simply misses in Get and is recompiled.
type ScriptCache struct {
	mu       sync.Mutex
	seen     *fastcache.Cache
	compiled map[uint64]*bcode.Bcode
}

func newScriptCache(maxBytes int) *ScriptCache {
	return &ScriptCache{
		seen:     fastcache.New(maxBytes),
		compiled: make(map[uint64]*bcode.Bcode),
	}
}

func (c *ScriptCache) key(source string) uint64 {
	return xxhash.Sum64String(source)
}

// Get returns the cached bcode for source, if present.
func (c *ScriptCache) Get(source string) (*bcode.Bcode, bool) {
	k := c.key(source)
	var kbuf [8]byte
	putUint64(kbuf[:], k)
	if !c.seen.Has(kbuf[:]) {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	bc, ok := c.compiled[k]
	return bc, ok
}

// Put records source's compiled bcode.
func (c *ScriptCache) Put(source string, bc *bcode.Bcode) {
	k := c.key(source)
	var kbuf [8]byte
	putUint64(kbuf[:], k)
	c.seen.Set(kbuf[:], nil)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.compiled[k] = bc
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
