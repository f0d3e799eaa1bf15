package taint

import (
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ta-061/tee-flow-inspector/llmclient"
	"github.com/ta-061/tee-flow-inspector/model"
)

// DefaultCacheEntries bounds the prefix cache's size (§4.5.3).
const DefaultCacheEntries = 512

// cachedPrefix is everything needed to resume a conversation past a shared
// prefix: the accumulated turn states and the exact message history sent
// so far.
type cachedPrefix struct {
	turns    []turnState
	messages []llmclient.Message
}

// prefixCache implements §4.5.3: candidate flows sharing a chain prefix and
// initial taint-source label reuse the accumulated conversation instead of
// re-querying the model for functions already analyzed. Bounded LRU,
// hit/miss counters tracked for CacheStats.
type prefixCache struct {
	mu    sync.Mutex
	lru   *lru.Cache[string, cachedPrefix]
	hits  int
	misses int
}

// newPrefixCache builds a prefix cache bounded to entries (DefaultCacheEntries
// if entries <= 0).
func newPrefixCache(entries int) *prefixCache {
	if entries <= 0 {
		entries = DefaultCacheEntries
	}
	l, _ := lru.New[string, cachedPrefix](entries)
	return &prefixCache{lru: l}
}

// prefixKey is the cache key for chain functions processed through index i
// (inclusive), bound to the initial tainted-parameter label.
func prefixKey(chainFns []string, uptoInclusive int, taintedParam string) string {
	return strings.Join(chainFns[:uptoInclusive+1], ">") + "|" + taintedParam
}

func (c *prefixCache) get(key string) (cachedPrefix, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(key)
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

func (c *prefixCache) put(key string, turns []turnState, messages []llmclient.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	turnsCopy := append([]turnState(nil), turns...)
	messagesCopy := append([]llmclient.Message(nil), messages...)
	c.lru.Add(key, cachedPrefix{turns: turnsCopy, messages: messagesCopy})
}

func (c *prefixCache) stats() model.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.CacheStats{Hits: c.hits, Misses: c.misses, Entries: c.lru.Len()}
}
