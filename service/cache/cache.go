// Package cache holds recently produced transaction explanations so repeat
// lookups of the same hash skip Horizon.
package cache

import (
	"time"

	"github.com/brojonat/stellar-explain/service/explain"
	"github.com/brojonat/stellar-explain/service/metrics"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultTTL  = 5 * time.Minute
	DefaultSize = 1024
)

// Key identifies a transaction on a specific network. The same hash on
// testnet and public are different transactions.
type Key struct {
	Network string
	Hash    string
}

// Entry is what gets cached per transaction: the engine explanation and the
// per-operation breakdown when it has been computed.
type Entry struct {
	Explanation explain.TransactionExplanation
	Operations  []explain.OperationExplanation
}

// ExplanationCache is a size-bounded cache whose entries expire after a TTL.
// Cached values are treated as immutable by every caller.
type ExplanationCache struct {
	lru     *expirable.LRU[Key, Entry]
	metrics *metrics.Metrics
}

// New creates a cache. Non-positive size or ttl fall back to the defaults.
// If metrics is nil, no metrics will be recorded.
func New(size int, ttl time.Duration, m *metrics.Metrics) *ExplanationCache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ExplanationCache{
		lru:     expirable.NewLRU[Key, Entry](size, nil, ttl),
		metrics: m,
	}
}

// Get returns the cached entry for key, counting the hit or miss.
func (c *ExplanationCache) Get(key Key) (Entry, bool) {
	e, ok := c.lru.Get(key)
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(ok)
	}
	return e, ok
}

// Put stores an explanation, keeping any operations breakdown already cached
// under the same key.
func (c *ExplanationCache) Put(key Key, exp explain.TransactionExplanation) {
	e, _ := c.lru.Peek(key)
	e.Explanation = exp
	c.add(key, e)
}

// PutOperations stores the per-operation breakdown for key.
func (c *ExplanationCache) PutOperations(key Key, exp explain.TransactionExplanation, ops []explain.OperationExplanation) {
	c.add(key, Entry{Explanation: exp, Operations: ops})
}

func (c *ExplanationCache) add(key Key, e Entry) {
	c.lru.Add(key, e)
	if c.metrics != nil {
		c.metrics.RecordCacheEntries(c.lru.Len())
	}
}

func (c *ExplanationCache) Len() int {
	return c.lru.Len()
}

// Purge drops every entry.
func (c *ExplanationCache) Purge() {
	c.lru.Purge()
	if c.metrics != nil {
		c.metrics.RecordCacheEntries(0)
	}
}
