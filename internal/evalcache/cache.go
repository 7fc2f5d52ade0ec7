// Package evalcache memoizes evaluation results keyed by question identity
// and normalized response content.
package evalcache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/skillcheck/internal/domain"
)

// Key identifies one (question, normalized response) evaluation. Entries are
// never shared across question identities, even when response text matches.
type Key string

// NewKey builds the content-addressed cache key. fileDigest is empty when no
// file accompanied the response.
func NewKey(questionID, response, fileDigest string) Key {
	h := sha256.New()
	h.Write([]byte(questionID))
	h.Write([]byte{0})
	h.Write([]byte(NormalizeResponse(response)))
	h.Write([]byte{0})
	h.Write([]byte(fileDigest))
	return Key(hex.EncodeToString(h.Sum(nil)))
}

// NormalizeResponse canonicalizes response text for keying: surrounding
// whitespace is trimmed and internal runs collapse to single spaces. Case is
// preserved since it can carry meaning in code answers.
func NormalizeResponse(response string) string {
	return strings.Join(strings.Fields(response), " ")
}

type entry struct {
	key       Key
	result    domain.Evaluation
	createdAt time.Time
}

// Cache is a bounded LRU cache with TTL expiry over evaluation results.
// Put is idempotent: the first successful write for a key wins, and a
// divergent second payload is reported as a key collision warning rather
// than an error. All methods are safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	order      *list.List // front = most recently used
	index      map[Key]*list.Element
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a cache bounded to maxEntries with the given TTL horizon.
// A non-positive TTL disables time-based expiry.
func New(maxEntries int, ttl time.Duration, logger *slog.Logger) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		maxEntries: maxEntries,
		ttl:        ttl,
		order:      list.New(),
		index:      make(map[Key]*list.Element),
		logger:     logger,
		now:        time.Now,
	}
}

// Get returns the cached evaluation for key, or false on miss or expiry.
func (c *Cache) Get(key Key) (*domain.Evaluation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[key]
	if !ok {
		return nil, false
	}
	e := elem.Value.(*entry)
	if c.ttl > 0 && c.now().Sub(e.createdAt) > c.ttl {
		c.order.Remove(elem)
		delete(c.index, key)
		return nil, false
	}
	c.order.MoveToFront(elem)
	result := e.result
	return &result, true
}

// Put stores result under key. Re-putting an existing key keeps the first
// value; a differing payload logs a collision warning.
func (c *Cache) Put(key Key, result domain.Evaluation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[key]; ok {
		existing := elem.Value.(*entry)
		if existing.result.Score != result.Score || existing.result.Rationale != result.Rationale {
			c.logger.Warn("evaluation cache key collision, keeping first result",
				"key", string(key),
				"existing_score", existing.result.Score,
				"new_score", result.Score)
		}
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&entry{key: key, result: result, createdAt: c.now()})
	c.index[key] = elem

	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.index, oldest.Value.(*entry).key)
	}
}

// Len reports the number of live entries, counting expired ones not yet
// evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
