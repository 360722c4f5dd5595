package service

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"textdigest/internal/chunker"
	"textdigest/internal/domain"
)

type cachedSummary struct {
	summary string
	chunks  int
}

type summaryCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
}

type summaryCacheEntry struct {
	key       string
	value     cachedSummary
	expiresAt time.Time
}

func newSummaryCache(maxEntries int) *summaryCache {
	if maxEntries <= 0 {
		return nil
	}

	return &summaryCache{
		entries:    make(map[string]*list.Element, maxEntries),
		order:      list.New(),
		maxEntries: maxEntries,
	}
}

// summaryCacheKey identifies a summary by everything that shapes the backend output.
func summaryCacheKey(
	kind domain.BackendKind,
	model string,
	settings domain.ChatSettings,
	budget chunker.Budget,
	text string,
) string {
	h := sha256.New()

	for _, part := range []string{
		kind.String(),
		model,
		string(settings.Style),
		settings.Instructions,
		strconv.Itoa(budget.MaxWords),
		strconv.Itoa(budget.MinWords),
		text,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}

func (c *summaryCache) get(key string, now time.Time) (cachedSummary, bool) {
	if c == nil || key == "" {
		return cachedSummary{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return cachedSummary{}, false
	}

	entry, ok := elem.Value.(*summaryCacheEntry)
	if !ok {
		return cachedSummary{}, false
	}

	if now.After(entry.expiresAt) {
		c.removeElement(elem)

		return cachedSummary{}, false
	}

	c.order.MoveToFront(elem)

	return entry.value, true
}

func (c *summaryCache) set(key string, value cachedSummary, expiresAt time.Time, now time.Time) {
	if c == nil || key == "" || value.summary == "" || !expiresAt.After(now) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry, castOk := elem.Value.(*summaryCacheEntry)
		if !castOk {
			return
		}

		entry.value = value
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)

		return
	}

	elem := c.order.PushFront(&summaryCacheEntry{
		key:       key,
		value:     value,
		expiresAt: expiresAt,
	})
	c.entries[key] = elem

	c.evictExpiredLocked(now)
	c.enforceSizeLimitLocked()
}

func (c *summaryCache) len() int {
	if c == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *summaryCache) evictExpiredLocked(now time.Time) {
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()

		if entry, ok := elem.Value.(*summaryCacheEntry); ok && now.After(entry.expiresAt) {
			c.removeElement(elem)
		}

		elem = prev
	}
}

func (c *summaryCache) enforceSizeLimitLocked() {
	for len(c.entries) > c.maxEntries {
		elem := c.order.Back()
		if elem == nil {
			return
		}
		c.removeElement(elem)
	}
}

func (c *summaryCache) removeElement(elem *list.Element) {
	entry, ok := elem.Value.(*summaryCacheEntry)
	if !ok {
		return
	}

	delete(c.entries, entry.key)
	c.order.Remove(elem)
}
