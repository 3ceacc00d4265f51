package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"sync"
	"time"
)

// LRU is an in-process cache with true least-recently-used eviction: both
// reads and writes refresh recency, and the oldest entry is evicted when
// capacity is hit. Expired entries count as misses and are dropped lazily.
type LRU struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	items    map[string]*list.Element
}

type lruItem struct {
	key       string
	value     []byte
	expiresAt time.Time
}

func NewLRU(capacity int) *LRU {
	if capacity <= 0 {
		capacity = 128
	}
	return &LRU{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

func (c *LRU) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()

	elem, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return ErrMiss
	}

	item := elem.Value.(*lruItem)
	if time.Now().After(item.expiresAt) {
		c.order.Remove(elem)
		delete(c.items, key)
		c.mu.Unlock()
		return ErrMiss
	}

	c.order.MoveToFront(elem)
	value := item.value
	c.mu.Unlock()

	return json.Unmarshal(value, dest)
}

func (c *LRU) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		item := elem.Value.(*lruItem)
		item.value = data
		item.expiresAt = time.Now().Add(ttl)
		c.order.MoveToFront(elem)
		return nil
	}

	c.items[key] = c.order.PushFront(&lruItem{
		key:       key,
		value:     data,
		expiresAt: time.Now().Add(ttl),
	})

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*lruItem).key)
	}

	return nil
}

func (c *LRU) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.Remove(elem)
		delete(c.items, key)
	}
	return nil
}
