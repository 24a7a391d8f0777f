package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"path"
	"strconv"
	"sync"
	"time"
)

const defaultMemoryCap = 10000

type memoryEntry struct {
	key       string
	data      []byte
	expiresAt time.Time
}

// MemoryCache is the development backend: a bounded in-process map with LRU
// eviction and a periodic expiry sweep. Not suitable for multi-process
// deployments because the Del claim only serializes within one process.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List
	cap     int

	done chan struct{}
	once sync.Once
}

func NewMemoryCache(capacity int) *MemoryCache {
	if capacity <= 0 {
		capacity = defaultMemoryCap
	}
	c := &MemoryCache{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		cap:     capacity,
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

func (c *MemoryCache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, el := range c.entries {
				if el.Value.(*memoryEntry).expiresAt.Before(now) {
					c.removeLocked(key)
				}
			}
			c.mu.Unlock()
		case <-c.done:
			return
		}
	}
}

func (c *MemoryCache) removeLocked(key string) {
	if el, ok := c.entries[key]; ok {
		c.lru.Remove(el)
		delete(c.entries, key)
	}
}

// getLocked returns the live entry for key, expiring it as a side effect.
func (c *MemoryCache) getLocked(key string) *memoryEntry {
	el, ok := c.entries[key]
	if !ok {
		return nil
	}
	ent := el.Value.(*memoryEntry)
	if time.Now().After(ent.expiresAt) {
		c.removeLocked(key)
		return nil
	}
	c.lru.MoveToFront(el)
	return ent
}

func (c *MemoryCache) setLocked(key string, data []byte, ttl time.Duration) {
	if el, ok := c.entries[key]; ok {
		ent := el.Value.(*memoryEntry)
		ent.data = data
		ent.expiresAt = time.Now().Add(ttl)
		c.lru.MoveToFront(el)
		return
	}
	for len(c.entries) >= c.cap {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest.Value.(*memoryEntry).key)
	}
	ent := &memoryEntry{key: key, data: data, expiresAt: time.Now().Add(ttl)}
	c.entries[key] = c.lru.PushFront(ent)
}

func (c *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, data, ttl)
	return nil
}

func (c *MemoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	ent := c.getLocked(key)
	c.mu.Unlock()
	if ent == nil {
		return ErrMiss
	}
	return json.Unmarshal(ent.data, dest)
}

func (c *MemoryCache) Del(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	existed := c.getLocked(key) != nil
	c.removeLocked(key)
	return existed, nil
}

func (c *MemoryCache) SetIfNotExists(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getLocked(key) != nil {
		return false, nil
	}
	c.setLocked(key, []byte("1"), ttl)
	return true, nil
}

func (c *MemoryCache) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	if ent := c.getLocked(key); ent != nil {
		n, _ = strconv.ParseInt(string(ent.data), 10, 64)
		n++
		ent.data = []byte(strconv.FormatInt(n, 10))
		return n, nil
	}
	c.setLocked(key, []byte("1"), ttl)
	return 1, nil
}

func (c *MemoryCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent := c.getLocked(key)
	if ent == nil {
		return 0, ErrMiss
	}
	return time.Until(ent.expiresAt), nil
}

func (c *MemoryCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	var out []string
	for key, el := range c.entries {
		if el.Value.(*memoryEntry).expiresAt.Before(now) {
			continue
		}
		if ok, _ := path.Match(pattern, key); ok {
			out = append(out, key)
		}
	}
	return out, nil
}

// Close stops the sweep goroutine.
func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}
