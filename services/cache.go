package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"multimodal-rag-platform/internal/logger"
	"multimodal-rag-platform/models"
)

// ResultCache maps a canonicalized query key to a previously computed result
// set. It is a pure performance optimization: removing it never changes a
// result, only the latency of producing it. Implementations must be safe for
// concurrent use; a race producing a duplicate compute is acceptable, a
// partially written entry is not.
type ResultCache interface {
	Get(ctx context.Context, key string) (*models.RetrievalResult, bool)
	Set(ctx context.Context, key string, result *models.RetrievalResult) error
	// Clear drops every entry. The ingestion pipeline invokes it on any
	// successful write, since new content can change the best answer to any
	// cached query.
	Clear(ctx context.Context) error
}

// CacheKey builds the canonical key for a retrieval request. The key covers
// every parameter that affects the result, and filter entries are sorted by
// key so two logically identical requests hash identically regardless of
// argument ordering.
func CacheKey(query string, strategy models.RetrievalStrategy, nResults int, rerank bool, filter map[string]interface{}) string {
	parts := []string{
		query,
		string(strategy),
		strconv.Itoa(nResults),
		strconv.FormatBool(rerank),
	}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, filter[k]))
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryResultCache is the in-process ResultCache. Entries are stored as
// serialized snapshots, so callers can never observe a partially written or
// later-mutated result.
type MemoryResultCache struct {
	mu        sync.RWMutex
	entries   map[string]memoryEntry
	ttl       time.Duration
	scheduler *gocron.Scheduler
}

// NewMemoryResultCache creates an in-memory cache with the given TTL.
func NewMemoryResultCache(ttl time.Duration) *MemoryResultCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryResultCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

// Get returns a fresh copy of the cached result, or false on miss or expiry.
func (c *MemoryResultCache) Get(_ context.Context, key string) (*models.RetrievalResult, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}

	var result models.RetrievalResult
	if err := json.Unmarshal(entry.payload, &result); err != nil {
		return nil, false
	}
	return &result, true
}

// Set stores a snapshot of the result with the configured TTL.
func (c *MemoryResultCache) Set(_ context.Context, key string, result *models.RetrievalResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize cached result: %w", err)
	}

	c.mu.Lock()
	c.entries[key] = memoryEntry{payload: payload, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

// Clear drops all entries.
func (c *MemoryResultCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
	return nil
}

// StartJanitor sweeps expired entries on a schedule so an idle cache does not
// hold dead payloads. Returns a stop function.
func (c *MemoryResultCache) StartJanitor(interval time.Duration) func() {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	c.scheduler = gocron.NewScheduler(time.UTC)
	c.scheduler.Every(interval).Do(c.sweep)
	c.scheduler.StartAsync()

	return func() { c.scheduler.Stop() }
}

func (c *MemoryResultCache) sweep() {
	now := time.Now()
	swept := 0

	c.mu.Lock()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			swept++
		}
	}
	remaining := len(c.entries)
	c.mu.Unlock()

	if swept > 0 {
		logger.Debug("result cache janitor sweep", "swept", swept, "remaining", remaining)
	}
}
