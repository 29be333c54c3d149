package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"disksift/internal/azure/pricing/models"
	"disksift/internal/logging"
)

// DefaultTTL is how long a cached price stays valid
const DefaultTTL = 7 * 24 * time.Hour

type entry struct {
	Price    models.TierPrice `json:"price"`
	CachedAt time.Time        `json:"cached_at"`
}

// PriceCache handles caching of disk tier prices
type PriceCache struct {
	cacheFile  string
	ttl        time.Duration
	priceCache map[string]entry
	cacheLock  sync.RWMutex
	saveLock   sync.Mutex
	now        func() time.Time
}

// NewPriceCache creates a price cache backed by cacheFile and loads its current content
func NewPriceCache(cacheFile string, ttl time.Duration) (*PriceCache, error) {
	if cacheFile == "" {
		cacheFile = filepath.Join("cache", "prices.json")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	// Ensure cache directory exists
	if err := os.MkdirAll(filepath.Dir(cacheFile), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	pc := &PriceCache{
		cacheFile:  cacheFile,
		ttl:        ttl,
		priceCache: make(map[string]entry),
		now:        time.Now,
	}

	if err := pc.Load(); err != nil {
		logging.Error("Failed to load price cache", err, map[string]interface{}{
			"cache_file": cacheFile,
		})
	}

	return pc, nil
}

// Get retrieves a price that is younger than the TTL
func (pc *PriceCache) Get(key string) (models.TierPrice, bool) {
	pc.cacheLock.RLock()
	defer pc.cacheLock.RUnlock()
	e, ok := pc.priceCache[key]
	if !ok || pc.now().Sub(e.CachedAt) > pc.ttl {
		return models.TierPrice{}, false
	}
	return e.Price, true
}

// Set stores a price in the cache
func (pc *PriceCache) Set(key string, price models.TierPrice) {
	pc.cacheLock.Lock()
	pc.priceCache[key] = entry{Price: price, CachedAt: pc.now()}
	pc.cacheLock.Unlock()
}

// Len returns the number of cached entries, expired ones included
func (pc *PriceCache) Len() int {
	pc.cacheLock.RLock()
	defer pc.cacheLock.RUnlock()
	return len(pc.priceCache)
}

// Load reads the cache from disk
func (pc *PriceCache) Load() error {
	data, err := os.ReadFile(pc.cacheFile)
	if err != nil {
		if os.IsNotExist(err) {
			pc.cacheLock.Lock()
			pc.priceCache = make(map[string]entry)
			pc.cacheLock.Unlock()
			return nil
		}
		return fmt.Errorf("failed to read cache file: %w", err)
	}

	var cache map[string]entry
	if err := json.Unmarshal(data, &cache); err != nil {
		return fmt.Errorf("failed to parse cache data: %w", err)
	}
	if cache == nil {
		cache = make(map[string]entry)
	}

	pc.cacheLock.Lock()
	pc.priceCache = cache
	pc.cacheLock.Unlock()

	return nil
}

// Save writes the cache to disk
func (pc *PriceCache) Save() error {
	pc.saveLock.Lock()
	defer pc.saveLock.Unlock()

	pc.cacheLock.RLock()
	cache := make(map[string]entry, len(pc.priceCache))
	for k, v := range pc.priceCache {
		cache[k] = v
	}
	pc.cacheLock.RUnlock()

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(pc.cacheFile), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tempFile := pc.cacheFile + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}

	if err := os.Rename(tempFile, pc.cacheFile); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp cache file: %w", err)
	}

	logging.Debug("Price cache saved", map[string]interface{}{
		"cache_file": pc.cacheFile,
		"entries":    len(cache),
	})

	return nil
}

// Clear drops every cached price and removes the cache file
func (pc *PriceCache) Clear() error {
	pc.cacheLock.Lock()
	pc.priceCache = make(map[string]entry)
	pc.cacheLock.Unlock()

	return ClearFile(pc.cacheFile)
}

// ClearFile removes a cache file; a missing file is not an error
func ClearFile(cacheFile string) error {
	if err := os.Remove(cacheFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}
	return nil
}
