package pricing

import (
	"context"
	"sort"
	"sync"

	"disksift/internal/azure/pricing/cache"
	"disksift/internal/azure/pricing/models"
	"disksift/internal/logging"
	"disksift/internal/worker"
)

const (
	// HoursPerMonth is the billing month used by Azure retail prices
	HoursPerMonth  = 720
	secondsPerHour = 3600
	operationsUnit = 10000
)

// MonthlyTransactionCost estimates the monthly operations charge of a disk sustaining iops
func MonthlyTransactionCost(iops, pricePer10K float64) float64 {
	if iops <= 0 || pricePer10K <= 0 {
		return 0
	}
	return iops / operationsUnit * HoursPerMonth * secondsPerHour * pricePer10K
}

// Estimator resolves tier prices through a cache in front of a PriceFetcher
type Estimator struct {
	fetcher PriceFetcher
	cache   *cache.PriceCache
	refresh bool
}

// NewEstimator creates an estimator. priceCache may be nil; refresh ignores cached prices
// but still stores the fresh ones.
func NewEstimator(fetcher PriceFetcher, priceCache *cache.PriceCache, refresh bool) *Estimator {
	return &Estimator{fetcher: fetcher, cache: priceCache, refresh: refresh}
}

// Price returns the price of one tier. Lookup failures yield a zero price marked Missing.
func (e *Estimator) Price(ctx context.Context, key models.PriceKey) models.TierPrice {
	cacheKey := key.String()
	if e.cache != nil && !e.refresh {
		if p, ok := e.cache.Get(cacheKey); ok {
			logging.Debug("Price cache hit", map[string]interface{}{"key": cacheKey})
			return p
		}
	}

	p, err := e.fetcher.FetchTierPrice(ctx, key)
	if err != nil {
		logging.Warn("Failed to fetch disk price, assuming zero", map[string]interface{}{
			"key":   cacheKey,
			"error": err.Error(),
		})
		return models.TierPrice{Key: key, Missing: true}
	}
	if e.cache != nil && !p.Missing {
		e.cache.Set(cacheKey, p)
	}
	return p
}

// PriceAll prices each distinct key once on a worker pool and saves the cache.
// onDone, when set, is called once per distinct key.
func (e *Estimator) PriceAll(ctx context.Context, keys []models.PriceKey, maxWorkers int, onDone func()) map[string]models.TierPrice {
	unique := Unique(keys)

	var (
		mu     sync.Mutex
		prices = make(map[string]models.TierPrice, len(unique))
	)
	tasks := make([]worker.Task, 0, len(unique))
	for _, k := range unique {
		key := k
		tasks = append(tasks, func(ctx context.Context) error {
			if onDone != nil {
				defer onDone()
			}
			p := e.Price(ctx, key)
			mu.Lock()
			prices[key.String()] = p
			mu.Unlock()
			return nil
		})
	}
	worker.Run(ctx, maxWorkers, 0, tasks)

	for _, k := range unique {
		if _, ok := prices[k.String()]; !ok {
			prices[k.String()] = models.TierPrice{Key: k, Missing: true}
		}
	}

	if e.cache != nil {
		if err := e.cache.Save(); err != nil {
			logging.Error("Failed to save price cache", err, nil)
		}
	}
	return prices
}

// Unique drops duplicate keys and sorts the rest by cache key
func Unique(keys []models.PriceKey) []models.PriceKey {
	seen := make(map[string]bool, len(keys))
	out := make([]models.PriceKey, 0, len(keys))
	for _, k := range keys {
		if seen[k.String()] {
			continue
		}
		seen[k.String()] = true
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
