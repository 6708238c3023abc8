// Package pricecache maintains the two market-wide price datasets behind a
// TTL-backed key-value store: trailing 7-day average prices and current
// lowest listed prices. A refresh is all-or-nothing across tracked app IDs.
package pricecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"repricer/logger"
	"repricer/models"
	"repricer/services/marketplace"
	"repricer/store"
)

// Dataset tags and their staleness windows
const (
	DatasetPricelist    = "pricelist"
	DatasetLowestPrices = "lowest-prices"

	PricelistTTL    = 6 * time.Hour
	LowestPricesTTL = 30 * time.Minute

	// MaxTrailingSamples caps how many of the most recent daily samples
	// feed an item's trailing-average price
	MaxTrailingSamples = 7
)

// ErrPriceDataUnavailable signals that a dataset could not be served from
// cache or refreshed this cycle. Callers must treat it as "try again next
// cycle", never as "there are no prices".
var ErrPriceDataUnavailable = errors.New("price data unavailable")

// Cache serves the market price datasets, refreshing them on miss
type Cache struct {
	kv        store.KV
	api       marketplace.API
	appIDs    []int
	namespace string
	log       *zap.SugaredLogger
}

// New creates a price cache over the given store and marketplace API,
// tracking the configured app IDs.
func New(kv store.KV, api marketplace.API, appIDs []int, namespace string) *Cache {
	return &Cache{
		kv:        kv,
		api:       api,
		appIDs:    appIDs,
		namespace: namespace,
		log:       logger.Component("pricecache"),
	}
}

// Key returns the store key for a dataset tag
func (c *Cache) Key(dataset string) string {
	return c.namespace + ":" + dataset
}

// GetPricelist returns the trailing-average price table, refreshing the
// cache entry when absent or expired.
func (c *Cache) GetPricelist(ctx context.Context) (models.PriceTable, error) {
	return c.get(ctx, DatasetPricelist, PricelistTTL, c.fetchTrailingAverages)
}

// GetLowestPrices returns the current lowest listed price table, refreshing
// the cache entry when absent or expired.
func (c *Cache) GetLowestPrices(ctx context.Context) (models.PriceTable, error) {
	return c.get(ctx, DatasetLowestPrices, LowestPricesTTL, c.fetchLowestPrices)
}

func (c *Cache) get(ctx context.Context, dataset string, ttl time.Duration, fetch func(context.Context, int) (map[string]models.PricePoint, error)) (models.PriceTable, error) {
	key := c.Key(dataset)

	raw, found, err := c.kv.Get(ctx, key)
	if err != nil {
		// A store read failure is treated as a miss; a refresh may still
		// be able to serve the caller
		c.log.Warnf("Store read failed for %s, refreshing: %v", dataset, err)
	} else if found {
		var table models.PriceTable
		if err := json.Unmarshal(raw, &table); err == nil {
			return table, nil
		}
		c.log.Warnf("Corrupt cache entry for %s, treating as miss", dataset)
	}

	table, err := c.refresh(ctx, dataset, fetch)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(table)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s: %w", dataset, err)
	}
	if err := c.kv.SetWithTTL(ctx, key, payload, ttl); err != nil {
		// The fetched data is still valid for this cycle even if the
		// write-back failed
		c.log.Warnf("Failed to store %s: %v", dataset, err)
	} else {
		c.log.Infof("Cached fresh %s for %d apps", dataset, len(table))
	}

	return table, nil
}

// refresh fetches the dataset for every tracked app ID concurrently.
// If any single app's fetch fails the whole refresh is abandoned and nothing
// is kept, including apps that had already completed.
func (c *Cache) refresh(ctx context.Context, dataset string, fetch func(context.Context, int) (map[string]models.PricePoint, error)) (models.PriceTable, error) {
	table := make(models.PriceTable, len(c.appIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, appID := range c.appIDs {
		g.Go(func() error {
			items, err := fetch(gctx, appID)
			if err != nil {
				return fmt.Errorf("app %d: %w", appID, err)
			}
			mu.Lock()
			table[appID] = items
			mu.Unlock()
			c.log.Infof("Fetched fresh %s for app %d (%d items)", dataset, appID, len(items))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		c.log.Warnf("Abandoning %s refresh: %v", dataset, err)
		return nil, fmt.Errorf("%w: %s refresh failed: %v", ErrPriceDataUnavailable, dataset, err)
	}
	return table, nil
}

func (c *Cache) fetchTrailingAverages(ctx context.Context, appID int) (map[string]models.PricePoint, error) {
	history, err := c.api.GetPriceHistory(ctx, appID)
	if err != nil {
		return nil, err
	}

	items := make(map[string]models.PricePoint, len(history))
	for name, samples := range history {
		avg, count := trailingAverage(samples)
		if count == 0 {
			continue
		}
		items[strings.TrimSpace(name)] = models.PricePoint{Price: avg, Samples: count}
	}
	return items, nil
}

func (c *Cache) fetchLowestPrices(ctx context.Context, appID int) (map[string]models.PricePoint, error) {
	lowest, err := c.api.GetLowestPrices(ctx, appID)
	if err != nil {
		return nil, err
	}

	items := make(map[string]models.PricePoint, len(lowest))
	for name, p := range lowest {
		items[strings.TrimSpace(name)] = models.PricePoint{Price: p.Price}
	}
	return items, nil
}

// trailingAverage averages the most recent samples, at most
// MaxTrailingSamples of them. Dates sort lexicographically because the API
// uses YYYY-MM-DD keys.
func trailingAverage(samples map[string]marketplace.HistoricalPrice) (int64, int) {
	if len(samples) == 0 {
		return 0, 0
	}

	dates := make([]string, 0, len(samples))
	for date := range samples {
		dates = append(dates, date)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	if len(dates) > MaxTrailingSamples {
		dates = dates[:MaxTrailingSamples]
	}

	sum := decimal.Zero
	for _, date := range dates {
		sum = sum.Add(decimal.NewFromInt(samples[date].Price))
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(dates)))).Round(0)
	return avg.IntPart(), len(dates)
}
