// Package repricing progressively lowers the price of stale, unsold listings.
package repricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"repricer/batch"
	"repricer/config"
	"repricer/logger"
	"repricer/models"
	"repricer/services/marketplace"
)

const (
	// ChunkSize caps how many price edits go into one marketplace call
	ChunkSize = 500
	// DiscountFactor is applied to stale listings each cycle
	DiscountFactor = 0.99

	// FreshnessWindow protects recently updated listings from any change
	FreshnessWindow = 12 * time.Hour
	// CompetitiveWindow is how long a young listing may hold its price as
	// long as it is at or below the market lowest
	CompetitiveWindow = 24 * time.Hour
)

// PriceSource provides the cached lowest-price dataset
type PriceSource interface {
	GetLowestPrices(ctx context.Context) (models.PriceTable, error)
}

// Planner walks an account's active listings page by page and discounts the
// stale ones.
type Planner struct {
	api    marketplace.API
	prices PriceSource
	log    *zap.SugaredLogger

	// now is injectable for tests
	now func() time.Time
}

// Result summarizes one repricing run for logging and the audit history
type Result struct {
	Repriced     int
	Pages        int
	Chunks       int
	FailedChunks int
}

// NewPlanner creates a repricing planner over the given marketplace API and
// price source.
func NewPlanner(api marketplace.API, prices PriceSource) *Planner {
	return &Planner{
		api:    api,
		prices: prices,
		log:    logger.Component("repricing"),
		now:    time.Now,
	}
}

// Run reprices the account's stale listings. The whole cycle is aborted when
// the lowest-price dataset is unavailable; a "no listings" response is a
// benign no-op. Pages are processed strictly in order.
func (p *Planner) Run(ctx context.Context, account models.Account) (Result, error) {
	var result Result
	masked := config.MaskKey(account.APIKey)

	lowestPrices, err := p.prices.GetLowestPrices(ctx)
	if err != nil {
		p.log.Warnf("[%s] Couldn't fetch lowest prices, skipping reprice cycle: %v", masked, err)
		return result, err
	}

	for page := 1; ; page++ {
		totalPages, listings, err := p.api.GetActiveListings(ctx, account, page)
		if err != nil {
			if errors.Is(err, marketplace.ErrNoListings) {
				p.log.Infof("[%s] No items to reprice at this time", masked)
				return result, nil
			}
			return result, fmt.Errorf("failed to fetch listings page %d: %w", page, err)
		}
		result.Pages++

		edits := p.planPage(listings, lowestPrices)
		p.log.Infof("[%s] Repricing %d of %d items on page %d/%d", masked, len(edits), len(listings), page, totalPages)

		for _, chunk := range batch.Split(edits, ChunkSize) {
			result.Chunks++
			prices := make(map[int64]int64, len(chunk))
			for _, edit := range chunk {
				prices[edit.id] = edit.price
			}

			if err := p.api.SetPrices(ctx, account, prices); err != nil {
				result.FailedChunks++
				p.log.Warnf("[%s] Error editing prices for %d items: %v", masked, len(prices), err)
				continue
			}
			result.Repriced += len(prices)
		}

		if page >= totalPages {
			return result, nil
		}
	}
}

type priceEdit struct {
	id    int64
	price int64
}

// planPage decides which listings on one page get discounted
func (p *Planner) planPage(listings []models.Listing, lowestPrices models.PriceTable) []priceEdit {
	now := p.now().Unix()

	var edits []priceEdit
	for _, l := range listings {
		newPrice, ok := decide(l, lowestPrices, now)
		if !ok {
			continue
		}
		edits = append(edits, priceEdit{id: l.ID, price: newPrice})
	}
	return edits
}

// decide applies the repricing rules to a single listing. It returns the new
// price and whether the listing should change at all.
func decide(l models.Listing, lowestPrices models.PriceTable, now int64) (int64, bool) {
	// Recently updated listings are still fresh
	if now-l.LastUpdated < int64(FreshnessWindow/time.Second) {
		return 0, false
	}

	// A young listing already at or below the market lowest is competitive;
	// anything unsold for over a day gets discounted regardless
	if now-l.ListTime <= int64(CompetitiveWindow/time.Second) {
		if lowest, ok := lowestPrices.Lookup(l.AppID, strings.TrimSpace(l.Name)); ok && l.Price <= lowest.Price {
			return 0, false
		}
	}

	newPrice := decimal.NewFromInt(l.Price).
		Mul(decimal.NewFromFloat(DiscountFactor)).
		Round(0).
		IntPart()
	if newPrice == l.Price {
		// 1% of a tiny price rounds to no change; force a real decrement
		newPrice--
	}
	if newPrice <= 0 {
		return 0, false
	}
	return newPrice, true
}
