// Package listing plans and submits listings for unlisted inventory at
// computed prices.
package listing

import (
	"context"
	"fmt"
	"strings"

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
	// Markup applied over the higher of trailing-average and lowest-market price
	ListingMarkup = 1.10
)

// PriceSource provides the cached market price datasets
type PriceSource interface {
	GetPricelist(ctx context.Context) (models.PriceTable, error)
	GetLowestPrices(ctx context.Context) (models.PriceTable, error)
}

// Planner computes listing prices for an account's inventory and submits
// them in bounded-size batches.
type Planner struct {
	api    marketplace.API
	prices PriceSource
	appIDs []int
	log    *zap.SugaredLogger
}

// Result summarizes one listing run for logging and the audit history
type Result struct {
	Listed       int
	Skipped      int
	Chunks       int
	FailedChunks int
}

// NewPlanner creates a listing planner over the given marketplace API and
// price source, processing the tracked app IDs in configured order.
func NewPlanner(api marketplace.API, prices PriceSource, appIDs []int) *Planner {
	return &Planner{
		api:    api,
		prices: prices,
		appIDs: appIDs,
		log:    logger.Component("listing"),
	}
}

// Run lists the account's unlisted inventory. The whole run is aborted when
// either price dataset is unavailable; individual chunk submission failures
// are logged and isolated.
func (p *Planner) Run(ctx context.Context, account models.Account) (Result, error) {
	var result Result
	masked := config.MaskKey(account.APIKey)

	inventory, err := p.api.ListInventory(ctx, account)
	if err != nil {
		return result, fmt.Errorf("failed to load inventory: %w", err)
	}
	p.log.Infof("[%s] Inventory loaded with %d total items", masked, len(inventory))

	// Both datasets are fetched at most once per run, shared across app IDs
	var pricelist, lowestPrices models.PriceTable

	for _, appID := range p.appIDs {
		items := filterByApp(inventory, appID)
		if len(items) == 0 {
			p.log.Infof("[%s][%d] No items to list", masked, appID)
			continue
		}

		if pricelist == nil {
			if pricelist, err = p.prices.GetPricelist(ctx); err != nil {
				p.log.Warnf("[%s] Couldn't fetch pricelist, aborting completely: %v", masked, err)
				return result, err
			}
		}
		if lowestPrices == nil {
			if lowestPrices, err = p.prices.GetLowestPrices(ctx); err != nil {
				p.log.Warnf("[%s] Couldn't fetch lowest prices, aborting completely: %v", masked, err)
				return result, err
			}
		}

		priced := p.enrich(items, pricelist, lowestPrices, masked, &result)

		chunks := batch.Split(priced, ChunkSize)
		result.Chunks += len(chunks)
		p.log.Infof("[%s][%d] %d items will be listed in %d chunks", masked, appID, len(priced), len(chunks))

		for _, chunk := range chunks {
			prices := make(map[int64]int64, len(chunk))
			for _, item := range chunk {
				if item.AvgPrice == 0 {
					continue
				}
				prices[item.ID] = listingPrice(item)
			}
			if len(prices) == 0 {
				continue
			}

			if err := p.api.SetPrices(ctx, account, prices); err != nil {
				result.FailedChunks++
				p.log.Warnf("[%s][%d] Error listing %d items: %v", masked, appID, len(prices), err)
				continue
			}
			result.Listed += len(prices)
			p.log.Infof("[%s][%d] Successfully listed %d items", masked, appID, len(prices))
		}
	}

	return result, nil
}

// enrich attaches the trailing-average and lowest-market prices to each item,
// dropping items whose trimmed name is not in the pricelist.
func (p *Planner) enrich(items []models.InventoryItem, pricelist, lowestPrices models.PriceTable, masked string, result *Result) []models.InventoryItem {
	priced := make([]models.InventoryItem, 0, len(items))
	for _, item := range items {
		name := strings.TrimSpace(item.Name)

		avg, ok := pricelist.Lookup(item.AppID, name)
		if !ok {
			result.Skipped++
			p.log.Infof("[%s][%d] %s not found in pricelist", masked, item.AppID, name)
			continue
		}
		item.AvgPrice = avg.Price

		if lowest, ok := lowestPrices.Lookup(item.AppID, name); ok {
			price := lowest.Price
			item.LowestPrice = &price
		}
		priced = append(priced, item)
	}
	return priced
}

// listingPrice computes the final listed price: a 10% markup over the higher
// of the trailing-average and lowest-market reference prices.
func listingPrice(item models.InventoryItem) int64 {
	base := item.AvgPrice
	if item.LowestPrice != nil && *item.LowestPrice > base {
		base = *item.LowestPrice
	}
	return decimal.NewFromInt(base).
		Mul(decimal.NewFromFloat(ListingMarkup)).
		Round(0).
		IntPart()
}

func filterByApp(inventory []models.InventoryItem, appID int) []models.InventoryItem {
	var items []models.InventoryItem
	for _, item := range inventory {
		if item.AppID == appID {
			items = append(items, item)
		}
	}
	return items
}
