package listing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repricer/models"
	"repricer/services/marketplace"
	"repricer/services/pricecache"
)

// ===================== Marketplace API Mock =========================
type mockAPI struct {
	MockListInventory func(ctx context.Context, account models.Account) ([]models.InventoryItem, error)
	MockSetPrices     func(ctx context.Context, account models.Account, prices map[int64]int64) error
}

func (m *mockAPI) ListInventory(ctx context.Context, account models.Account) ([]models.InventoryItem, error) {
	return m.MockListInventory(ctx, account)
}

func (m *mockAPI) GetPriceHistory(ctx context.Context, appID int) (map[string]map[string]marketplace.HistoricalPrice, error) {
	panic("not used")
}

func (m *mockAPI) GetLowestPrices(ctx context.Context, appID int) (map[string]marketplace.LowestPrice, error) {
	panic("not used")
}

func (m *mockAPI) GetActiveListings(ctx context.Context, account models.Account, page int) (int, []models.Listing, error) {
	panic("not used")
}

func (m *mockAPI) SetPrices(ctx context.Context, account models.Account, prices map[int64]int64) error {
	return m.MockSetPrices(ctx, account, prices)
}

// ===================== Price Source Mock =========================
type mockPrices struct {
	pricelist models.PriceTable
	lowest    models.PriceTable
	err       error
}

func (m *mockPrices) GetPricelist(ctx context.Context) (models.PriceTable, error) {
	return m.pricelist, m.err
}

func (m *mockPrices) GetLowestPrices(ctx context.Context) (models.PriceTable, error) {
	return m.lowest, m.err
}

var testAccount = models.Account{APIKey: "test-api-key-0001"}

func TestListingPriceRule(t *testing.T) {
	inventory := []models.InventoryItem{
		{ID: 1, AppID: 730, Name: "higher-lowest"},  // avg 1000, lowest 1200 -> 1320
		{ID: 2, AppID: 730, Name: "no-lowest"},      // avg 1000 -> 1100
		{ID: 3, AppID: 730, Name: "lower-lowest"},   // avg 1000, lowest 800 -> 1100
		{ID: 4, AppID: 730, Name: "rounds-up"},      // avg 5 -> 5.5 -> 6
		{ID: 5, AppID: 730, Name: "zero-avg"},       // avg 0 -> excluded
	}
	prices := &mockPrices{
		pricelist: models.PriceTable{730: {
			"higher-lowest": {Price: 1000, Samples: 7},
			"no-lowest":     {Price: 1000, Samples: 7},
			"lower-lowest":  {Price: 1000, Samples: 7},
			"rounds-up":     {Price: 5, Samples: 3},
			"zero-avg":      {Price: 0, Samples: 1},
		}},
		lowest: models.PriceTable{730: {
			"higher-lowest": {Price: 1200},
			"lower-lowest":  {Price: 800},
		}},
	}

	var submitted map[int64]int64
	api := &mockAPI{
		MockListInventory: func(ctx context.Context, account models.Account) ([]models.InventoryItem, error) {
			return inventory, nil
		},
		MockSetPrices: func(ctx context.Context, account models.Account, p map[int64]int64) error {
			submitted = p
			return nil
		},
	}

	planner := NewPlanner(api, prices, []int{730})
	result, err := planner.Run(context.Background(), testAccount)
	require.NoError(t, err)

	require.NotNil(t, submitted)
	assert.Equal(t, int64(1320), submitted[1])
	assert.Equal(t, int64(1100), submitted[2])
	assert.Equal(t, int64(1100), submitted[3])
	assert.Equal(t, int64(6), submitted[4])
	assert.NotContains(t, submitted, int64(5))
	assert.Equal(t, 4, result.Listed)
}

func TestUnknownNamesSkippedWithTrimming(t *testing.T) {
	inventory := []models.InventoryItem{
		{ID: 1, AppID: 730, Name: "  known  "}, // trims to a pricelist hit
		{ID: 2, AppID: 730, Name: "unknown"},
	}
	prices := &mockPrices{
		pricelist: models.PriceTable{730: {"known": {Price: 100, Samples: 7}}},
		lowest:    models.PriceTable{730: {}},
	}

	var submitted map[int64]int64
	api := &mockAPI{
		MockListInventory: func(ctx context.Context, account models.Account) ([]models.InventoryItem, error) {
			return inventory, nil
		},
		MockSetPrices: func(ctx context.Context, account models.Account, p map[int64]int64) error {
			submitted = p
			return nil
		},
	}

	planner := NewPlanner(api, prices, []int{730})
	result, err := planner.Run(context.Background(), testAccount)
	require.NoError(t, err)

	assert.Equal(t, map[int64]int64{1: 110}, submitted)
	assert.Equal(t, 1, result.Skipped)
}

func TestAbortsWhenPriceDataUnavailable(t *testing.T) {
	api := &mockAPI{
		MockListInventory: func(ctx context.Context, account models.Account) ([]models.InventoryItem, error) {
			return []models.InventoryItem{{ID: 1, AppID: 730, Name: "item"}}, nil
		},
		MockSetPrices: func(ctx context.Context, account models.Account, p map[int64]int64) error {
			t.Fatal("no prices may be submitted when price data is unavailable")
			return nil
		},
	}
	prices := &mockPrices{err: pricecache.ErrPriceDataUnavailable}

	planner := NewPlanner(api, prices, []int{730})
	_, err := planner.Run(context.Background(), testAccount)
	assert.True(t, errors.Is(err, pricecache.ErrPriceDataUnavailable))
}

func TestChunkFailuresAreIsolated(t *testing.T) {
	// 600 priced items split into chunks of 500 and 100
	var inventory []models.InventoryItem
	pricelist := models.PriceTable{730: {}}
	for i := 1; i <= 600; i++ {
		name := fmt.Sprintf("item-%d", i)
		inventory = append(inventory, models.InventoryItem{ID: int64(i), AppID: 730, Name: name})
		pricelist[730][name] = models.PricePoint{Price: 100, Samples: 7}
	}
	prices := &mockPrices{pricelist: pricelist, lowest: models.PriceTable{730: {}}}

	var calls []int
	api := &mockAPI{
		MockListInventory: func(ctx context.Context, account models.Account) ([]models.InventoryItem, error) {
			return inventory, nil
		},
		MockSetPrices: func(ctx context.Context, account models.Account, p map[int64]int64) error {
			calls = append(calls, len(p))
			if len(calls) == 1 {
				return errors.New("gateway error")
			}
			return nil
		},
	}

	planner := NewPlanner(api, prices, []int{730})
	result, err := planner.Run(context.Background(), testAccount)
	require.NoError(t, err)

	assert.Equal(t, []int{500, 100}, calls)
	assert.Equal(t, 100, result.Listed)
	assert.Equal(t, 1, result.FailedChunks)
	assert.Equal(t, 2, result.Chunks)
}

func TestCategoriesWithoutItemsSkipPriceFetch(t *testing.T) {
	api := &mockAPI{
		MockListInventory: func(ctx context.Context, account models.Account) ([]models.InventoryItem, error) {
			return nil, nil
		},
	}
	prices := &mockPrices{err: pricecache.ErrPriceDataUnavailable}

	// With an empty inventory the planner never touches the price source,
	// so its error must not surface
	planner := NewPlanner(api, prices, []int{730, 570})
	result, err := planner.Run(context.Background(), testAccount)
	require.NoError(t, err)
	assert.Zero(t, result.Listed)
}
