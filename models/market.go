package models

// Account identifies one marketplace account by its API credential
type Account struct {
	APIKey string
}

// PricePoint is a single cached price for an item, in integer cents.
// Samples carries how many daily samples produced a trailing average
// (zero for datasets that are not averaged).
type PricePoint struct {
	Price   int64 `json:"price"`
	Samples int   `json:"samples,omitempty"`
}

// PriceTable maps app ID -> normalized item name -> price point.
// It is the cached value for one dataset across all tracked app IDs.
type PriceTable map[int]map[string]PricePoint

// Lookup returns the price point for an item name within an app ID
func (t PriceTable) Lookup(appID int, name string) (PricePoint, bool) {
	items, ok := t[appID]
	if !ok {
		return PricePoint{}, false
	}
	p, ok := items[name]
	return p, ok
}

// InventoryItem represents one unlisted item in an account's inventory.
// AvgPrice and LowestPrice are filled in during listing planning;
// a nil LowestPrice means no market lowest price is known for the item.
type InventoryItem struct {
	ID          int64  `json:"id"`
	AppID       int    `json:"appid"`
	Name        string `json:"name"`
	AvgPrice    int64  `json:"-"`
	LowestPrice *int64 `json:"-"`
}

// Listing represents an item already offered for sale.
// ListTime and LastUpdated are unix seconds, matching the marketplace API.
type Listing struct {
	ID          int64  `json:"id"`
	AppID       int    `json:"appid"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	ListTime    int64  `json:"list_time"`
	LastUpdated int64  `json:"last_updated"`
}
