package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"repricer/models"
)

// Client configuration constants
const (
	RequestTimeout = 30 * time.Second
	// Sale status filter for listings that are currently on sale
	SaleStatusOnSale = 2
)

// ErrNoListings is returned by GetActiveListings when the account has no
// matching active listings. It is a benign terminal condition, distinct from
// transport or API errors.
var ErrNoListings = errors.New("no matching sales found on account")

// API is the outbound marketplace interface consumed by the planners and the
// price cache.
type API interface {
	ListInventory(ctx context.Context, account models.Account) ([]models.InventoryItem, error)
	GetPriceHistory(ctx context.Context, appID int) (map[string]map[string]HistoricalPrice, error)
	GetLowestPrices(ctx context.Context, appID int) (map[string]LowestPrice, error)
	GetActiveListings(ctx context.Context, account models.Account, page int) (int, []models.Listing, error)
	SetPrices(ctx context.Context, account models.Account, prices map[int64]int64) error
}

// HistoricalPrice is one daily price sample from the price history endpoint
type HistoricalPrice struct {
	Price int64 `json:"price"`
}

// LowestPrice is the current cheapest active listing price for an item
type LowestPrice struct {
	Price int64 `json:"price"`
}

// Client talks to the marketplace HTTP API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a marketplace API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: RequestTimeout,
		},
	}
}

// apiEnvelope is the common response wrapper of every marketplace endpoint
type apiEnvelope struct {
	Status   int             `json:"status"`
	Message  string          `json:"message"`
	Time     int64           `json:"time"`
	Response json.RawMessage `json:"response"`
}

type inventoryResponse struct {
	Items []models.InventoryItem `json:"items"`
}

type salesResponse struct {
	TotalPages int              `json:"total_pages"`
	Sales      []models.Listing `json:"sales"`
}

// ListInventory fetches the account's unlisted inventory
func (c *Client) ListInventory(ctx context.Context, account models.Account) ([]models.InventoryItem, error) {
	raw, err := c.get(ctx, "/IInventory/GetInventory/v2/", account.APIKey, nil)
	if err != nil {
		return nil, err
	}

	var resp inventoryResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse inventory response: %w", err)
	}
	return resp.Items, nil
}

// GetPriceHistory fetches per-item daily price samples for one app ID.
// The result maps item name -> date (YYYY-MM-DD) -> price sample.
func (c *Client) GetPriceHistory(ctx context.Context, appID int) (map[string]map[string]HistoricalPrice, error) {
	query := url.Values{"appid": {strconv.Itoa(appID)}}
	raw, err := c.get(ctx, "/IPricing/GetPriceList/v2/", "", query)
	if err != nil {
		return nil, err
	}

	var history map[string]map[string]HistoricalPrice
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("failed to parse price history for app %d: %w", appID, err)
	}
	return history, nil
}

// GetLowestPrices fetches the current lowest listed price per item for one app ID
func (c *Client) GetLowestPrices(ctx context.Context, appID int) (map[string]LowestPrice, error) {
	query := url.Values{"appid": {strconv.Itoa(appID)}}
	raw, err := c.get(ctx, "/IPricing/GetAllLowestListPrices/v1/", "", query)
	if err != nil {
		return nil, err
	}

	var prices map[string]LowestPrice
	if err := json.Unmarshal(raw, &prices); err != nil {
		return nil, fmt.Errorf("failed to parse lowest prices for app %d: %w", appID, err)
	}
	return prices, nil
}

// GetActiveListings fetches one page of the account's on-sale listings along
// with the total page count. Returns ErrNoListings when the account has none.
func (c *Client) GetActiveListings(ctx context.Context, account models.Account, page int) (int, []models.Listing, error) {
	query := url.Values{
		"page": {strconv.Itoa(page)},
		"type": {strconv.Itoa(SaleStatusOnSale)},
	}
	raw, err := c.get(ctx, "/ISales/GetSales/v1/", account.APIKey, query)
	if err != nil {
		return 0, nil, err
	}

	var resp salesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return 0, nil, fmt.Errorf("failed to parse sales response: %w", err)
	}
	return resp.TotalPages, resp.Sales, nil
}

// SetPrices submits one batch of listing id -> price (cents) edits
func (c *Client) SetPrices(ctx context.Context, account models.Account, prices map[int64]int64) error {
	form := url.Values{}
	for id, price := range prices {
		form.Set(fmt.Sprintf("items[%d]", id), strconv.FormatInt(price, 10))
	}

	endpoint := c.baseURL + "/ISales/EditPriceMulti/v1/"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build price edit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(account.APIKey, "")

	_, err = c.do(req)
	return err
}

// get performs an authenticated (when apiKey is non-empty) GET request and
// returns the raw response payload.
func (c *Client) get(ctx context.Context, path, apiKey string, query url.Values) (json.RawMessage, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	if apiKey != "" {
		req.SetBasicAuth(apiKey, "")
	}

	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("marketplace request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read marketplace response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("marketplace API returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse marketplace response: %w", err)
	}

	if envelope.Status != 1 {
		if strings.Contains(envelope.Message, "No matching sales") {
			return nil, ErrNoListings
		}
		return nil, fmt.Errorf("marketplace API error (status %d): %s", envelope.Status, envelope.Message)
	}

	return envelope.Response, nil
}
