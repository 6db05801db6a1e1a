package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIError carries the upstream HTTP status and raw error body of a failed
// provider call. A non-2xx response is always surfaced as one of these.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider API error %d: %s", e.Status, e.Body)
}

// Client is a thin request/response wrapper around the listing data
// provider. Transport and error surfacing only, no business logic.
type Client struct {
	baseURL string
	apiKey  string
	host    string
	client  *http.Client
}

type ClientConfig struct {
	BaseURL string
	APIKey  string
	Host    string // provider API host header
}

func NewClient(cfg ClientConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		host:    cfg.Host,
		client:  httpClient,
	}
}

// Configured reports whether a provider credential is present. A missing
// credential is fatal to the whole ingestion surface.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	if c.host != "" {
		req.Header.Set("X-RapidAPI-Host", c.host)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// SearchLocations resolves a free-text query to provider location nodes.
func (c *Client) SearchLocations(ctx context.Context, query string) ([]Location, error) {
	q := url.Values{}
	q.Set("query", query)
	var result struct {
		Hits []Location `json:"hits"`
	}
	if err := c.get(ctx, "/auto-complete", q, &result); err != nil {
		return nil, err
	}
	return result.Hits, nil
}

// SearchProperties fetches one page of listings matching the filter.
func (c *Client) SearchProperties(ctx context.Context, filter PropertyFilter) (*SearchResult, error) {
	q := filterQuery(filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = 25
	}
	q.Set("hitsPerPage", strconv.Itoa(limit))
	q.Set("page", strconv.Itoa(filter.Page))

	var result SearchResult
	if err := c.get(ctx, "/properties/list", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CountProperties is the dry-run search variant: one provider call that
// retrieves only the total-match count, never a full page.
func (c *Client) CountProperties(ctx context.Context, filter PropertyFilter) (int, error) {
	q := filterQuery(filter)
	q.Set("hitsPerPage", "1")
	q.Set("page", "0")

	var result struct {
		TotalAvailable int `json:"nbHits"`
	}
	if err := c.get(ctx, "/properties/list", q, &result); err != nil {
		return 0, err
	}
	return result.TotalAvailable, nil
}

// GetPropertyDetails fetches the full payload for one listing.
func (c *Client) GetPropertyDetails(ctx context.Context, externalID string) (*Property, error) {
	q := url.Values{}
	q.Set("externalID", externalID)
	var p Property
	if err := c.get(ctx, "/properties/detail", q, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SearchAgents fetches agents for a location.
func (c *Client) SearchAgents(ctx context.Context, locationID string, page int) ([]AgentBlock, error) {
	q := url.Values{}
	q.Set("locationExternalIDs", locationID)
	q.Set("page", strconv.Itoa(page))
	var result struct {
		Hits []AgentBlock `json:"hits"`
	}
	if err := c.get(ctx, "/agents/list", q, &result); err != nil {
		return nil, err
	}
	return result.Hits, nil
}

// SearchAgencies fetches agencies matching a free-text query.
func (c *Client) SearchAgencies(ctx context.Context, query string, page int) ([]AgencyBlock, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("page", strconv.Itoa(page))
	var result struct {
		Hits []AgencyBlock `json:"hits"`
	}
	if err := c.get(ctx, "/agencies/list", q, &result); err != nil {
		return nil, err
	}
	return result.Hits, nil
}

// SearchDevelopers fetches developers matching a free-text query.
func (c *Client) SearchDevelopers(ctx context.Context, query string, page int) ([]Developer, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("page", strconv.Itoa(page))
	var result struct {
		Hits []Developer `json:"hits"`
	}
	if err := c.get(ctx, "/developers/list", q, &result); err != nil {
		return nil, err
	}
	return result.Hits, nil
}

// GetTransactions fetches recorded transactions for a location.
func (c *Client) GetTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	q := url.Values{}
	q.Set("locationExternalIDs", filter.LocationExternalID)
	if filter.Purpose != "" {
		q.Set("purpose", filter.Purpose)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 25
	}
	q.Set("hitsPerPage", strconv.Itoa(limit))
	q.Set("page", strconv.Itoa(filter.Page))

	var result struct {
		Hits []Transaction `json:"hits"`
	}
	if err := c.get(ctx, "/transactions", q, &result); err != nil {
		return nil, err
	}
	return result.Hits, nil
}

func filterQuery(f PropertyFilter) url.Values {
	q := url.Values{}
	if len(f.LocationIDs) > 0 {
		q.Set("locationExternalIDs", strings.Join(f.LocationIDs, ","))
	}
	if f.Purpose != "" {
		q.Set("purpose", f.Purpose)
	}
	if f.Category != "" {
		q.Set("categoryExternalID", f.Category)
	}
	if f.Rooms != nil {
		q.Set("roomsMin", strconv.Itoa(*f.Rooms))
		q.Set("roomsMax", strconv.Itoa(*f.Rooms))
	}
	if f.Baths != nil {
		q.Set("bathsMin", strconv.Itoa(*f.Baths))
		q.Set("bathsMax", strconv.Itoa(*f.Baths))
	}
	if f.PriceMin != nil {
		q.Set("priceMin", formatFloat(*f.PriceMin))
	}
	if f.PriceMax != nil {
		q.Set("priceMax", formatFloat(*f.PriceMax))
	}
	if f.AreaMin != nil {
		q.Set("areaMin", formatFloat(*f.AreaMin))
	}
	if f.AreaMax != nil {
		q.Set("areaMax", formatFloat(*f.AreaMax))
	}
	if f.IsFurnished != nil {
		if *f.IsFurnished {
			q.Set("furnishingStatus", "furnished")
		} else {
			q.Set("furnishingStatus", "unfurnished")
		}
	}
	if f.IsCompleted != nil {
		if *f.IsCompleted {
			q.Set("completionStatus", "completed")
		} else {
			q.Set("completionStatus", "under-construction")
		}
	}
	if f.SaleType != "" {
		q.Set("saleType", f.SaleType)
	}
	if f.HasVideo != nil && *f.HasVideo {
		q.Set("hasVideo", "true")
	}
	if f.Has360Tour != nil && *f.Has360Tour {
		q.Set("hasPanorama", "true")
	}
	if f.HasFloorPlan != nil && *f.HasFloorPlan {
		q.Set("hasFloorPlan", "true")
	}
	if f.Index != "" {
		q.Set("sort", f.Index)
	}
	return q
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
