package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alanyoungcy/fundarb/internal/domain"
)

// DefaultBaseURL is the Hyperliquid info API root.
const DefaultBaseURL = "https://api.hyperliquid.xyz"

// Client is the REST client for the Hyperliquid info API. The API is a single
// POST endpoint dispatched on a "type" field.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Hyperliquid client. An empty baseURL selects production.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the exchange tag used in observations.
func (c *Client) Name() string { return "hyperliquid" }

type assetMeta struct {
	Universe []struct {
		Name string `json:"name"`
	} `json:"universe"`
}

type assetCtx struct {
	Funding string `json:"funding"`
}

// FundingRates returns current funding rates for every listed perp. The
// metaAndAssetCtxs response is a two-element array: asset metadata first,
// then per-asset contexts aligned by index. Symbols are bare base assets
// ("BTC", "ETH"), already suffix-free.
func (c *Client) FundingRates(ctx context.Context) ([]domain.RawRateRecord, error) {
	payload, err := json.Marshal(map[string]string{"type": "metaAndAssetCtxs"})
	if err != nil {
		return nil, fmt.Errorf("hyperliquid: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/info", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("hyperliquid: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hyperliquid: funding rates: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("hyperliquid: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("hyperliquid: HTTP %d", resp.StatusCode)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("hyperliquid: decode response: %w", err)
	}
	if len(raw) < 2 {
		return nil, fmt.Errorf("hyperliquid: unexpected response shape: %d elements", len(raw))
	}

	var meta assetMeta
	if err := json.Unmarshal(raw[0], &meta); err != nil {
		return nil, fmt.Errorf("hyperliquid: decode meta: %w", err)
	}
	var ctxs []assetCtx
	if err := json.Unmarshal(raw[1], &ctxs); err != nil {
		return nil, fmt.Errorf("hyperliquid: decode asset contexts: %w", err)
	}

	records := make([]domain.RawRateRecord, 0, len(meta.Universe))
	for i, asset := range meta.Universe {
		if i >= len(ctxs) {
			break
		}
		records = append(records, domain.RawRateRecord{Symbol: asset.Name, Rate: ctxs[i].Funding})
	}
	return records, nil
}
