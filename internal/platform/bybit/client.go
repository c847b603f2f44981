package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alanyoungcy/fundarb/internal/domain"
)

// DefaultBaseURL is the Bybit v5 API root.
const DefaultBaseURL = "https://api.bybit.com"

// Client is the REST client for the Bybit v5 public market API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Bybit client. An empty baseURL selects production.
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
func (c *Client) Name() string { return "bybit" }

type tickersResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []struct {
			Symbol      string `json:"symbol"`
			FundingRate string `json:"fundingRate"`
		} `json:"list"`
	} `json:"result"`
}

// FundingRates returns current funding rates for all linear perpetuals.
// Tickers without a funding rate (expiring futures) are skipped.
func (c *Client) FundingRates(ctx context.Context) ([]domain.RawRateRecord, error) {
	fullURL := c.baseURL + "/v5/market/tickers?category=linear"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("bybit: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bybit: funding rates: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("bybit: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("bybit: HTTP %d", resp.StatusCode)
	}

	var decoded tickersResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("bybit: decode tickers: %w", err)
	}
	if decoded.RetCode != 0 {
		return nil, fmt.Errorf("bybit: API error %d: %s", decoded.RetCode, decoded.RetMsg)
	}

	records := make([]domain.RawRateRecord, 0, len(decoded.Result.List))
	for _, t := range decoded.Result.List {
		if t.FundingRate == "" {
			continue
		}
		records = append(records, domain.RawRateRecord{Symbol: t.Symbol, Rate: t.FundingRate})
	}
	return records, nil
}
