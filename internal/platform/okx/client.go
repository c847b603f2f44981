package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alanyoungcy/fundarb/internal/domain"
)

// DefaultBaseURL is the OKX public API root.
const DefaultBaseURL = "https://www.okx.com"

// Client is the REST client for the OKX v5 public API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an OKX client. An empty baseURL selects production.
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
func (c *Client) Name() string { return "okx" }

type fundingRateResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		InstID      string `json:"instId"`
		FundingRate string `json:"fundingRate"`
	} `json:"data"`
}

// FundingRates returns current funding rates for all perpetual swaps.
// Symbols keep OKX's instrument naming ("BTC-USDT-SWAP").
func (c *Client) FundingRates(ctx context.Context) ([]domain.RawRateRecord, error) {
	fullURL := c.baseURL + "/api/v5/public/funding-rate?instType=SWAP"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("okx: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("okx: funding rates: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("okx: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("okx: HTTP %d", resp.StatusCode)
	}

	var decoded fundingRateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("okx: decode funding rates: %w", err)
	}
	if decoded.Code != "0" {
		return nil, fmt.Errorf("okx: API error %s: %s", decoded.Code, decoded.Msg)
	}

	records := make([]domain.RawRateRecord, 0, len(decoded.Data))
	for _, d := range decoded.Data {
		records = append(records, domain.RawRateRecord{Symbol: d.InstID, Rate: d.FundingRate})
	}
	return records, nil
}
