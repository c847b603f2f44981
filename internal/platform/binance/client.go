package binance

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

	"github.com/alanyoungcy/fundarb/internal/domain"
)

// DefaultBaseURL is the Binance USDT-margined futures API root.
const DefaultBaseURL = "https://fapi.binance.com"

// historyPageLimit is the maximum rows per fundingRate request.
const historyPageLimit = 1000

// Client is the REST client for the Binance futures public API. Only public
// market-data endpoints are used; no authentication is required.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Binance futures client. An empty baseURL selects the
// production endpoint.
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
func (c *Client) Name() string { return "binance" }

type premiumIndexEntry struct {
	Symbol          string `json:"symbol"`
	LastFundingRate string `json:"lastFundingRate"`
	NextFundingTime int64  `json:"nextFundingTime"`
}

// FundingRates returns the current funding rate for every USDT-quoted
// perpetual. Non-USDT symbols are excluded at the source.
func (c *Client) FundingRates(ctx context.Context) ([]domain.RawRateRecord, error) {
	body, err := c.get(ctx, "/fapi/v1/premiumIndex", nil)
	if err != nil {
		return nil, fmt.Errorf("binance: funding rates: %w", err)
	}

	var entries []premiumIndexEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("binance: decode premium index: %w", err)
	}

	records := make([]domain.RawRateRecord, 0, len(entries))
	for _, e := range entries {
		if !strings.Contains(e.Symbol, "USDT") {
			continue
		}
		records = append(records, domain.RawRateRecord{Symbol: e.Symbol, Rate: e.LastFundingRate})
	}
	return records, nil
}

type fundingHistoryEntry struct {
	Symbol      string `json:"symbol"`
	FundingRate string `json:"fundingRate"`
	FundingTime int64  `json:"fundingTime"`
}

// FundingHistory returns settled funding rates for symbol between start and
// end, oldest first. The endpoint pages at 1000 rows, roughly 333 days of
// 8-hour periods, so long ranges take multiple requests.
func (c *Client) FundingHistory(ctx context.Context, symbol string, start, end time.Time) ([]domain.FundingObservation, error) {
	var out []domain.FundingObservation
	cursor := start

	for cursor.Before(end) {
		params := url.Values{}
		params.Set("symbol", symbol)
		params.Set("startTime", strconv.FormatInt(cursor.UnixMilli(), 10))
		params.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
		params.Set("limit", strconv.Itoa(historyPageLimit))

		body, err := c.get(ctx, "/fapi/v1/fundingRate", params)
		if err != nil {
			return nil, fmt.Errorf("binance: funding history %s: %w", symbol, err)
		}

		var page []fundingHistoryEntry
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("binance: decode funding history: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, e := range page {
			rate, err := strconv.ParseFloat(e.FundingRate, 64)
			if err != nil {
				continue
			}
			out = append(out, domain.FundingObservation{
				Exchange:  c.Name(),
				Symbol:    e.Symbol,
				BaseAsset: strings.TrimSuffix(e.Symbol, "USDT"),
				Rate:      rate,
				Timestamp: time.UnixMilli(e.FundingTime).UTC(),
			})
		}

		last := time.UnixMilli(page[len(page)-1].FundingTime).UTC()
		if len(page) < historyPageLimit {
			break
		}
		cursor = last.Add(time.Millisecond)
	}

	if len(out) == 0 {
		return nil, domain.ErrNoData
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
