package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/fundarb/internal/domain"
)

func TestFundingRatesFiltersNonUSDT(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fapi/v1/premiumIndex", r.URL.Path)
		fmt.Fprint(w, `[
			{"symbol":"SOLUSDT","lastFundingRate":"-0.00210000","nextFundingTime":1738483200000},
			{"symbol":"BTCUSD_PERP","lastFundingRate":"0.00010000","nextFundingTime":1738483200000},
			{"symbol":"ETHUSDT","lastFundingRate":"0.00005000","nextFundingTime":1738483200000}
		]`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	records, err := client.FundingRates(context.Background())
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "SOLUSDT", records[0].Symbol)
	assert.Equal(t, "-0.00210000", records[0].Rate)
	assert.Equal(t, "ETHUSDT", records[1].Symbol)
}

func TestFundingHistoryPaginates(t *testing.T) {
	// First page fills the limit so the client must request a second page
	// starting just past the last row's timestamp.
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fapi/v1/fundingRate", r.URL.Path)
		require.Equal(t, "SOLUSDT", r.URL.Query().Get("symbol"))
		calls++

		switch calls {
		case 1:
			w.Write([]byte("["))
			for i := 0; i < historyPageLimit; i++ {
				if i > 0 {
					w.Write([]byte(","))
				}
				ts := start.Add(time.Duration(i) * domain.FundingPeriod)
				fmt.Fprintf(w, `{"symbol":"SOLUSDT","fundingRate":"-0.00100000","fundingTime":%d}`, ts.UnixMilli())
			}
			w.Write([]byte("]"))
		case 2:
			ts := start.Add(historyPageLimit * domain.FundingPeriod)
			fmt.Fprintf(w, `[{"symbol":"SOLUSDT","fundingRate":"-0.00200000","fundingTime":%d}]`, ts.UnixMilli())
		default:
			fmt.Fprint(w, `[]`)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	end := start.Add(2 * historyPageLimit * domain.FundingPeriod)
	obs, err := client.FundingHistory(context.Background(), "SOLUSDT", start, end)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	require.Len(t, obs, historyPageLimit+1)
	assert.Equal(t, "SOL", obs[0].BaseAsset)
	assert.Equal(t, -0.001, obs[0].Rate)
	assert.Equal(t, -0.002, obs[len(obs)-1].Rate)
	assert.True(t, obs[0].Timestamp.Equal(start))
}

func TestFundingHistoryEmptyIsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.FundingHistory(context.Background(), "SOLUSDT",
		time.Now().Add(-24*time.Hour), time.Now())
	assert.ErrorIs(t, err, domain.ErrNoData)
}

func TestFundingRatesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.FundingRates(context.Background())
	require.Error(t, err)
}
