package bybit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFundingRatesSkipsEmptyRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v5/market/tickers", r.URL.Path)
		require.Equal(t, "linear", r.URL.Query().Get("category"))
		fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"list":[
			{"symbol":"SOLUSDT","fundingRate":"-0.0018"},
			{"symbol":"BTC-26DEC25","fundingRate":""},
			{"symbol":"ETHUSDT","fundingRate":"0.0001"}
		]}}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	records, err := client.FundingRates(context.Background())
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "SOLUSDT", records[0].Symbol)
	assert.Equal(t, "-0.0018", records[0].Rate)
}

func TestFundingRatesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"retCode":10001,"retMsg":"params error","result":{"list":[]}}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.FundingRates(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "10001")
}
