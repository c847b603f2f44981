package okx

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

func TestFundingRatesKeepsInstrumentNaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v5/public/funding-rate", r.URL.Path)
		require.Equal(t, "SWAP", r.URL.Query().Get("instType"))
		fmt.Fprint(w, `{"code":"0","msg":"","data":[
			{"instId":"BTC-USDT-SWAP","fundingRate":"0.0000732"},
			{"instId":"SOL-USDT-SWAP","fundingRate":"-0.0019"}
		]}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	records, err := client.FundingRates(context.Background())
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "BTC-USDT-SWAP", records[0].Symbol)
	assert.Equal(t, "-0.0019", records[1].Rate)
}

func TestFundingRatesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"50011","msg":"rate limit reached","data":[]}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.FundingRates(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "50011")
}
