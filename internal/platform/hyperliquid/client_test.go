package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFundingRatesAlignsMetaAndContexts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/info", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req map[string]string
		require.NoError(t, json.Unmarshal(body, &req))
		require.Equal(t, "metaAndAssetCtxs", req["type"])

		fmt.Fprint(w, `[
			{"universe":[{"name":"BTC"},{"name":"SOL"}]},
			[{"funding":"0.0000125"},{"funding":"-0.0021"}]
		]`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	records, err := client.FundingRates(context.Background())
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "BTC", records[0].Symbol)
	assert.Equal(t, "0.0000125", records[0].Rate)
	assert.Equal(t, "SOL", records[1].Symbol)
	assert.Equal(t, "-0.0021", records[1].Rate)
}

func TestFundingRatesRejectsShortResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"universe":[]}]`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.FundingRates(context.Background())
	require.Error(t, err)
}
