package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/fundarb/internal/domain"
)

func TestFormatOpportunityAlert(t *testing.T) {
	opps := []domain.Opportunity{
		{BaseAsset: "SOL", Exchange: "binance", FundingAPR: -657.0, NetYieldAPR: 612.3},
		{BaseAsset: "WIF", Exchange: "bybit", FundingAPR: -400.5, NetYieldAPR: 361.2},
	}

	body := FormatOpportunityAlert(opps, 5)
	lines := strings.Split(body, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "• SOL @ binance: funding -657.0% → net 612.3% APR", lines[0])
	assert.Equal(t, "• WIF @ bybit: funding -400.5% → net 361.2% APR", lines[1])
}

func TestFormatOpportunityAlertTruncatesToTopN(t *testing.T) {
	opps := make([]domain.Opportunity, 10)
	for i := range opps {
		opps[i] = domain.Opportunity{BaseAsset: "SOL", Exchange: "binance"}
	}

	body := FormatOpportunityAlert(opps, 5)
	assert.Len(t, strings.Split(body, "\n"), 5)
}

func TestFormatOpportunityAlertEmpty(t *testing.T) {
	assert.Empty(t, FormatOpportunityAlert(nil, 5))
}
