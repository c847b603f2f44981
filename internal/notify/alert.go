package notify

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/fundarb/internal/domain"
)

// FormatOpportunityAlert renders the top opportunities from a scan as a
// message body, one line per opportunity, best first.
func FormatOpportunityAlert(opps []domain.Opportunity, topN int) string {
	if topN <= 0 || topN > len(opps) {
		topN = len(opps)
	}

	var b strings.Builder
	for _, opp := range opps[:topN] {
		fmt.Fprintf(&b, "• %s @ %s: funding %.1f%% → net %.1f%% APR\n",
			opp.BaseAsset, opp.Exchange, opp.FundingAPR, opp.NetYieldAPR)
	}
	return strings.TrimRight(b.String(), "\n")
}
