// Package scanner turns raw venue funding records into canonical
// observations and ranks them into cost-adjusted opportunities.
package scanner

import (
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/fundarb/internal/domain"
)

// knownSuffixes are stripped to extract the base asset from a venue symbol.
// Order matters: the most specific suffixes must be checked first so that
// "BTC-USDT-SWAP" resolves to "BTC" rather than "BTC-USDT".
var knownSuffixes = []string{"-USDT-SWAP", "-USD-SWAP", "USDT", "USD", "PERP"}

// Normalizer converts venue-native rate records into FundingObservations.
// A malformed record from one venue never aborts processing of the rest of
// the batch; it is dropped and counted.
type Normalizer struct {
	dropped atomic.Int64
	logger  *slog.Logger
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	return &Normalizer{logger: logger.With(slog.String("component", "normalizer"))}
}

// ExtractBaseAsset strips the first matching known suffix from a venue
// symbol. Symbols without a known suffix (e.g. Hyperliquid's bare asset
// names) are returned unchanged.
func ExtractBaseAsset(symbol string) string {
	for _, suffix := range knownSuffixes {
		if strings.HasSuffix(symbol, suffix) {
			return symbol[:len(symbol)-len(suffix)]
		}
	}
	return symbol
}

// Normalize converts one raw record into a FundingObservation. The second
// return value is false when the record's rate is missing or non-numeric; the
// record is dropped and counted, not raised.
func (n *Normalizer) Normalize(raw domain.RawRateRecord, exchange string, at time.Time) (domain.FundingObservation, bool) {
	if raw.Symbol == "" {
		n.drop(exchange, raw, "empty symbol")
		return domain.FundingObservation{}, false
	}
	if raw.Rate == "" {
		n.drop(exchange, raw, "missing rate")
		return domain.FundingObservation{}, false
	}
	rate, err := strconv.ParseFloat(raw.Rate, 64)
	if err != nil {
		n.drop(exchange, raw, "non-numeric rate")
		return domain.FundingObservation{}, false
	}

	return domain.FundingObservation{
		Exchange:  exchange,
		Symbol:    raw.Symbol,
		BaseAsset: ExtractBaseAsset(raw.Symbol),
		Rate:      rate,
		Timestamp: at,
	}, true
}

// NormalizeBatch converts a venue's full record batch, dropping malformed
// entries.
func (n *Normalizer) NormalizeBatch(raws []domain.RawRateRecord, exchange string, at time.Time) []domain.FundingObservation {
	obs := make([]domain.FundingObservation, 0, len(raws))
	for _, raw := range raws {
		if o, ok := n.Normalize(raw, exchange, at); ok {
			obs = append(obs, o)
		}
	}
	return obs
}

// Dropped returns the number of records dropped since construction.
func (n *Normalizer) Dropped() int64 {
	return n.dropped.Load()
}

func (n *Normalizer) drop(exchange string, raw domain.RawRateRecord, reason string) {
	n.dropped.Add(1)
	n.logger.Debug("dropped rate record",
		slog.String("exchange", exchange),
		slog.String("symbol", raw.Symbol),
		slog.String("reason", reason),
	)
}
