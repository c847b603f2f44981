package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/fundarb/internal/domain"
)

// rateTTL bounds how long a cached observation stays visible. Funding rates
// refresh every scan, so anything older than two funding periods is stale.
const rateTTL = 16 * time.Hour

// RateCache implements domain.RateCache using Redis hashes. Each base asset
// gets a hash at "funding:{base_asset}" keyed by "{exchange}:{symbol}", so a
// single HGetAll answers the analyze path's per-asset query.
type RateCache struct {
	rdb *redis.Client
}

var _ domain.RateCache = (*RateCache)(nil)

// NewRateCache creates a RateCache backed by the given Client.
func NewRateCache(c *Client) *RateCache {
	return &RateCache{rdb: c.Underlying()}
}

func rateKey(baseAsset string) string {
	return "funding:" + baseAsset
}

type cachedRate struct {
	Exchange  string    `json:"exchange"`
	Symbol    string    `json:"symbol"`
	Rate      float64   `json:"rate"`
	Timestamp time.Time `json:"ts"`
}

// SetRates stores the latest observation per (exchange, symbol) using one
// pipelined round trip for the whole scan.
func (rc *RateCache) SetRates(ctx context.Context, obs []domain.FundingObservation) error {
	if len(obs) == 0 {
		return nil
	}

	pipe := rc.rdb.Pipeline()
	touched := make(map[string]struct{})
	for _, o := range obs {
		payload, err := json.Marshal(cachedRate{
			Exchange:  o.Exchange,
			Symbol:    o.Symbol,
			Rate:      o.Rate,
			Timestamp: o.Timestamp,
		})
		if err != nil {
			return fmt.Errorf("redis: encode rate %s/%s: %w", o.Exchange, o.Symbol, err)
		}
		key := rateKey(o.BaseAsset)
		pipe.HSet(ctx, key, o.Exchange+":"+o.Symbol, payload)
		touched[key] = struct{}{}
	}
	for key := range touched {
		pipe.Expire(ctx, key, rateTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set rates: %w", err)
	}
	return nil
}

// RatesForAsset returns all cached observations for one base asset. It
// returns domain.ErrNotFound when the asset has no cached rates.
func (rc *RateCache) RatesForAsset(ctx context.Context, baseAsset string) ([]domain.FundingObservation, error) {
	vals, err := rc.rdb.HGetAll(ctx, rateKey(baseAsset)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: rates for %s: %w", baseAsset, err)
	}
	if len(vals) == 0 {
		return nil, domain.ErrNotFound
	}

	out := make([]domain.FundingObservation, 0, len(vals))
	for field, raw := range vals {
		var c cachedRate
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("redis: decode rate %s: %w", field, err)
		}
		out = append(out, domain.FundingObservation{
			Exchange:  c.Exchange,
			Symbol:    c.Symbol,
			BaseAsset: baseAsset,
			Rate:      c.Rate,
			Timestamp: c.Timestamp,
		})
	}
	return out, nil
}
