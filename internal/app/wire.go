package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/fundarb/internal/blob/s3"
	"github.com/alanyoungcy/fundarb/internal/cache/redis"
	"github.com/alanyoungcy/fundarb/internal/config"
	"github.com/alanyoungcy/fundarb/internal/domain"
	"github.com/alanyoungcy/fundarb/internal/feed"
	"github.com/alanyoungcy/fundarb/internal/notify"
	"github.com/alanyoungcy/fundarb/internal/platform/binance"
	"github.com/alanyoungcy/fundarb/internal/platform/bybit"
	"github.com/alanyoungcy/fundarb/internal/platform/hyperliquid"
	"github.com/alanyoungcy/fundarb/internal/platform/okx"
	"github.com/alanyoungcy/fundarb/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function. Nil fields mean the configured mode does not
// use that dependency.
type Dependencies struct {
	// Stores
	SnapshotStore domain.SnapshotStore
	TradeStore    domain.ClosedTradeStore
	HistoryStore  domain.FundingHistoryStore

	// Caches
	RateCache   domain.RateCache
	LockManager domain.LockManager

	// Blob storage
	BlobWriter domain.BlobWriter
	Archiver   *s3blob.Archiver

	// Feeds
	Fetchers      []feed.Fetcher
	HistorySource *binance.Client

	// Notifications
	Notifier *notify.Notifier
}

// needsPostgres returns true for modes that persist snapshots or trades.
func needsPostgres(mode string) bool {
	switch mode {
	case "scan", "monitor", "backtest":
		return true
	default:
		return false
	}
}

// needsRedis returns true for modes that cache rates or take the snapshot
// lock.
func needsRedis(mode string) bool {
	switch mode {
	case "scan", "monitor", "analyze":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL (only for modes that need persistence) ---
	if needsPostgres(mode) && cfg.Scan.PersistEnabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.SnapshotStore = postgres.NewSnapshotStore(pool)
		deps.TradeStore = postgres.NewTradeStore(pool)
		deps.HistoryStore = postgres.NewFundingHistoryStore(pool)
	}

	// --- Redis ---
	if needsRedis(mode) {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.RateCache = redis.NewRateCache(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
	}

	// --- S3 blob storage (only when snapshot archival is on) ---
	if cfg.Archive.Enabled && deps.SnapshotStore != nil {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		if store, ok := deps.SnapshotStore.(s3blob.SnapshotArchiveStore); ok {
			deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, store, logger)
		}
	}

	// --- Venue feeds ---
	if cfg.Venues.Binance.Enabled {
		deps.Fetchers = append(deps.Fetchers, binance.NewClient("", cfg.Venues.Binance.Timeout.Duration))
	}
	if cfg.Venues.Bybit.Enabled {
		deps.Fetchers = append(deps.Fetchers, bybit.NewClient("", cfg.Venues.Bybit.Timeout.Duration))
	}
	if cfg.Venues.OKX.Enabled {
		deps.Fetchers = append(deps.Fetchers, okx.NewClient("", cfg.Venues.OKX.Timeout.Duration))
	}
	if cfg.Venues.Hyperliquid.Enabled {
		deps.Fetchers = append(deps.Fetchers, hyperliquid.NewClient("", cfg.Venues.Hyperliquid.Timeout.Duration))
	}

	// Historical series come from binance regardless of the scan fetcher
	// set; it is the only venue with a deep paginated funding endpoint.
	deps.HistorySource = binance.NewClient("", cfg.Venues.Binance.Timeout.Duration)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
