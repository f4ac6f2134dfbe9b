package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/vitaliisemenov/cachecore/cmd/cacheserver/appconfig"
	"github.com/vitaliisemenov/cachecore/internal/cachemetrics"
	"github.com/vitaliisemenov/cachecore/internal/eventstream"
	"github.com/vitaliisemenov/cachecore/internal/storage/rediswriter"
	"github.com/vitaliisemenov/cachecore/internal/storage/sqlwriter"
	"github.com/vitaliisemenov/cachecore/pkg/cachecore"
	"github.com/vitaliisemenov/cachecore/pkg/logger"
)

const demoCacheName = "cacheserver-demo"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a demo cache instance behind the admin HTTP/WebSocket surface",
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := appconfig.Load(configPath)
	if err != nil {
		return err
	}

	log := logger.NewLogger(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     outputFor(cfg.Log.Filename),
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})

	cacheCfg, err := cfg.Cache.ToCacheCoreConfig()
	if err != nil {
		return err
	}
	cacheCfg.Logger = log

	writer, closeWriter, err := buildWriter(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	if closeWriter != nil {
		defer closeWriter()
	}

	cache := cachecore.New[string, string](cacheCfg, writer, writer)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cacheCfg.DrainTimeout)
		defer cancel()
		_ = cache.Close(ctx)
	}()

	metricsRegistry := cachemetrics.NewRegistry(cfg.Metrics.Namespace)
	cacheMetrics := metricsRegistry.ForCache(demoCacheName)

	busMetrics := eventstream.NewMetrics(cfg.Metrics.Namespace)
	bus := eventstream.NewBus(log, busMetrics)
	bus.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = bus.Stop(ctx)
	}()

	identity := func(k string) string { return k }
	if _, err := eventstream.Bridge[string, string](cache, bus, identity, cacheCfg.AsyncQueueSize, cacheCfg.AsyncTimeout); err != nil {
		return fmt.Errorf("cacheserver: bridge cache to event bus: %w", err)
	}

	server := eventstream.NewServer(bus, cache.Statistics, log, cfg.Events.RegistrationsPerSecond, cfg.Events.Burst)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go syncMetricsLoop(ctx, cache, cacheMetrics)

	log.Info("cacheserver: starting admin surface", "addr", cfg.Events.Addr)
	if err := server.Serve(ctx, cfg.Events.Addr); err != nil {
		return fmt.Errorf("cacheserver: serve: %w", err)
	}
	return nil
}

// syncMetricsLoop periodically forwards the cache's in-process Statistics
// snapshot into the Prometheus counters, the way the teacher's background
// reporters poll an internal source rather than hooking every call site.
func syncMetricsLoop(ctx context.Context, cache *cachecore.Cache[string, string], m *cachemetrics.CacheMetrics) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var prev cachecore.Snapshot
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := cache.Statistics()
			m.Sync(prev, cur)
			prev = cur
		}
	}
}

// sqlOpenDriverName maps a goose dialect name (stored in SQLConfig.Dialect)
// onto the database/sql driver name registered by that dialect's import:
// modernc.org/sqlite registers "sqlite", jackc/pgx/v5/stdlib registers "pgx".
func sqlOpenDriverName(dialect string) string {
	if dialect == string(sqlwriter.DialectPostgres) {
		return "pgx"
	}
	return "sqlite"
}

func outputFor(filename string) string {
	if filename == "" {
		return "stdout"
	}
	return "file"
}

func buildWriter(ctx context.Context, cfg *appconfig.Config, log *slog.Logger) (interface {
	cachecore.CacheLoader[string, string]
	cachecore.CacheWriter[string, string]
}, func(), error) {
	switch cfg.Writer.Backend {
	case appconfig.WriterRedis:
		log.Info("cacheserver: wiring redis write-through backend", "addr", cfg.Redis.Addr)
		w, err := rediswriter.New[string](ctx, rediswriter.Options{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			TTL:         cfg.Redis.TTL,
			Compression: cfg.Redis.Compression,
			KeyPrefix:   cfg.Redis.KeyPrefix,
			Logger:      log,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("cacheserver: build redis writer: %w", err)
		}
		return w, func() { _ = w.Close() }, nil
	case appconfig.WriterSQL:
		log.Info("cacheserver: wiring sql write-through backend", "dialect", cfg.SQL.Dialect)
		db, err := sql.Open(sqlOpenDriverName(cfg.SQL.Dialect), cfg.SQL.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("cacheserver: open sql db: %w", err)
		}
		if err := sqlwriter.Migrate(ctx, db, cfg.SQL.Dialect, log); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("cacheserver: migrate sql db: %w", err)
		}
		w := sqlwriter.New[string](db, sqlwriter.Dialect(cfg.SQL.Dialect), log)
		return w, func() { _ = db.Close() }, nil
	default:
		return nil, nil, nil
	}
}
