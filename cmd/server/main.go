// Copilot server - reads ride offers off the driver's screen and pushes verdicts to the overlay
package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/ride-copilot/platform/internal/config"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/copilot"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/dedup"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/events"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/history"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/logging"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/metrics"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/ocr"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/ocr/tesseract"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/parser"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/resilience"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/screen"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/server"
	"github.com/GriffinCanCode/ride-copilot/platform/internal/settings"
)

func main() {
	cfg, err := config.Load()

	// Setup structured logging
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	// Settings: Redis hash when configured, env defaults otherwise
	st := setupSettings(ctx, cfg, &closers)

	// History: Postgres write-behind when configured, memory otherwise
	store, pruner, stopHistory := setupHistory(ctx, cfg)
	defer stopHistory()

	// Events
	var sink events.Sink = events.NopSink{}
	if len(cfg.Kafka.Brokers) > 0 {
		sink = events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		slog.Info("publishing offer events", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}
	closers = append(closers, sink)

	// Screen capture and OCR
	opts := copilot.Options{
		Pipeline:        copilot.NewPipeline(parser.New(), dedup.NewGate(cfg.DedupWindow), st),
		History:         store,
		Shift:           history.NewShift(),
		Events:          sink,
		CaptureRate:     cfg.Capture.Rate,
		MaxHashDistance: cfg.Capture.MaxHashDistance,
	}
	if cfg.Capture.Source != config.CaptureOff {
		capturer, err := screen.New(screen.Config{
			Source:    cfg.Capture.Source,
			ADBPath:   cfg.Capture.ADBPath,
			ADBSerial: cfg.Capture.ADBSerial,
			FilePath:  cfg.Capture.FilePath,
		})
		if err != nil {
			slog.Error("screen capture unavailable", "source", cfg.Capture.Source, "error", err)
			os.Exit(1)
		}
		defer capturer.Close()

		client := setupOCR(cfg, &closers)
		if client == nil {
			slog.Warn("screen capture enabled without OCR, frames will be ignored")
		}
		opts.Capturer = capturer
		opts.OCR = client
	}

	// Create copilot manager
	mgr := copilot.New(opts)

	// Create HTTP/WebSocket server
	srv := server.New(mgr, st, cfg.HTTP)
	defer srv.Close()

	if err := mgr.Start(ctx); err != nil {
		slog.Error("copilot start error", "error", err)
	}
	if pruner != nil {
		if err := pruner.Start(ctx); err != nil {
			slog.Error("history pruner not started", "error", err)
		} else {
			defer pruner.Stop()
		}
	}

	// Start HTTP server
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		slog.Info("copilot server starting", "http", cfg.HTTP.Addr, "capture", cfg.Capture.Source, "ocr", cfg.OCR.Mode)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	mgr.Stop()
	slog.Info("shutdown complete")
}

// setupSettings returns a cached provider over Redis, or over the env
// defaults when Redis is not configured or unreachable.
func setupSettings(ctx context.Context, cfg *config.Config, closers *[]io.Closer) *settings.Cached {
	defaults := settings.Settings{Thresholds: cfg.Thresholds, Score: cfg.Score}

	var upstream settings.Provider = settings.Static{Settings: defaults}
	if cfg.Redis.URL != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rdb, err := settings.NewRedisClient(pingCtx, cfg.Redis.URL)
		cancel()
		if err != nil {
			slog.Warn("redis unavailable, using env thresholds", "error", err)
		} else {
			*closers = append(*closers, rdb)
			upstream = settings.NewRedisProvider(rdb, cfg.Redis.ThresholdsKey, defaults)
			slog.Info("thresholds from redis", "key", cfg.Redis.ThresholdsKey)
		}
	}
	return settings.NewCached(upstream, cfg.Redis.RefreshInterval, defaults)
}

// setupHistory returns the history store, the pruner that bounds it, and a
// func that flushes pending writes on shutdown.
func setupHistory(ctx context.Context, cfg *config.Config) (history.Store, *history.Pruner, func()) {
	cache := history.NewMemoryStore(cfg.HistoryMaxEntries)
	retention := time.Duration(cfg.Postgres.RetentionDays) * 24 * time.Hour

	if cfg.Postgres.URL == "" {
		return cache, history.NewPruner(cache, retention, cfg.Postgres.PruneSchedule), func() {}
	}

	pool, err := history.NewPostgresPool(ctx, cfg.Postgres.URL)
	if err != nil {
		slog.Warn("postgres unavailable, history kept in memory", "error", err)
		return cache, history.NewPruner(cache, retention, cfg.Postgres.PruneSchedule), func() {}
	}

	pg := history.NewPostgresStore(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		slog.Error("history schema migration failed", "error", err)
		pool.Close()
		return cache, history.NewPruner(cache, retention, cfg.Postgres.PruneSchedule), func() {}
	}

	durable := history.NewProtected(pg, resilience.New(resilience.StorageConfig()))
	batcher := history.NewBatcher(durable, cfg.Postgres.BatchSize, cfg.Postgres.FlushDelay).
		OnError(func(err error, count int) {
			metrics.HistoryFailuresTotal.Add(float64(count))
			slog.Error("history batch write failed", "count", count, "error", err)
		})
	wb := history.NewWriteBehind(cache, durable, batcher)
	slog.Info("history persisted to postgres", "batch", cfg.Postgres.BatchSize, "retention_days", cfg.Postgres.RetentionDays)

	return wb, history.NewPruner(wb, retention, cfg.Postgres.PruneSchedule), func() {
		wb.Close()
		pool.Close()
	}
}

// setupOCR builds the configured OCR client, or nil when OCR is off or
// no engine could be created.
func setupOCR(cfg *config.Config, closers *[]io.Closer) ocr.Client {
	opts := ocr.DefaultOptions()
	opts.Crop = cfg.Capture.Crop

	var local ocr.Client
	if cfg.OCR.Mode != config.OCROff {
		t, err := tesseract.New(tesseract.Config{
			Language:    cfg.OCR.Language,
			PageSegMode: cfg.OCR.PageSegMode,
			Preprocess:  cfg.OCR.Preprocess,
			Options:     opts,
		})
		if err != nil {
			slog.Warn("local OCR unavailable", "error", err)
		} else {
			*closers = append(*closers, t)
			local = t
		}
	}

	switch cfg.OCR.Mode {
	case config.OCRLocal:
		if local == nil {
			return nil
		}
		return ocr.Timed{Client: local}
	case config.OCRRemote:
		remote, err := ocr.NewRemote(cfg.OCR.RemoteAddr, cfg.OCR.Timeout)
		if err != nil {
			slog.Warn("remote OCR unavailable", "addr", cfg.OCR.RemoteAddr, "error", err)
			if local == nil {
				return nil
			}
			return ocr.Timed{Client: local}
		}
		*closers = append(*closers, remote)
		if local == nil {
			return ocr.Timed{Client: remote}
		}
		return ocr.Timed{Client: ocr.Fallback{Primary: remote, Secondary: local}}
	default:
		return nil
	}
}
