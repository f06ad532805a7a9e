package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/vertextoedge/resource-fetcher/internal/config"
	"github.com/vertextoedge/resource-fetcher/internal/fetch"
	"github.com/vertextoedge/resource-fetcher/internal/fs"
	"github.com/vertextoedge/resource-fetcher/internal/journal"
	"github.com/vertextoedge/resource-fetcher/internal/logger"
	"github.com/vertextoedge/resource-fetcher/internal/port"
	"go.uber.org/zap"
)

const version = "0.1.0"

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	zapLogger := logger.GetZapLogger()
	zapLogger.Info("starting resource-fetcher",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	// Initialize filesystem manager
	fsManager, err := fs.NewManager(cfg.Download.RootDir)
	if err != nil {
		zapLogger.Fatal("failed to create filesystem manager", zap.Error(err))
	}

	// Open fetch journal
	dbPath := cfg.Journal.Path
	if dbPath == "" {
		dbPath = filepath.Join(cfg.Download.RootDir, "journal.db")
	}

	store, err := journal.Open(dbPath)
	if err != nil {
		zapLogger.Fatal("failed to open journal", zap.Error(err), zap.String("path", dbPath))
	}
	defer store.Close()

	// Create the process-scoped connection pool
	pool := fetch.NewPool(fetch.PoolOptions{
		IdleConnTimeout:     cfg.Pool.GetIdleConnTimeout(),
		MaxIdleConns:        cfg.Pool.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Pool.MaxIdleConnsPerHost,
		InsecureSkipVerify:  cfg.Fetch.InsecureSkipVerify,
	})
	defer pool.Shutdown()

	fetcher := fetch.New(fetch.Options{
		MaxRetries:     cfg.Fetch.MaxRetries,
		AttemptTimeout: cfg.Fetch.GetAttemptTimeout(),
	}, pool, fsManager, zapLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	failed := 0
	for _, res := range cfg.Resources {
		rec := &port.FetchRecord{
			URL:         res.URL,
			Destination: res.Path,
			Description: res.Description,
			StartedAt:   time.Now(),
		}

		err := fetcher.Download(ctx, fetch.Request{
			URL:         res.URL,
			Destination: res.Path,
			Description: res.Description,
		})
		rec.Attempts = cfg.Fetch.MaxRetries
		rec.FinishedAt = time.Now()

		if err != nil {
			failed++
			rec.Status = "failed"
			rec.Error = err.Error()
			zapLogger.Error("resource download failed",
				zap.String("url", res.URL),
				zap.Error(err))
		} else {
			rec.Status = "ok"
			dest, _ := fsManager.SafePath(res.Path)
			if size, err := fsManager.FileSize(dest); err == nil {
				rec.Bytes = size
			}
			sum, hashErr := fsManager.HashFile(dest)
			if hashErr != nil {
				zapLogger.Warn("failed to hash downloaded file",
					zap.String("path", dest), zap.Error(hashErr))
			}
			zapLogger.Info("resource downloaded",
				zap.String("url", res.URL),
				zap.String("path", dest),
				zap.Int64("bytes", rec.Bytes),
				zap.String("sha256", sum))
		}

		if err := store.Record(rec); err != nil {
			zapLogger.Warn("failed to record fetch", zap.Error(err))
		}
	}

	zapLogger.Info("all resources processed",
		zap.Int("total", len(cfg.Resources)),
		zap.Int("failed", failed))

	if failed > 0 {
		logger.Sync()
		os.Exit(1)
	}
}
