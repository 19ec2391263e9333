package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"

	"vodvault/internal/catalog"
	"vodvault/internal/chunker"
	"vodvault/internal/config"
	"vodvault/internal/dedup"
	"vodvault/internal/handlers"
	"vodvault/internal/metrics"
	"vodvault/internal/pipeline"
	"vodvault/internal/queue"
	"vodvault/internal/segmenter"
	"vodvault/internal/server"
	"vodvault/internal/stability"
	"vodvault/internal/storage"
	"vodvault/internal/watcher"
)

func main() {
	clearLeases := flag.Bool("clear-leases", false, "drop all dedup leases and exit (maintenance)")
	flag.Parse()

	cfg := config.Load()
	log := hclog.New(&hclog.LoggerOptions{
		Name:  "vodvault",
		Level: hclog.LevelFromString(cfg.LogLevel),
	})

	if err := run(cfg, log, *clearLeases); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log hclog.Logger, clearLeases bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	leases, closeLeases, err := openLeaseStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLeases()

	if clearLeases {
		n, err := leases.Clear(ctx)
		if err != nil {
			return fmt.Errorf("clear leases: %w", err)
		}
		fmt.Printf("cleared %d leases\n", n)
		return nil
	}

	m := metrics.NewRegistry()
	m.Workers.Store(int64(cfg.WorkerPoolSize))
	m.QueueCapacity.Store(int64(cfg.JobQueueCapacity))

	seg := segmenter.New(segmenter.Config{
		OutputRoot:       cfg.ConvertDir,
		ProbeTimeout:     cfg.FFprobeTimeout,
		TranscodeTimeout: cfg.FFmpegTimeout,
		DefaultFrameRate: cfg.FrameRate,
	}, cfg.MaxConcurrentTranscodes, log)

	chk := chunker.New(chunker.Config{
		Secret:     []byte(cfg.MediaSecretKey),
		OutputRoot: cfg.EncryptDir,
	}, cfg.MaxConcurrentEncryptions, log)

	cat, err := catalog.Open(cfg.CatalogDSN)
	if err != nil {
		return err
	}

	jobs := queue.NewQueue(cfg.JobQueueCapacity)
	pipe := pipeline.New(ctx, leases, jobs, seg, chk, cat, m, cfg.LeaseTTL, log)
	pool := queue.NewWorkerPool(cfg.WorkerPoolSize, jobs, pipe.Handle)
	pool.Start()
	defer pool.Stop()

	var pub watcher.Publisher
	if cfg.S3Enabled {
		s3pub, err := storage.NewS3Publisher(ctx, storage.Config{
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			BaseEndpoint: cfg.S3BaseEndpoint,
			KeyPrefix:    cfg.S3KeyPrefix,
		})
		if err != nil {
			return err
		}
		pub = s3pub
	}

	det := stability.NewDetector(cfg.StabilityGrace, cfg.StabilityInterval, cfg.StabilityMaxRetries)
	w, err := watcher.New(watcher.Config{
		UploadDir:  cfg.UploadDir,
		ConvertDir: cfg.ConvertDir,
		EncryptDir: cfg.EncryptDir,
	}, det, pipe, pub, log)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	api := handlers.NewAPI(cfg, m, log)
	srv := server.New(cfg.HTTPAddr, api.Router(), log)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// openLeaseStore connects to Redis when configured, falling back to the
// in-process store for single-node deployments. The connection is scoped
// here and closed on exit, never held in a package global.
func openLeaseStore(ctx context.Context, cfg *config.Config, log hclog.Logger) (dedup.LeaseStore, func(), error) {
	if cfg.RedisAddr == "" {
		return dedup.NewMemoryStore(), func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable, using in-process lease store", "addr", cfg.RedisAddr, "error", err)
		_ = rdb.Close()
		return dedup.NewMemoryStore(), func() {}, nil
	}
	return dedup.NewRedisStore(rdb), func() { _ = rdb.Close() }, nil
}
