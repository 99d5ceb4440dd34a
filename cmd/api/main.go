package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"accessgate.org/internal/audit"
	"accessgate.org/internal/config"
	"accessgate.org/internal/directory"
	"accessgate.org/internal/httpapi"
	"accessgate.org/internal/iam"
	"accessgate.org/internal/iam/remote"
	"accessgate.org/internal/obs"
	"accessgate.org/internal/provision"
	"accessgate.org/internal/store/pg"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("ACCESSGATE_COMMIT"))
	log := obs.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("load config", "error", err)
	}

	// Persistence: Postgres when a DSN is configured, in-memory otherwise.
	var (
		dir     directory.Store
		auditor audit.Recorder
		probe   httpapi.ReadyProbe
		pgStore *pg.Store
	)
	if cfg.PGDSN != "" {
		pgStore, err = pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalw("open postgres", "error", err)
		}
		dir = pgStore
		auditor = pgStore
		probe = httpapi.ReadyProbe{DB: pgStore.DB()}
	} else {
		log.Infow("no DSN configured, using in-memory stores")
		dir = directory.NewMemory()
		auditor = &audit.LogRecorder{Log: log}
	}

	// Optional read-through cache for directory lookups.
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		dir = directory.NewCache(dir, rdb, cfg.CacheTTL, cfg.CachePrefix, log)
		defer rdb.Close()
	}

	// Permission service: remote client when a URL is configured, the
	// in-process fake otherwise.
	var iamClient iam.Client
	if cfg.IAMBaseURL != "" {
		iamClient, err = remote.New(cfg.IAMBaseURL, cfg.IAMTimeout)
		if err != nil {
			log.Fatalw("iam client", "error", err)
		}
	} else {
		log.Infow("no permission service URL configured, using in-process fake")
		iamClient = iam.NewMemory()
	}
	iamClient = iam.WithRetry(iamClient, iam.Backoff{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		Multiplier:  cfg.RetryMultiplier,
	}, log)

	svc := provision.NewService(dir, iamClient, auditor, log)
	api := httpapi.New(probe, version, svc, cfg.RateBurst, cfg.RatePerSec)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Infow("starting accessgate-api", "version", version, "addr", srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("listen", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Infow("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Infow("stopped")
}
