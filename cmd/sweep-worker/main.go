package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicore/peds-scheduling/internal/config"
	"github.com/clinicore/peds-scheduling/internal/db"
	"github.com/clinicore/peds-scheduling/internal/logging"
	"github.com/clinicore/peds-scheduling/internal/notify"
	redisclient "github.com/clinicore/peds-scheduling/internal/redis"
	"github.com/clinicore/peds-scheduling/internal/scheduling"
)

// sweep-worker cancels pending appointments whose scheduled date has
// passed without staff approval, so their slots stop counting as taken.
func main() {
	log := logging.New("dev", "sweep-worker")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	log = logging.New(cfg.Env, "sweep-worker")
	log.Info().Str("env", cfg.Env).Dur("interval", cfg.SweepInterval).Msg("starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	repo := scheduling.NewPgRepository(pgPool)
	locker := redisclient.NewSlotLocker(rdb, cfg.LockTTL)
	notifier := notify.NewRedisNotifier(rdb, log)
	svc := scheduling.NewService(repo, locker, notifier, log)

	runOnce(rootCtx, svc, log)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping sweep worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, log)
		}
	}
}

func runOnce(ctx context.Context, svc *scheduling.Service, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	swept, err := svc.SweepStalePending(runCtx, scheduling.DateOf(time.Now()))
	if err != nil {
		log.Error().Err(err).Msg("sweep run error")
		return
	}
	log.Info().Int("swept", swept).Dur("took", time.Since(start)).Msg("sweep run complete")
}
