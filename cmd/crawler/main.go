package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"github.com/flightmesh/flightmesh/internal/adapters/observability"
	redisad "github.com/flightmesh/flightmesh/internal/adapters/redis"
	"github.com/flightmesh/flightmesh/internal/app"
	"github.com/flightmesh/flightmesh/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv)
	observability.Serve()

	log.Info().
		Int("workers", cfg.RefreshWorkers).
		Dur("interval", cfg.RefreshInterval).
		Int("routes", len(shared.TopRoutes)).
		Msg("crawler starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}

	history, err := shared.BuildHistoryStore(cfg, db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build history store")
	}

	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	exec := shared.BuildExecutor(cfg)
	adapters := shared.BuildAdapters(cfg)
	svc := app.NewSearchService(cache, history, exec, adapters).
		WithPopularity(shared.BuildPopularityClassifier(shared.TopRoutes), shared.BuildTierTTLs(cfg))

	routes := make([]app.Route, len(shared.TopRoutes))
	for i, r := range shared.TopRoutes {
		r.DepartureDate = time.Now().Add(14 * 24 * time.Hour)
		routes[i] = r
	}

	sched := app.NewRefreshScheduler(svc, routes, cfg.RefreshWorkers, cfg.RefreshInterval)
	sched.Run(ctx)

	log.Info().Msg("crawler stopped")
}
