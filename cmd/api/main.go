package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "github.com/flightmesh/flightmesh/internal/adapters/httpserver"
	"github.com/flightmesh/flightmesh/internal/adapters/observability"
	redisad "github.com/flightmesh/flightmesh/internal/adapters/redis"
	"github.com/flightmesh/flightmesh/internal/app"
	"github.com/flightmesh/flightmesh/internal/shared"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	history, err := shared.BuildHistoryStore(cfg, db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build history store")
	}

	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	exec := shared.BuildExecutor(cfg)
	adapters := shared.BuildAdapters(cfg)
	svc := app.NewSearchService(cache, history, exec, adapters).
		WithPopularity(shared.BuildPopularityClassifier(shared.TopRoutes), shared.BuildTierTTLs(cfg))

	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{S: svc})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
