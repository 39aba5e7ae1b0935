package main

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	aggapi "github.com/qiniu/dcalerts/internal/aggregator/api"
	"github.com/qiniu/dcalerts/internal/aggregator/database"
	"github.com/qiniu/dcalerts/internal/aggregator/metrics"
	"github.com/qiniu/dcalerts/internal/aggregator/report"
	"github.com/qiniu/dcalerts/internal/aggregator/service"
	"github.com/qiniu/dcalerts/internal/aggregator/source"
	"github.com/qiniu/dcalerts/internal/config"
	"github.com/qiniu/dcalerts/internal/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Info().Msg("Starting dcalerts server")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if len(cfg.Aggregator.Sources) == 0 {
		log.Warn().Msg("no sources configured; cycles will produce empty views")
	}
	var missing []string
	for _, src := range cfg.Aggregator.Sources {
		if src.Token == "" && src.User == "" {
			missing = append(missing, src.Name)
		}
	}
	if len(missing) > 0 {
		log.Warn().Strs("sources", missing).Msg("no token or user set")
	}

	// failing to acquire persistence at startup is the one unrecoverable condition
	db, err := database.New(cfg.Database.GetDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open snapshot database")
	}
	defer db.Close()

	repo := database.NewSnapshotRepo(db)
	if err := repo.Init(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize snapshot schema")
	}

	loc, err := time.LoadLocation(cfg.Aggregator.LocalTimezone)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load local timezone")
	}

	reg := prometheus.NewRegistry()
	met := metrics.New(reg)

	client := source.NewClient(&cfg.Aggregator)
	viewCache := service.NewViewCache(
		service.NewRedisClientFromConfig(&cfg.Redis),
		2*cfg.Aggregator.GetPollInterval(),
	)
	agg := service.New(cfg, client, repo, nil).
		WithMetrics(met).
		WithViewCache(viewCache)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go agg.Start(ctx)

	builder := report.NewBuilder(repo, loc)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID)
	aggapi.NewApi(router, agg, builder, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	log.Info().Msgf("Starting server on %s", cfg.Server.BindAddr)
	if err := router.Run(cfg.Server.BindAddr); err != nil {
		log.Fatal().Err(err).Msg("start dcalerts server failed.")
	}
	log.Info().Msg("dcalerts server exit...")
}
