package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"genbroker/internal/adapter/repo"
	"genbroker/internal/dispatch"
	"genbroker/internal/events"
	"genbroker/internal/http/handlers"
	"genbroker/internal/http/httpapi"
	"genbroker/internal/infra"
	"genbroker/internal/queue"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if err := infra.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	configuredModels, err := infra.LoadConfiguredModels(cfg.ConfiguredModelsPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configured models")
	}

	objectStore, err := infra.NewObjectStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect object store")
	}

	geo, err := infra.NewGeoIP(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer geo.Close()

	var emitter events.Emitter
	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer publisher.Close()
		emitter = publisher
	}

	jobs := repo.NewJobRepository(dbpool)
	dispatcher := dispatch.NewDispatcher(dispatch.NewHTTPAgentClient(dispatch.AgentOptions{
		BaseURL: cfg.AgentBaseURL,
		Token:   cfg.AgentToken,
		Timeout: cfg.AgentTimeout,
	}), jobs, emitter, logger)

	service := queue.NewService(queue.Deps{
		Jobs:       jobs,
		Artifacts:  repo.NewArtifactRepository(dbpool),
		Queue:      repo.NewQueueRepository(dbpool),
		Blocks:     repo.NewBlockRepository(dbpool),
		Catalog:    repo.NewModelCatalog(dbpool),
		Dispatcher: dispatcher,
		Emitter:    emitter,
		Logger:     logger,
	}, queue.Config{
		OutputBucket:         cfg.OutputBucket,
		OutputPrefixTemplate: cfg.OutputPrefixTemplate,
		ConfiguredModels:     configuredModels,
	})

	app := handlers.NewApp(service, objectStore, dbpool, logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:       cfg.JWTSecret,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Logger:          logger,
		GeoIP:           geo,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
