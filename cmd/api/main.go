package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tripsmith/internal/adapter/repo"
	"tripsmith/internal/estimate"
	"tripsmith/internal/http/handlers"
	httpapi "tripsmith/internal/http/httpapi"
	"tripsmith/internal/infra"
	"tripsmith/internal/infra/geoip"
	"tripsmith/internal/middleware"
	"tripsmith/internal/providers/pricing"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	jobs := repo.NewJobRepository(dbpool)

	feed, err := repo.NewJobListener(cfg.DatabaseURL, jobs, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start job listener")
	}
	defer feed.Close()

	pricingClient := pricing.NewClient(cfg.PricingBaseURL, logger)
	estimator := estimate.New(pricingClient, logger, cfg.EstimateTTL)

	var countryLookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip resolver unavailable, country detection degraded")
	} else if resolver != nil {
		countryLookup = resolver.CountryCode
	}

	app := handlers.NewApp(cfg, logger, jobs, feed, estimator, countryLookup)
	router := httpapi.NewRouter(app)
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
