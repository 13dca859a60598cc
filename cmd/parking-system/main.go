package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"parking-system/internal/config"
	"parking-system/internal/events"
	"parking-system/internal/lock"
	"parking-system/internal/logging"
	"parking-system/internal/parking"
	"parking-system/internal/server"
	"parking-system/internal/storage/memory"
	"parking-system/internal/storage/postgres"
)

var (
	mode = flag.String("mode", "cli", "Mode to run: cli, server, or both")
	port = flag.String("port", "", "Port for HTTP server (overrides APP_PORT)")
)

func main() {
	flag.Parse()

	dotenvErr := godotenv.Load()

	cfg := config.Load()
	if *port != "" {
		cfg.Port = *port
	}
	logging.Init(cfg.IsDevelopment())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if dotenvErr != nil {
		logging.Debug(ctx).Msg("no .env file, using process environment")
	}

	telemetryProvider, err := parking.NewTelemetryProvider(ctx, cfg.OTelServiceName, cfg.OTelEndpoint)
	if err != nil {
		logging.Error(ctx).Err(err).Msg("failed to initialize telemetry")
		os.Exit(1)
	}

	service, cleanup, err := buildService(ctx, cfg, telemetryProvider)
	if err != nil {
		logging.Error(ctx).Err(err).Msg("failed to initialize parking service")
		shutdownTelemetry(telemetryProvider)
		os.Exit(1)
	}
	defer cleanup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	switch *mode {
	case "cli":
		runCLI(ctx, cancel, service, telemetryProvider, sigChan)
	case "server":
		runServer(ctx, cancel, cfg, service, sigChan)
	case "both":
		runBoth(ctx, cancel, cfg, service, telemetryProvider, sigChan)
	default:
		logging.Error(ctx).Str("mode", *mode).Msg("invalid mode, must be cli, server, or both")
		cleanup()
		shutdownTelemetry(telemetryProvider)
		os.Exit(2)
	}

	shutdownTelemetry(telemetryProvider)
}

// buildService wires the store, the exit lock and the event publisher chosen by
// configuration. The returned cleanup releases every connection it opened.
func buildService(ctx context.Context, cfg *config.Config, telemetry *parking.TelemetryProvider) (*parking.InstrumentedService, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var store parking.Store
	if cfg.UsesPostgres() {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, pool.Close)

		if err := postgres.Migrate(ctx, pool); err != nil {
			cleanup()
			return nil, func() {}, err
		}
		if err := postgres.Seed(ctx, pool, cfg.CarSpots, cfg.BikeSpots); err != nil {
			cleanup()
			return nil, func() {}, err
		}
		store = postgres.NewStore(pool)
		logging.Info(ctx).Msg("using postgres store")
	} else {
		store = memory.NewStore(cfg.CarSpots, cfg.BikeSpots)
		logging.Info(ctx).Int("car_spots", cfg.CarSpots).Int("bike_spots", cfg.BikeSpots).Msg("using in-memory store")
	}

	var opts []parking.Option
	if cfg.RedisAddr != "" {
		client := lock.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		closers = append(closers, func() { client.Close() })
		opts = append(opts, parking.WithLocker(lock.NewRedisLocker(client, time.Duration(cfg.ExitLockTTLSecs)*time.Second)))
		logging.Info(ctx).Str("addr", cfg.RedisAddr).Msg("using redis exit lock")
	}
	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		closers = append(closers, func() { publisher.Close() })
		opts = append(opts, parking.WithEventPublisher(publisher))
		logging.Info(ctx).Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing session events")
	}

	service, err := parking.NewInstrumentedService(parking.NewService(store, opts...), telemetry)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return service, cleanup, nil
}

func runCLI(ctx context.Context, cancel context.CancelFunc, service *parking.InstrumentedService, telemetryProvider *parking.TelemetryProvider, sigChan chan os.Signal) {
	go func() {
		<-sigChan
		logging.Info(ctx).Msg("shutting down")
		cancel()
	}()

	shell := parking.NewInteractiveShell(service, os.Stdin, os.Stdout, telemetryProvider)
	shell.Run(ctx)
}

func runServer(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, service *parking.InstrumentedService, sigChan chan os.Signal) {
	srv := server.NewServer(service, cfg.Port, cfg.OTelServiceName)

	go func() {
		<-sigChan
		logging.Info(ctx).Msg("received shutdown signal")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Error(ctx).Err(err).Msg("server shutdown error")
		}

		cancel()
	}()

	if err := srv.Start(); err != nil && err != http.ErrServerClosed {
		logging.Error(ctx).Err(err).Msg("server error")
	}
}

func runBoth(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, service *parking.InstrumentedService, telemetryProvider *parking.TelemetryProvider, sigChan chan os.Signal) {
	srv := server.NewServer(service, cfg.Port, cfg.OTelServiceName)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Start()
	}()

	cliDone := make(chan bool, 1)
	go func() {
		shell := parking.NewInteractiveShell(service, os.Stdin, os.Stdout, telemetryProvider)
		shell.Run(ctx)
		cliDone <- true
	}()

	go func() {
		<-sigChan
		logging.Info(ctx).Msg("received shutdown signal")
		cancel()
	}()

	select {
	case err := <-serverDone:
		if err != nil && err != http.ErrServerClosed {
			logging.Error(ctx).Err(err).Msg("server error")
		}
	case <-cliDone:
		logging.Info(ctx).Msg("CLI exited")
	case <-ctx.Done():
		logging.Info(ctx).Msg("context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx).Err(err).Msg("server shutdown error")
	}
}

func shutdownTelemetry(telemetryProvider *parking.TelemetryProvider) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	logging.Info(shutdownCtx).Msg("shutting down telemetry")
	if err := telemetryProvider.Shutdown(shutdownCtx); err != nil {
		logging.Error(shutdownCtx).Err(err).Msg("error shutting down telemetry")
	}
}
