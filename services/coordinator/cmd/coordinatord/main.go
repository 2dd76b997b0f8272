package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"eventbook/pkg/bus"
	"eventbook/pkg/db"
	"eventbook/pkg/notify"
	"eventbook/pkg/telemetry"
	"eventbook/services/coordinator"
)

const serviceName = "eventbook-coordinator"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := coordinator.LoadConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	shutdownTelemetry, requestLogger, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("init telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	pool, err := db.Open(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	store := coordinator.NewPGStore(pool)

	var publisher notify.Publisher
	if cfg.NATSURL != "" {
		b, err := bus.New(cfg.NATSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect nats")
		}
		defer b.Close()

		if err := b.EnsureStream(notify.StreamName, notify.SubjectDispatch); err != nil {
			log.Fatal().Err(err).Msg("ensure notification stream")
		}
		publisher = b
	} else {
		log.Warn().Msg("NATS_URL not set, delivering notifications in-process")
	}

	templates, err := loadTemplates(cfg.NotifyTemplatesPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load notification templates")
	}

	dispatcher, err := notify.NewDispatcher(notify.Options{
		Publisher:   publisher,
		Sink:        coordinator.MailboxSink(store),
		MaxAttempts: cfg.DispatchMaxAttempts,
		Backoff:     cfg.DispatchBackoff,
		Logger:      log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init dispatcher")
	}

	engine, err := coordinator.NewEngine(store, dispatcher, templates, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("init engine")
	}

	resolver := coordinator.NewResolver([]byte(cfg.JWTSigningKey))

	api, err := coordinator.New(engine, store, resolver, log.Logger, cfg.TokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("init api")
	}

	router, err := api.Routes(coordinator.RouterOptions{
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimit:       cfg.RateLimit,
		RateLimitWindow: cfg.RateLimitWindow,
		Telemetry:       requestLogger,
		Ready: func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return db.Ping(pingCtx, pool)
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build router")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("starting " + serviceName)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown server")
	}
}

func loadTemplates(path string) (*notify.Catalog, error) {
	if path == "" {
		return notify.DefaultCatalog()
	}
	return notify.LoadCatalog(path)
}
