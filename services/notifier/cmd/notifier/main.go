package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-envconfig"

	"eventbook/pkg/bus"
	"eventbook/pkg/db"
	"eventbook/pkg/notify"
	"eventbook/services/coordinator"
	"eventbook/services/notifier"
)

type config struct {
	DBDSN   string `env:"DB_DSN,required"`
	NATSURL string `env:"NATS_URL,required"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	pool, err := db.Open(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	b, err := bus.New(cfg.NATSURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect nats")
	}
	defer b.Close()

	if err := b.EnsureStream(notify.StreamName, notify.SubjectDispatch); err != nil {
		log.Fatal().Err(err).Msg("ensure notification stream")
	}

	worker, err := notifier.NewWorker(coordinator.NewPGStore(pool), b, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("init worker")
	}

	if err := worker.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("start worker")
	}
	defer func() {
		if err := worker.Close(); err != nil {
			log.Error().Err(err).Msg("close worker")
		}
	}()

	log.Info().Msg("starting eventbook-notifier")
	<-ctx.Done()
}
