package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"shiptrack/internal/app"
	"shiptrack/internal/config"
	"shiptrack/internal/handler"
	"shiptrack/internal/postgres"
	"shiptrack/internal/repo"
	"shiptrack/internal/service"
	"shiptrack/pkg/cache"
	"shiptrack/pkg/trm"

	"github.com/joho/godotenv"
)

func main() {
	conf := config.New()
	logger := newLogger(conf.Env)
	panicIfErr("invalid config", conf.Validate())

	db, err := postgres.New(conf.Postgres)
	panicIfErr("failed to connect to db", err)
	defer db.Close()
	logger.Info("postgres connected")

	orderRepo := repo.NewOrderRepo(db)
	shipmentRepo := repo.NewShipmentRepo(db)
	sequences := repo.NewSequences(db)
	txManager := trm.NewManager(db, logger)
	lru := cache.NewLRUCache(conf.Cache.Capacity, conf.Cache.TTL)

	trackingService := service.NewTrackingService(logger, txManager, orderRepo, shipmentRepo, sequences, lru)

	httpHandler := handler.NewHTTPHandler(logger, trackingService)
	kafkaHandler := handler.NewKafkaHandler(logger, conf.Kafka, trackingService)

	app := app.New(logger, conf)

	app.SetHTTPHandlers(httpHandler)
	app.SetConsumers(kafkaHandler)
	app.SetStarters(lru, cacheWarmUpAdapter{svc: trackingService, count: conf.Cache.WarmUp})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	panicIfErr("failed to start app", app.Start(ctx))
	<-ctx.Done()
	panicIfErr("failed to stop app", app.Stop())
}

func init() {
	godotenv.Load()
}

func newLogger(env string) *slog.Logger {
	switch env {
	case "production":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

func panicIfErr(prefix string, err error) {
	if err != nil {
		panic(prefix + ": " + err.Error())
	}
}

type warmUpper interface {
	WarmUpCache(ctx context.Context, count int) error
}

type cacheWarmUpAdapter struct {
	svc   warmUpper
	count int
}

func (a cacheWarmUpAdapter) Start(ctx context.Context) error {
	return a.svc.WarmUpCache(ctx, a.count)
}
