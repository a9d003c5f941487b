package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"promo-bot/internal/adapters/admin"
	"promo-bot/internal/adapters/repo"
	"promo-bot/internal/domain"
	"promo-bot/internal/infra/config"
	"promo-bot/internal/infra/db"
	httpinfra "promo-bot/internal/infra/http"
	"promo-bot/internal/infra/log"
	"promo-bot/internal/infra/metrics"
	"promo-bot/internal/infra/queue"
	"promo-bot/internal/usecase/stats"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)
	statsUC := stats.NewService(repoAdapter)

	jobs, closeQueue, err := buildQueue(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось подключить очередь")
	}
	defer closeQueue()

	adminHandler := admin.NewHandler(logger, statsUC, repoAdapter, jobs)

	srv := httpinfra.NewServer(logger)
	srv.Router.Route("/admin", func(r chi.Router) {
		r.Use(httpinfra.AdminAuthMiddleware(cfg.AdminSecret))
		adminHandler.Routes(r)
	})

	go func() {
		if err := srv.Start(":" + strconv.Itoa(cfg.Port)); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("api: HTTP сервер остановлен")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Info().Msg("api: остановка")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

func buildQueue(cfg config.AppConfig) (domain.BroadcastQueue, func(), error) {
	if cfg.AMQPURL != "" {
		q, err := queue.NewRabbitBroadcastQueue(cfg.AMQPURL, cfg.Queues.Broadcast)
		if err != nil {
			return nil, nil, err
		}
		return q, func() { _ = q.Close() }, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return queue.NewRedisBroadcastQueue(client, cfg.Queues.Broadcast), func() { _ = client.Close() }, nil
}
