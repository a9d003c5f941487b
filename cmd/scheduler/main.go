package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"promo-bot/internal/adapters/repo"
	"promo-bot/internal/adapters/telegram"
	"promo-bot/internal/domain"
	"promo-bot/internal/infra/cache"
	"promo-bot/internal/infra/config"
	"promo-bot/internal/infra/db"
	"promo-bot/internal/infra/log"
	"promo-bot/internal/infra/metrics"
	"promo-bot/internal/infra/queue"
	"promo-bot/internal/usecase/broadcast"
	"promo-bot/internal/usecase/reminder"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: нет подключения к БД")
	}
	defer pool.Close()

	botAPI, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.Token, tgbotapi.APIEndpoint, &http.Client{Timeout: cfg.Broadcast.SendTimeout})
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: не удалось создать бота")
	}

	repoAdapter := repo.NewPostgres(pool)
	sender := telegram.NewSender(botAPI, logger)
	reminderUC := reminder.NewService(repoAdapter, repoAdapter, repoAdapter, sender, cfg.Broadcast.SendTimeout, cfg.SupportURL, logger)
	broadcastUC := broadcast.NewService(repoAdapter, repoAdapter, repoAdapter, sender, cfg.Broadcast.SendDelay, cfg.Broadcast.SendTimeout, logger)

	jobs, closeQueue, err := buildQueue(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: не удалось подключить очередь")
	}
	defer closeQueue()

	var once domain.Cache
	if cfg.RedisAddr != "" {
		once = cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}

	go consumeJobs(ctx, logger, jobs, broadcastUC)

	if cfg.Reminders.Enabled {
		go sweepReminders(ctx, logger, reminderUC, cfg.Reminders.SweepInterval, cfg.Reminders.SweepBatch)
		startReloadCron(ctx, logger, broadcastUC, once, cfg.Broadcast.Timezone)
	} else {
		logger.Info().Msg("scheduler: напоминания и регулярные рассылки выключены")
	}

	metrics.StartServer(ctx, logger, ":"+strconv.Itoa(cfg.Port))
	<-ctx.Done()
	logger.Info().Msg("scheduler: остановка")
}

// sweepReminders раз в интервал обрабатывает просроченные напоминания.
func sweepReminders(ctx context.Context, logger zerolog.Logger, uc *reminder.Service, interval time.Duration, batch int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := uc.ProcessDue(ctx, time.Now().UTC(), batch); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("scheduler: свип напоминаний не удался")
			}
		}
	}
}

// startReloadCron вешает календарные reload-рассылки: пн/ср/пт в 10:00.
func startReloadCron(ctx context.Context, logger zerolog.Logger, uc *broadcast.Service, once domain.Cache, timezone string) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		logger.Fatal().Err(err).Str("tz", timezone).Msg("scheduler: некорректный часовой пояс")
	}
	c := cron.New(cron.WithLocation(loc))
	schedule := map[string]string{
		"0 10 * * 1": "monday",
		"0 10 * * 3": "wednesday",
		"0 10 * * 5": "friday",
	}
	for spec, day := range schedule {
		day := day
		if _, err := c.AddFunc(spec, func() { sendReload(ctx, logger, uc, once, day) }); err != nil {
			logger.Fatal().Err(err).Str("spec", spec).Msg("scheduler: не удалось добавить cron-задачу")
		}
	}
	c.Start()
	go func() {
		<-ctx.Done()
		c.Stop()
	}()
}

func sendReload(ctx context.Context, logger zerolog.Logger, uc *broadcast.Service, once domain.Cache, day string) {
	run := func() error {
		result, err := uc.SendReload(ctx, day)
		if err != nil {
			return err
		}
		logger.Info().Str("day", day).Int("sent", result.Sent).Int("failed", result.Failed).Msg("scheduler: reload-рассылка завершена")
		return nil
	}
	if once == nil {
		if err := run(); err != nil {
			logger.Error().Err(err).Str("day", day).Msg("scheduler: reload-рассылка не удалась")
		}
		return
	}
	// Замок на сутки: вторая реплика планировщика не продублирует рассылку.
	key := "reload:" + day + ":" + time.Now().UTC().Format("2006-01-02")
	if err := once.Once(key, 20*time.Hour, run); err != nil {
		logger.Error().Err(err).Str("day", day).Msg("scheduler: reload-рассылка не удалась")
	}
}

// consumeJobs читает задачи рассылки из очереди и исполняет их.
func consumeJobs(ctx context.Context, logger zerolog.Logger, jobs domain.BroadcastQueue, uc *broadcast.Service) {
	for {
		job, err := jobs.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error().Err(err).Msg("scheduler: ошибка чтения очереди")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		result, err := uc.Broadcast(ctx, broadcast.Input{Text: job.Text, ImageURL: job.ImageURL, Buttons: job.Buttons})
		if err != nil {
			logger.Error().Err(err).Str("job", job.ID.String()).Msg("scheduler: рассылка не удалась")
			continue
		}
		logger.Info().Str("job", job.ID.String()).Int("sent", result.Sent).Int("failed", result.Failed).Int("total", result.Total).Msg("scheduler: рассылка завершена")
	}
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
