package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"

	"promo-bot/internal/adapters/bot"
	"promo-bot/internal/adapters/repo"
	"promo-bot/internal/adapters/telegram"
	"promo-bot/internal/infra/config"
	"promo-bot/internal/infra/db"
	httpinfra "promo-bot/internal/infra/http"
	"promo-bot/internal/infra/log"
	"promo-bot/internal/infra/metrics"
	"promo-bot/internal/usecase/reminder"
	"promo-bot/internal/usecase/track"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	// Без публичного URL вебхук не зарегистрировать: стартовать бессмысленно.
	if cfg.Telegram.PublicURL == "" {
		logger.Fatal().Msg("gateway: PUBLIC_URL не задан")
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("gateway: нет подключения к БД")
	}
	defer pool.Close()

	if err := repo.RunMigrations(cfg.PGDSN); err != nil {
		logger.Fatal().Err(err).Msg("gateway: не удалось применить миграции")
	}

	botAPI, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.Token, tgbotapi.APIEndpoint, &http.Client{Timeout: cfg.Broadcast.SendTimeout})
	if err != nil {
		logger.Fatal().Err(err).Msg("gateway: не удалось создать бота")
	}

	repoAdapter := repo.NewPostgres(pool)
	sender := telegram.NewSender(botAPI, logger)
	tracker := track.NewService(repoAdapter, logger)
	reminderUC := reminder.NewService(repoAdapter, repoAdapter, repoAdapter, sender, cfg.Broadcast.SendTimeout, cfg.SupportURL, logger)

	h := bot.NewHandler(botAPI, sender, logger, repoAdapter, reminderUC, tracker, bot.Config{
		CasinoURL:        cfg.CasinoURL,
		SupportURL:       cfg.SupportURL,
		RemindersEnabled: cfg.Reminders.Enabled,
		FollowupDelay:    cfg.Reminders.Delay,
		FollowupImage:    cfg.Reminders.ImageURL,
	})

	webhookURL := strings.TrimRight(cfg.Telegram.PublicURL, "/") + cfg.Telegram.WebhookPath
	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("gateway: некорректный URL вебхука")
	}
	if _, err := botAPI.Request(wh); err != nil {
		logger.Fatal().Err(err).Str("url", webhookURL).Msg("gateway: не удалось зарегистрировать вебхук")
	}
	logger.Info().Str("url", webhookURL).Msg("gateway: вебхук зарегистрирован")

	srv := httpinfra.NewServer(logger)
	srv.Router.Post(cfg.Telegram.WebhookPath, func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := srv.Start(":" + strconv.Itoa(cfg.Port)); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("gateway: HTTP сервер остановлен")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Info().Msg("gateway: остановка")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
