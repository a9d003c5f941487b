package bot

import (
	"context"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"promo-bot/internal/domain"
	"promo-bot/internal/infra/metrics"
	"promo-bot/internal/promo"
	"promo-bot/internal/usecase/reminder"
	"promo-bot/internal/usecase/track"
)

// Config — параметры обработчика.
type Config struct {
	CasinoURL        string
	SupportURL       string
	RemindersEnabled bool
	FollowupDelay    time.Duration
	FollowupImage    string
	PromoSendDelay   time.Duration
}

// Handler обслуживает вебхук бота.
type Handler struct {
	bot         *tgbotapi.BotAPI
	sender      domain.Sender
	log         zerolog.Logger
	subscribers domain.SubscriberRepo
	reminderUC  *reminder.Service
	tracker     *track.Service
	cfg         Config
}

// NewHandler создаёт обработчик.
func NewHandler(botAPI *tgbotapi.BotAPI, sender domain.Sender, log zerolog.Logger, subscribers domain.SubscriberRepo, reminderUC *reminder.Service, tracker *track.Service, cfg Config) *Handler {
	if cfg.PromoSendDelay <= 0 {
		cfg.PromoSendDelay = 250 * time.Millisecond
	}
	return &Handler{
		bot:         botAPI,
		sender:      sender,
		log:         log,
		subscribers: subscribers,
		reminderUC:  reminderUC,
		tracker:     tracker,
		cfg:         cfg,
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		h.handleMessage(ctx, upd.Message)
	} else if upd.CallbackQuery != nil {
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	chatID := msg.Chat.ID
	switch {
	case strings.HasPrefix(text, "/start"):
		h.handleStart(ctx, chatID)
	case strings.HasPrefix(text, "/promos"):
		h.sendPromos(ctx, chatID)
	case strings.HasPrefix(text, "/play"):
		// /play считается конверсией.
		h.markConverted(ctx, chatID)
		h.sendCasinoLink(ctx, chatID, "<b>▶️ Play Now</b>\nTap below to open 8Spin 👇")
	case strings.HasPrefix(text, "/placeorder"):
		// /placeorder тоже считается конверсией.
		h.markConverted(ctx, chatID)
		h.sendCasinoLink(ctx, chatID, "<b>🎁 Offer unlocked</b>\nOpen 8Spin to claim it 👇")
	case strings.HasPrefix(text, "/support"):
		h.tracker.Track(ctx, chatID, domain.EventSupportOpen, nil)
		h.reply(ctx, chatID, "<b>Support</b> 👇", [][]domain.OutboundButton{
			{{Label: "Contact support", URL: h.cfg.SupportURL}},
		})
	default:
		h.reply(ctx, chatID, "Welcome to 8Spin 🤝\nChoose an option:", promo.MainMenu(h.cfg.SupportURL))
	}
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	switch cb.Data {
	case promo.CallbackPromos:
		h.answerCallback(cb.ID, "")
		h.sendPromos(ctx, chatID)
	case promo.CallbackPlayNow:
		h.answerCallback(cb.ID, "✅ Let's go")
		h.markConverted(ctx, chatID)
		h.sendCasinoLink(ctx, chatID, "<b>▶️ Play Now</b>\nOpen 8Spin 👇")
	default:
		h.answerCallback(cb.ID, "")
	}
}

func (h *Handler) handleStart(ctx context.Context, chatID int64) {
	if _, err := h.subscribers.Upsert(ctx, chatID); err != nil {
		// Трекинг и подписка не должны ломать приветствие.
		h.log.Warn().Err(err).Int64("chat", chatID).Msg("не удалось сохранить подписчика")
	}
	h.tracker.Track(ctx, chatID, domain.EventSessionStart, nil)
	if h.cfg.RemindersEnabled {
		if err := h.reminderUC.Schedule(ctx, chatID, domain.ReminderFollowup, h.cfg.FollowupDelay, h.cfg.FollowupImage); err != nil {
			h.log.Warn().Err(err).Int64("chat", chatID).Msg("не удалось запланировать фоллоу-ап")
		}
	}
	h.reply(ctx, chatID, "Welcome to 8Spin 🤝\nChoose an option:", promo.MainMenu(h.cfg.SupportURL))
}

// markConverted снимает фоллоу-ап до любых собственных эффектов обработчика,
// чтобы напоминание не сработало после конверсии.
func (h *Handler) markConverted(ctx context.Context, chatID int64) {
	if err := h.reminderUC.Cancel(ctx, chatID, domain.ReminderFollowup); err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось отменить фоллоу-ап")
	}
	if err := h.subscribers.Touch(ctx, chatID); err != nil {
		h.log.Warn().Err(err).Int64("chat", chatID).Msg("не удалось обновить last_seen")
	}
	h.tracker.Track(ctx, chatID, domain.EventPlayClick, nil)
}

func (h *Handler) sendPromos(ctx context.Context, chatID int64) {
	if err := h.subscribers.Touch(ctx, chatID); err != nil {
		h.log.Warn().Err(err).Int64("chat", chatID).Msg("не удалось обновить last_seen")
	}
	h.tracker.Track(ctx, chatID, domain.EventPromoView, nil)

	h.reply(ctx, chatID, "<b>🎁 Current promotions</b>\nPick one below 👇", promo.PlayKeyboard(h.cfg.SupportURL))
	for _, card := range promo.Cards {
		err := h.sender.Send(ctx, domain.OutboundMessage{
			ChatID:   chatID,
			Text:     card.Caption + "\n\n<b>Ready?</b> Tap <b>Play Now</b> 👇",
			ImageURL: card.Image,
			Buttons:  promo.PlayKeyboard(h.cfg.SupportURL),
		})
		if err != nil {
			h.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось отправить промо-карточку")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(h.cfg.PromoSendDelay):
		}
	}
}

func (h *Handler) sendCasinoLink(ctx context.Context, chatID int64, intro string) {
	h.reply(ctx, chatID, intro, promo.CasinoLinkKeyboard(h.cfg.CasinoURL))
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string, buttons [][]domain.OutboundButton) {
	err := h.sender.Send(ctx, domain.OutboundMessage{ChatID: chatID, Text: text, Buttons: buttons})
	if err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось отправить сообщение")
	}
}

func (h *Handler) answerCallback(callbackID, text string) {
	start := time.Now()
	_, err := h.bot.Request(tgbotapi.NewCallback(callbackID, text))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", start, err)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось ответить на callback")
	}
}
