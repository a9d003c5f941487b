package telegram

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"promo-bot/internal/domain"
	"promo-bot/internal/infra/metrics"
)

// Sender отправляет сообщения через Bot API.
// Таймаут на один запрос задаётся HTTP-клиентом, с которым создан botAPI.
type Sender struct {
	bot *tgbotapi.BotAPI
	log zerolog.Logger
}

var _ domain.Sender = (*Sender)(nil)

// NewSender создаёт адаптер отправки.
func NewSender(bot *tgbotapi.BotAPI, log zerolog.Logger) *Sender {
	return &Sender{bot: bot, log: log}
}

// Send отправляет сообщение либо фото с подписью, если задан ImageURL.
func (s *Sender) Send(ctx context.Context, msg domain.OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	markup := buildKeyboard(msg.Buttons)
	if msg.ImageURL != "" {
		photo := tgbotapi.NewPhoto(msg.ChatID, tgbotapi.FileURL(msg.ImageURL))
		photo.Caption = TruncateCaption(msg.Text)
		photo.ParseMode = tgbotapi.ModeHTML
		if markup != nil {
			photo.ReplyMarkup = markup
		}
		start := time.Now()
		_, err := s.bot.Send(photo)
		metrics.ObserveNetworkRequest("telegram_bot", "send_photo", start, err)
		if err != nil {
			metrics.BotSendErrors.Inc()
		}
		return err
	}

	for i, part := range SplitMessage(msg.Text) {
		m := tgbotapi.NewMessage(msg.ChatID, part)
		m.ParseMode = tgbotapi.ModeHTML
		if i == 0 && markup != nil {
			m.ReplyMarkup = markup
		}
		start := time.Now()
		_, err := s.bot.Send(m)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", start, err)
		if err != nil {
			metrics.BotSendErrors.Inc()
			return err
		}
	}
	return nil
}

func buildKeyboard(rows [][]domain.OutboundButton) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Label, b.URL))
				continue
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Callback))
		}
		keyboard = append(keyboard, buttons)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	return &markup
}
