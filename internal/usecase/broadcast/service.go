package broadcast

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"promo-bot/internal/domain"
	"promo-bot/internal/infra/metrics"
	"promo-bot/internal/promo"
)

// ErrEmptyMessage возвращается при пустом тексте рассылки.
var ErrEmptyMessage = errors.New("текст рассылки пуст")

// ErrInsecureURL возвращается, если ссылка не использует https.
var ErrInsecureURL = errors.New("ссылка должна использовать https")

// ErrTooManyButtons возвращается, если кнопок больше двух.
var ErrTooManyButtons = errors.New("допускается не более двух кнопок")

// Input — параметры рассылки из админки.
type Input struct {
	Text     string                   `json:"text"`
	ImageURL string                   `json:"image_url,omitempty"`
	Buttons  []domain.BroadcastButton `json:"buttons,omitempty"`
}

// ValidateInput проверяет рассылку до любой отправки.
func ValidateInput(in Input) error {
	if strings.TrimSpace(in.Text) == "" {
		return ErrEmptyMessage
	}
	if len(in.Buttons) > 2 {
		return ErrTooManyButtons
	}
	if in.ImageURL != "" {
		if err := requireHTTPS(in.ImageURL); err != nil {
			return err
		}
	}
	for _, b := range in.Buttons {
		if b.Label == "" || b.URL == "" {
			return fmt.Errorf("кнопка должна иметь подпись и ссылку")
		}
		if err := requireHTTPS(b.URL); err != nil {
			return err
		}
	}
	return nil
}

func requireHTTPS(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("разбор ссылки %q: %w", raw, err)
	}
	if parsed.Scheme != "https" {
		return fmt.Errorf("%w: %s", ErrInsecureURL, raw)
	}
	return nil
}

// Service обходит реестр подписчиков и рассылает сообщение каждому.
type Service struct {
	subscribers domain.SubscriberRepo
	broadcasts  domain.BroadcastRepo
	events      domain.EventRepo
	sender      domain.Sender
	log         zerolog.Logger
	sendDelay   time.Duration
	sendTimeout time.Duration
}

// NewService создаёт диспетчер рассылок.
func NewService(subscribers domain.SubscriberRepo, broadcasts domain.BroadcastRepo, events domain.EventRepo, sender domain.Sender, sendDelay, sendTimeout time.Duration, log zerolog.Logger) *Service {
	return &Service{
		subscribers: subscribers,
		broadcasts:  broadcasts,
		events:      events,
		sender:      sender,
		log:         log,
		sendDelay:   sendDelay,
		sendTimeout: sendTimeout,
	}
}

// Broadcast валидирует вход, сохраняет запись рассылки до отправки,
// обходит включённых подписчиков с паузой между отправками и в конце
// фиксирует итоговые счётчики. Неудачная доставка выключает получателя.
func (s *Service) Broadcast(ctx context.Context, in Input) (domain.BroadcastResult, error) {
	if err := ValidateInput(in); err != nil {
		return domain.BroadcastResult{}, err
	}
	record := domain.Broadcast{
		ID:        uuid.New(),
		Text:      in.Text,
		ImageURL:  in.ImageURL,
		Buttons:   in.Buttons,
		CreatedAt: time.Now().UTC(),
	}
	return s.run(ctx, record, buttonRows(in.Buttons))
}

// ErrUnknownReloadDay возвращается для дня без reload-текста.
var ErrUnknownReloadDay = errors.New("для этого дня нет reload-рассылки")

// SendReload отправляет регулярную reload-рассылку за день недели.
// Кнопки здесь callback-и бота, поэтому админская валидация не применяется.
func (s *Service) SendReload(ctx context.Context, day string) (domain.BroadcastResult, error) {
	text, ok := promo.ReloadTexts[day]
	if !ok {
		return domain.BroadcastResult{}, fmt.Errorf("%w: %s", ErrUnknownReloadDay, day)
	}
	record := domain.Broadcast{
		ID:        uuid.New(),
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	return s.run(ctx, record, promo.ReloadKeyboard())
}

func (s *Service) run(ctx context.Context, record domain.Broadcast, buttons [][]domain.OutboundButton) (domain.BroadcastResult, error) {
	// Запись создаётся до отправки: частичный провал остаётся в истории.
	if err := s.broadcasts.CreateBroadcast(ctx, record); err != nil {
		return domain.BroadcastResult{}, fmt.Errorf("сохранение рассылки: %w", err)
	}

	subs, err := s.subscribers.ListSubscribed(ctx)
	if err != nil {
		return domain.BroadcastResult{}, fmt.Errorf("список подписчиков: %w", err)
	}

	result := domain.BroadcastResult{Total: len(subs)}
	started := time.Now()
	for i, sub := range subs {
		if err := ctx.Err(); err != nil {
			break
		}
		sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
		sendErr := s.sender.Send(sendCtx, domain.OutboundMessage{
			ChatID:   sub.ChatID,
			Text:     record.Text,
			ImageURL: record.ImageURL,
			Buttons:  buttons,
		})
		cancel()

		if sendErr != nil {
			result.Failed++
			s.log.Warn().Err(sendErr).Int64("chat", sub.ChatID).Msg("доставка рассылки не удалась, подписчик выключен")
			if err := s.subscribers.Disable(ctx, sub.ChatID); err != nil {
				s.log.Error().Err(err).Int64("chat", sub.ChatID).Msg("не удалось выключить подписчика")
			}
			s.appendEvent(ctx, sub.ChatID, domain.EventBroadcastFail, record.ID)
		} else {
			result.Sent++
			s.appendEvent(ctx, sub.ChatID, domain.EventBroadcastSent, record.ID)
		}
		metrics.IncBroadcastDelivery(sendErr != nil)

		if s.sendDelay > 0 && i < len(subs)-1 {
			select {
			case <-ctx.Done():
			case <-time.After(s.sendDelay):
			}
		}
	}
	metrics.BroadcastDuration.Observe(time.Since(started).Seconds())

	if err := s.broadcasts.UpdateCounts(ctx, record.ID, result.Sent, result.Failed); err != nil {
		s.log.Error().Err(err).Str("broadcast", record.ID.String()).Msg("не удалось обновить счётчики рассылки")
	}
	return result, nil
}

func (s *Service) appendEvent(ctx context.Context, chatID int64, kind domain.EventKind, broadcastID uuid.UUID) {
	event := domain.Event{
		ChatID:     chatID,
		Kind:       kind,
		Metadata:   map[string]string{"broadcast_id": broadcastID.String()},
		OccurredAt: time.Now().UTC(),
	}
	if err := s.events.Append(ctx, event); err != nil {
		s.log.Warn().Err(err).Int64("chat", chatID).Msg("не удалось записать событие рассылки")
	}
}

func buttonRows(buttons []domain.BroadcastButton) [][]domain.OutboundButton {
	if len(buttons) == 0 {
		return nil
	}
	rows := make([][]domain.OutboundButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []domain.OutboundButton{{Label: b.Label, URL: b.URL}})
	}
	return rows
}
