package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"promo-bot/internal/domain"
	"promo-bot/internal/infra/metrics"
	"promo-bot/internal/promo"
)

// Service управляет отложенными напоминаниями: store-backed вариант,
// переживающий рестарт. Задержка доставки не превышает интервал свипа.
type Service struct {
	reminders   domain.ReminderRepo
	subscribers domain.SubscriberRepo
	events      domain.EventRepo
	sender      domain.Sender
	log         zerolog.Logger
	sendTimeout time.Duration
	supportURL  string
}

// NewService создаёт сервис напоминаний.
func NewService(reminders domain.ReminderRepo, subscribers domain.SubscriberRepo, events domain.EventRepo, sender domain.Sender, sendTimeout time.Duration, supportURL string, log zerolog.Logger) *Service {
	return &Service{
		reminders:   reminders,
		subscribers: subscribers,
		events:      events,
		sender:      sender,
		log:         log,
		sendTimeout: sendTimeout,
		supportURL:  supportURL,
	}
}

// Schedule отменяет прежние pending-напоминания пары (чат, тип)
// и создаёт новое со сроком now + delay.
func (s *Service) Schedule(ctx context.Context, chatID int64, kind domain.ReminderKind, delay time.Duration, imageURL string) error {
	canceled, err := s.reminders.CancelPending(ctx, chatID, kind)
	if err != nil {
		return fmt.Errorf("отмена прежних напоминаний: %w", err)
	}
	if canceled > 0 {
		metrics.IncReminderOutcome(string(domain.ReminderCanceled))
	}
	_, err = s.reminders.Create(ctx, domain.Reminder{
		ChatID:   chatID,
		Kind:     kind,
		DueAt:    time.Now().UTC().Add(delay),
		ImageURL: imageURL,
	})
	if err != nil {
		return fmt.Errorf("создание напоминания: %w", err)
	}
	metrics.RemindersScheduled.Inc()
	return nil
}

// Cancel снимает pending-напоминания пары (чат, тип). Нет pending — no-op.
// Вызывается синхронно из обработчика конверсии до его собственных эффектов.
func (s *Service) Cancel(ctx context.Context, chatID int64, kind domain.ReminderKind) error {
	canceled, err := s.reminders.CancelPending(ctx, chatID, kind)
	if err != nil {
		return fmt.Errorf("отмена напоминаний: %w", err)
	}
	if canceled > 0 {
		metrics.IncReminderOutcome(string(domain.ReminderCanceled))
	}
	return nil
}

// ProcessDue обрабатывает просроченные напоминания, не более batch за проход.
// Перед отправкой перепроверяет по журналу, не было ли конверсии после
// создания напоминания: закрывает гонку между отменой и срабатыванием.
func (s *Service) ProcessDue(ctx context.Context, now time.Time, batch int) error {
	due, err := s.reminders.ListDue(ctx, now, batch)
	if err != nil {
		return fmt.Errorf("выборка просроченных напоминаний: %w", err)
	}
	for _, r := range due {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.processOne(ctx, r)
	}
	return nil
}

func (s *Service) processOne(ctx context.Context, r domain.Reminder) {
	converted, err := s.events.HasEventSince(ctx, r.ChatID, domain.EventPlayClick, r.CreatedAt)
	if err != nil {
		// Оставляем pending: следующий свип заберёт его снова.
		s.log.Error().Err(err).Int64("chat", r.ChatID).Msg("не удалось проверить конверсию")
		return
	}
	if converted {
		if ok, err := s.reminders.MarkStatus(ctx, r.ID, domain.ReminderCanceled); err != nil {
			s.log.Error().Err(err).Int64("reminder", r.ID).Msg("не удалось отменить напоминание")
		} else if ok {
			metrics.IncReminderOutcome(string(domain.ReminderCanceled))
		}
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	err = s.sender.Send(sendCtx, domain.OutboundMessage{
		ChatID:   r.ChatID,
		Text:     promo.FollowupCaption,
		ImageURL: r.ImageURL,
		Buttons:  promo.PlayKeyboard(s.supportURL),
	})
	cancel()

	if err != nil {
		s.log.Warn().Err(err).Int64("chat", r.ChatID).Msg("доставка фоллоу-апа не удалась, подписчик выключен")
		if _, markErr := s.reminders.MarkStatus(ctx, r.ID, domain.ReminderFailed); markErr != nil {
			s.log.Error().Err(markErr).Int64("reminder", r.ID).Msg("не удалось пометить напоминание failed")
		}
		if disableErr := s.subscribers.Disable(ctx, r.ChatID); disableErr != nil {
			s.log.Error().Err(disableErr).Int64("chat", r.ChatID).Msg("не удалось выключить подписчика")
		}
		s.appendEvent(ctx, r.ChatID, domain.EventFollowupFail, err.Error())
		metrics.IncReminderOutcome(string(domain.ReminderFailed))
		return
	}

	ok, markErr := s.reminders.MarkStatus(ctx, r.ID, domain.ReminderSent)
	if markErr != nil {
		s.log.Error().Err(markErr).Int64("reminder", r.ID).Msg("не удалось пометить напоминание sent")
	} else if !ok {
		s.log.Warn().Int64("reminder", r.ID).Msg("напоминание уже в терминальном статусе")
	}
	s.appendEvent(ctx, r.ChatID, domain.EventFollowupSent, "")
	metrics.IncReminderOutcome(string(domain.ReminderSent))
}

func (s *Service) appendEvent(ctx context.Context, chatID int64, kind domain.EventKind, detail string) {
	var metadata map[string]string
	if detail != "" {
		metadata = map[string]string{"error": detail}
	}
	event := domain.Event{ChatID: chatID, Kind: kind, Metadata: metadata, OccurredAt: time.Now().UTC()}
	if err := s.events.Append(ctx, event); err != nil {
		s.log.Warn().Err(err).Int64("chat", chatID).Msg("не удалось записать событие напоминания")
	}
}
