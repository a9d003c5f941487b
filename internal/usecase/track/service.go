package track

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"promo-bot/internal/domain"
)

// Service пишет журнал действий лучшим усилием: недоступное хранилище
// не должно блокировать ответ пользователю.
type Service struct {
	events domain.EventRepo
	log    zerolog.Logger
}

// NewService создаёт сервис трекинга.
func NewService(events domain.EventRepo, log zerolog.Logger) *Service {
	return &Service{events: events, log: log}
}

// Track дописывает событие в журнал. Ошибка записи логируется и глотается.
func (s *Service) Track(ctx context.Context, chatID int64, kind domain.EventKind, metadata map[string]string) {
	event := domain.Event{
		ChatID:     chatID,
		Kind:       kind,
		Metadata:   metadata,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.events.Append(ctx, event); err != nil {
		s.log.Warn().Err(err).Int64("chat", chatID).Str("kind", string(kind)).Msg("не удалось записать событие")
	}
}
