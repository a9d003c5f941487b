package stats

import (
	"context"
	"fmt"
	"time"

	"promo-bot/internal/domain"
)

// DailyKinds — фиксированный набор видов для разбивки по дням.
var DailyKinds = []domain.EventKind{
	domain.EventSessionStart,
	domain.EventPlayClick,
	domain.EventPromoView,
	domain.EventFollowupSent,
	domain.EventBroadcastSent,
}

// Service строит агрегаты журнала для админки. Только чтение.
type Service struct {
	events domain.EventRepo
}

// NewService создаёт сервис статистики.
func NewService(events domain.EventRepo) *Service {
	return &Service{events: events}
}

// Report агрегирует журнал за окно lookback: уникальные чаты,
// итоги по видам и, по запросу, разбивка по дням.
func (s *Service) Report(ctx context.Context, lookback time.Duration, withDaily bool) (domain.StatsReport, error) {
	since := time.Now().UTC().Add(-lookback)

	active, err := s.events.CountDistinctChats(ctx, since)
	if err != nil {
		return domain.StatsReport{}, fmt.Errorf("подсчёт активных чатов: %w", err)
	}
	totals, err := s.events.CountByKind(ctx, since)
	if err != nil {
		return domain.StatsReport{}, fmt.Errorf("подсчёт по видам: %w", err)
	}

	report := domain.StatsReport{Since: since, ActiveChats: active, Totals: totals}
	if withDaily {
		daily, err := s.events.CountDailyByKind(ctx, since, DailyKinds)
		if err != nil {
			return domain.StatsReport{}, fmt.Errorf("разбивка по дням: %w", err)
		}
		report.Daily = daily
	}
	return report, nil
}
