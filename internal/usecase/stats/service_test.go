package stats

import (
	"context"
	"testing"
	"time"

	"promo-bot/internal/domain"
)

type stubEvents struct {
	chats      int
	totals     map[domain.EventKind]int
	daily      []domain.DailyStats
	dailyKinds []domain.EventKind
	since      time.Time
}

func (s *stubEvents) Append(context.Context, domain.Event) error { return nil }
func (s *stubEvents) HasEventSince(context.Context, int64, domain.EventKind, time.Time) (bool, error) {
	return false, nil
}
func (s *stubEvents) CountDistinctChats(_ context.Context, since time.Time) (int, error) {
	s.since = since
	return s.chats, nil
}
func (s *stubEvents) CountByKind(context.Context, time.Time) (map[domain.EventKind]int, error) {
	return s.totals, nil
}
func (s *stubEvents) CountDailyByKind(_ context.Context, _ time.Time, kinds []domain.EventKind) ([]domain.DailyStats, error) {
	s.dailyKinds = kinds
	return s.daily, nil
}

func TestReport(t *testing.T) {
	events := &stubEvents{
		chats:  12,
		totals: map[domain.EventKind]int{domain.EventSessionStart: 20, domain.EventPlayClick: 5},
		daily: []domain.DailyStats{{
			Date:   time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC),
			Counts: map[domain.EventKind]int{domain.EventSessionStart: 3},
		}},
	}
	svc := NewService(events)

	report, err := svc.Report(context.Background(), 7*24*time.Hour, false)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if report.ActiveChats != 12 {
		t.Fatalf("ожидали 12 активных чатов, получили %d", report.ActiveChats)
	}
	if report.Totals[domain.EventPlayClick] != 5 {
		t.Fatalf("итоги по видам потеряны: %+v", report.Totals)
	}
	if report.Daily != nil {
		t.Fatalf("без withDaily разбивка не запрашивается")
	}

	wantSince := time.Now().UTC().Add(-7 * 24 * time.Hour)
	if diff := events.since.Sub(wantSince); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("окно отчёта вычислено неверно: %v", events.since)
	}

	report, err = svc.Report(context.Background(), 24*time.Hour, true)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(report.Daily) != 1 {
		t.Fatalf("ожидали разбивку по дням, получили %+v", report.Daily)
	}
	if len(events.dailyKinds) != len(DailyKinds) {
		t.Fatalf("разбивка должна запрашиваться по фиксированному набору видов")
	}
}
