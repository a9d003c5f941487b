package reminder

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"promo-bot/internal/domain"
)

type memReminders struct {
	items  []domain.Reminder
	nextID int64
}

func (m *memReminders) CancelPending(_ context.Context, chatID int64, kind domain.ReminderKind) (int64, error) {
	var canceled int64
	for i := range m.items {
		r := &m.items[i]
		if r.ChatID == chatID && r.Kind == kind && r.Status == domain.ReminderPending {
			r.Status = domain.ReminderCanceled
			canceled++
		}
	}
	return canceled, nil
}

func (m *memReminders) Create(_ context.Context, reminder domain.Reminder) (domain.Reminder, error) {
	m.nextID++
	reminder.ID = m.nextID
	reminder.Status = domain.ReminderPending
	if reminder.CreatedAt.IsZero() {
		reminder.CreatedAt = time.Now().UTC()
	}
	m.items = append(m.items, reminder)
	return reminder, nil
}

func (m *memReminders) ListDue(_ context.Context, now time.Time, limit int) ([]domain.Reminder, error) {
	var due []domain.Reminder
	for _, r := range m.items {
		if r.Status == domain.ReminderPending && !r.DueAt.After(now) {
			due = append(due, r)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].DueAt.Before(due[j].DueAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *memReminders) MarkStatus(_ context.Context, id int64, status domain.ReminderStatus) (bool, error) {
	for i := range m.items {
		if m.items[i].ID == id {
			if m.items[i].Status != domain.ReminderPending {
				return false, nil
			}
			m.items[i].Status = status
			return true, nil
		}
	}
	return false, nil
}

func (m *memReminders) byID(id int64) domain.Reminder {
	for _, r := range m.items {
		if r.ID == id {
			return r
		}
	}
	return domain.Reminder{}
}

type memEvents struct {
	events []domain.Event
}

func (m *memEvents) Append(_ context.Context, event domain.Event) error {
	m.events = append(m.events, event)
	return nil
}

func (m *memEvents) HasEventSince(_ context.Context, chatID int64, kind domain.EventKind, since time.Time) (bool, error) {
	for _, e := range m.events {
		if e.ChatID == chatID && e.Kind == kind && !e.OccurredAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memEvents) CountDistinctChats(context.Context, time.Time) (int, error) { return 0, nil }
func (m *memEvents) CountByKind(context.Context, time.Time) (map[domain.EventKind]int, error) {
	return nil, nil
}
func (m *memEvents) CountDailyByKind(context.Context, time.Time, []domain.EventKind) ([]domain.DailyStats, error) {
	return nil, nil
}

type memSubscribers struct {
	disabled []int64
}

func (m *memSubscribers) Upsert(_ context.Context, chatID int64) (domain.Subscriber, error) {
	return domain.Subscriber{ChatID: chatID, Subscribed: true}, nil
}
func (m *memSubscribers) Touch(context.Context, int64) error { return nil }
func (m *memSubscribers) ListSubscribed(context.Context) ([]domain.Subscriber, error) {
	return nil, nil
}
func (m *memSubscribers) Disable(_ context.Context, chatID int64) error {
	m.disabled = append(m.disabled, chatID)
	return nil
}

type fakeSender struct {
	sent    []domain.OutboundMessage
	failFor map[int64]bool
}

func (f *fakeSender) Send(_ context.Context, msg domain.OutboundMessage) error {
	if f.failFor[msg.ChatID] {
		return errors.New("forbidden: bot was blocked by the user")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newTestService(reminders *memReminders, events *memEvents, subs *memSubscribers, sender *fakeSender) *Service {
	return NewService(reminders, subs, events, sender, time.Second, "https://8spin.com", zerolog.Nop())
}

func TestScheduleCancelsPrevious(t *testing.T) {
	reminders := &memReminders{}
	svc := newTestService(reminders, &memEvents{}, &memSubscribers{}, &fakeSender{})

	ctx := context.Background()
	if err := svc.Schedule(ctx, 42, domain.ReminderFollowup, 10*time.Minute, "https://img"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := svc.Schedule(ctx, 42, domain.ReminderFollowup, 10*time.Minute, "https://img"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if got := reminders.byID(1).Status; got != domain.ReminderCanceled {
		t.Fatalf("первое напоминание должно быть canceled, получили %s", got)
	}
	if got := reminders.byID(2).Status; got != domain.ReminderPending {
		t.Fatalf("второе напоминание должно остаться pending, получили %s", got)
	}
}

func TestCancelBeforeDueNeverSends(t *testing.T) {
	reminders := &memReminders{}
	sender := &fakeSender{}
	svc := newTestService(reminders, &memEvents{}, &memSubscribers{}, sender)

	ctx := context.Background()
	if err := svc.Schedule(ctx, 42, domain.ReminderFollowup, 10*time.Minute, "https://img"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := svc.Cancel(ctx, 42, domain.ReminderFollowup); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if err := svc.ProcessDue(ctx, time.Now().UTC().Add(time.Hour), 100); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("отменённое напоминание не должно отправляться")
	}
	if got := reminders.byID(1).Status; got != domain.ReminderCanceled {
		t.Fatalf("ожидали canceled, получили %s", got)
	}
}

func TestCancelWithoutPendingIsNoop(t *testing.T) {
	svc := newTestService(&memReminders{}, &memEvents{}, &memSubscribers{}, &fakeSender{})
	if err := svc.Cancel(context.Background(), 42, domain.ReminderFollowup); err != nil {
		t.Fatalf("отмена без pending должна быть no-op: %v", err)
	}
}

func TestProcessDueSendsExactlyOnce(t *testing.T) {
	reminders := &memReminders{}
	events := &memEvents{}
	sender := &fakeSender{}
	svc := newTestService(reminders, events, &memSubscribers{}, sender)

	ctx := context.Background()
	if err := svc.Schedule(ctx, 42, domain.ReminderFollowup, 10*time.Minute, "https://img"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	later := time.Now().UTC().Add(11 * time.Minute)
	if err := svc.ProcessDue(ctx, later, 100); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := svc.ProcessDue(ctx, later, 100); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("ожидали ровно одну отправку, получили %d", len(sender.sent))
	}
	if sender.sent[0].ImageURL != "https://img" {
		t.Fatalf("фоллоу-ап должен уходить фотографией")
	}
	if got := reminders.byID(1).Status; got != domain.ReminderSent {
		t.Fatalf("ожидали sent, получили %s", got)
	}
	if !hasEventKind(events, domain.EventFollowupSent) {
		t.Fatalf("ожидали событие followup_sent в журнале")
	}
}

func TestProcessDueDoubleChecksConversion(t *testing.T) {
	// Конверсия записана в журнал после создания напоминания, но Cancel
	// по какой-то причине не прошёл: перепроверка при срабатывании
	// должна снять напоминание без отправки.
	reminders := &memReminders{}
	events := &memEvents{}
	sender := &fakeSender{}
	svc := newTestService(reminders, events, &memSubscribers{}, sender)

	ctx := context.Background()
	if err := svc.Schedule(ctx, 42, domain.ReminderFollowup, 10*time.Minute, "https://img"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	_ = events.Append(ctx, domain.Event{ChatID: 42, Kind: domain.EventPlayClick, OccurredAt: time.Now().UTC()})

	if err := svc.ProcessDue(ctx, time.Now().UTC().Add(time.Hour), 100); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("после конверсии фоллоу-ап не должен отправляться")
	}
	if got := reminders.byID(1).Status; got != domain.ReminderCanceled {
		t.Fatalf("ожидали canceled, получили %s", got)
	}
}

func TestProcessDueFailureDisablesSubscriber(t *testing.T) {
	reminders := &memReminders{}
	events := &memEvents{}
	subs := &memSubscribers{}
	sender := &fakeSender{failFor: map[int64]bool{42: true}}
	svc := newTestService(reminders, events, subs, sender)

	ctx := context.Background()
	if err := svc.Schedule(ctx, 42, domain.ReminderFollowup, 10*time.Minute, "https://img"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := svc.ProcessDue(ctx, time.Now().UTC().Add(time.Hour), 100); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if got := reminders.byID(1).Status; got != domain.ReminderFailed {
		t.Fatalf("ожидали failed, получили %s", got)
	}
	if len(subs.disabled) != 1 || subs.disabled[0] != 42 {
		t.Fatalf("подписчик должен быть выключен после провала доставки")
	}
	if !hasEventKind(events, domain.EventFollowupFail) {
		t.Fatalf("ожидали событие followup_failed в журнале")
	}
}

func TestProcessDueRespectsBatchLimit(t *testing.T) {
	reminders := &memReminders{}
	sender := &fakeSender{}
	svc := newTestService(reminders, &memEvents{}, &memSubscribers{}, sender)

	ctx := context.Background()
	for chat := int64(1); chat <= 5; chat++ {
		if err := svc.Schedule(ctx, chat, domain.ReminderFollowup, 0, "https://img"); err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
	}
	if err := svc.ProcessDue(ctx, time.Now().UTC().Add(time.Minute), 3); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(sender.sent) != 3 {
		t.Fatalf("ожидали 3 отправки по лимиту батча, получили %d", len(sender.sent))
	}
}

func hasEventKind(events *memEvents, kind domain.EventKind) bool {
	for _, e := range events.events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}
