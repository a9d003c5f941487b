package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OutboundButton — кнопка исходящего сообщения: либо callback, либо URL.
type OutboundButton struct {
	Label    string
	URL      string
	Callback string
}

// OutboundMessage — исходящее сообщение платформе. Если задан ImageURL,
// отправляется фото, а Text уходит подписью к нему.
type OutboundMessage struct {
	ChatID   int64
	Text     string
	ImageURL string
	Buttons  [][]OutboundButton
}

// Sender отправляет сообщения в мессенджер.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

// SubscriberRepo управляет реестром подписчиков.
type SubscriberRepo interface {
	// Upsert создаёт подписчика либо включает его заново: явный опт-ин.
	Upsert(ctx context.Context, chatID int64) (Subscriber, error)
	// Touch обновляет last_seen, не трогая флаг подписки.
	Touch(ctx context.Context, chatID int64) error
	ListSubscribed(ctx context.Context) ([]Subscriber, error)
	// Disable выключает подписчика после неудачной доставки.
	Disable(ctx context.Context, chatID int64) error
}

// EventRepo пишет и агрегирует журнал действий.
type EventRepo interface {
	Append(ctx context.Context, event Event) error
	// HasEventSince сообщает, было ли у чата событие kind после since.
	HasEventSince(ctx context.Context, chatID int64, kind EventKind, since time.Time) (bool, error)
	CountDistinctChats(ctx context.Context, since time.Time) (int, error)
	CountByKind(ctx context.Context, since time.Time) (map[EventKind]int, error)
	CountDailyByKind(ctx context.Context, since time.Time, kinds []EventKind) ([]DailyStats, error)
}

// ReminderRepo хранит отложенные напоминания.
type ReminderRepo interface {
	// CancelPending переводит pending-напоминания пары (чат, тип) в canceled
	// и возвращает число отменённых.
	CancelPending(ctx context.Context, chatID int64, kind ReminderKind) (int64, error)
	Create(ctx context.Context, reminder Reminder) (Reminder, error)
	// ListDue возвращает pending-напоминания с due_at <= now, не более limit.
	ListDue(ctx context.Context, now time.Time, limit int) ([]Reminder, error)
	// MarkStatus переводит напоминание из pending в терминальный статус.
	// Возвращает false, если напоминание уже не pending.
	MarkStatus(ctx context.Context, id int64, status ReminderStatus) (bool, error)
}

// BroadcastRepo хранит историю рассылок.
type BroadcastRepo interface {
	CreateBroadcast(ctx context.Context, broadcast Broadcast) error
	UpdateCounts(ctx context.Context, id uuid.UUID, sent, failed int) error
	ListRecent(ctx context.Context, limit int) ([]Broadcast, error)
}

// BroadcastQueue — очередь задач на рассылку.
type BroadcastQueue interface {
	Enqueue(ctx context.Context, job BroadcastJob) error
	Pop(ctx context.Context) (BroadcastJob, error)
}

// Cache используется для простых TTL-замков.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
}
