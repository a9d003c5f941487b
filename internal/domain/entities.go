package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind перечисляет виды событий в журнале действий.
type EventKind string

const (
	EventSessionStart  EventKind = "session_start"
	EventPlayClick     EventKind = "play_click"
	EventPromoView     EventKind = "promo_view"
	EventSupportOpen   EventKind = "support_open"
	EventFollowupSent  EventKind = "followup_sent"
	EventFollowupFail  EventKind = "followup_failed"
	EventBroadcastSent EventKind = "broadcast_sent"
	EventBroadcastFail EventKind = "broadcast_failed"
)

// Subscriber описывает чат, которому можно слать рассылки.
type Subscriber struct {
	ChatID     int64
	Subscribed bool
	LastSeenAt time.Time
	CreatedAt  time.Time
}

// Event — одна запись журнала действий. Журнал только дописывается.
type Event struct {
	ID         int64
	ChatID     int64
	Kind       EventKind
	Metadata   map[string]string
	OccurredAt time.Time
}

// ReminderKind помечает тип отложенного напоминания.
type ReminderKind string

// ReminderFollowup — фоллоу-ап через 10 минут после /start без конверсии.
const ReminderFollowup ReminderKind = "followup"

// ReminderStatus — статус напоминания. Из pending ровно один переход
// в sent, canceled или failed; терминальные статусы не меняются.
type ReminderStatus string

const (
	ReminderPending  ReminderStatus = "pending"
	ReminderSent     ReminderStatus = "sent"
	ReminderCanceled ReminderStatus = "canceled"
	ReminderFailed   ReminderStatus = "failed"
)

// Reminder — отложенное одноразовое сообщение.
// На пару (чат, тип) допускается не более одного pending.
type Reminder struct {
	ID        int64
	ChatID    int64
	Kind      ReminderKind
	DueAt     time.Time
	Status    ReminderStatus
	ImageURL  string
	CreatedAt time.Time
}

// BroadcastButton — кнопка-ссылка под сообщением рассылки.
type BroadcastButton struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Broadcast — одна массовая рассылка. Счётчики заполняются после обхода списка.
type Broadcast struct {
	ID        uuid.UUID
	Text      string
	ImageURL  string
	Buttons   []BroadcastButton
	SentCount int
	FailCount int
	CreatedAt time.Time
}

// BroadcastResult — агрегированный итог одной рассылки.
type BroadcastResult struct {
	Sent   int
	Failed int
	Total  int
}

// BroadcastJob — задача на рассылку в очереди между админкой и диспетчером.
type BroadcastJob struct {
	ID          uuid.UUID         `json:"id"`
	Text        string            `json:"text"`
	ImageURL    string            `json:"image_url,omitempty"`
	Buttons     []BroadcastButton `json:"buttons,omitempty"`
	RequestedAt time.Time         `json:"requested_at"`
}

// DailyStats — события одного дня в разбивке по видам.
type DailyStats struct {
	Date   time.Time
	Counts map[EventKind]int
}

// StatsReport — агрегаты журнала за окно просмотра.
type StatsReport struct {
	Since       time.Time
	ActiveChats int
	Totals      map[EventKind]int
	Daily       []DailyStats
}
