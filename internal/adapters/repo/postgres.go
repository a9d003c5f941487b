package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"promo-bot/internal/domain"
	"promo-bot/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.SubscriberRepo = (*Postgres)(nil)
	_ domain.EventRepo      = (*Postgres)(nil)
	_ domain.ReminderRepo   = (*Postgres)(nil)
	_ domain.BroadcastRepo  = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// Upsert реализует domain.SubscriberRepo: создаёт подписчика
// либо включает его заново. Вызов приходит только из явного /start.
func (p *Postgres) Upsert(ctx context.Context, chatID int64) (domain.Subscriber, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	now := time.Now().UTC()
	start := time.Now()
	row := p.pool.QueryRow(ctx, `
INSERT INTO subscribers (chat_id, subscribed, last_seen_at, created_at)
VALUES ($1, TRUE, $2, $2)
ON CONFLICT (chat_id) DO UPDATE SET subscribed = TRUE, last_seen_at = EXCLUDED.last_seen_at
RETURNING chat_id, subscribed, last_seen_at, created_at
`, chatID, now)
	var sub domain.Subscriber
	err := row.Scan(&sub.ChatID, &sub.Subscribed, &sub.LastSeenAt, &sub.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "subscribers_upsert", start, err)
	if err != nil {
		return domain.Subscriber{}, err
	}
	return sub, nil
}

// Touch обновляет last_seen, не меняя флаг подписки.
func (p *Postgres) Touch(ctx context.Context, chatID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE subscribers SET last_seen_at = $2 WHERE chat_id = $1`, chatID, time.Now().UTC())
	metrics.ObserveNetworkRequest("postgres", "subscribers_touch", start, err)
	return err
}

// ListSubscribed возвращает включённых подписчиков.
func (p *Postgres) ListSubscribed(ctx context.Context) ([]domain.Subscriber, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT chat_id, subscribed, last_seen_at, created_at
FROM subscribers
WHERE subscribed = TRUE
ORDER BY chat_id
`)
	metrics.ObserveNetworkRequest("postgres", "subscribers_list", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.Subscriber
	for rows.Next() {
		var sub domain.Subscriber
		if err := rows.Scan(&sub.ChatID, &sub.Subscribed, &sub.LastSeenAt, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// Disable выключает подписчика после неудачной доставки.
func (p *Postgres) Disable(ctx context.Context, chatID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE subscribers SET subscribed = FALSE WHERE chat_id = $1`, chatID)
	metrics.ObserveNetworkRequest("postgres", "subscribers_disable", start, err)
	return err
}

// Append реализует domain.EventRepo.
func (p *Postgres) Append(ctx context.Context, event domain.Event) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	var payload []byte
	if event.Metadata != nil {
		if data, err := json.Marshal(event.Metadata); err == nil {
			payload = data
		}
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO events (chat_id, kind, metadata, occurred_at)
VALUES ($1, $2, $3, $4)
`, event.ChatID, string(event.Kind), payload, event.OccurredAt)
	metrics.ObserveNetworkRequest("postgres", "events_insert", start, err)
	return err
}

// HasEventSince сообщает, было ли у чата событие kind после since.
func (p *Postgres) HasEventSince(ctx context.Context, chatID int64, kind domain.EventKind, since time.Time) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	var exists bool
	err := p.pool.QueryRow(ctx, `
SELECT EXISTS (
  SELECT 1 FROM events WHERE chat_id = $1 AND kind = $2 AND occurred_at >= $3
)
`, chatID, string(kind), since).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "events_exists", start, err)
	return exists, err
}

// CountDistinctChats считает уникальные чаты за окно.
func (p *Postgres) CountDistinctChats(ctx context.Context, since time.Time) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	var count int
	err := p.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT chat_id) FROM events WHERE occurred_at >= $1`, since).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "events_distinct_chats", start, err)
	return count, err
}

// CountByKind считает события по видам за окно.
func (p *Postgres) CountByKind(ctx context.Context, since time.Time) (map[domain.EventKind]int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT kind, COUNT(*)
FROM events
WHERE occurred_at >= $1
GROUP BY kind
`, since)
	metrics.ObserveNetworkRequest("postgres", "events_count_by_kind", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[domain.EventKind]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		totals[domain.EventKind(kind)] = count
	}
	return totals, rows.Err()
}

// CountDailyByKind считает события по дням для заданного набора видов.
func (p *Postgres) CountDailyByKind(ctx context.Context, since time.Time, kinds []domain.EventKind) ([]domain.DailyStats, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	names := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		names = append(names, string(kind))
	}

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT date_trunc('day', occurred_at) AS day, kind, COUNT(*)
FROM events
WHERE occurred_at >= $1 AND kind = ANY($2)
GROUP BY day, kind
ORDER BY day
`, since, names)
	metrics.ObserveNetworkRequest("postgres", "events_daily_by_kind", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var daily []domain.DailyStats
	for rows.Next() {
		var day time.Time
		var kind string
		var count int
		if err := rows.Scan(&day, &kind, &count); err != nil {
			return nil, err
		}
		if len(daily) == 0 || !daily[len(daily)-1].Date.Equal(day) {
			daily = append(daily, domain.DailyStats{Date: day, Counts: make(map[domain.EventKind]int)})
		}
		daily[len(daily)-1].Counts[domain.EventKind(kind)] = count
	}
	return daily, rows.Err()
}

// CancelPending реализует domain.ReminderRepo: снимает pending-напоминания пары (чат, тип).
func (p *Postgres) CancelPending(ctx context.Context, chatID int64, kind domain.ReminderKind) (int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE reminders SET status = $3
WHERE chat_id = $1 AND kind = $2 AND status = $4
`, chatID, string(kind), string(domain.ReminderCanceled), string(domain.ReminderPending))
	metrics.ObserveNetworkRequest("postgres", "reminders_cancel", start, err)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Create добавляет pending-напоминание.
func (p *Postgres) Create(ctx context.Context, reminder domain.Reminder) (domain.Reminder, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if reminder.CreatedAt.IsZero() {
		reminder.CreatedAt = time.Now().UTC()
	}
	reminder.Status = domain.ReminderPending

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO reminders (chat_id, kind, due_at, status, image_url, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id
`, reminder.ChatID, string(reminder.Kind), reminder.DueAt, string(reminder.Status), reminder.ImageURL, reminder.CreatedAt).Scan(&reminder.ID)
	metrics.ObserveNetworkRequest("postgres", "reminders_insert", start, err)
	if err != nil {
		return domain.Reminder{}, err
	}
	return reminder, nil
}

// ListDue возвращает просроченные pending-напоминания, не более limit.
func (p *Postgres) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Reminder, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, chat_id, kind, due_at, status, image_url, created_at
FROM reminders
WHERE status = $1 AND due_at <= $2
ORDER BY due_at
LIMIT $3
`, string(domain.ReminderPending), now, limit)
	metrics.ObserveNetworkRequest("postgres", "reminders_due", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []domain.Reminder
	for rows.Next() {
		var r domain.Reminder
		var kind, status string
		if err := rows.Scan(&r.ID, &r.ChatID, &kind, &r.DueAt, &status, &r.ImageURL, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Kind = domain.ReminderKind(kind)
		r.Status = domain.ReminderStatus(status)
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// MarkStatus переводит напоминание из pending в терминальный статус.
// Повторный перевод невозможен: guard по status = pending.
func (p *Postgres) MarkStatus(ctx context.Context, id int64, status domain.ReminderStatus) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE reminders SET status = $2 WHERE id = $1 AND status = $3
`, id, string(status), string(domain.ReminderPending))
	metrics.ObserveNetworkRequest("postgres", "reminders_mark", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CreateBroadcast реализует domain.BroadcastRepo: запись создаётся до отправки,
// чтобы частичный провал рассылки оставался в истории.
func (p *Postgres) CreateBroadcast(ctx context.Context, broadcast domain.Broadcast) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if broadcast.CreatedAt.IsZero() {
		broadcast.CreatedAt = time.Now().UTC()
	}
	var buttons []byte
	if len(broadcast.Buttons) > 0 {
		data, err := json.Marshal(broadcast.Buttons)
		if err != nil {
			return err
		}
		buttons = data
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO broadcasts (id, body, image_url, buttons, sent_count, fail_count, created_at)
VALUES ($1, $2, $3, $4, 0, 0, $5)
`, broadcast.ID, broadcast.Text, broadcast.ImageURL, buttons, broadcast.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "broadcasts_insert", start, err)
	return err
}

// UpdateCounts фиксирует итоговые счётчики рассылки.
func (p *Postgres) UpdateCounts(ctx context.Context, id uuid.UUID, sent, failed int) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE broadcasts SET sent_count = $2, fail_count = $3 WHERE id = $1
`, id, sent, failed)
	metrics.ObserveNetworkRequest("postgres", "broadcasts_update", start, err)
	return err
}

// ListRecent возвращает последние рассылки.
func (p *Postgres) ListRecent(ctx context.Context, limit int) ([]domain.Broadcast, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, body, image_url, buttons, sent_count, fail_count, created_at
FROM broadcasts
ORDER BY created_at DESC
LIMIT $1
`, limit)
	metrics.ObserveNetworkRequest("postgres", "broadcasts_list", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var broadcasts []domain.Broadcast
	for rows.Next() {
		var b domain.Broadcast
		var buttons []byte
		if err := rows.Scan(&b.ID, &b.Text, &b.ImageURL, &buttons, &b.SentCount, &b.FailCount, &b.CreatedAt); err != nil {
			return nil, err
		}
		if len(buttons) > 0 {
			if err := json.Unmarshal(buttons, &b.Buttons); err != nil {
				return nil, err
			}
		}
		broadcasts = append(broadcasts, b)
	}
	return broadcasts, rows.Err()
}
