package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"promo-bot/internal/domain"
	httpinfra "promo-bot/internal/infra/http"
	"promo-bot/internal/usecase/stats"
)

type stubEvents struct{}

func (stubEvents) Append(context.Context, domain.Event) error { return nil }
func (stubEvents) HasEventSince(context.Context, int64, domain.EventKind, time.Time) (bool, error) {
	return false, nil
}
func (stubEvents) CountDistinctChats(context.Context, time.Time) (int, error) { return 3, nil }
func (stubEvents) CountByKind(context.Context, time.Time) (map[domain.EventKind]int, error) {
	return map[domain.EventKind]int{domain.EventSessionStart: 10}, nil
}
func (stubEvents) CountDailyByKind(context.Context, time.Time, []domain.EventKind) ([]domain.DailyStats, error) {
	return nil, nil
}

type stubBroadcasts struct {
	recent []domain.Broadcast
}

func (s *stubBroadcasts) CreateBroadcast(context.Context, domain.Broadcast) error { return nil }
func (s *stubBroadcasts) UpdateCounts(context.Context, uuid.UUID, int, int) error  { return nil }
func (s *stubBroadcasts) ListRecent(context.Context, int) ([]domain.Broadcast, error) {
	return s.recent, nil
}

type stubQueue struct {
	jobs []domain.BroadcastJob
}

func (s *stubQueue) Enqueue(_ context.Context, job domain.BroadcastJob) error {
	s.jobs = append(s.jobs, job)
	return nil
}
func (s *stubQueue) Pop(context.Context) (domain.BroadcastJob, error) {
	return domain.BroadcastJob{}, nil
}

func newTestRouter(queue *stubQueue, broadcasts *stubBroadcasts) http.Handler {
	h := NewHandler(zerolog.Nop(), stats.NewService(stubEvents{}), broadcasts, queue)
	r := chi.NewRouter()
	r.Route("/admin", func(r chi.Router) {
		r.Use(httpinfra.AdminAuthMiddleware("s3cret"))
		h.Routes(r)
	})
	return r
}

func TestAdminAuth(t *testing.T) {
	router := newTestRouter(&stubQueue{}, &stubBroadcasts{})

	cases := []struct {
		name string
		url  string
		want int
	}{
		{"без ключа", "/admin/stats", http.StatusUnauthorized},
		{"неверный ключ", "/admin/stats?key=wrong", http.StatusUnauthorized},
		{"верный ключ", "/admin/stats?key=s3cret", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.url, nil))
			if rec.Code != tc.want {
				t.Fatalf("ожидали статус %d, получили %d", tc.want, rec.Code)
			}
		})
	}
}

func TestStatsBadDays(t *testing.T) {
	router := newTestRouter(&stubQueue{}, &stubBroadcasts{})
	for _, days := range []string{"0", "91", "abc"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/stats?key=s3cret&days="+days, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("days=%s должен отклоняться, получили %d", days, rec.Code)
		}
	}
}

func TestStatsResponse(t *testing.T) {
	router := newTestRouter(&stubQueue{}, &stubBroadcasts{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/stats?key=s3cret", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}

	var resp statsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("не удалось разобрать ответ: %v", err)
	}
	if resp.ActiveChats != 3 || resp.Totals[domain.EventSessionStart] != 10 {
		t.Fatalf("агрегаты потеряны: %+v", resp)
	}
}

func TestHistoryResponse(t *testing.T) {
	broadcasts := &stubBroadcasts{recent: []domain.Broadcast{{
		ID:        uuid.New(),
		Text:      "Новый турнир",
		SentCount: 5,
		FailCount: 1,
		CreatedAt: time.Now().UTC(),
	}}}
	router := newTestRouter(&stubQueue{}, broadcasts)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/broadcasts?key=s3cret", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	var items []broadcastItem
	if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
		t.Fatalf("не удалось разобрать ответ: %v", err)
	}
	if len(items) != 1 || items[0].Sent != 5 || items[0].Failed != 1 {
		t.Fatalf("история рассылок отдана неверно: %+v", items)
	}
}

func TestTriggerValidatesInput(t *testing.T) {
	queue := &stubQueue{}
	router := newTestRouter(queue, &stubBroadcasts{})

	bad := []string{
		`{"text":""}`,
		`{"text":"hi","image_url":"http://cdn/a.png"}`,
		`not json`,
	}
	for _, body := range bad {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/admin/broadcast?key=s3cret", strings.NewReader(body))
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("тело %q должно отклоняться, получили %d", body, rec.Code)
		}
	}
	if len(queue.jobs) != 0 {
		t.Fatalf("невалидный вход не должен попадать в очередь")
	}
}

func TestTriggerEnqueuesJob(t *testing.T) {
	queue := &stubQueue{}
	router := newTestRouter(queue, &stubBroadcasts{})

	body := `{"text":"Фриспины!","buttons":[{"label":"Играть","url":"https://8spin.com"}]}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/broadcast?key=s3cret", strings.NewReader(body))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("ожидали 202, получили %d", rec.Code)
	}
	if len(queue.jobs) != 1 {
		t.Fatalf("задача должна попасть в очередь")
	}
	job := queue.jobs[0]
	if job.Text != "Фриспины!" || len(job.Buttons) != 1 {
		t.Fatalf("задача собрана неверно: %+v", job)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("не удалось разобрать ответ: %v", err)
	}
	if resp["status"] != "queued" || resp["id"] != job.ID.String() {
		t.Fatalf("ответ о постановке в очередь неверен: %v", resp)
	}
}
