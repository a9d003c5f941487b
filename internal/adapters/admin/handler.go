package admin

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"promo-bot/internal/domain"
	httpinfra "promo-bot/internal/infra/http"
	"promo-bot/internal/usecase/broadcast"
	"promo-bot/internal/usecase/stats"
)

const (
	defaultLookbackDays = 7
	maxLookbackDays     = 90
	historyLimit        = 50
)

// Handler обслуживает админку: статистика, история и запуск рассылок.
type Handler struct {
	log        zerolog.Logger
	statsUC    *stats.Service
	broadcasts domain.BroadcastRepo
	queue      domain.BroadcastQueue
}

// NewHandler создаёт обработчик админки.
func NewHandler(log zerolog.Logger, statsUC *stats.Service, broadcasts domain.BroadcastRepo, queue domain.BroadcastQueue) *Handler {
	return &Handler{log: log, statsUC: statsUC, broadcasts: broadcasts, queue: queue}
}

// Routes вешает маршруты админки на роутер.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleDashboard)
	r.Get("/stats", h.handleStats)
	r.Get("/broadcasts", h.handleHistory)
	r.Post("/broadcast", h.handleTrigger)
}

type statsResponse struct {
	Since       time.Time                `json:"since"`
	ActiveChats int                      `json:"active_chats"`
	Totals      map[domain.EventKind]int `json:"totals"`
	Daily       []dailyResponse          `json:"daily,omitempty"`
}

type dailyResponse struct {
	Date   string                   `json:"date"`
	Counts map[domain.EventKind]int `json:"counts"`
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	days := defaultLookbackDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxLookbackDays {
			writeError(w, http.StatusBadRequest, "days должен быть числом от 1 до 90")
			return
		}
		days = parsed
	}
	withDaily := r.URL.Query().Get("daily") != ""

	report, err := h.statsUC.Report(r.Context(), time.Duration(days)*24*time.Hour, withDaily)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось собрать статистику")
		writeError(w, http.StatusInternalServerError, "не удалось собрать статистику")
		return
	}

	resp := statsResponse{Since: report.Since, ActiveChats: report.ActiveChats, Totals: report.Totals}
	for _, day := range report.Daily {
		resp.Daily = append(resp.Daily, dailyResponse{Date: day.Date.Format("2006-01-02"), Counts: day.Counts})
	}
	writeJSON(w, http.StatusOK, resp)
}

type broadcastItem struct {
	ID        string                   `json:"id"`
	Text      string                   `json:"text"`
	ImageURL  string                   `json:"image_url,omitempty"`
	Buttons   []domain.BroadcastButton `json:"buttons,omitempty"`
	Sent      int                      `json:"sent"`
	Failed    int                      `json:"failed"`
	CreatedAt time.Time                `json:"created_at"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	list, err := h.broadcasts.ListRecent(r.Context(), historyLimit)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось получить историю рассылок")
		writeError(w, http.StatusInternalServerError, "не удалось получить историю")
		return
	}
	items := make([]broadcastItem, 0, len(list))
	for _, b := range list {
		items = append(items, broadcastItem{
			ID:        b.ID.String(),
			Text:      b.Text,
			ImageURL:  b.ImageURL,
			Buttons:   b.Buttons,
			Sent:      b.SentCount,
			Failed:    b.FailCount,
			CreatedAt: b.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var in broadcast.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	// Невалидный вход отклоняется до постановки в очередь.
	if err := broadcast.ValidateInput(in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := domain.BroadcastJob{
		ID:          uuid.New(),
		Text:        in.Text,
		ImageURL:    in.ImageURL,
		Buttons:     in.Buttons,
		RequestedAt: time.Now().UTC(),
	}
	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("не удалось поставить рассылку в очередь")
		writeError(w, http.StatusInternalServerError, "не удалось поставить рассылку в очередь")
		return
	}
	h.log.Info().Str("job", job.ID.String()).Str("request_id", httpinfra.RequestID(r)).Msg("рассылка поставлена в очередь")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "id": job.ID.String()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, httpinfra.ErrorResponse{Error: message})
}
