package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// AdminAuthMiddleware проверяет общий секрет в query-параметре key.
func AdminAuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "админка не настроена", http.StatusForbidden)
				return
			}
			key := r.URL.Query().Get("key")
			if key == "" {
				http.Error(w, "key отсутствует", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(key), []byte(secret)) != 1 {
				http.Error(w, "неверный секрет", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID возвращает request ID из контекста chi.
func RequestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

// ErrorResponse описывает ошибку.
type ErrorResponse struct {
	Error string `json:"error"`
}
