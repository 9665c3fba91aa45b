package middleware

import (
	"log"
	"net/http"
	"runtime/debug"
)

// Recovery перехватывает панику в handlers и возвращает 500
//
// Сервер переживает необработанную ошибку любого handler и продолжает
// обслуживать остальные запросы; stack trace уходит в лог.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("api: panic in %s %s: %v\n%s", r.Method, r.URL.Path, err, debug.Stack())
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
