package handlers

import (
	"net/http"
	"time"
)

// HealthHandler отвечает на проверки живости
type HealthHandler struct {
	startedAt time.Time
	clients   func() int // количество WebSocket клиентов
}

// NewHealthHandler создает новый HealthHandler
func NewHealthHandler(clients func() int) *HealthHandler {
	return &HealthHandler{startedAt: time.Now(), clients: clients}
}

// Health возвращает статус процесса.
//
// GET /health
//
// Response 200 OK:
//
//	{"status":"ok","uptime":"1h3m","ws_clients":2}
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
	}
	if h.clients != nil {
		resp["ws_clients"] = h.clients()
	}
	respondJSON(w, http.StatusOK, resp)
}
