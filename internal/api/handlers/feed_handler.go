package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"tradebot/internal/feed"
	"tradebot/internal/models"
)

// FeedManager - операции менеджера демонов, нужные API
type FeedManager interface {
	Start(ctx context.Context, key models.SeriesKey) error
	Stop(key models.SeriesKey) error
	List() []feed.DaemonInfo
}

// CandleReader - чтение свечей для API
type CandleReader interface {
	Latest(exchange, symbol, interval string, count int) ([]models.Candle, error)
}

// FeedHandler обрабатывает HTTP запросы ленты рыночных данных.
//
// Endpoints:
// - GET /api/v1/daemons - список демонов с состояниями
// - POST /api/v1/daemons/start - запустить демон серии
// - POST /api/v1/daemons/stop - остановить демон серии
// - GET /api/v1/candles?exchange=&symbol=&interval=&count= - последние свечи
type FeedHandler struct {
	manager FeedManager
	candles CandleReader

	// runCtx - родительский контекст демонов (живёт до shutdown
	// процесса, не до конца HTTP запроса)
	runCtx context.Context
}

// NewFeedHandler создает новый FeedHandler
func NewFeedHandler(runCtx context.Context, manager FeedManager, candles CandleReader) *FeedHandler {
	return &FeedHandler{manager: manager, candles: candles, runCtx: runCtx}
}

// seriesRequest - тело запросов start/stop
type seriesRequest struct {
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
}

func (r *seriesRequest) key() models.SeriesKey {
	return models.SeriesKey{Exchange: r.Exchange, Symbol: r.Symbol, Interval: r.Interval}
}

func (r *seriesRequest) validate() error {
	if r.Exchange == "" || r.Symbol == "" || r.Interval == "" {
		return errors.New("exchange, symbol and interval are required")
	}
	_, err := models.IntervalDuration(r.Interval)
	return err
}

// GetDaemons возвращает все работающие демоны.
//
// GET /api/v1/daemons
//
// Response 200 OK:
//
//	[{"exchange":"paper","symbol":"BTC/USD","interval":"1h","state":"polling"}]
func (h *FeedHandler) GetDaemons(w http.ResponseWriter, r *http.Request) {
	infos := h.manager.List()
	if infos == nil {
		infos = []feed.DaemonInfo{}
	}
	respondJSON(w, http.StatusOK, infos)
}

// StartDaemon запускает демон для серии.
//
// POST /api/v1/daemons/start
// Body: {"exchange":"paper","symbol":"BTC/USD","interval":"1h"}
//
// Response 201 Created | 400 | 409 (уже работает)
func (h *FeedHandler) StartDaemon(w http.ResponseWriter, r *http.Request) {
	var req seriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid series", err)
		return
	}

	if err := h.manager.Start(h.runCtx, req.key()); err != nil {
		if errors.Is(err, feed.ErrAlreadyRunning) {
			respondError(w, http.StatusConflict, "daemon already running", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to start daemon", err)
		return
	}

	respondJSON(w, http.StatusCreated, SuccessResponse{Message: "daemon started"})
}

// StopDaemon останавливает демон серии.
//
// POST /api/v1/daemons/stop
// Body: {"exchange":"paper","symbol":"BTC/USD","interval":"1h"}
//
// Response 200 OK | 404 (не работает)
func (h *FeedHandler) StopDaemon(w http.ResponseWriter, r *http.Request) {
	var req seriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := h.manager.Stop(req.key()); err != nil {
		if errors.Is(err, feed.ErrNotRunning) {
			respondError(w, http.StatusNotFound, "daemon not running", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to stop daemon", err)
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Message: "daemon stopped"})
}

// GetCandles возвращает последние свечи серии по возрастанию timestamp.
//
// GET /api/v1/candles?exchange=paper&symbol=BTC/USD&interval=1h&count=100
//
// count по умолчанию 100, максимум 1000.
func (h *FeedHandler) GetCandles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := seriesRequest{
		Exchange: q.Get("exchange"),
		Symbol:   q.Get("symbol"),
		Interval: q.Get("interval"),
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid series", err)
		return
	}

	count := 100
	if countStr := q.Get("count"); countStr != "" {
		parsed, err := strconv.Atoi(countStr)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "invalid count", err)
			return
		}
		count = parsed
		if count > 1000 {
			count = 1000
		}
	}

	candles, err := h.candles.Latest(req.Exchange, req.Symbol, req.Interval, count)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to query candles", err)
		return
	}
	if candles == nil {
		// Пустая серия - это [], не null
		candles = []models.Candle{}
	}

	respondJSON(w, http.StatusOK, candles)
}
