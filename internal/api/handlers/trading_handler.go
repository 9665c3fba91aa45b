package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"tradebot/internal/models"
	"tradebot/internal/repository"
)

// PositionReader - чтение позиций для API
type PositionReader interface {
	Get(exchange, symbol string) (*models.Position, error)
	List() ([]models.Position, error)
}

// OrderReader - чтение ордеров для API
type OrderReader interface {
	GetByID(orderID string) (*models.OrderRecord, error)
	ListBySymbol(exchange, symbol string, limit int) ([]models.OrderRecord, error)
}

// TradeReader - чтение сделок для API
type TradeReader interface {
	ListByOrder(orderID string) ([]models.TradeRecord, error)
}

// TradingHandler обрабатывает HTTP запросы торговых данных.
//
// Endpoints:
// - GET /api/v1/positions - все открытые позиции
// - GET /api/v1/positions/one?exchange=&symbol= - одна позиция
// - GET /api/v1/orders?exchange=&symbol=&limit= - ордера инструмента
// - GET /api/v1/orders/{id} - один ордер
// - GET /api/v1/orders/{id}/trades - сделки ордера
type TradingHandler struct {
	positions PositionReader
	orders    OrderReader
	trades    TradeReader
}

// NewTradingHandler создает новый TradingHandler
func NewTradingHandler(positions PositionReader, orders OrderReader, trades TradeReader) *TradingHandler {
	return &TradingHandler{positions: positions, orders: orders, trades: trades}
}

// GetPositions возвращает все открытые позиции.
//
// GET /api/v1/positions
func (h *TradingHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.positions.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to query positions", err)
		return
	}
	if positions == nil {
		positions = []models.Position{}
	}
	respondJSON(w, http.StatusOK, positions)
}

// GetPosition возвращает позицию одного инструмента.
//
// GET /api/v1/positions/one?exchange=paper&symbol=BTC/USD
//
// Response 200 OK | 404 (позиции нет)
func (h *TradingHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	exchange, symbol := q.Get("exchange"), q.Get("symbol")
	if exchange == "" || symbol == "" {
		respondError(w, http.StatusBadRequest, "exchange and symbol are required", nil)
		return
	}

	pos, err := h.positions.Get(exchange, symbol)
	if err != nil {
		if errors.Is(err, repository.ErrPositionNotFound) {
			respondError(w, http.StatusNotFound, "position not found", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to query position", err)
		return
	}

	respondJSON(w, http.StatusOK, pos)
}

// GetOrders возвращает последние ордера инструмента.
//
// GET /api/v1/orders?exchange=paper&symbol=BTC/USD&limit=50
func (h *TradingHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	exchange, symbol := q.Get("exchange"), q.Get("symbol")
	if exchange == "" || symbol == "" {
		respondError(w, http.StatusBadRequest, "exchange and symbol are required", nil)
		return
	}

	limit := 50
	if limitStr := q.Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > 500 {
				limit = 500
			}
		}
	}

	orders, err := h.orders.ListBySymbol(exchange, symbol, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to query orders", err)
		return
	}
	if orders == nil {
		orders = []models.OrderRecord{}
	}
	respondJSON(w, http.StatusOK, orders)
}

// GetOrder возвращает один ордер по ID.
//
// GET /api/v1/orders/{id}
//
// Response 200 OK | 404
func (h *TradingHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := pathVar(r, "id")

	order, err := h.orders.GetByID(orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			respondError(w, http.StatusNotFound, "order not found", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to query order", err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// GetOrderTrades возвращает сделки одного ордера.
//
// GET /api/v1/orders/{id}/trades
func (h *TradingHandler) GetOrderTrades(w http.ResponseWriter, r *http.Request) {
	orderID := pathVar(r, "id")

	trades, err := h.trades.ListByOrder(orderID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to query trades", err)
		return
	}
	if trades == nil {
		trades = []models.TradeRecord{}
	}
	respondJSON(w, http.StatusOK, trades)
}
