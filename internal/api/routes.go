package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradebot/internal/api/handlers"
	"tradebot/internal/api/middleware"
	"tradebot/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	// RunCtx - родительский контекст фоновых демонов
	RunCtx context.Context

	Manager   handlers.FeedManager
	Candles   handlers.CandleReader
	Positions handlers.PositionReader
	Orders    handlers.OrderReader
	Trades    handlers.TradeReader
	Hub       *websocket.Hub

	// Basic auth операторского API; пустой hash отключает auth
	AuthUser         string
	AuthPasswordHash string
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /daemons
//	│   ├── GET / - список демонов с состояниями
//	│   ├── POST /start - запустить демон серии
//	│   └── POST /stop - остановить демон серии
//	├── /candles
//	│   └── GET ?exchange=&symbol=&interval=&count= - последние свечи
//	├── /positions
//	│   ├── GET / - все открытые позиции
//	│   └── GET /one?exchange=&symbol= - одна позиция
//	└── /orders
//	    ├── GET ?exchange=&symbol=&limit= - ордера инструмента
//	    ├── GET /{id} - один ордер
//	    └── GET /{id}/trades - сделки ордера
//
// /ws/stream - WebSocket live тиков, сделок и уведомлений
// /metrics  - Prometheus метрики
// /health   - проверка живости
//
// Middleware: Recovery → Logging → CORS глобально, BasicAuth на /api/v1.
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.BasicAuth(deps.AuthUser, deps.AuthPasswordHash))

	if deps.Manager != nil {
		feedHandler := handlers.NewFeedHandler(deps.RunCtx, deps.Manager, deps.Candles)
		api.HandleFunc("/daemons", feedHandler.GetDaemons).Methods("GET")
		api.HandleFunc("/daemons/start", feedHandler.StartDaemon).Methods("POST")
		api.HandleFunc("/daemons/stop", feedHandler.StopDaemon).Methods("POST")
		api.HandleFunc("/candles", feedHandler.GetCandles).Methods("GET")
	}

	if deps.Positions != nil {
		tradingHandler := handlers.NewTradingHandler(deps.Positions, deps.Orders, deps.Trades)
		api.HandleFunc("/positions", tradingHandler.GetPositions).Methods("GET")
		api.HandleFunc("/positions/one", tradingHandler.GetPosition).Methods("GET")
		api.HandleFunc("/orders", tradingHandler.GetOrders).Methods("GET")
		api.HandleFunc("/orders/{id}", tradingHandler.GetOrder).Methods("GET")
		api.HandleFunc("/orders/{id}/trades", tradingHandler.GetOrderTrades).Methods("GET")
	}

	if deps.Hub != nil {
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(deps.Hub, w, r)
		})
	}

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	var clients func() int
	if deps.Hub != nil {
		clients = deps.Hub.ClientCount
	}
	healthHandler := handlers.NewHealthHandler(clients)
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")

	return router
}
