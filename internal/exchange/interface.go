package exchange

import (
	"context"
	"time"

	"tradebot/internal/models"
)

// Gateway определяет унифицированный интерфейс биржевого клиента
//
// Конкретные REST привязки бирж — внешние коллабораторы и здесь не
// реализуются; ядро потребляет только этот интерфейс. Все блокирующие
// операции принимают context и могут быть отменены.
type Gateway interface {
	// GetName возвращает имя биржи
	GetName() string

	// FetchCandles получает OHLCV свечи начиная с since (unix мс).
	// since == 0 означает "насколько глубоко отдаёт биржа",
	// limit <= 0 — размер страницы по умолчанию.
	// Биржа возвращает страницу переменной длины — вызывающий код
	// обязан сортировать и дедуплицировать сам.
	FetchCandles(ctx context.Context, symbol, interval string, since int64, limit int) ([]models.Candle, error)

	// FetchTicker получает текущий тикер (last/bid/ask)
	FetchTicker(ctx context.Context, symbol string) (*Ticker, error)

	// FetchOrderBook получает стакан заданной глубины
	FetchOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error)

	// FetchBalance получает свободный баланс в валюте котировки
	FetchBalance(ctx context.Context, currency string) (float64, error)

	// PlaceOrder размещает ордер. price игнорируется для market ордеров.
	PlaceOrder(ctx context.Context, symbol, orderType, side string, amount, price float64) (*Order, error)

	// FetchOrderStatus получает текущий статус ордера
	FetchOrderStatus(ctx context.Context, orderID string) (*OrderStatus, error)

	// FetchFills получает исполнения (fills) по ордеру
	FetchFills(ctx context.Context, symbol, orderID string) ([]Fill, error)

	// RateLimit возвращает минимальную задержку между запросами
	RateLimit() time.Duration

	// SupportedIntervals возвращает интервалы, поддерживаемые биржей
	SupportedIntervals() []string

	// Close закрывает соединения с биржей
	Close() error
}

// Ticker содержит текущую цену инструмента
type Ticker struct {
	Symbol    string  `json:"symbol"`
	Last      float64 `json:"last"`
	Bid       float64 `json:"bid"` // лучшая цена покупки
	Ask       float64 `json:"ask"` // лучшая цена продажи
	Timestamp int64   `json:"timestamp"` // unix миллисекунды
	Datetime  string  `json:"datetime"`
}

// OrderBook представляет стакан ордеров
type OrderBook struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"` // заявки на покупку, по убыванию цены
	Asks      []PriceLevel `json:"asks"` // заявки на продажу, по возрастанию цены
	Timestamp int64        `json:"timestamp"`
}

// PriceLevel представляет уровень цены в стакане
type PriceLevel struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// BestBid возвращает лучшую цену покупки (0 если стакан пуст)
func (ob *OrderBook) BestBid() float64 {
	if len(ob.Bids) == 0 {
		return 0
	}
	return ob.Bids[0].Price
}

// BestAsk возвращает лучшую цену продажи (0 если стакан пуст)
func (ob *OrderBook) BestAsk() float64 {
	if len(ob.Asks) == 0 {
		return 0
	}
	return ob.Asks[0].Price
}

// Order представляет размещённый на бирже ордер
type Order struct {
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"` // "buy" или "sell"
	Type      string  `json:"type"` // "market" или "limit"
	Amount    float64 `json:"amount"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
	Datetime  string  `json:"datetime"`
}

// OrderStatus представляет статус ордера на бирже
type OrderStatus struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Status string `json:"status"` // open, filled, cancelled, rejected
}

// Fill представляет одно исполнение ордера
type Fill struct {
	TradeID   string  `json:"trade_id"`
	OrderID   string  `json:"order_id"`
	Timestamp int64   `json:"timestamp"`
	Datetime  string  `json:"datetime"`
	Amount    float64 `json:"amount"`
	Price     float64 `json:"price"`
	Cost      float64 `json:"cost"` // price*amount + комиссия
}

// Стороны ордера (при размещении)
const (
	SideBuy  = "buy"  // покупка (открытие long или закрытие short)
	SideSell = "sell" // продажа (открытие short или закрытие long)
)

// GatewayError представляет ошибку от биржи
//
// IsTransient == true для сетевых сбоев и таймаутов: такие ошибки
// повторяются retry логикой. Ошибки программирования (неверный символ,
// неподдерживаемый интервал) помечаются как постоянные.
type GatewayError struct {
	Exchange    string
	Code        string
	Message     string
	IsTransient bool
	Original    error
}

func (e *GatewayError) Error() string {
	return e.Exchange + ": " + e.Message
}

// Unwrap возвращает оригинальную ошибку для errors.Is() и errors.As()
func (e *GatewayError) Unwrap() error {
	return e.Original
}

// Transient интегрирует GatewayError с pkg/retry классификацией
func (e *GatewayError) Transient() bool {
	return e.IsTransient
}

// NewNetworkError создаёт временную (повторяемую) ошибку шлюза
func NewNetworkError(exchange, message string, original error) *GatewayError {
	return &GatewayError{
		Exchange:    exchange,
		Code:        "network",
		Message:     message,
		IsTransient: true,
		Original:    original,
	}
}

// SupportsInterval проверяет, поддерживает ли шлюз интервал
func SupportsInterval(gw Gateway, interval string) bool {
	for _, it := range gw.SupportedIntervals() {
		if it == interval {
			return true
		}
	}
	return false
}
