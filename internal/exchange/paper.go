package exchange

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"tradebot/internal/models"
)

// PaperGateway - симулируемая биржа для разработки и прогонов без
// реального подключения
//
// Генерирует детерминированный (по seed) случайный поток цен, отдаёт
// свечи страницами переменной длины (как настоящие биржи) и исполняет
// ордера после нескольких опросов статуса. Сетевых вызовов нет.
type PaperGateway struct {
	name      string
	rateLimit time.Duration
	pageSize  int
	fillAfter int // через сколько опросов статуса ордер становится filled

	mu      sync.Mutex
	rng     *rand.Rand
	price   float64 // текущая цена случайного блуждания
	balance float64
	orders  map[string]*paperOrder
	nextID  int
}

type paperOrder struct {
	order *Order
	polls int
}

// PaperConfig - параметры симулируемой биржи
type PaperConfig struct {
	Seed      int64
	BasePrice float64
	Balance   float64
	RateLimit time.Duration
	PageSize  int
	FillAfter int
}

// NewPaperGateway создаёт симулируемую биржу
func NewPaperGateway(cfg PaperConfig) *PaperGateway {
	if cfg.BasePrice <= 0 {
		cfg.BasePrice = 30000
	}
	if cfg.Balance <= 0 {
		cfg.Balance = 10000
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 20 * time.Millisecond
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	if cfg.FillAfter <= 0 {
		cfg.FillAfter = 2
	}

	return &PaperGateway{
		name:      "paper",
		rateLimit: cfg.RateLimit,
		pageSize:  cfg.PageSize,
		fillAfter: cfg.FillAfter,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		price:     cfg.BasePrice,
		balance:   cfg.Balance,
		orders:    make(map[string]*paperOrder),
	}
}

func (g *PaperGateway) GetName() string {
	return g.name
}

func (g *PaperGateway) RateLimit() time.Duration {
	return g.rateLimit
}

func (g *PaperGateway) SupportedIntervals() []string {
	return []string{"1m", "5m", "1h", "6h", "1d"}
}

// step продвигает случайное блуждание цены. Вызывается под lock'ом.
func (g *PaperGateway) step() float64 {
	g.price *= 1 + (g.rng.Float64()-0.5)*0.002
	return g.price
}

// FetchCandles генерирует страницу свечей от since до "сейчас"
//
// Длина страницы ограничена pageSize: пагинация вызывающего кода
// работает так же, как с настоящей биржей.
func (g *PaperGateway) FetchCandles(ctx context.Context, symbol, interval string, since int64, limit int) ([]models.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	step, err := models.IntervalMillis(interval)
	if err != nil {
		return nil, &GatewayError{Exchange: g.name, Code: "bad_interval", Message: err.Error(), Original: err}
	}

	if limit <= 0 || limit > g.pageSize {
		limit = g.pageSize
	}

	now := time.Now().UnixMilli()
	if since <= 0 {
		since = now - int64(limit)*step
	}
	// Выравниваем на границу интервала
	since = since - since%step

	g.mu.Lock()
	defer g.mu.Unlock()

	var out []models.Candle
	for ts := since; ts <= now && len(out) < limit; ts += step {
		open := g.price
		close := g.step()
		high := open
		if close > high {
			high = close
		}
		low := open
		if close < low {
			low = close
		}
		high *= 1 + g.rng.Float64()*0.001
		low *= 1 - g.rng.Float64()*0.001

		out = append(out, models.Candle{
			Timestamp: ts,
			Symbol:    symbol,
			Datetime:  time.UnixMilli(ts).UTC().Format(time.RFC3339),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    g.rng.Float64() * 100,
		})
	}

	return out, nil
}

func (g *PaperGateway) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	last := g.step()
	g.mu.Unlock()

	now := time.Now()
	spread := last * 0.0005
	return &Ticker{
		Symbol:    symbol,
		Last:      last,
		Bid:       last - spread,
		Ask:       last + spread,
		Timestamp: now.UnixMilli(),
		Datetime:  now.UTC().Format(time.RFC3339),
	}, nil
}

func (g *PaperGateway) FetchOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if depth <= 0 {
		depth = 10
	}

	g.mu.Lock()
	mid := g.step()
	g.mu.Unlock()

	book := &OrderBook{
		Symbol:    symbol,
		Timestamp: time.Now().UnixMilli(),
	}
	tick := mid * 0.0001
	for i := 1; i <= depth; i++ {
		book.Bids = append(book.Bids, PriceLevel{Price: mid - float64(i)*tick, Volume: float64(i)})
		book.Asks = append(book.Asks, PriceLevel{Price: mid + float64(i)*tick, Volume: float64(i)})
	}

	return book, nil
}

func (g *PaperGateway) FetchBalance(ctx context.Context, currency string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balance, nil
}

func (g *PaperGateway) PlaceOrder(ctx context.Context, symbol, orderType, side string, amount, price float64) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, &GatewayError{Exchange: g.name, Code: "bad_amount", Message: fmt.Sprintf("invalid amount %f", amount)}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if orderType == models.OrderTypeMarket || price <= 0 {
		price = g.price
	}

	g.nextID++
	now := time.Now()
	order := &Order{
		ID:        fmt.Sprintf("paper-%d", g.nextID),
		Symbol:    symbol,
		Side:      side,
		Type:      orderType,
		Amount:    amount,
		Price:     price,
		Timestamp: now.UnixMilli(),
		Datetime:  now.UTC().Format(time.RFC3339),
	}
	g.orders[order.ID] = &paperOrder{order: order}

	return order, nil
}

func (g *PaperGateway) FetchOrderStatus(ctx context.Context, orderID string) (*OrderStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	po, ok := g.orders[orderID]
	if !ok {
		return nil, &GatewayError{Exchange: g.name, Code: "not_found", Message: "order not found: " + orderID}
	}

	po.polls++
	status := models.OrderStatusOpen
	if po.polls >= g.fillAfter {
		status = models.OrderStatusFilled
	}

	return &OrderStatus{ID: orderID, Symbol: po.order.Symbol, Status: status}, nil
}

func (g *PaperGateway) FetchFills(ctx context.Context, symbol, orderID string) ([]Fill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	po, ok := g.orders[orderID]
	if !ok {
		return nil, &GatewayError{Exchange: g.name, Code: "not_found", Message: "order not found: " + orderID}
	}

	o := po.order
	fee := o.Price * o.Amount * 0.001
	return []Fill{{
		TradeID:   o.ID + "-1",
		OrderID:   o.ID,
		Timestamp: o.Timestamp,
		Datetime:  o.Datetime,
		Amount:    o.Amount,
		Price:     o.Price,
		Cost:      o.Price*o.Amount + fee,
	}}, nil
}

func (g *PaperGateway) Close() error {
	return nil
}
