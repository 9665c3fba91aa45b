package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
)

// Signal - торговый сигнал стратегии
type Signal int

const (
	SignalNone Signal = iota
	SignalEnterLong
	SignalExitLong
)

// SignalFunc - контракт стратегии: серия свечей → сигнал
//
// Вычисление индикаторов и сама стратегия — внешние коллабораторы;
// ядро потребляет только этот вызов.
type SignalFunc func(candles []models.Candle) Signal

// CandleSource - чтение свечей, нужное движку
//
// *repository.CandleRepository удовлетворяет интерфейсу.
type CandleSource interface {
	Latest(exchange, symbol, interval string, count int) ([]models.Candle, error)
}

// PositionSource - чтение позиций, нужное движку
//
// *repository.PositionRepository удовлетворяет интерфейсу.
type PositionSource interface {
	Get(exchange, symbol string) (*models.Position, error)
	List() ([]models.Position, error)
}

// OrderSink - запись размещённых ордеров
//
// *repository.OrderRepository удовлетворяет интерфейсу.
type OrderSink interface {
	Create(order *models.OrderRecord) error
}

// EngineConfig - настройки цикла принятия решений
type EngineConfig struct {
	Symbols   []string
	Interval  string
	Lookback  int           // глубина серии для стратегии
	Cadence   time.Duration // пауза между проходами
	OrderType string        // market или limit
}

// Engine - цикл принятия решений на переднем плане
//
// Один проход: разметить открытые позиции текущими котировками,
// оценить выходы, опросить стратегию на входы, рассчитать цену/размер,
// разместить ордер и довести его до сделки через Tracker.
type Engine struct {
	gw        exchange.Gateway
	candles   CandleSource
	positions PositionSource
	orders    OrderSink
	pc        *PositionControl
	oc        *OrderControl
	tracker   *Tracker
	signal    SignalFunc
	cfg       EngineConfig

	notFound error // ошибка "позиции нет" от PositionSource
}

// NewEngine собирает движок из компонентов риск-менеджмента
//
// notFound - сентинел PositionSource для отсутствующей позиции
// (repository.ErrPositionNotFound в боевой сборке).
func NewEngine(
	gw exchange.Gateway,
	candles CandleSource,
	positions PositionSource,
	orders OrderSink,
	pc *PositionControl,
	oc *OrderControl,
	tracker *Tracker,
	signal SignalFunc,
	notFound error,
	cfg EngineConfig,
) (*Engine, error) {
	if len(cfg.Symbols) == 0 {
		return nil, errors.New("engine: no symbols configured")
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 50
	}
	if cfg.Cadence <= 0 {
		cfg.Cadence = time.Minute
	}
	if cfg.OrderType == "" {
		cfg.OrderType = models.OrderTypeMarket
	}

	return &Engine{
		gw:        gw,
		candles:   candles,
		positions: positions,
		orders:    orders,
		pc:        pc,
		oc:        oc,
		tracker:   tracker,
		signal:    signal,
		notFound:  notFound,
		cfg:       cfg,
	}, nil
}

// Run крутит проходы до отмены контекста
func (e *Engine) Run(ctx context.Context) error {
	for {
		if err := e.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("bot: decision pass failed: %v", err)
		}

		select {
		case <-time.After(e.cfg.Cadence):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce выполняет один проход принятия решений
func (e *Engine) RunOnce(ctx context.Context) error {
	if err := e.evaluateExits(ctx); err != nil {
		return err
	}
	return e.evaluateEntries(ctx)
}

// evaluateExits размечает открытые позиции и закрывает сработавшие
func (e *Engine) evaluateExits(ctx context.Context) error {
	open, err := e.positions.List()
	if err != nil {
		DecisionErrors.WithLabelValues("marks").Inc()
		return fmt.Errorf("list positions: %w", err)
	}
	if len(open) == 0 {
		return nil
	}

	marks := make([]Mark, 0, len(open))
	for _, p := range open {
		rows, err := e.candles.Latest(p.Exchange, p.Symbol, e.cfg.Interval, 1)
		if err != nil || len(rows) == 0 {
			DecisionErrors.WithLabelValues("marks").Inc()
			log.Printf("bot: no quote for %s %s, skipping this pass: %v", p.Exchange, p.Symbol, err)
			continue
		}
		last := rows[len(rows)-1]
		marks = append(marks, Mark{Position: p, Bid: last.Bid, Ask: last.Ask})
	}

	decisions, err := e.pc.EvaluateBatch(marks)
	if err != nil {
		DecisionErrors.WithLabelValues("evaluate").Inc()
		log.Printf("bot: some positions could not be evaluated: %v", err)
	}

	for i, d := range decisions {
		if !d.Exit {
			continue
		}
		ExitSignals.WithLabelValues(d.Exchange, d.Symbol, d.Reason).Inc()
		log.Printf("bot: exit signal for %s %s (%s)", d.Exchange, d.Symbol, d.Reason)

		pos := marks[i].Position
		if err := e.placeAndTrack(ctx, pos.Symbol, models.SideShort, &pos, 0); err != nil {
			log.Printf("bot: exit order for %s failed: %v", pos.Symbol, err)
		}
	}

	return nil
}

// evaluateEntries опрашивает стратегию по каждому инструменту
func (e *Engine) evaluateEntries(ctx context.Context) error {
	if e.signal == nil {
		return nil
	}

	for _, symbol := range e.cfg.Symbols {
		series, err := e.candles.Latest(e.gw.GetName(), symbol, e.cfg.Interval, e.cfg.Lookback)
		if err != nil {
			DecisionErrors.WithLabelValues("marks").Inc()
			log.Printf("bot: no series for %s, skipping: %v", symbol, err)
			continue
		}
		if len(series) == 0 {
			continue
		}

		pos, err := e.positions.Get(e.gw.GetName(), symbol)
		if err != nil {
			if e.notFound == nil || !errors.Is(err, e.notFound) {
				DecisionErrors.WithLabelValues("marks").Inc()
				log.Printf("bot: position lookup for %s failed: %v", symbol, err)
				continue
			}
			pos = nil
		}

		var side string
		switch e.signal(series) {
		case SignalEnterLong:
			side = models.SideLong
		case SignalExitLong:
			if pos == nil {
				continue // нечего закрывать
			}
			side = models.SideShort
		default:
			continue
		}

		if err := e.placeAndTrack(ctx, symbol, side, pos, 0); err != nil {
			log.Printf("bot: order for %s failed: %v", symbol, err)
		}
	}

	return nil
}

// placeAndTrack рассчитывает ордер, размещает его, пишет запись и
// доводит до сделки
//
// limitPrice == 0 означает цену из середины стакана.
func (e *Engine) placeAndTrack(ctx context.Context, symbol, side string, pos *models.Position, limitPrice float64) error {
	book, err := e.gw.FetchOrderBook(ctx, symbol, 1)
	if err != nil {
		DecisionErrors.WithLabelValues("quote").Inc()
		return fmt.Errorf("fetch order book %s: %w", symbol, err)
	}

	free, err := e.gw.FetchBalance(ctx, quoteCurrency(symbol))
	if err != nil {
		DecisionErrors.WithLabelValues("quote").Inc()
		return fmt.Errorf("fetch balance %s: %w", symbol, err)
	}

	quote, err := e.oc.PriceAndSize(side, pos, free, limitPrice, book)
	if err != nil {
		if errors.Is(err, ErrShortSellNotPermitted) {
			// Отказ политики, не сбой: фиксируем и продолжаем
			log.Printf("bot: %s %s rejected: %v", side, symbol, err)
			return nil
		}
		DecisionErrors.WithLabelValues("quote").Inc()
		return err
	}
	if quote.Size <= 0 {
		return nil
	}

	placed, err := e.gw.PlaceOrder(ctx, symbol, e.cfg.OrderType, orderSideFor(side), quote.Size, quote.Price)
	if err != nil {
		DecisionErrors.WithLabelValues("place").Inc()
		return fmt.Errorf("place order %s %s: %w", side, symbol, err)
	}

	record := &models.OrderRecord{
		OrderID:   placed.ID,
		Timestamp: placed.Timestamp,
		Datetime:  placed.Datetime,
		OrderType: placed.Type,
		Exchange:  e.gw.GetName(),
		Symbol:    symbol,
		Side:      models.SideFromOrderSide(placed.Side),
		Amount:    placed.Amount,
		Price:     placed.Price,
	}
	if err := e.orders.Create(record); err != nil {
		DecisionErrors.WithLabelValues("place").Inc()
		return fmt.Errorf("record order %s: %w", placed.ID, err)
	}

	OrdersPlaced.WithLabelValues(record.Exchange, symbol, record.Side).Inc()
	log.Printf("bot: placed %s %s %s amount=%v price=%v id=%s",
		record.OrderType, record.Side, symbol, record.Amount, record.Price, record.OrderID)

	outcome, err := e.tracker.Track(ctx, record)
	if err != nil {
		DecisionErrors.WithLabelValues("track").Inc()
		return fmt.Errorf("track order %s: %w", record.OrderID, err)
	}
	if outcome.Outcome != OutcomeFilled {
		log.Printf("bot: order %s ended %s without fills", record.OrderID, outcome.Outcome)
	}

	return nil
}

// orderSideFor переводит сторону позиции в биржевую сторону ордера
func orderSideFor(side string) string {
	if side == models.SideLong {
		return exchange.SideBuy
	}
	return exchange.SideSell
}

// quoteCurrency извлекает валюту котировки из пары вида BTC/USD
func quoteCurrency(symbol string) string {
	if i := strings.LastIndex(symbol, "/"); i >= 0 {
		return symbol[i+1:]
	}
	return symbol
}
