package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tradebot/internal/models"
)

// ============================================================
// Engine Tests
// ============================================================

var errNotFound = errors.New("position not found")

type fakeCandleSource struct {
	rows map[string][]models.Candle // ключ: символ
}

func (s *fakeCandleSource) Latest(_, symbol, _ string, count int) ([]models.Candle, error) {
	rows := s.rows[symbol]
	if len(rows) > count {
		rows = rows[len(rows)-count:]
	}
	return rows, nil
}

type fakePositionSource struct {
	positions map[string]models.Position // ключ: символ
}

func (s *fakePositionSource) Get(_, symbol string) (*models.Position, error) {
	p, ok := s.positions[symbol]
	if !ok {
		return nil, errNotFound
	}
	return &p, nil
}

func (s *fakePositionSource) List() ([]models.Position, error) {
	out := make([]models.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	return out, nil
}

type fakeOrderSink struct {
	mu     sync.Mutex
	orders []models.OrderRecord
}

func (s *fakeOrderSink) Create(order *models.OrderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, *order)
	return nil
}

func newTestEngine(t *testing.T, gw *fakeGateway, candles *fakeCandleSource, positions *fakePositionSource, orders *fakeOrderSink, signal SignalFunc) *Engine {
	t.Helper()

	pc, err := NewPositionControl(RiskParams{Target: 0.1, StopLoss: 0.2})
	if err != nil {
		t.Fatalf("NewPositionControl() error = %v", err)
	}
	oc, err := NewOrderControl(DefaultSizingFractions())
	if err != nil {
		t.Fatalf("NewOrderControl() error = %v", err)
	}

	store := &fakeTradeStore{}
	e, err := NewEngine(gw, candles, positions, orders, pc, oc,
		NewTracker(gw, store, time.Second), signal, errNotFound,
		EngineConfig{Symbols: []string{"BTC/USD"}, Interval: "1h"})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

func tickRow(bid, ask float64) models.Candle {
	return models.Candle{
		Timestamp: 1000, Exchange: "fake", Symbol: "BTC/USD", Interval: "1h",
		Open: 100, High: 120, Low: 80, Close: (bid + ask) / 2,
		Bid: bid, Ask: ask,
	}
}

func TestEngineExitsPositionOnTarget(t *testing.T) {
	gw := &fakeGateway{
		statuses: []string{models.OrderStatusFilled},
		book:     testBook(114, 116),
		balance:  1000,
	}

	candles := &fakeCandleSource{rows: map[string][]models.Candle{
		"BTC/USD": {tickRow(114, 115)},
	}}
	positions := &fakePositionSource{positions: map[string]models.Position{
		"BTC/USD": {Exchange: "fake", Symbol: "BTC/USD", Side: models.SideLong, Amount: 4, Price: 100},
	}}
	orders := &fakeOrderSink{}

	e := newTestEngine(t, gw, candles, positions, orders, nil)

	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if len(gw.placed) != 1 {
		t.Fatalf("placed %d orders, want 1 exit order", len(gw.placed))
	}
	placed := gw.placed[0]
	if placed.Side != "sell" {
		t.Errorf("exit order side = %q, want sell", placed.Side)
	}
	// Выход: 0.5 × размер позиции, цена — середина стакана
	if !almostEqual(placed.Amount, 2) || !almostEqual(placed.Price, 115) {
		t.Errorf("exit order = amount %v price %v, want 2 / 115", placed.Amount, placed.Price)
	}

	if len(orders.orders) != 1 || orders.orders[0].Side != models.SideShort {
		t.Errorf("order record = %+v, want one short record", orders.orders)
	}
}

func TestEngineHoldsInsideBand(t *testing.T) {
	gw := &fakeGateway{book: testBook(104, 106), balance: 1000}
	candles := &fakeCandleSource{rows: map[string][]models.Candle{
		"BTC/USD": {tickRow(104, 105)},
	}}
	positions := &fakePositionSource{positions: map[string]models.Position{
		"BTC/USD": {Exchange: "fake", Symbol: "BTC/USD", Side: models.SideLong, Amount: 4, Price: 100},
	}}
	orders := &fakeOrderSink{}

	e := newTestEngine(t, gw, candles, positions, orders, nil)

	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if len(gw.placed) != 0 || len(orders.orders) != 0 {
		t.Errorf("no exit expected inside band, placed %d", len(gw.placed))
	}
}

func TestEngineEntersLongOnSignal(t *testing.T) {
	gw := &fakeGateway{
		statuses: []string{models.OrderStatusFilled},
		book:     testBook(99, 101),
		balance:  1000,
	}
	candles := &fakeCandleSource{rows: map[string][]models.Candle{
		"BTC/USD": {tickRow(99, 100)},
	}}
	positions := &fakePositionSource{positions: map[string]models.Position{}}
	orders := &fakeOrderSink{}

	signal := func(series []models.Candle) Signal {
		if len(series) == 0 {
			t.Error("signal called with empty series")
		}
		return SignalEnterLong
	}

	e := newTestEngine(t, gw, candles, positions, orders, signal)

	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if len(gw.placed) != 1 {
		t.Fatalf("placed %d orders, want 1 entry", len(gw.placed))
	}
	placed := gw.placed[0]
	if placed.Side != "buy" {
		t.Errorf("entry side = %q, want buy", placed.Side)
	}
	// Вход без позиции: 0.25 × 1000 / 100 = 2.5
	if !almostEqual(placed.Amount, 2.5) || !almostEqual(placed.Price, 100) {
		t.Errorf("entry order = amount %v price %v, want 2.5 / 100", placed.Amount, placed.Price)
	}
}

func TestEngineRejectsShortFromFlatBook(t *testing.T) {
	gw := &fakeGateway{book: testBook(99, 101), balance: 1000}
	candles := &fakeCandleSource{rows: map[string][]models.Candle{
		"BTC/USD": {tickRow(99, 100)},
	}}
	positions := &fakePositionSource{positions: map[string]models.Position{}}
	orders := &fakeOrderSink{}

	// Стратегия просит выйти, позиции нет: сигнал игнорируется,
	// прохода это не валит
	signal := func([]models.Candle) Signal { return SignalExitLong }

	e := newTestEngine(t, gw, candles, positions, orders, signal)

	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if len(gw.placed) != 0 {
		t.Errorf("short from flat book must not place orders, placed %d", len(gw.placed))
	}
}
