package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
)

// ============================================================
// Tracker Tests
// ============================================================

// fakeGateway - скриптуемый шлюз для тестов риск-менеджмента
type fakeGateway struct {
	mu sync.Mutex

	statuses    []string // очередь статусов; последний повторяется
	statusCalls int
	fills       []exchange.Fill
	fillsCalls  int
	book        *exchange.OrderBook
	balance     float64
	placed      []exchange.Order
	placeErr    error
	limit       time.Duration
}

func (g *fakeGateway) GetName() string { return "fake" }

func (g *fakeGateway) FetchCandles(_ context.Context, _, _ string, _ int64, _ int) ([]models.Candle, error) {
	return nil, errors.New("not scripted")
}

func (g *fakeGateway) FetchTicker(_ context.Context, _ string) (*exchange.Ticker, error) {
	return nil, errors.New("not scripted")
}

func (g *fakeGateway) FetchOrderBook(_ context.Context, _ string, _ int) (*exchange.OrderBook, error) {
	if g.book == nil {
		return nil, errors.New("no book scripted")
	}
	return g.book, nil
}

func (g *fakeGateway) FetchBalance(_ context.Context, _ string) (float64, error) {
	return g.balance, nil
}

func (g *fakeGateway) PlaceOrder(_ context.Context, symbol, orderType, side string, amount, price float64) (*exchange.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.placeErr != nil {
		return nil, g.placeErr
	}
	o := exchange.Order{
		ID: "order-1", Symbol: symbol, Side: side, Type: orderType,
		Amount: amount, Price: price, Timestamp: 1000, Datetime: "2026-01-01T00:00:01Z",
	}
	g.placed = append(g.placed, o)
	return &o, nil
}

func (g *fakeGateway) FetchOrderStatus(_ context.Context, orderID string) (*exchange.OrderStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.statuses) == 0 {
		return nil, errors.New("no statuses scripted")
	}
	i := g.statusCalls
	if i >= len(g.statuses) {
		i = len(g.statuses) - 1
	}
	g.statusCalls++
	return &exchange.OrderStatus{ID: orderID, Status: g.statuses[i]}, nil
}

func (g *fakeGateway) FetchFills(_ context.Context, _, _ string) ([]exchange.Fill, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fillsCalls++
	return g.fills, nil
}

func (g *fakeGateway) RateLimit() time.Duration {
	if g.limit == 0 {
		return time.Millisecond
	}
	return g.limit
}

func (g *fakeGateway) SupportedIntervals() []string { return []string{"1m", "1h"} }
func (g *fakeGateway) Close() error                 { return nil }

// fakeTradeStore - потокобезопасный приёмник сделок
type fakeTradeStore struct {
	mu      sync.Mutex
	trades  []models.TradeRecord
	batches int
}

func (s *fakeTradeStore) InsertBatch(trades []models.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
	s.trades = append(s.trades, trades...)
	return nil
}

func testOrderRecord() *models.OrderRecord {
	return &models.OrderRecord{
		OrderID:   "order-1",
		Timestamp: 1000,
		Datetime:  "2026-01-01T00:00:01Z",
		OrderType: models.OrderTypeMarket,
		Exchange:  "fake",
		Symbol:    "BTC/USD",
		Side:      models.SideLong,
		Amount:    1,
		Price:     100,
	}
}

func TestTrackerCommitsFillsExactlyOnce(t *testing.T) {
	gw := &fakeGateway{
		statuses: []string{models.OrderStatusOpen, models.OrderStatusOpen, models.OrderStatusFilled},
		fills: []exchange.Fill{{
			TradeID: "trade-1", OrderID: "order-1",
			Timestamp: 2000, Datetime: "2026-01-01T00:00:02Z",
			Amount: 1, Price: 100, Cost: 100,
		}},
	}
	store := &fakeTradeStore{}
	tr := NewTracker(gw, store, time.Second)

	out, err := tr.Track(context.Background(), testOrderRecord())
	if err != nil {
		t.Fatalf("Track() error = %v", err)
	}

	if out.Outcome != OutcomeFilled {
		t.Errorf("outcome = %q, want %q", out.Outcome, OutcomeFilled)
	}
	if gw.statusCalls != 3 {
		t.Errorf("status polled %d times, want 3", gw.statusCalls)
	}
	if gw.fillsCalls != 1 || store.batches != 1 {
		t.Errorf("fills fetched %d times, committed %d batches, want exactly 1/1", gw.fillsCalls, store.batches)
	}
	if len(store.trades) != 1 {
		t.Fatalf("store has %d trades, want 1", len(store.trades))
	}

	got := store.trades[0]
	if got.TradeID != "trade-1" || got.OrderID != "order-1" || got.Amount != 1 || got.Price != 100 || got.Cost != 100 {
		t.Errorf("committed trade = %+v", got)
	}
}

func TestTrackerTimesOutWithoutWrites(t *testing.T) {
	gw := &fakeGateway{statuses: []string{models.OrderStatusOpen}}
	store := &fakeTradeStore{}
	tr := NewTracker(gw, store, 20*time.Millisecond)

	out, err := tr.Track(context.Background(), testOrderRecord())
	if err != nil {
		t.Fatalf("Track() error = %v", err)
	}

	if out.Outcome != OutcomeTimedOut {
		t.Errorf("outcome = %q, want %q", out.Outcome, OutcomeTimedOut)
	}
	if len(out.Trades) != 0 || len(store.trades) != 0 || store.batches != 0 {
		t.Errorf("timed out order must not write trades: %+v", store.trades)
	}
}

func TestTrackerTerminalWithoutFill(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{models.OrderStatusCancelled, OutcomeCancelled},
		{models.OrderStatusRejected, OutcomeRejected},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			gw := &fakeGateway{statuses: []string{models.OrderStatusOpen, tt.status}}
			store := &fakeTradeStore{}
			tr := NewTracker(gw, store, time.Second)

			out, err := tr.Track(context.Background(), testOrderRecord())
			if err != nil {
				t.Fatalf("Track() error = %v", err)
			}
			if out.Outcome != tt.want {
				t.Errorf("outcome = %q, want %q", out.Outcome, tt.want)
			}
			if len(store.trades) != 0 {
				t.Errorf("%s order must not write trades", tt.status)
			}
		})
	}
}

func TestTrackerCancelledContext(t *testing.T) {
	gw := &fakeGateway{statuses: []string{models.OrderStatusOpen}, limit: 50 * time.Millisecond}
	tr := NewTracker(gw, &fakeTradeStore{}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := tr.Track(ctx, testOrderRecord())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Track() error = %v, want context.Canceled", err)
	}
}
