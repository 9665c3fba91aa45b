package feed

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
)

// ============================================================
// Acquisition Tests
// ============================================================

// fakeGateway - скриптуемый шлюз для тестов
type fakeGateway struct {
	name      string
	intervals []string
	limit     time.Duration

	candlesFn func(since int64, limit int) ([]models.Candle, error)
	tickerFn  func() (*exchange.Ticker, error)
}

func (g *fakeGateway) GetName() string {
	if g.name == "" {
		return "fake"
	}
	return g.name
}

func (g *fakeGateway) FetchCandles(_ context.Context, _, _ string, since int64, limit int) ([]models.Candle, error) {
	if g.candlesFn == nil {
		return nil, nil
	}
	return g.candlesFn(since, limit)
}

func (g *fakeGateway) FetchTicker(_ context.Context, _ string) (*exchange.Ticker, error) {
	if g.tickerFn == nil {
		return nil, errors.New("no ticker scripted")
	}
	return g.tickerFn()
}

func (g *fakeGateway) FetchOrderBook(_ context.Context, _ string, _ int) (*exchange.OrderBook, error) {
	return nil, errors.New("not scripted")
}

func (g *fakeGateway) FetchBalance(_ context.Context, _ string) (float64, error) {
	return 0, errors.New("not scripted")
}

func (g *fakeGateway) PlaceOrder(_ context.Context, _, _, _ string, _, _ float64) (*exchange.Order, error) {
	return nil, errors.New("not scripted")
}

func (g *fakeGateway) FetchOrderStatus(_ context.Context, _ string) (*exchange.OrderStatus, error) {
	return nil, errors.New("not scripted")
}

func (g *fakeGateway) FetchFills(_ context.Context, _, _ string) ([]exchange.Fill, error) {
	return nil, errors.New("not scripted")
}

func (g *fakeGateway) RateLimit() time.Duration {
	if g.limit == 0 {
		return time.Millisecond
	}
	return g.limit
}

func (g *fakeGateway) SupportedIntervals() []string {
	if g.intervals == nil {
		return []string{"1m", "5m", "1h", "6h", "1d", "1w"}
	}
	return g.intervals
}

func (g *fakeGateway) Close() error { return nil }

// genCandles генерирует n свечей с шагом step, начиная с start
func genCandles(start, step int64, n int) []models.Candle {
	candles := make([]models.Candle, 0, n)
	for i := 0; i < n; i++ {
		ts := start + int64(i)*step
		candles = append(candles, models.Candle{
			Timestamp: ts,
			Symbol:    "BTC/USD",
			Open:      100, High: 110, Low: 90, Close: 105,
			Volume: 1,
		})
	}
	return candles
}

// assertSeries проверяет инварианты собранной серии: строго
// возрастающие timestamp, заполненные exchange/interval
func assertSeries(t *testing.T, candles []models.Candle, exchangeName, interval string) {
	t.Helper()
	for i, c := range candles {
		if i > 0 && c.Timestamp <= candles[i-1].Timestamp {
			t.Fatalf("timestamps not strictly increasing at %d: %d then %d", i, candles[i-1].Timestamp, c.Timestamp)
		}
		if c.Exchange != exchangeName {
			t.Errorf("candle %d exchange = %q, want %q", i, c.Exchange, exchangeName)
		}
		if c.Interval != interval {
			t.Errorf("candle %d interval = %q, want %q", i, c.Interval, interval)
		}
	}
}

func TestFetchHistoricalSinglePage(t *testing.T) {
	// Страница намеренно не отсортирована и содержит дубликат
	page := []models.Candle{
		{Timestamp: 3000, Close: 3},
		{Timestamp: 1000, Close: 1},
		{Timestamp: 2000, Close: 2},
		{Timestamp: 2000, Close: 2.5},
	}

	nowMs := int64(4000)
	gw := &fakeGateway{
		candlesFn: func(since int64, limit int) ([]models.Candle, error) {
			return page, nil
		},
	}

	a := NewAcquisition(gw, 0)
	a.now = func() time.Time { return time.UnixMilli(nowMs) }

	// step(1m)=60000, last ts 3000 > nowMs-step → пагинация не нужна
	got, err := a.FetchHistorical(context.Background(), "BTC/USD", "1m", 10, 1000)
	if err != nil {
		t.Fatalf("FetchHistorical() error = %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("got %d candles, want 3 (sorted, deduped)", len(got))
	}
	assertSeries(t, got, "fake", "1m")
	if got[0].Timestamp != 1000 || got[2].Timestamp != 3000 {
		t.Errorf("unexpected bounds: first=%d last=%d", got[0].Timestamp, got[2].Timestamp)
	}
}

func TestFetchHistoricalPagination(t *testing.T) {
	const step = int64(60000) // 1m
	nowMs := int64(100 * step)

	// Три перекрывающиеся страницы; каждая следующая запрошена с
	// якоря lastTs+step
	pages := [][]models.Candle{
		genCandles(10*step, step, 20),
		genCandles(28*step, step, 20), // перекрытие со страницей 1
		genCandles(47*step, step, 60), // доходит до "сейчас"
	}

	var sinceArgs []int64
	call := 0
	gw := &fakeGateway{
		candlesFn: func(since int64, limit int) ([]models.Candle, error) {
			sinceArgs = append(sinceArgs, since)
			if call >= len(pages) {
				return nil, nil
			}
			p := pages[call]
			call++
			return p, nil
		},
	}

	a := NewAcquisition(gw, 0)
	a.now = func() time.Time { return time.UnixMilli(nowMs) }

	got, err := a.FetchHistorical(context.Background(), "BTC/USD", "1m", 500, 10*step)
	if err != nil {
		t.Fatalf("FetchHistorical() error = %v", err)
	}

	assertSeries(t, got, "fake", "1m")

	// 10*step..106*step без дубликатов = 97 свечей
	if len(got) != 97 {
		t.Errorf("got %d candles, want 97", len(got))
	}

	// Якорь пагинации: lastTs + step, а не фиксированная сетка
	want2 := pages[0][len(pages[0])-1].Timestamp + step
	want3 := pages[1][len(pages[1])-1].Timestamp + step
	if len(sinceArgs) < 3 || sinceArgs[1] != want2 || sinceArgs[2] != want3 {
		t.Errorf("since args = %v, want anchors %d, %d after first page", sinceArgs, want2, want3)
	}
}

func TestFetchHistoricalDefaultStart(t *testing.T) {
	const step = int64(60000)
	nowMs := int64(1000 * step)

	var gotSince int64
	gw := &fakeGateway{
		candlesFn: func(since int64, limit int) ([]models.Candle, error) {
			gotSince = since
			return genCandles(nowMs-5*step, step, 5), nil
		},
	}

	a := NewAcquisition(gw, 0)
	a.now = func() time.Time { return time.UnixMilli(nowMs) }

	if _, err := a.FetchHistorical(context.Background(), "BTC/USD", "1m", 5, 0); err != nil {
		t.Fatalf("FetchHistorical() error = %v", err)
	}

	if want := nowMs - 5*step; gotSince != want {
		t.Errorf("default start = %d, want now - maxPeriods*step = %d", gotSince, want)
	}
}

func TestFetchHistoricalErrors(t *testing.T) {
	tests := []struct {
		name     string
		interval string
		candles  []models.Candle
		wantErr  error
	}{
		{
			name:     "unsupported interval",
			interval: "1m",
			wantErr:  ErrUnsupportedInterval,
		},
		{
			name:     "empty first page",
			interval: "1h",
			candles:  nil,
			wantErr:  ErrNoData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{
				intervals: []string{"1h"},
				candlesFn: func(since int64, limit int) ([]models.Candle, error) {
					return tt.candles, nil
				},
			}
			a := NewAcquisition(gw, 0)

			_, err := a.FetchHistorical(context.Background(), "BTC/USD", tt.interval, 10, 1000)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("FetchHistorical() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFetchHistoricalCeilingReturnsPartial(t *testing.T) {
	const step = int64(60000)
	nowMs := int64(1000 * step)

	// Биржа вечно отдаёт по одной старой свече — без потолка цикл
	// не завершился бы
	next := int64(10 * step)
	gw := &fakeGateway{
		candlesFn: func(since int64, limit int) ([]models.Candle, error) {
			c := genCandles(next, step, 1)
			next += step
			return c, nil
		},
	}

	// Фальшивые часы: каждый взгляд продвигает время на 30мс,
	// потолок в 50мс срабатывает на первой же итерации пагинации
	a := NewAcquisition(gw, 50*time.Millisecond)
	clock := time.UnixMilli(nowMs)
	a.now = func() time.Time {
		clock = clock.Add(30 * time.Millisecond)
		return clock
	}

	got, err := a.FetchHistorical(context.Background(), "BTC/USD", "1m", 500, 10*step)
	if err != nil {
		t.Fatalf("ceiling must yield partial result, got error %v", err)
	}
	if len(got) == 0 || len(got) >= 500 {
		t.Errorf("got %d candles, want partial non-empty result", len(got))
	}
}

func TestFetchHistoricalStopsOnEmptyPage(t *testing.T) {
	const step = int64(60000)
	nowMs := int64(1000 * step)

	call := 0
	gw := &fakeGateway{
		candlesFn: func(since int64, limit int) ([]models.Candle, error) {
			call++
			if call == 1 {
				return genCandles(10*step, step, 5), nil
			}
			return nil, nil
		},
	}

	a := NewAcquisition(gw, 0)
	a.now = func() time.Time { return time.UnixMilli(nowMs) }

	got, err := a.FetchHistorical(context.Background(), "BTC/USD", "1m", 500, 10*step)
	if err != nil {
		t.Fatalf("FetchHistorical() error = %v", err)
	}
	if len(got) != 5 {
		t.Errorf("got %d candles, want the 5 the exchange had", len(got))
	}
	if call != 2 {
		t.Errorf("gateway called %d times, want 2 (stop on empty page)", call)
	}
}

// Свойство: при любых перекрывающихся страницах результат строго
// возрастает по timestamp и не содержит дубликатов
func TestFetchHistoricalRandomOverlappingPages(t *testing.T) {
	const step = int64(60000)
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 20; trial++ {
		nowMs := int64(500 * step)
		base := genCandles(step, step, 400)

		gw := &fakeGateway{
			candlesFn: func(since int64, limit int) ([]models.Candle, error) {
				// Страница: всё от случайной точки не позже since,
				// случайной длины, перемешанное
				from := since - int64(rng.Intn(5))*step
				var page []models.Candle
				for _, c := range base {
					if c.Timestamp >= from {
						page = append(page, c)
					}
				}
				if n := 1 + rng.Intn(50); len(page) > n {
					page = page[:n]
				}
				rng.Shuffle(len(page), func(i, j int) { page[i], page[j] = page[j], page[i] })
				return page, nil
			},
		}

		a := NewAcquisition(gw, 0)
		a.now = func() time.Time { return time.UnixMilli(nowMs) }

		got, err := a.FetchHistorical(context.Background(), "BTC/USD", "1m", 100, step)
		if err != nil {
			t.Fatalf("trial %d: FetchHistorical() error = %v", trial, err)
		}
		assertSeries(t, got, "fake", "1m")
	}
}

func TestFetchHistoricalRetriesTransient(t *testing.T) {
	const step = int64(60000)
	nowMs := int64(100 * step)

	call := 0
	gw := &fakeGateway{
		candlesFn: func(since int64, limit int) ([]models.Candle, error) {
			call++
			if call == 1 {
				return nil, exchange.NewNetworkError("fake", "connection reset", errors.New("reset"))
			}
			return genCandles(nowMs-3*step, step, 3), nil
		},
	}

	a := NewAcquisition(gw, 0)
	a.now = func() time.Time { return time.UnixMilli(nowMs) }

	got, err := a.FetchHistorical(context.Background(), "BTC/USD", "1m", 3, 0)
	if err != nil {
		t.Fatalf("FetchHistorical() error = %v, want retry to recover", err)
	}
	if len(got) != 3 {
		t.Errorf("got %d candles, want 3", len(got))
	}
	if call != 2 {
		t.Errorf("gateway called %d times, want 2 (one retry)", call)
	}
}

func TestFetchLiveTick(t *testing.T) {
	gw := &fakeGateway{
		candlesFn: func(since int64, limit int) ([]models.Candle, error) {
			if since != 0 || limit != 1 {
				t.Errorf("live candle fetched with since=%d limit=%d, want 0/1", since, limit)
			}
			return []models.Candle{{
				Timestamp: 1000,
				Open:      100, High: 110, Low: 90, Close: 105,
				Volume: 2,
			}}, nil
		},
		tickerFn: func() (*exchange.Ticker, error) {
			return &exchange.Ticker{
				Symbol: "BTC/USD", Last: 106,
				Bid: 105.5, Ask: 106.5,
				Timestamp: 5000, Datetime: "2026-01-01T00:00:05Z",
			}, nil
		},
	}

	a := NewAcquisition(gw, 0)

	tick, err := a.FetchLiveTick(context.Background(), "BTC/USD", "1m")
	if err != nil {
		t.Fatalf("FetchLiveTick() error = %v", err)
	}

	// Timestamp строки — момент тикера, не свечи
	if tick.Timestamp != 5000 {
		t.Errorf("tick timestamp = %d, want ticker timestamp 5000", tick.Timestamp)
	}
	if tick.Datetime != "2026-01-01T00:00:05Z" {
		t.Errorf("tick datetime = %q", tick.Datetime)
	}
	if tick.Bid != 105.5 || tick.Ask != 106.5 {
		t.Errorf("tick bid/ask = %v/%v, want 105.5/106.5", tick.Bid, tick.Ask)
	}
	if tick.Open != 100 || tick.Close != 105 || tick.Volume != 2 {
		t.Errorf("tick OHLCV not taken from last candle: %+v", tick)
	}
	if tick.Exchange != "fake" || tick.Interval != "1m" {
		t.Errorf("tick not stamped: exchange=%q interval=%q", tick.Exchange, tick.Interval)
	}
}

func TestFetchLiveTickErrors(t *testing.T) {
	tests := []struct {
		name     string
		interval string
		candles  []models.Candle
		ticker   *exchange.Ticker
		wantErr  error
	}{
		{
			name:     "unsupported interval",
			interval: "1w",
			wantErr:  ErrUnsupportedInterval,
		},
		{
			name:     "empty candle",
			interval: "1m",
			candles:  nil,
			ticker:   &exchange.Ticker{Timestamp: 1},
			wantErr:  ErrNoData,
		},
		{
			name:     "empty ticker",
			interval: "1m",
			candles:  []models.Candle{{Timestamp: 1000}},
			ticker:   &exchange.Ticker{},
			wantErr:  ErrNoData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{
				intervals: []string{"1m"},
				candlesFn: func(since int64, limit int) ([]models.Candle, error) {
					return tt.candles, nil
				},
				tickerFn: func() (*exchange.Ticker, error) {
					return tt.ticker, nil
				},
			}
			a := NewAcquisition(gw, 0)

			_, err := a.FetchLiveTick(context.Background(), "BTC/USD", tt.interval)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("FetchLiveTick() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
