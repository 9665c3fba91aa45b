package feed

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
	"tradebot/pkg/ratelimit"
	"tradebot/pkg/retry"
)

// DefaultPaginationCeiling - жёсткий потолок времени пагинации backfill
//
// На тонком рынке серия может никогда не набрать maxPeriods свечей:
// без потолка цикл пагинации не завершился бы. Достижение потолка —
// не ошибка, а восстановимый частичный результат.
const DefaultPaginationCeiling = 2 * time.Minute

// Acquisition - получение исторических свечей и живых тиков от шлюза
//
// Оборачивает каждый вызов шлюза в retry (до 3 попыток, только
// временные сетевые ошибки) и выдерживает rateLimit биржи между
// страницами пагинации.
type Acquisition struct {
	gw      exchange.Gateway
	pacer   *ratelimit.Pacer
	ceiling time.Duration

	// для тестов
	now func() time.Time
}

// NewAcquisition создаёт движок получения данных для шлюза
//
// ceiling <= 0 означает DefaultPaginationCeiling.
func NewAcquisition(gw exchange.Gateway, ceiling time.Duration) *Acquisition {
	if ceiling <= 0 {
		ceiling = DefaultPaginationCeiling
	}
	return &Acquisition{
		gw:      gw,
		pacer:   ratelimit.NewPacer(gw.RateLimit()),
		ceiling: ceiling,
		now:     time.Now,
	}
}

// FetchHistorical собирает непрерывную дедуплицированную серию свечей
//
// Алгоритм:
//  1. startTime <= 0 → now - maxPeriods*interval.
//  2. Страница от шлюза → сортировка → дедупликация.
//  3. Пока собрано < maxPeriods И окно покрытия не дошло до "сейчас":
//     пауза не меньше rateLimit, старт окна = lastTs + interval,
//     следующая страница. Якорь — последний фактический timestamp,
//     а не фиксированная сетка: биржи отдают страницы переменной длины.
//  4. По достижении потолка времени возвращается собранное.
//
// Результат отсортирован по возрастанию timestamp, без дубликатов,
// с заполненными exchange/interval. ErrNoData — если первая страница
// пуста.
func (a *Acquisition) FetchHistorical(ctx context.Context, symbol, interval string, maxPeriods int, startTime int64) ([]models.Candle, error) {
	if !exchange.SupportsInterval(a.gw, interval) {
		return nil, fmt.Errorf("%w: %s does not support %q (supported: %v)",
			ErrUnsupportedInterval, a.gw.GetName(), interval, a.gw.SupportedIntervals())
	}

	step, err := models.IntervalMillis(interval)
	if err != nil {
		return nil, err
	}

	nowMs := a.now().UnixMilli()
	if startTime <= 0 {
		startTime = nowMs - int64(maxPeriods)*step
	}

	deadline := a.now().Add(a.ceiling)

	page, err := a.fetchPage(ctx, symbol, interval, startTime, 0)
	if err != nil {
		return nil, err
	}

	collected := sortDedup(page)
	if len(collected) == 0 {
		return nil, fmt.Errorf("%w: %s %s %s", ErrNoData, a.gw.GetName(), symbol, interval)
	}

	// REST пагинация: окно покрытия двигается от последней полученной
	// свечи, пока не наберём maxPeriods или не дойдём до текущего
	// момента
	for len(collected) < maxPeriods && collected[len(collected)-1].Timestamp < nowMs-step {
		if a.now().After(deadline) {
			// Частичный результат: тонкий рынок или медленная биржа
			log.Printf("feed: pagination ceiling reached for %s %s %s, returning %d candles",
				a.gw.GetName(), symbol, interval, len(collected))
			BackfillCeilingHits.WithLabelValues(a.gw.GetName(), symbol, interval).Inc()
			break
		}

		if err := a.pacer.Wait(ctx); err != nil {
			return collected, err
		}

		since := collected[len(collected)-1].Timestamp + step
		page, err := a.fetchPage(ctx, symbol, interval, since, 0)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break // биржа больше ничего не отдаёт
		}

		collected = mergePage(collected, sortDedup(page))
	}

	a.stamp(collected, symbol, interval)
	return collected, nil
}

// FetchLiveTick получает один живой тик: последнюю свечу плюс
// текущий тикер (bid/ask)
//
// Timestamp строки — момент тикера, как отдала биржа. ErrNoData — если
// биржа вернула пустую свечу или пустой тикер.
func (a *Acquisition) FetchLiveTick(ctx context.Context, symbol, interval string) (models.Candle, error) {
	var zero models.Candle

	if !exchange.SupportsInterval(a.gw, interval) {
		return zero, fmt.Errorf("%w: %s does not support %q (supported: %v)",
			ErrUnsupportedInterval, a.gw.GetName(), interval, a.gw.SupportedIntervals())
	}

	candles, err := a.fetchPage(ctx, symbol, interval, 0, 1)
	if err != nil {
		return zero, err
	}
	if len(candles) == 0 {
		return zero, fmt.Errorf("%w: %s %s %s candle", ErrNoData, a.gw.GetName(), symbol, interval)
	}

	ticker, err := retry.DoWithResult(ctx, func() (*exchange.Ticker, error) {
		return a.gw.FetchTicker(ctx, symbol)
	}, retry.GatewayConfig())
	if err != nil {
		FetchErrors.WithLabelValues(a.gw.GetName(), symbol, "ticker").Inc()
		return zero, err
	}
	if ticker == nil || ticker.Timestamp == 0 {
		return zero, fmt.Errorf("%w: %s %s ticker", ErrNoData, a.gw.GetName(), symbol)
	}

	last := candles[len(candles)-1]
	tick := models.Candle{
		Timestamp: ticker.Timestamp,
		Exchange:  a.gw.GetName(),
		Symbol:    symbol,
		Interval:  interval,
		Datetime:  ticker.Datetime,
		Open:      last.Open,
		High:      last.High,
		Low:       last.Low,
		Close:     last.Close,
		Volume:    last.Volume,
		Bid:       ticker.Bid,
		Ask:       ticker.Ask,
	}

	return tick, nil
}

// fetchPage выполняет один вызов FetchCandles с retry
func (a *Acquisition) fetchPage(ctx context.Context, symbol, interval string, since int64, limit int) ([]models.Candle, error) {
	page, err := retry.DoWithResult(ctx, func() ([]models.Candle, error) {
		return a.gw.FetchCandles(ctx, symbol, interval, since, limit)
	}, retry.GatewayConfig())
	if err != nil {
		FetchErrors.WithLabelValues(a.gw.GetName(), symbol, "candles").Inc()
		return nil, err
	}
	return page, nil
}

// stamp заполняет exchange/symbol/interval во всех свечах
//
// Биржи не всегда возвращают эти поля в OHLCV ответе, а хранилище
// ключуется по ним.
func (a *Acquisition) stamp(candles []models.Candle, symbol, interval string) {
	name := a.gw.GetName()
	for i := range candles {
		candles[i].Exchange = name
		candles[i].Symbol = symbol
		candles[i].Interval = interval
	}
}

// sortDedup сортирует свечи по timestamp и убирает дубликаты
//
// Дедупликация обязательна, не best-effort: хранилище отвергает
// повторные timestamps как нарушение целостности.
func sortDedup(candles []models.Candle) []models.Candle {
	if len(candles) == 0 {
		return candles
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp < candles[j].Timestamp
	})

	out := candles[:1]
	for _, c := range candles[1:] {
		if c.Timestamp != out[len(out)-1].Timestamp {
			out = append(out, c)
		}
	}

	return out
}

// mergePage присоединяет отсортированную страницу к собранной серии,
// отбрасывая свечи не новее последней собранной
func mergePage(collected, page []models.Candle) []models.Candle {
	lastTs := collected[len(collected)-1].Timestamp
	for _, c := range page {
		if c.Timestamp > lastTs {
			collected = append(collected, c)
			lastTs = c.Timestamp
		}
	}
	return collected
}
