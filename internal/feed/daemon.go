package feed

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"tradebot/internal/models"
	"tradebot/internal/repository"
)

// Alert - операторское уведомление от демона
//
// Персистентные сбои тиков видимы оператору, но не останавливают
// цикл: доступность ленты важнее отдельного тика.
type Alert struct {
	Key     models.SeriesKey `json:"key"`
	Message string           `json:"message"`
	Err     error            `json:"-"`
	Time    time.Time        `json:"time"`
}

// CandleStore - операции хранилища, нужные демону
//
// *repository.CandleRepository удовлетворяет интерфейсу.
type CandleStore interface {
	InsertBatch(candles []models.Candle) error
	Insert(c models.Candle) error
	LatestTimestamp(exchange, symbol, interval string) (int64, bool, error)
}

// DaemonConfig - настройки тикер-демона
type DaemonConfig struct {
	// BackfillDepth - сколько свечей тянуть при старте
	BackfillDepth int

	// FailureAlertThreshold - сколько подряд неудачных тиков
	// (каждый уже после 3 retry) до отправки алерта
	FailureAlertThreshold int
}

// TickerDaemon - фоновый цикл опроса одной серии (exchange, symbol,
// interval)
//
// Состояния: Starting → Backfilling → Polling. Экземпляры независимы
// и разделяют только хранилище (через его внутренний мьютекс). Демон
// никогда не держит блокировку хранилища через сетевой вызов.
type TickerDaemon struct {
	key     models.SeriesKey
	acq     *Acquisition
	candles CandleStore
	cfg     DaemonConfig

	// alerts - канал операторских уведомлений (не блокирующий)
	alerts chan<- Alert

	// onTick - опциональный callback для каждого записанного тика
	// (broadcast в UI)
	onTick func(models.Candle)

	// sleep - пауза между тиками:
	// max(rateLimit биржи, длительность интервала).
	// Нижняя граница защищает и от превышения лимита биржи, и от
	// опроса чаще периода свечи (который возвращал бы ту же свечу).
	sleep time.Duration

	mu    sync.Mutex
	state string
}

// NewTickerDaemon создаёт демон для одной серии
func NewTickerDaemon(
	key models.SeriesKey,
	acq *Acquisition,
	candles CandleStore,
	alerts chan<- Alert,
	cfg DaemonConfig,
) (*TickerDaemon, error) {
	interval, err := models.IntervalDuration(key.Interval)
	if err != nil {
		return nil, err
	}

	if cfg.BackfillDepth <= 0 {
		cfg.BackfillDepth = 300
	}
	if cfg.FailureAlertThreshold <= 0 {
		cfg.FailureAlertThreshold = 3
	}

	sleep := acq.gw.RateLimit()
	if interval > sleep {
		sleep = interval
	}

	d := &TickerDaemon{
		key:     key,
		acq:     acq,
		candles: candles,
		cfg:     cfg,
		alerts:  alerts,
		sleep:   sleep,
		state:   models.DaemonStateStarting,
	}
	DaemonsByState.WithLabelValues(models.DaemonStateStarting).Inc()

	return d, nil
}

// SetOnTick устанавливает callback для записанных тиков.
// Вызывать до Run.
func (d *TickerDaemon) SetOnTick(fn func(models.Candle)) {
	d.onTick = fn
}

// Key возвращает ключ серии демона
func (d *TickerDaemon) Key() models.SeriesKey {
	return d.key
}

// State возвращает текущее состояние демона
func (d *TickerDaemon) State() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *TickerDaemon) setState(to string) {
	d.mu.Lock()
	from := d.state
	if !CanTransition(from, to) {
		d.mu.Unlock()
		log.Printf("feed: %s invalid state transition %s -> %s", d.key, from, to)
		return
	}
	d.state = to
	d.mu.Unlock()

	// Gauge считает только живые демоны: остановленный экземпляр
	// выбывает из метрики, иначе рестарты серии копили бы фантомные
	// "stopped" демоны
	DaemonsByState.WithLabelValues(from).Dec()
	if to != models.DaemonStateStopped {
		DaemonsByState.WithLabelValues(to).Inc()
	}
}

// Run выполняет цикл демона до отмены контекста или фатальной ошибки
// конфигурации
//
// Текущий тик дорабатывается до конца: in-flight вызовы шлюза при
// shutdown не прерываются принудительно.
func (d *TickerDaemon) Run(ctx context.Context) error {
	defer d.setState(models.DaemonStateStopped)

	d.setState(models.DaemonStateBackfilling)
	if err := d.backfill(ctx); err != nil {
		if errors.Is(err, ErrUnsupportedInterval) {
			// Ошибка конфигурации: фатальна для этого демона,
			// остальные продолжают работать
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Backfill не удался (сеть, пустая серия) — лента живых
		// тиков всё равно ценнее, чем мёртвый демон
		log.Printf("feed: %s backfill failed, continuing to polling: %v", d.key, err)
	}

	d.setState(models.DaemonStatePolling)
	return d.poll(ctx)
}

// backfill наполняет серию историей, идемпотентно к рестартам
func (d *TickerDaemon) backfill(ctx context.Context) error {
	step, err := models.IntervalMillis(d.key.Interval)
	if err != nil {
		return err
	}

	// Возобновление после рестарта: тянем только то, чего ещё нет
	latestTs, resuming, err := d.candles.LatestTimestamp(d.key.Exchange, d.key.Symbol, d.key.Interval)
	if err != nil {
		return err
	}

	var startTime int64
	if resuming {
		startTime = latestTs + step
	}

	candles, err := d.acq.FetchHistorical(ctx, d.key.Symbol, d.key.Interval, d.cfg.BackfillDepth, startTime)
	if err != nil {
		if resuming && errors.Is(err, ErrNoData) {
			// Серия уже актуальна
			return nil
		}
		return err
	}

	// Страховка идемпотентности: не вставляем то, что уже есть
	if resuming {
		fresh := candles[:0]
		for _, c := range candles {
			if c.Timestamp > latestTs {
				fresh = append(fresh, c)
			}
		}
		candles = fresh
	}
	if len(candles) == 0 {
		return nil
	}

	if err := d.candles.InsertBatch(candles); err != nil {
		return err
	}

	BackfillRows.WithLabelValues(d.key.Exchange, d.key.Symbol, d.key.Interval).Add(float64(len(candles)))
	log.Printf("feed: %s backfilled %d candles", d.key, len(candles))

	return nil
}

// poll - бесконечный цикл живых тиков
func (d *TickerDaemon) poll(ctx context.Context) error {
	failures := 0

	for {
		if err := d.tickOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			failures++
			TickFailures.WithLabelValues(d.key.Exchange, d.key.Symbol, d.key.Interval).Inc()
			log.Printf("feed: %s tick failed (%d consecutive): %v", d.key, failures, err)

			if failures >= d.cfg.FailureAlertThreshold {
				d.sendAlert(Alert{
					Key:     d.key,
					Message: "persistent tick failures",
					Err:     err,
					Time:    time.Now(),
				})
				failures = 0
			}
		} else {
			failures = 0
		}

		select {
		case <-time.After(d.sleep):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// tickOnce получает один живой тик и записывает его в хранилище
func (d *TickerDaemon) tickOnce(ctx context.Context) error {
	tick, err := d.acq.FetchLiveTick(ctx, d.key.Symbol, d.key.Interval)
	if err != nil {
		return err
	}

	if err := d.candles.Insert(tick); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			// Повторный timestamp — биржа отдала тот же тикер;
			// пропускаем, серия не повреждена
			return nil
		}
		return err
	}

	TicksIngested.WithLabelValues(d.key.Exchange, d.key.Symbol, d.key.Interval).Inc()

	if d.onTick != nil {
		d.onTick(tick)
	}

	return nil
}

// sendAlert отправляет уведомление без блокировки цикла
func (d *TickerDaemon) sendAlert(a Alert) {
	if d.alerts == nil {
		return
	}
	select {
	case d.alerts <- a:
	default:
		log.Printf("feed: %s alert channel full, dropping: %s", d.key, a.Message)
	}
}
