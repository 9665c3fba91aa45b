package models

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrInvalidInterval возвращается для интервала, который нельзя разобрать
var ErrInvalidInterval = errors.New("invalid interval")

// Candle представляет свечу OHLCV одной серии
//
// Timestamp — unix миллисекунды начала периода. Живой тик хранится
// той же структурой: OHLCV последней свечи плюс bid/ask из тикера,
// timestamp берётся из тикера.
type Candle struct {
	Timestamp int64   `json:"timestamp" db:"timestamp"` // unix миллисекунды
	Exchange  string  `json:"exchange" db:"exchange"`
	Symbol    string  `json:"symbol" db:"symbol"`
	Interval  string  `json:"interval" db:"interval"`
	Datetime  string  `json:"datetime" db:"datetime"`
	Open      float64 `json:"open" db:"open"`
	High      float64 `json:"high" db:"high"`
	Low       float64 `json:"low" db:"low"`
	Close     float64 `json:"close" db:"close"`
	Volume    float64 `json:"volume" db:"volume"`
	Bid       float64 `json:"bid" db:"bid"`
	Ask       float64 `json:"ask" db:"ask"`
}

// SeriesKey идентифицирует одну серию свечей
type SeriesKey struct {
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
}

// String возвращает каноническую форму ключа серии
func (k SeriesKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Exchange, k.Symbol, k.Interval)
}

// IntervalDuration разбирает строковый интервал вида "5m", "1h", "1d", "1w".
//
// Количество — положительное целое, единица — m/h/d/w.
func IntervalDuration(interval string) (time.Duration, error) {
	if len(interval) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInterval, interval)
	}

	unit := interval[len(interval)-1]
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInterval, interval)
	}

	var base time.Duration
	switch unit {
	case 'm':
		base = time.Minute
	case 'h':
		base = time.Hour
	case 'd':
		base = 24 * time.Hour
	case 'w':
		base = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidInterval, interval)
	}

	return time.Duration(n) * base, nil
}

// IntervalMillis возвращает длину интервала в unix миллисекундах
func IntervalMillis(interval string) (int64, error) {
	d, err := IntervalDuration(interval)
	if err != nil {
		return 0, err
	}
	return d.Milliseconds(), nil
}
