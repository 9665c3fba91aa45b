package repository

import (
	"database/sql"
	"fmt"

	"tradebot/internal/models"
)

// CandleRepository - работа с таблицей candles
type CandleRepository struct {
	store *Store
}

// NewCandleRepository создает новый экземпляр репозитория
func NewCandleRepository(store *Store) *CandleRepository {
	return &CandleRepository{store: store}
}

// InsertBatch вставляет пачку свечей одной транзакцией
//
// Падает с ErrDuplicateKey, если кортеж (exchange, symbol, interval,
// timestamp) уже существует — вызывающий код обязан дедуплицировать
// ДО вставки. Транзакция откатывается целиком: либо вся пачка, либо
// ничего.
func (r *CandleRepository) InsertBatch(candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.Begin()
	if err != nil {
		return err
	}

	query := `
		INSERT INTO candles (timestamp, exchange, symbol, interval, datetime, open, high, low, close, volume, bid, ask)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	for _, c := range candles {
		_, err := tx.Exec(
			query,
			c.Timestamp,
			c.Exchange,
			c.Symbol,
			c.Interval,
			c.Datetime,
			c.Open,
			c.High,
			c.Low,
			c.Close,
			c.Volume,
			c.Bid,
			c.Ask,
		)
		if err != nil {
			tx.Rollback()
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: candle %s %s %s @%d", ErrDuplicateKey, c.Exchange, c.Symbol, c.Interval, c.Timestamp)
			}
			return err
		}
	}

	return tx.Commit()
}

// Insert вставляет одну свечу (живой тик от демона)
func (r *CandleRepository) Insert(c models.Candle) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `
		INSERT INTO candles (timestamp, exchange, symbol, interval, datetime, open, high, low, close, volume, bid, ask)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.store.db.Exec(
		query,
		c.Timestamp,
		c.Exchange,
		c.Symbol,
		c.Interval,
		c.Datetime,
		c.Open,
		c.High,
		c.Low,
		c.Close,
		c.Volume,
		c.Bid,
		c.Ask,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: candle %s %s %s @%d", ErrDuplicateKey, c.Exchange, c.Symbol, c.Interval, c.Timestamp)
		}
		return err
	}

	return nil
}

// Latest возвращает последние count свечей серии по возрастанию
// timestamp
//
// Выборка идёт по убыванию с LIMIT, затем разворачивается: это
// дешевле, чем OFFSET от начала серии. Пустая серия — пустой срез,
// не ошибка.
func (r *CandleRepository) Latest(exchange, symbol, interval string, count int) ([]models.Candle, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `
		SELECT timestamp, exchange, symbol, interval, datetime, open, high, low, close, volume, bid, ask
		FROM candles
		WHERE exchange = $1 AND symbol = $2 AND interval = $3
		ORDER BY timestamp DESC
		LIMIT $4`

	rows, err := r.store.db.Query(query, exchange, symbol, interval, count)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	candles := []models.Candle{}
	for rows.Next() {
		var c models.Candle
		err := rows.Scan(
			&c.Timestamp,
			&c.Exchange,
			&c.Symbol,
			&c.Interval,
			&c.Datetime,
			&c.Open,
			&c.High,
			&c.Low,
			&c.Close,
			&c.Volume,
			&c.Bid,
			&c.Ask,
		)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Разворачиваем DESC → ASC
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}

	return candles, nil
}

// LatestTimestamp возвращает максимальный timestamp серии
//
// ok == false, если серия пуста. Используется демоном для идемпотентного
// возобновления backfill после рестарта.
func (r *CandleRepository) LatestTimestamp(exchange, symbol, interval string) (int64, bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `
		SELECT timestamp
		FROM candles
		WHERE exchange = $1 AND symbol = $2 AND interval = $3
		ORDER BY timestamp DESC
		LIMIT 1`

	var ts int64
	err := r.store.db.QueryRow(query, exchange, symbol, interval).Scan(&ts)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, err
	}

	return ts, true, nil
}

// Count возвращает количество свечей в серии
func (r *CandleRepository) Count(exchange, symbol, interval string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `
		SELECT COUNT(*)
		FROM candles
		WHERE exchange = $1 AND symbol = $2 AND interval = $3`

	var n int
	if err := r.store.db.QueryRow(query, exchange, symbol, interval).Scan(&n); err != nil {
		return 0, err
	}

	return n, nil
}
