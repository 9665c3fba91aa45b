package repository

import (
	"fmt"

	"tradebot/internal/models"
)

// TradeRepository - работа с таблицей trades
type TradeRepository struct {
	store *Store
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(store *Store) *TradeRepository {
	return &TradeRepository{store: store}
}

// InsertBatch записывает исполнения ордера одной транзакцией
//
// Вызывается трекером жизненного цикла только после терминального
// статуса filled. Дубликат trade_id — ErrConstraintViolation.
func (r *TradeRepository) InsertBatch(trades []models.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.Begin()
	if err != nil {
		return err
	}

	query := `
		INSERT INTO trades (trade_id, timestamp, datetime, order_id, amount, price, cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, t := range trades {
		_, err := tx.Exec(
			query,
			t.TradeID,
			t.Timestamp,
			t.Datetime,
			t.OrderID,
			t.Amount,
			t.Price,
			t.Cost,
		)
		if err != nil {
			tx.Rollback()
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: trade %s", ErrConstraintViolation, t.TradeID)
			}
			return err
		}
	}

	return tx.Commit()
}

// ListByOrder возвращает все исполнения ордера по возрастанию времени
func (r *TradeRepository) ListByOrder(orderID string) ([]models.TradeRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `
		SELECT trade_id, timestamp, datetime, order_id, amount, price, cost
		FROM trades
		WHERE order_id = $1
		ORDER BY timestamp ASC`

	rows, err := r.store.db.Query(query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trades := []models.TradeRecord{}
	for rows.Next() {
		var t models.TradeRecord
		err := rows.Scan(
			&t.TradeID,
			&t.Timestamp,
			&t.Datetime,
			&t.OrderID,
			&t.Amount,
			&t.Price,
			&t.Cost,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}

	return trades, rows.Err()
}
