package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"tradebot/internal/models"
)

// Ошибки репозитория ордеров
var (
	ErrOrderNotFound = errors.New("order not found")
)

// OrderRepository - работа с таблицей orders
type OrderRepository struct {
	store *Store
}

// NewOrderRepository создает новый экземпляр репозитория
func NewOrderRepository(store *Store) *OrderRepository {
	return &OrderRepository{store: store}
}

// Create создает запись об ордере
//
// Запись создаётся ровно один раз при размещении ордера; повторная
// вставка того же order_id — ErrConstraintViolation.
func (r *OrderRepository) Create(order *models.OrderRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `
		INSERT INTO orders (order_id, timestamp, datetime, order_type, exchange, symbol, side, amount, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.store.db.Exec(
		query,
		order.OrderID,
		order.Timestamp,
		order.Datetime,
		order.OrderType,
		order.Exchange,
		order.Symbol,
		order.Side,
		order.Amount,
		order.Price,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: order %s", ErrConstraintViolation, order.OrderID)
		}
		return err
	}

	return nil
}

// GetByID возвращает ордер по ID
func (r *OrderRepository) GetByID(orderID string) (*models.OrderRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `
		SELECT order_id, timestamp, datetime, order_type, exchange, symbol, side, amount, price
		FROM orders
		WHERE order_id = $1`

	order := &models.OrderRecord{}
	err := r.store.db.QueryRow(query, orderID).Scan(
		&order.OrderID,
		&order.Timestamp,
		&order.Datetime,
		&order.OrderType,
		&order.Exchange,
		&order.Symbol,
		&order.Side,
		&order.Amount,
		&order.Price,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	return order, nil
}

// ListBySymbol возвращает ордера по инструменту, новые первыми
func (r *OrderRepository) ListBySymbol(exchange, symbol string, limit int) ([]models.OrderRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `
		SELECT order_id, timestamp, datetime, order_type, exchange, symbol, side, amount, price
		FROM orders
		WHERE exchange = $1 AND symbol = $2
		ORDER BY timestamp DESC
		LIMIT $3`

	rows, err := r.store.db.Query(query, exchange, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.OrderRecord{}
	for rows.Next() {
		var o models.OrderRecord
		err := rows.Scan(
			&o.OrderID,
			&o.Timestamp,
			&o.Datetime,
			&o.OrderType,
			&o.Exchange,
			&o.Symbol,
			&o.Side,
			&o.Amount,
			&o.Price,
		)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	return orders, rows.Err()
}
