package repository

import (
	"database/sql"
	"errors"

	"tradebot/internal/models"
)

// Ошибки репозитория позиций
var (
	ErrPositionNotFound = errors.New("position not found")
)

// PositionRepository - работа с таблицей positions
//
// Ядро только читает позиции для принятия решений; Upsert вызывается
// из внешнего bookkeeping шага после коммита сделки.
type PositionRepository struct {
	store *Store
}

// NewPositionRepository создает новый экземпляр репозитория
func NewPositionRepository(store *Store) *PositionRepository {
	return &PositionRepository{store: store}
}

// Get возвращает позицию по ключу (exchange, symbol)
func (r *PositionRepository) Get(exchange, symbol string) (*models.Position, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `
		SELECT timestamp, datetime, exchange, symbol, side, amount, price, cost
		FROM positions
		WHERE exchange = $1 AND symbol = $2`

	p := &models.Position{}
	err := r.store.db.QueryRow(query, exchange, symbol).Scan(
		&p.Timestamp,
		&p.Datetime,
		&p.Exchange,
		&p.Symbol,
		&p.Side,
		&p.Amount,
		&p.Price,
		&p.Cost,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPositionNotFound
		}
		return nil, err
	}

	return p, nil
}

// List возвращает все открытые позиции
func (r *PositionRepository) List() ([]models.Position, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `
		SELECT timestamp, datetime, exchange, symbol, side, amount, price, cost
		FROM positions
		ORDER BY exchange, symbol`

	rows, err := r.store.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := []models.Position{}
	for rows.Next() {
		var p models.Position
		err := rows.Scan(
			&p.Timestamp,
			&p.Datetime,
			&p.Exchange,
			&p.Symbol,
			&p.Side,
			&p.Amount,
			&p.Price,
			&p.Cost,
		)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}

	return positions, rows.Err()
}

// Upsert вставляет или обновляет позицию по ключу (exchange, symbol)
func (r *PositionRepository) Upsert(p *models.Position) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `
		INSERT INTO positions (timestamp, datetime, exchange, symbol, side, amount, price, cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (exchange, symbol)
		DO UPDATE SET timestamp = $1, datetime = $2, side = $5, amount = $6, price = $7, cost = $8`

	_, err := r.store.db.Exec(
		query,
		p.Timestamp,
		p.Datetime,
		p.Exchange,
		p.Symbol,
		p.Side,
		p.Amount,
		p.Price,
		p.Cost,
	)
	return err
}

// Delete удаляет позицию (полное закрытие)
func (r *PositionRepository) Delete(exchange, symbol string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	res, err := r.store.db.Exec(`DELETE FROM positions WHERE exchange = $1 AND symbol = $2`, exchange, symbol)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPositionNotFound
	}

	return nil
}
