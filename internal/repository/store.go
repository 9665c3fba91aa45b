package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/lib/pq"
)

// Ошибки целостности хранилища
//
// Дубликат первичного ключа — это баг дедупликации выше по потоку,
// а не повод для retry: ошибка всплывает наружу как есть.
var (
	ErrDuplicateKey        = errors.New("duplicate key")
	ErrConstraintViolation = errors.New("constraint violation")
)

// Store - единственный источник истины для свечей, ордеров, сделок
// и позиций
//
// Дисциплина конкурентности: один process-wide мьютекс сериализует
// все записи между тикер-демонами, трекером ордеров и циклом принятия
// решений. Чтения разделяют тот же мьютекс — объёмы малы относительно
// I/O латентности, и простота здесь важнее пропускной способности.
// Никакой компонент не держит приватную копию данных, способную
// разойтись с хранилищем.
//
// ВАЖНО: мьютекс никогда не удерживается через сетевой вызов —
// только вокруг обращений к БД.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore создаёт Store поверх открытого подключения к БД
//
// Store создаётся один раз на старте процесса и передаётся компонентам
// явно; глобальных синглтонов нет.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB возвращает нижележащее подключение (для graceful shutdown)
func (s *Store) DB() *sql.DB {
	return s.db
}

// Схема хранилища. Свечи уникальны по (exchange, symbol, interval,
// timestamp); сделки ссылаются на ордера.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS candles (
		timestamp BIGINT NOT NULL,
		exchange TEXT NOT NULL,
		symbol TEXT NOT NULL,
		interval TEXT NOT NULL,
		datetime TEXT NOT NULL DEFAULT '',
		open DOUBLE PRECISION NOT NULL,
		high DOUBLE PRECISION NOT NULL,
		low DOUBLE PRECISION NOT NULL,
		close DOUBLE PRECISION NOT NULL,
		volume DOUBLE PRECISION NOT NULL,
		bid DOUBLE PRECISION NOT NULL DEFAULT 0,
		ask DOUBLE PRECISION NOT NULL DEFAULT 0,
		PRIMARY KEY (exchange, symbol, interval, timestamp)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		order_id TEXT PRIMARY KEY,
		timestamp BIGINT NOT NULL,
		datetime TEXT NOT NULL DEFAULT '',
		order_type TEXT NOT NULL,
		exchange TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		amount DOUBLE PRECISION NOT NULL,
		price DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS trades (
		trade_id TEXT PRIMARY KEY,
		timestamp BIGINT NOT NULL,
		datetime TEXT NOT NULL DEFAULT '',
		order_id TEXT NOT NULL REFERENCES orders(order_id),
		amount DOUBLE PRECISION NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		cost DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS positions (
		timestamp BIGINT NOT NULL,
		datetime TEXT NOT NULL DEFAULT '',
		exchange TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		amount DOUBLE PRECISION NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		cost DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (exchange, symbol)
	)`,
}

var dropStatements = []string{
	`DROP TABLE IF EXISTS trades`,
	`DROP TABLE IF EXISTS orders`,
	`DROP TABLE IF EXISTS candles`,
	`DROP TABLE IF EXISTS positions`,
}

// Migrate создаёт отсутствующие таблицы
func (s *Store) Migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Reset удаляет и пересоздаёт все таблицы
//
// Используется только при контролируемом старте, никогда конкурентно
// с живыми записями.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range dropStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	return nil
}

// isUniqueViolation распознаёт нарушение уникальности первичного ключа
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" // unique_violation
	}
	return false
}
