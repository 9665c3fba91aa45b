package handlers

import (
	"context"
	"errors"
	"sync"

	"tradebot/internal/feed"
	"tradebot/internal/models"
	"tradebot/internal/repository"
)

// ErrMockDatabase - общая ошибка хранилища для тестов
var ErrMockDatabase = errors.New("mock database error")

// ============ Mock Feed Manager ============

// MockFeedManager мок для FeedManager
type MockFeedManager struct {
	running  map[string]models.SeriesKey
	startErr error
	stopErr  error
	mu       sync.Mutex
}

// NewMockFeedManager создает новый мок менеджера демонов
func NewMockFeedManager() *MockFeedManager {
	return &MockFeedManager{running: make(map[string]models.SeriesKey)}
}

func (m *MockFeedManager) Start(ctx context.Context, key models.SeriesKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.startErr != nil {
		return m.startErr
	}
	if _, exists := m.running[key.String()]; exists {
		return feed.ErrAlreadyRunning
	}
	m.running[key.String()] = key
	return nil
}

func (m *MockFeedManager) Stop(key models.SeriesKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopErr != nil {
		return m.stopErr
	}
	if _, exists := m.running[key.String()]; !exists {
		return feed.ErrNotRunning
	}
	delete(m.running, key.String())
	return nil
}

func (m *MockFeedManager) List() []feed.DaemonInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]feed.DaemonInfo, 0, len(m.running))
	for _, key := range m.running {
		infos = append(infos, feed.DaemonInfo{
			Exchange: key.Exchange,
			Symbol:   key.Symbol,
			Interval: key.Interval,
			State:    models.DaemonStatePolling,
		})
	}
	return infos
}

// ============ Mock Candle Reader ============

// MockCandleReader мок для CandleReader
type MockCandleReader struct {
	candles map[string][]models.Candle
	err     error
}

// NewMockCandleReader создает новый мок чтения свечей
func NewMockCandleReader() *MockCandleReader {
	return &MockCandleReader{candles: make(map[string][]models.Candle)}
}

func (m *MockCandleReader) seed(key models.SeriesKey, candles []models.Candle) {
	m.candles[key.String()] = candles
}

func (m *MockCandleReader) Latest(exchange, symbol, interval string, count int) ([]models.Candle, error) {
	if m.err != nil {
		return nil, m.err
	}
	key := models.SeriesKey{Exchange: exchange, Symbol: symbol, Interval: interval}
	series := m.candles[key.String()]
	if len(series) > count {
		series = series[len(series)-count:]
	}
	return series, nil
}

// ============ Mock Position Reader ============

// MockPositionReader мок для PositionReader
type MockPositionReader struct {
	positions map[string]models.Position
	getErr    error
	listErr   error
}

// NewMockPositionReader создает новый мок чтения позиций
func NewMockPositionReader() *MockPositionReader {
	return &MockPositionReader{positions: make(map[string]models.Position)}
}

func (m *MockPositionReader) seed(pos models.Position) {
	m.positions[pos.Exchange+":"+pos.Symbol] = pos
}

func (m *MockPositionReader) Get(exchange, symbol string) (*models.Position, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	pos, exists := m.positions[exchange+":"+symbol]
	if !exists {
		return nil, repository.ErrPositionNotFound
	}
	return &pos, nil
}

func (m *MockPositionReader) List() ([]models.Position, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	result := make([]models.Position, 0, len(m.positions))
	for _, pos := range m.positions {
		result = append(result, pos)
	}
	return result, nil
}

// ============ Mock Order Reader ============

// MockOrderReader мок для OrderReader
type MockOrderReader struct {
	orders map[string]models.OrderRecord
	err    error
}

// NewMockOrderReader создает новый мок чтения ордеров
func NewMockOrderReader() *MockOrderReader {
	return &MockOrderReader{orders: make(map[string]models.OrderRecord)}
}

func (m *MockOrderReader) seed(order models.OrderRecord) {
	m.orders[order.OrderID] = order
}

func (m *MockOrderReader) GetByID(orderID string) (*models.OrderRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	order, exists := m.orders[orderID]
	if !exists {
		return nil, repository.ErrOrderNotFound
	}
	return &order, nil
}

func (m *MockOrderReader) ListBySymbol(exchange, symbol string, limit int) ([]models.OrderRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	result := make([]models.OrderRecord, 0)
	for _, order := range m.orders {
		if order.Exchange == exchange && order.Symbol == symbol {
			result = append(result, order)
		}
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

// ============ Mock Trade Reader ============

// MockTradeReader мок для TradeReader
type MockTradeReader struct {
	trades map[string][]models.TradeRecord
	err    error
}

// NewMockTradeReader создает новый мок чтения сделок
func NewMockTradeReader() *MockTradeReader {
	return &MockTradeReader{trades: make(map[string][]models.TradeRecord)}
}

func (m *MockTradeReader) seed(orderID string, trades []models.TradeRecord) {
	m.trades[orderID] = trades
}

func (m *MockTradeReader) ListByOrder(orderID string) ([]models.TradeRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.trades[orderID], nil
}
