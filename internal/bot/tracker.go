package bot

import (
	"context"
	"fmt"
	"log"
	"time"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
	"tradebot/pkg/retry"
)

// Исходы отслеживания ордера
//
// TimedOut - различимый исход, не ошибка: ордер остаётся открытым на
// бирже и сверяется внешним процессом.
const (
	OutcomeFilled    = "filled"
	OutcomeTimedOut  = "timed_out"
	OutcomeCancelled = "cancelled"
	OutcomeRejected  = "rejected"
)

// DefaultTrackTimeout - потолок ожидания исполнения ордера
const DefaultTrackTimeout = 120 * time.Second

// TradeStore - операции хранилища, нужные трекеру
//
// *repository.TradeRepository удовлетворяет интерфейсу.
type TradeStore interface {
	InsertBatch(trades []models.TradeRecord) error
}

// TrackOutcome - результат жизненного цикла одного ордера
type TrackOutcome struct {
	OrderID string               `json:"order_id"`
	Outcome string               `json:"outcome"`
	Trades  []models.TradeRecord `json:"trades,omitempty"`
}

// Tracker доводит размещённый ордер до записанной сделки
//
// Опрашивает статус ордера с периодом rateLimit биржи до терминального
// статуса или таймаута. Сделки пишутся в хранилище ровно один раз и
// только при статусе filled.
type Tracker struct {
	gw      exchange.Gateway
	trades  TradeStore
	timeout time.Duration
}

// NewTracker создаёт трекер жизненного цикла ордеров
//
// timeout <= 0 означает DefaultTrackTimeout.
func NewTracker(gw exchange.Gateway, trades TradeStore, timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTrackTimeout
	}
	return &Tracker{gw: gw, trades: trades, timeout: timeout}
}

// Track опрашивает ордер до терминального статуса
//
// Состояния: Open → {Filled, TimedOut}. Статусы cancelled/rejected от
// биржи тоже терминальны и завершают опрос без записи сделок.
func (t *Tracker) Track(ctx context.Context, order *models.OrderRecord) (TrackOutcome, error) {
	out := TrackOutcome{OrderID: order.OrderID}
	deadline := time.Now().Add(t.timeout)

	for {
		status, err := retry.DoWithResult(ctx, func() (*exchange.OrderStatus, error) {
			return t.gw.FetchOrderStatus(ctx, order.OrderID)
		}, retry.GatewayConfig())
		if err != nil {
			return out, fmt.Errorf("fetch order status %s: %w", order.OrderID, err)
		}

		switch status.Status {
		case models.OrderStatusFilled:
			trades, err := t.commitFills(ctx, order)
			if err != nil {
				return out, err
			}
			out.Outcome = OutcomeFilled
			out.Trades = trades
			OrdersTracked.WithLabelValues(order.Exchange, OutcomeFilled).Inc()
			return out, nil

		case models.OrderStatusCancelled:
			out.Outcome = OutcomeCancelled
			OrdersTracked.WithLabelValues(order.Exchange, OutcomeCancelled).Inc()
			return out, nil

		case models.OrderStatusRejected:
			out.Outcome = OutcomeRejected
			OrdersTracked.WithLabelValues(order.Exchange, OutcomeRejected).Inc()
			return out, nil
		}

		if time.Now().After(deadline) {
			log.Printf("bot: order %s still %s after %v, giving up",
				order.OrderID, status.Status, t.timeout)
			out.Outcome = OutcomeTimedOut
			OrdersTracked.WithLabelValues(order.Exchange, OutcomeTimedOut).Inc()
			return out, nil
		}

		select {
		case <-time.After(t.gw.RateLimit()):
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
}

// commitFills получает исполнения от биржи и пишет их как сделки
func (t *Tracker) commitFills(ctx context.Context, order *models.OrderRecord) ([]models.TradeRecord, error) {
	fills, err := retry.DoWithResult(ctx, func() ([]exchange.Fill, error) {
		return t.gw.FetchFills(ctx, order.Symbol, order.OrderID)
	}, retry.GatewayConfig())
	if err != nil {
		return nil, fmt.Errorf("fetch fills %s: %w", order.OrderID, err)
	}

	trades := make([]models.TradeRecord, 0, len(fills))
	for _, f := range fills {
		trades = append(trades, models.TradeRecord{
			TradeID:   f.TradeID,
			Timestamp: f.Timestamp,
			Datetime:  f.Datetime,
			OrderID:   order.OrderID,
			Amount:    f.Amount,
			Price:     f.Price,
			Cost:      f.Cost,
		})
	}
	if len(trades) == 0 {
		return trades, nil
	}

	if err := t.trades.InsertBatch(trades); err != nil {
		return nil, fmt.Errorf("commit trades for order %s: %w", order.OrderID, err)
	}

	TradesCommitted.WithLabelValues(order.Exchange, order.Symbol).Add(float64(len(trades)))
	log.Printf("bot: order %s filled, %d trades committed", order.OrderID, len(trades))

	return trades, nil
}
