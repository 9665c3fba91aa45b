package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики риск-менеджмента
// ============================================================

// ExitSignals - решения о выходе по причинам
var ExitSignals = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "bot",
		Name:      "exit_signals_total",
		Help:      "Exit decisions produced by position control, by reason",
	},
	[]string{"exchange", "symbol", "reason"}, // reason: target, stop_loss
)

// OrdersPlaced - размещённые ордера
var OrdersPlaced = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "bot",
		Name:      "orders_placed_total",
		Help:      "Orders placed on the exchange",
	},
	[]string{"exchange", "symbol", "side"},
)

// OrdersTracked - завершённые отслеживания ордеров по исходам
var OrdersTracked = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "bot",
		Name:      "orders_tracked_total",
		Help:      "Order lifecycle outcomes",
	},
	[]string{"exchange", "outcome"}, // filled, timed_out, cancelled, rejected
)

// TradesCommitted - сделки, записанные в хранилище
var TradesCommitted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "bot",
		Name:      "trades_committed_total",
		Help:      "Trade rows committed after fills",
	},
	[]string{"exchange", "symbol"},
)

// DecisionErrors - ошибки цикла принятия решений
var DecisionErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "bot",
		Name:      "decision_errors_total",
		Help:      "Failures inside the decision loop, by stage",
	},
	[]string{"stage"}, // marks, evaluate, quote, place, track
)
