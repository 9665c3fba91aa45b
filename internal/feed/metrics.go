package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики ленты рыночных данных
// ============================================================
//
// Использование:
// - Grafana дашборды: свежесть серий, темп тиков
// - Alertmanager: серии ошибок fetch, упёршийся в потолок backfill

// ============ Счётчики событий ============

// TicksIngested - количество живых тиков, записанных в хранилище
var TicksIngested = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "feed",
		Name:      "ticks_ingested_total",
		Help:      "Total number of live ticks written to the store",
	},
	[]string{"exchange", "symbol", "interval"},
)

// BackfillRows - количество свечей, записанных при backfill
var BackfillRows = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "feed",
		Name:      "backfill_rows_total",
		Help:      "Total number of historical candles written during backfill",
	},
	[]string{"exchange", "symbol", "interval"},
)

// BackfillCeilingHits - достижения потолка времени пагинации
var BackfillCeilingHits = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "feed",
		Name:      "backfill_ceiling_hits_total",
		Help:      "Number of backfills cut short by the pagination time ceiling",
	},
	[]string{"exchange", "symbol", "interval"},
)

// FetchErrors - ошибки вызовов шлюза после исчерпания retry
var FetchErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "feed",
		Name:      "fetch_errors_total",
		Help:      "Gateway fetch failures after retry exhaustion",
	},
	[]string{"exchange", "symbol", "kind"}, // kind: candles, ticker
)

// TickFailures - пропущенные тики (ошибка внутри Polling)
var TickFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "feed",
		Name:      "tick_failures_total",
		Help:      "Polling iterations that failed and were skipped",
	},
	[]string{"exchange", "symbol", "interval"},
)

// ============ Метрики состояния ============

// DaemonsByState - количество живых демонов в каждом состоянии.
// Остановленные экземпляры выбывают из метрики.
var DaemonsByState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "tradebot",
		Subsystem: "feed",
		Name:      "daemons",
		Help:      "Number of live ticker daemons by state",
	},
	[]string{"state"}, // starting, backfilling, polling
)
