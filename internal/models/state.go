package models

// Состояния тикер-демона
//
// Демон — долгоживущий цикл без нормального терминального состояния:
// Starting → Backfilling → Polling. Stopped — только при shutdown или
// фатальной ошибке конфигурации.
const (
	DaemonStateStarting    = "starting"
	DaemonStateBackfilling = "backfilling"
	DaemonStatePolling     = "polling"
	DaemonStateStopped     = "stopped"
)

// Статусы ордера на бирже
const (
	OrderStatusOpen      = "open"
	OrderStatusFilled    = "filled"
	OrderStatusCancelled = "cancelled"
	OrderStatusRejected  = "rejected"
)
