package models

// TradeRecord представляет исполнение (fill) по ордеру
//
// Один ордер может быть исполнен несколькими сделками. Запись создаётся
// только когда трекер жизненного цикла увидел терминальный статус filled.
type TradeRecord struct {
	TradeID   string  `json:"trade_id" db:"trade_id"`
	Timestamp int64   `json:"timestamp" db:"timestamp"` // unix миллисекунды
	Datetime  string  `json:"datetime" db:"datetime"`
	OrderID   string  `json:"order_id" db:"order_id"` // ссылка на OrderRecord
	Amount    float64 `json:"amount" db:"amount"`
	Price     float64 `json:"price" db:"price"`
	Cost      float64 `json:"cost" db:"cost"` // price*amount + комиссии биржи
}
