package models

// OrderRecord представляет запись о размещённом ордере
//
// Создаётся ровно один раз при размещении ордера и далее не изменяется.
// Статус ордера живёт на бирже и здесь не дублируется.
type OrderRecord struct {
	OrderID   string  `json:"order_id" db:"order_id"`
	Timestamp int64   `json:"timestamp" db:"timestamp"` // unix миллисекунды
	Datetime  string  `json:"datetime" db:"datetime"`
	OrderType string  `json:"order_type" db:"order_type"` // market, limit
	Exchange  string  `json:"exchange" db:"exchange"`
	Symbol    string  `json:"symbol" db:"symbol"`
	Side      string  `json:"side" db:"side"` // long, short
	Amount    float64 `json:"amount" db:"amount"`
	Price     float64 `json:"price" db:"price"`
}

// Типы ордеров
const (
	OrderTypeMarket = "market"
	OrderTypeLimit  = "limit"
)

// Стороны позиции
const (
	SideLong  = "long"  // длинная позиция
	SideShort = "short" // короткая позиция
)

// SideFromOrderSide переводит биржевую сторону ордера (buy/sell)
// в сторону позиции (long/short)
func SideFromOrderSide(orderSide string) string {
	if orderSide == "buy" {
		return SideLong
	}
	return SideShort
}
