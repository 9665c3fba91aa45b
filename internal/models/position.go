package models

// Position представляет открытую позицию по инструменту
//
// Ключ: (exchange, symbol). Цена — средняя цена входа (cost basis).
// Ядро только читает позиции для принятия решений; мутация после
// коммита сделки — обязанность вызывающего кода.
type Position struct {
	Timestamp int64   `json:"timestamp" db:"timestamp"`
	Datetime  string  `json:"datetime" db:"datetime"`
	Exchange  string  `json:"exchange" db:"exchange"`
	Symbol    string  `json:"symbol" db:"symbol"`
	Side      string  `json:"side" db:"side"` // long, short
	Amount    float64 `json:"amount" db:"amount"`
	Price     float64 `json:"price" db:"price"` // средняя цена входа
	Cost      float64 `json:"cost" db:"cost"`
}

// IsLong возвращает true для длинной позиции
func (p *Position) IsLong() bool {
	return p.Side == SideLong
}
