package bot

import "errors"

// Ошибки риск-менеджмента
//
// ErrShortSellNotPermitted - отказ политики, не сбой системы: шорт
// с пустой книгой позиций запрещён.
var (
	ErrShortSellNotPermitted = errors.New("short sell not permitted without an open position")
	ErrEmptyOrderBook        = errors.New("order book has no quotes")
	ErrInvalidRiskParams     = errors.New("risk parameters out of range")
	ErrMissingQuote          = errors.New("position has no bid/ask quote")
)
