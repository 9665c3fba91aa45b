package feed

import "errors"

// Ошибки получения рыночных данных
//
// ErrNoData не повторяется: пустой ответ — сигнал вызывающему коду
// выбрать fallback или прерваться. ErrUnsupportedInterval — ошибка
// конфигурации, фатальная для конкретного демона.
var (
	ErrNoData              = errors.New("no data returned by exchange")
	ErrUnsupportedInterval = errors.New("interval not supported by exchange")
)
