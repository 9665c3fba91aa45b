package bot

import (
	"fmt"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
)

// SizingFractions - консервативные доли размера ордера
//
// Никогда не коммитим больше половины свободного баланса или половины
// существующей позиции за одно действие. Значения из конфигурации,
// дефолты ниже.
type SizingFractions struct {
	// Entry - доля freeBalance при входе без позиции
	Entry float64
	// Add - доля freeBalance при доборе к существующей позиции
	Add float64
	// Exit - доля существующей позиции при выходе
	Exit float64
}

// DefaultSizingFractions возвращает консервативную политику по
// умолчанию
func DefaultSizingFractions() SizingFractions {
	return SizingFractions{Entry: 0.25, Add: 0.5, Exit: 0.5}
}

// Validate проверяет диапазоны долей
func (f SizingFractions) Validate() error {
	for name, v := range map[string]float64{"entry": f.Entry, "add": f.Add, "exit": f.Exit} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%w: %s fraction %v not in (0,1]", ErrInvalidRiskParams, name, v)
		}
	}
	return nil
}

// Quote - цена и размер исполнения, рассчитанные OrderControl
type Quote struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderControl определяет цену и размер исполнения по решению о сделке
type OrderControl struct {
	fractions SizingFractions
}

// NewOrderControl создаёт калькулятор ордеров
func NewOrderControl(fractions SizingFractions) (*OrderControl, error) {
	if err := fractions.Validate(); err != nil {
		return nil, err
	}
	return &OrderControl{fractions: fractions}, nil
}

// Price возвращает цену исполнения: лимит вызывающего кода или
// середину лучших bid/ask стакана
func (oc *OrderControl) Price(limitPrice float64, book *exchange.OrderBook) (float64, error) {
	if limitPrice > 0 {
		return limitPrice, nil
	}

	if book == nil {
		return 0, ErrEmptyOrderBook
	}
	bid, ask := book.BestBid(), book.BestAsk()
	if bid <= 0 || ask <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptyOrderBook, book.Symbol)
	}

	return (bid + ask) / 2, nil
}

// Size возвращает размер ордера для стороны side
//
// pos == nil означает отсутствие открытой позиции:
//
//	long без позиции:  Entry × freeBalance / price
//	long с позицией:   min(pos.Amount, Add × freeBalance / price)
//	short с позицией:  Exit × pos.Amount (частичный выход)
//	short без позиции: ShortSellNotPermitted
func (oc *OrderControl) Size(side string, pos *models.Position, freeBalance, price float64) (float64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("%w: price %v", ErrEmptyOrderBook, price)
	}

	switch side {
	case models.SideLong:
		if pos == nil {
			return oc.fractions.Entry * freeBalance / price, nil
		}
		size := oc.fractions.Add * freeBalance / price
		if pos.Amount < size {
			size = pos.Amount
		}
		return size, nil

	case models.SideShort:
		if pos == nil {
			return 0, ErrShortSellNotPermitted
		}
		return oc.fractions.Exit * pos.Amount, nil

	default:
		return 0, fmt.Errorf("%w: unknown side %q", ErrInvalidRiskParams, side)
	}
}

// PriceAndSize рассчитывает цену и размер за один вызов
func (oc *OrderControl) PriceAndSize(side string, pos *models.Position, freeBalance, limitPrice float64, book *exchange.OrderBook) (Quote, error) {
	price, err := oc.Price(limitPrice, book)
	if err != nil {
		return Quote{}, err
	}

	size, err := oc.Size(side, pos, freeBalance, price)
	if err != nil {
		return Quote{}, err
	}

	return Quote{Price: price, Size: size}, nil
}
