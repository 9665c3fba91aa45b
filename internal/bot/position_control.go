package bot

import (
	"fmt"

	"tradebot/internal/models"
)

// Причины решения о выходе
const (
	ReasonTargetHit = "target"
	ReasonStopLoss  = "stop_loss"
)

// RiskParams - доли цели и стоп-лосса, обе в (0,1)
type RiskParams struct {
	Target   float64 // доля прибыли для фиксации, напр. 0.1 = +10%
	StopLoss float64 // доля убытка для выхода, напр. 0.2 = -20%
}

// Validate проверяет диапазоны параметров
func (p RiskParams) Validate() error {
	if p.Target <= 0 || p.Target >= 1 {
		return fmt.Errorf("%w: target %v not in (0,1)", ErrInvalidRiskParams, p.Target)
	}
	if p.StopLoss <= 0 || p.StopLoss >= 1 {
		return fmt.Errorf("%w: stop loss %v not in (0,1)", ErrInvalidRiskParams, p.StopLoss)
	}
	return nil
}

// Mark - позиция, совмещённая с текущими котировками её инструмента
type Mark struct {
	Position models.Position
	Bid      float64
	Ask      float64
}

// ExitDecision - результат оценки одной позиции
type ExitDecision struct {
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Exit     bool   `json:"exit"`
	Reason   string `json:"reason,omitempty"` // target или stop_loss
}

// PositionControl решает, выходить ли из открытых позиций
//
// Только вычисляет решение: ни хранилище, ни позиции не трогает.
// Действие по флагу — обязанность вызывающего кода.
type PositionControl struct {
	params RiskParams
}

// NewPositionControl создаёт оценщик позиций
func NewPositionControl(params RiskParams) (*PositionControl, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &PositionControl{params: params}, nil
}

// Evaluate оценивает одну позицию по текущим котировкам
//
// Long размечается по ask, short - по bid:
//
//	long:  ask/entry >= 1+target ИЛИ ask/entry <= 1-stopLoss
//	short: bid/entry <= 1-target ИЛИ bid/entry >= 1+stopLoss
func (pc *PositionControl) Evaluate(m Mark) (ExitDecision, error) {
	d := ExitDecision{
		Exchange: m.Position.Exchange,
		Symbol:   m.Position.Symbol,
		Side:     m.Position.Side,
	}

	if m.Position.Price <= 0 {
		return d, fmt.Errorf("%w: %s %s entry price %v",
			ErrInvalidRiskParams, m.Position.Exchange, m.Position.Symbol, m.Position.Price)
	}

	if m.Position.IsLong() {
		if m.Ask <= 0 {
			return d, fmt.Errorf("%w: %s %s", ErrMissingQuote, m.Position.Exchange, m.Position.Symbol)
		}
		ratio := m.Ask / m.Position.Price
		switch {
		case ratio >= 1+pc.params.Target:
			d.Exit = true
			d.Reason = ReasonTargetHit
		case ratio <= 1-pc.params.StopLoss:
			d.Exit = true
			d.Reason = ReasonStopLoss
		}
		return d, nil
	}

	if m.Bid <= 0 {
		return d, fmt.Errorf("%w: %s %s", ErrMissingQuote, m.Position.Exchange, m.Position.Symbol)
	}
	ratio := m.Bid / m.Position.Price
	switch {
	case ratio <= 1-pc.params.Target:
		d.Exit = true
		d.Reason = ReasonTargetHit
	case ratio >= 1+pc.params.StopLoss:
		d.Exit = true
		d.Reason = ReasonStopLoss
	}
	return d, nil
}

// EvaluateBatch применяет правило к каждой позиции независимо
//
// Порядок не влияет на результат, позиции не взаимодействуют.
// Ошибка одной позиции не прерывает оценку остальных: битая строка
// возвращает Exit=false и логируется вызывающим кодом.
func (pc *PositionControl) EvaluateBatch(marks []Mark) ([]ExitDecision, error) {
	decisions := make([]ExitDecision, 0, len(marks))

	var firstErr error
	for _, m := range marks {
		d, err := pc.Evaluate(m)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		decisions = append(decisions, d)
	}

	return decisions, firstErr
}
