package bot

import "tradebot/internal/models"

// SMACrossSignal возвращает стратегию пересечения двух скользящих средних
//
// Вход в лонг, когда быстрая SMA пересекает медленную снизу вверх,
// выход — при обратном пересечении. Серии короче slow+1 свечей
// дают SignalNone.
func SMACrossSignal(fast, slow int) SignalFunc {
	if fast <= 0 || slow <= fast {
		return func([]models.Candle) Signal { return SignalNone }
	}

	return func(candles []models.Candle) Signal {
		if len(candles) < slow+1 {
			return SignalNone
		}

		// Сравниваем положение средних на последней и предпоследней свече
		fastNow := sma(candles, fast, 0)
		slowNow := sma(candles, slow, 0)
		fastPrev := sma(candles, fast, 1)
		slowPrev := sma(candles, slow, 1)

		switch {
		case fastPrev <= slowPrev && fastNow > slowNow:
			return SignalEnterLong
		case fastPrev >= slowPrev && fastNow < slowNow:
			return SignalExitLong
		default:
			return SignalNone
		}
	}
}

// sma считает простую скользящую среднюю по ценам закрытия,
// back свечей назад от конца серии
func sma(candles []models.Candle, period, back int) float64 {
	end := len(candles) - back
	sum := 0.0
	for _, c := range candles[end-period : end] {
		sum += c.Close
	}
	return sum / float64(period)
}
