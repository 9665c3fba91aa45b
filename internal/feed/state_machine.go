package feed

import "tradebot/internal/models"

// validTransitions определяет допустимые переходы состояний демона
//
// Нормального терминального состояния нет: Polling длится до shutdown
// или фатальной ошибки конфигурации.
var validTransitions = map[string][]string{
	models.DaemonStateStarting:    {models.DaemonStateBackfilling, models.DaemonStateStopped},
	models.DaemonStateBackfilling: {models.DaemonStatePolling, models.DaemonStateStopped},
	models.DaemonStatePolling:     {models.DaemonStateStopped},
	models.DaemonStateStopped:     {},
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsFeeding возвращает true, если демон пишет живые тики
func IsFeeding(s string) bool {
	return s == models.DaemonStatePolling
}
