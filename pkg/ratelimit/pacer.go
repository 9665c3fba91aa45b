package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Pacer обеспечивает минимальный промежуток между последовательными
// HTTP запросами к одной бирже
//
// Биржи публикуют rateLimit в миллисекундах: обязательная минимальная
// задержка между двумя последовательными запросами. Pacer реализует
// именно эту дисциплину (а не token bucket): перед каждым запросом
// Wait блокирует до истечения промежутка с момента предыдущего запроса.
//
// Использование:
//
//	pacer := ratelimit.NewPacer(gw.RateLimit())
//	if err := pacer.Wait(ctx); err != nil { return err }
//	// выполняем запрос к бирже
type Pacer struct {
	gap      time.Duration // минимальный промежуток между запросами
	lastCall time.Time
	mu       sync.Mutex
}

// NewPacer создаёт Pacer с указанным минимальным промежутком
//
// gap <= 0 означает отсутствие ограничения (Wait возвращается сразу).
func NewPacer(gap time.Duration) *Pacer {
	return &Pacer{gap: gap}
}

// Wait блокирует до истечения минимального промежутка или отмены контекста
//
// Потокобезопасен: конкурентные вызовы сериализуются, каждый получает
// собственный слот с шагом gap.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	now := time.Now()

	var wait time.Duration
	if p.gap > 0 && !p.lastCall.IsZero() {
		next := p.lastCall.Add(p.gap)
		if next.After(now) {
			wait = next.Sub(now)
		}
	}

	// Резервируем слот до фактического ожидания, чтобы конкурирующие
	// вызовы не получили одно и то же время
	if wait > 0 {
		p.lastCall = p.lastCall.Add(p.gap)
	} else {
		p.lastCall = now
	}
	p.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Allow проверяет доступность слота без блокировки
func (p *Pacer) Allow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if p.gap > 0 && !p.lastCall.IsZero() && p.lastCall.Add(p.gap).After(now) {
		return false
	}

	p.lastCall = now
	return true
}

// Gap возвращает настроенный минимальный промежуток
func (p *Pacer) Gap() time.Duration {
	return p.gap
}

// SetGap изменяет минимальный промежуток. Потокобезопасно.
func (p *Pacer) SetGap(gap time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gap = gap
}
