package feed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"tradebot/internal/models"
)

// Ошибки управления демонами
var (
	ErrAlreadyRunning = errors.New("daemon already running for series")
	ErrNotRunning     = errors.New("no daemon running for series")
)

// DaemonFactory создаёт демон для серии (привязка шлюза и
// репозитория — забота вызывающего кода)
type DaemonFactory func(key models.SeriesKey) (*TickerDaemon, error)

// DaemonInfo - снимок состояния одного демона для API
type DaemonInfo struct {
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	State    string `json:"state"`
}

// Manager управляет жизненным циклом тикер-демонов
//
// На серию (exchange, symbol, interval) — не более одного демона.
// Каждый демон крутится в своей горутине; Stop отменяет контекст
// демона и дожидается завершения текущего тика.
type Manager struct {
	factory DaemonFactory

	mu      sync.Mutex
	running map[string]*managedDaemon
}

type managedDaemon struct {
	daemon *TickerDaemon
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager создаёт менеджер демонов
func NewManager(factory DaemonFactory) *Manager {
	return &Manager{
		factory: factory,
		running: make(map[string]*managedDaemon),
	}
}

// Start запускает демон для серии
func (m *Manager) Start(ctx context.Context, key models.SeriesKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := key.String()
	if _, ok := m.running[id]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, id)
	}

	d, err := m.factory(key)
	if err != nil {
		return err
	}

	dctx, cancel := context.WithCancel(ctx)
	md := &managedDaemon{
		daemon: d,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.running[id] = md

	go func() {
		defer close(md.done)
		if err := d.Run(dctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("feed: daemon %s exited: %v", id, err)
		}
		// Самоочистка после фатальной ошибки, чтобы серию можно
		// было перезапустить
		m.mu.Lock()
		if cur, ok := m.running[id]; ok && cur == md {
			delete(m.running, id)
		}
		m.mu.Unlock()
	}()

	log.Printf("feed: daemon %s started", id)
	return nil
}

// Stop останавливает демон серии и дожидается его завершения
func (m *Manager) Stop(key models.SeriesKey) error {
	m.mu.Lock()
	id := key.String()
	md, ok := m.running[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotRunning, id)
	}
	delete(m.running, id)
	m.mu.Unlock()

	md.cancel()
	<-md.done

	log.Printf("feed: daemon %s stopped", id)
	return nil
}

// StopAll останавливает все демоны (graceful shutdown)
func (m *Manager) StopAll() {
	m.mu.Lock()
	stopping := make([]*managedDaemon, 0, len(m.running))
	for id, md := range m.running {
		stopping = append(stopping, md)
		delete(m.running, id)
	}
	m.mu.Unlock()

	for _, md := range stopping {
		md.cancel()
	}
	for _, md := range stopping {
		<-md.done
	}
}

// List возвращает снимок всех работающих демонов
func (m *Manager) List() []DaemonInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]DaemonInfo, 0, len(m.running))
	for _, md := range m.running {
		k := md.daemon.Key()
		infos = append(infos, DaemonInfo{
			Exchange: k.Exchange,
			Symbol:   k.Symbol,
			Interval: k.Interval,
			State:    md.daemon.State(),
		})
	}
	return infos
}
