package websocket

import (
	"log"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"tradebot/internal/feed"
	"tradebot/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Hub управляет всеми активными WebSocket соединениями
//
// Центральный менеджер broadcast сообщений подключенным клиентам:
// живые тики, записанные сделки, операторские уведомления и состояния
// демонов уходят на frontend без polling.
//
// Использование:
//  1. hub := NewHub()
//  2. go hub.Run()
//  3. hub.BroadcastTick(candle)
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Broadcast канал для отправки сообщений всем клиентам
	broadcast chan []byte

	// Регистрация нового клиента
	register chan *Client

	// Отмена регистрации клиента
	unregister chan *Client

	// Сигнал завершения Run
	done chan struct{}

	mu sync.RWMutex
}

// NewHub создает новый Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run запускает главный цикл Hub
//
// Должен запускаться в отдельной горутине: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("ws: client connected, total %d", h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("ws: client disconnected, total %d", h.ClientCount())

		case message := <-h.broadcast:
			// Копируем список под коротким RLock, отправляем без
			// блокировки, медленных клиентов убираем под Write Lock
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				h.mu.Unlock()
				log.Printf("ws: removed %d slow clients", len(toRemove))
			}
		}
	}
}

// Broadcast сериализует сообщение и отправляет всем клиентам
func (h *Hub) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("ws: marshal broadcast message: %v", err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		// Канал переполнен: тик устареет быстрее, чем дойдёт
		log.Printf("ws: broadcast buffer full, dropping message")
	}
}

// BroadcastTick отправляет живой тик серии
func (h *Hub) BroadcastTick(c models.Candle) {
	h.Broadcast(NewTickMessage(c))
}

// BroadcastTrades отправляет сделки исполненного ордера
func (h *Hub) BroadcastTrades(orderID string, trades []models.TradeRecord) {
	h.Broadcast(NewTradeMessage(orderID, trades))
}

// BroadcastAlert отправляет операторское уведомление
func (h *Hub) BroadcastAlert(a feed.Alert) {
	h.Broadcast(NewAlertMessage(a))
}

// BroadcastDaemons отправляет снимок состояний демонов
func (h *Hub) BroadcastDaemons(infos []feed.DaemonInfo) {
	h.Broadcast(NewDaemonsMessage(infos))
}

// Stop завершает цикл Run и закрывает всех клиентов
func (h *Hub) Stop() {
	close(h.done)
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
