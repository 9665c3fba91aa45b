package websocket

import (
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Время ожидания записи сообщения
	writeWait = 10 * time.Second

	// Время ожидания между pong сообщениями
	pongWait = 60 * time.Second

	// Интервал отправки ping (меньше pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер входящего сообщения
	maxMessageSize = 4096

	// Размер буфера отправки клиента
	clientSendBufferSize = 256
)

// originChecker проверяет Origin по списку из ALLOWED_ORIGINS
// (comma-separated); пустое значение или "*" разрешает всё
type originCheckerT struct {
	allowed  map[string]struct{}
	allowAll bool
}

var originChecker = newOriginChecker(os.Getenv("ALLOWED_ORIGINS"))

func newOriginChecker(env string) *originCheckerT {
	c := &originCheckerT{allowed: make(map[string]struct{})}
	if env == "" || env == "*" {
		c.allowAll = true
		return c
	}
	for _, origin := range strings.Split(env, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			c.allowed[origin] = struct{}{}
		}
	}
	return c
}

func (c *originCheckerT) check(origin string) bool {
	if origin == "" {
		// Не-браузерные клиенты (curl, мониторинг)
		return true
	}
	if c.allowAll {
		return true
	}
	_, ok := c.allowed[origin]
	return ok
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return originChecker.check(r.Header.Get("Origin"))
	},
	EnableCompression: true,
}

// Client представляет одно WebSocket соединение
//
// Две горутины на клиента: readPump читает (и следит за живостью
// через pong), writePump пишет из буферизованного канала send.
type Client struct {
	conn *websocket.Conn
	hub  *Hub
	send chan []byte
}

// unregisterFromHub снимает клиента с регистрации
//
// После Hub.Stop() цикл Run больше не читает unregister; select на
// done не даёт горутине клиента зависнуть при shutdown.
func (c *Client) unregisterFromHub() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

// readPump читает сообщения от клиента
//
// Поток данных односторонний (сервер → клиент); входящие сообщения
// игнорируются, но чтение нужно для обработки close и pong.
func (c *Client) readPump() {
	defer func() {
		c.unregisterFromHub()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws: read error: %v", err)
			}
			return
		}
	}
}

// writePump отправляет сообщения клиенту
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub закрыл канал
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Досылаем накопившееся в буфере одним фреймом
		drainLoop:
			for {
				select {
				case msg, ok := <-c.send:
					if !ok {
						break drainLoop
					}
					w.Write([]byte{'\n'})
					w.Write(msg)
				default:
					break drainLoop
				}
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS апгрейдит HTTP соединение до WebSocket и запускает
// горутины клиента
//
// Использование в routes:
//
//	router.HandleFunc("/ws/stream", func(w, r) { websocket.ServeWS(hub, w, r) })
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade error: %v", err)
		return
	}

	client := &Client{
		conn: conn,
		hub:  hub,
		send: make(chan []byte, clientSendBufferSize),
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
