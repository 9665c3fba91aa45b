package websocket

import (
	"time"

	"tradebot/internal/feed"
	"tradebot/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeTick - живой тик серии (свеча + bid/ask).
	// Отправляется демоном после каждой записи в хранилище.
	MessageTypeTick MessageType = "tick"

	// MessageTypeTrade - сделки, записанные после исполнения ордера
	MessageTypeTrade MessageType = "trade"

	// MessageTypeAlert - операторское уведомление от демона
	MessageTypeAlert MessageType = "alert"

	// MessageTypeDaemons - периодический снимок состояний демонов
	MessageTypeDaemons MessageType = "daemons"
)

// BaseMessage - общая шапка всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// TickMessage - живой тик одной серии
type TickMessage struct {
	BaseMessage
	Data models.Candle `json:"data"`
}

// TradeMessage - сделки одного исполненного ордера
type TradeMessage struct {
	BaseMessage
	OrderID string               `json:"order_id"`
	Data    []models.TradeRecord `json:"data"`
}

// AlertMessage - уведомление о персистентных сбоях ленты
type AlertMessage struct {
	BaseMessage
	Data AlertData `json:"data"`
}

// AlertData - данные уведомления
type AlertData struct {
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Message  string `json:"message"`
	Error    string `json:"error,omitempty"`
}

// DaemonsMessage - снимок всех демонов
type DaemonsMessage struct {
	BaseMessage
	Data []feed.DaemonInfo `json:"data"`
}

// ============ Фабрики сообщений ============

// NewTickMessage создаёт сообщение живого тика
func NewTickMessage(c models.Candle) *TickMessage {
	return &TickMessage{
		BaseMessage: BaseMessage{Type: MessageTypeTick, Timestamp: time.Now()},
		Data:        c,
	}
}

// NewTradeMessage создаёт сообщение о сделках ордера
func NewTradeMessage(orderID string, trades []models.TradeRecord) *TradeMessage {
	return &TradeMessage{
		BaseMessage: BaseMessage{Type: MessageTypeTrade, Timestamp: time.Now()},
		OrderID:     orderID,
		Data:        trades,
	}
}

// NewAlertMessage создаёт сообщение операторского уведомления
func NewAlertMessage(a feed.Alert) *AlertMessage {
	data := AlertData{
		Exchange: a.Key.Exchange,
		Symbol:   a.Key.Symbol,
		Interval: a.Key.Interval,
		Message:  a.Message,
	}
	if a.Err != nil {
		data.Error = a.Err.Error()
	}
	return &AlertMessage{
		BaseMessage: BaseMessage{Type: MessageTypeAlert, Timestamp: a.Time},
		Data:        data,
	}
}

// NewDaemonsMessage создаёт снимок состояний демонов
func NewDaemonsMessage(infos []feed.DaemonInfo) *DaemonsMessage {
	return &DaemonsMessage{
		BaseMessage: BaseMessage{Type: MessageTypeDaemons, Timestamp: time.Now()},
		Data:        infos,
	}
}
