package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Максимальное время записи одного сообщения
	writeWait = 10 * time.Second
	// Максимальное ожидание pong от клиента
	pongWait = 60 * time.Second
	// Интервал ping, должен быть меньше pongWait
	pingPeriod = (pongWait * 9) / 10
	// Максимальный размер входящего сообщения
	maxMessageSize = 4096
)

// connection - одно websocket-соединение шлюза
type connection struct {
	id      string
	userID  string
	ws      *websocket.Conn
	send    chan []byte
	gateway *Gateway
	logger  *logrus.Entry

	// mu защищает closed: после закрытия канала send
	// попытки постановки в очередь должны быть безопасны
	mu     sync.Mutex
	closed bool
}

// enqueue ставит сообщение в очередь отправки без блокировки.
// Возвращает false, если соединение закрыто или буфер полон.
func (c *connection) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// sendEvent сериализует и ставит событие в очередь отправки
func (c *connection) sendEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		c.logger.WithError(err).Error("Failed to marshal event")
		return
	}
	if !c.enqueue(data) {
		c.logger.WithField("event", event.Type).Warn("Send buffer full, event dropped")
	}
}

// sendError ставит событие ошибки в очередь отправки.
// Ошибка протокола не закрывает соединение.
func (c *connection) sendError(code, message string) {
	c.sendEvent(Event{Type: EventError, Payload: ErrorPayload{Code: code, Message: message}})
}

// shutdown закрывает канал отправки и само соединение. Идемпотентен.
func (c *connection) shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	c.ws.Close()
}

// writePump пишет сообщения из очереди в websocket и шлет ping.
// Единственная горутина, пишущая в ws.
func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump читает команды клиента до разрыва соединения
func (c *connection) readPump() {
	defer c.gateway.teardown(c)

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.WithError(err).Warn("Unexpected websocket close")
			}
			return
		}
		c.gateway.handleCommand(c, data)
	}
}
