package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/cwrk-planet/collab-service/internal/protocol"

	"github.com/gorilla/websocket"
)

var (
	ErrSlowConsumer = errors.New("ws: send buffer full")
	ErrConnClosed   = errors.New("ws: connection closed")
)

// wsConn — одно WS-подключение. Запись только из writeLoop.
type wsConn struct {
	conn *websocket.Conn
	id   string

	send   chan protocol.Message
	closed chan struct{}
	once   sync.Once
}

func newWsConn(c *websocket.Conn, id string, buffer int) *wsConn {
	return &wsConn{
		conn:   c,
		id:     id,
		send:   make(chan protocol.Message, buffer),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

// Send кладёт сообщение в очередь. Переполненная очередь закрывает подключение.
func (c *wsConn) Send(msg protocol.Message) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.closed:
		return ErrConnClosed
	default:
		_ = c.Close()
		return ErrSlowConsumer
	}
}

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

// writeLoop — единственный писатель в сокет: сообщения из очереди и ping.
func (c *wsConn) writeLoop(pingEvery, writeTimeout time.Duration) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				_ = c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}
