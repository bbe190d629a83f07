package client

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cwrk-planet/collab-service/internal/protocol"

	"github.com/gorilla/websocket"
)

// Conn — одно подключение к gateway. Receive вызывается из одной горутины,
// Send — из любой.
type Conn interface {
	Send(msg protocol.Message) error
	Receive() (protocol.Message, error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// WSDialer подключается к /ws через gorilla/websocket.
type WSDialer struct {
	URL          string // ws://host:port/ws
	Token        string // access-токен; пусто — анонимно
	WriteTimeout time.Duration
}

func (d WSDialer) Dial(ctx context.Context) (Conn, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	if d.Token != "" {
		h.Set("Authorization", "Bearer "+d.Token)
	}

	c, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), h)
	if err != nil {
		return nil, err
	}
	wt := d.WriteTimeout
	if wt <= 0 {
		wt = 5 * time.Second
	}
	return &wsConn{conn: c, writeTimeout: wt}, nil
}

type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu sync.Mutex // gorilla: один писатель
}

func (c *wsConn) Send(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Receive() (protocol.Message, error) {
	var msg protocol.Message
	err := c.conn.ReadJSON(&msg)
	return msg, err
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.conn.Close()
}
