package ws

import (
	"sync"

	"github.com/cwrk-planet/collab-service/internal/protocol"
)

type Conn interface {
	ID() string
	Send(msg protocol.Message) error // не блокирует
	Close() error
}

// roomConns — подключения одной комнаты. mu сериализует рассылку,
// поэтому все участники видят события комнаты в одном порядке.
type roomConns struct {
	mu    sync.Mutex
	conns map[string]Conn
	order []string // порядок входа
}

type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*roomConns // roomID -> connections
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*roomConns)}
}

func (h *Hub) Add(roomID string, c Conn) {
	h.mu.Lock()
	rs, ok := h.rooms[roomID]
	if !ok {
		rs = &roomConns{conns: make(map[string]Conn)}
		h.rooms[roomID] = rs
	}
	rs.mu.Lock()
	h.mu.Unlock()
	defer rs.mu.Unlock()

	if _, dup := rs.conns[c.ID()]; !dup {
		rs.order = append(rs.order, c.ID())
	}
	rs.conns[c.ID()] = c
}

func (h *Hub) Remove(roomID string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rs, ok := h.rooms[roomID]
	if !ok {
		return
	}
	rs.mu.Lock()
	delete(rs.conns, c.ID())
	for i, id := range rs.order {
		if id == c.ID() {
			rs.order = append(rs.order[:i:i], rs.order[i+1:]...)
			break
		}
	}
	empty := len(rs.conns) == 0
	rs.mu.Unlock()

	if empty {
		delete(h.rooms, roomID)
	}
}

// Broadcast — всем подключениям комнаты.
func (h *Hub) Broadcast(roomID string, msg protocol.Message) {
	h.BroadcastExcept(roomID, "", msg)
}

// BroadcastExcept — всем, кроме exceptID.
func (h *Hub) BroadcastExcept(roomID, exceptID string, msg protocol.Message) {
	h.mu.RLock()
	rs, ok := h.rooms[roomID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	rs.mu.Lock()
	h.mu.RUnlock()
	defer rs.mu.Unlock()

	for _, id := range rs.order {
		if id == exceptID {
			continue
		}
		_ = rs.conns[id].Send(msg) // best-effort: медленный клиент закрывается сам
	}
}

// Count — число подключений в комнате.
func (h *Hub) Count(roomID string) int {
	h.mu.RLock()
	rs, ok := h.rooms[roomID]
	if !ok {
		h.mu.RUnlock()
		return 0
	}
	rs.mu.Lock()
	h.mu.RUnlock()
	defer rs.mu.Unlock()
	return len(rs.conns)
}
