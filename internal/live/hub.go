package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"dtr/internal/logs"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origin уже проверен CORS и токеном
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub держит websocket-клиентов по организациям.
type Hub struct {
	mu   sync.RWMutex
	orgs map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{orgs: make(map[string]map[*Client]struct{})}
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	orgID  string
	userID string
}

// Serve апгрейдит соединение и подписывает его на события организации.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, orgID, userID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), orgID: orgID, userID: userID}
	h.register(c)
	go c.writePump()
	go c.readPump()
	return nil
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.orgs[c.orgID] == nil {
		h.orgs[c.orgID] = make(map[*Client]struct{})
	}
	h.orgs[c.orgID][c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.orgs[c.orgID]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.orgs, c.orgID)
	}
}

// Deliver рассылает сообщение клиентам организации. Клиенты с переполненным
// буфером отключаются. Возвращает число получателей.
func (h *Hub) Deliver(orgID string, msg []byte) int {
	var slow []*Client
	n := 0
	h.mu.RLock()
	for c := range h.orgs[orgID] {
		select {
		case c.send <- msg:
			n++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range slow {
		h.unregister(c)
	}
	return n
}

// Publish доставляет событие внутри процесса.
func (h *Hub) Publish(_ context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logs.Logger.Errorf("live: marshal event: %v", err)
		return
	}
	h.dispatch(ev, data)
}

// dispatch раздаёт событие локальным клиентам. Удалённый участник получает
// member_removed последним сообщением, после чего его подключения закрываются.
func (h *Hub) dispatch(ev Event, data []byte) {
	h.Deliver(ev.OrgID, data)
	if ev.Type == EventMemberRemoved {
		if n := h.Disconnect(ev.OrgID, ev.UserID); n > 0 {
			logs.With(logrus.Fields{"org_id": ev.OrgID, "user_id": ev.UserID, "clients": n}).
				Info("live: removed member disconnected")
		}
	}
}

// Disconnect закрывает подключения пользователя к организации.
// Уже поставленные в очередь сообщения успевают уйти клиенту.
func (h *Hub) Disconnect(orgID, userID string) int {
	var gone []*Client
	h.mu.RLock()
	for c := range h.orgs[orgID] {
		if c.userID == userID {
			gone = append(gone, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range gone {
		h.unregister(c)
	}
	return len(gone)
}

// Clients: число подключений организации.
func (h *Hub) Clients(orgID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.orgs[orgID])
}

// Close отключает всех клиентов (при остановке сервера).
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.orgs
	h.orgs = make(map[string]map[*Client]struct{})
	h.mu.Unlock()
	for _, clients := range all {
		for c := range clients {
			close(c.send)
		}
	}
}

// readPump нужен для pong/close; входящие сообщения клиентов игнорируются.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logs.Logger.WithFields(logrus.Fields{"org_id": c.orgID, "user_id": c.userID}).
					Debugf("live: read: %v", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
