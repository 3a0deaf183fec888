package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"zns-gateway/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one dashboard connection, bound to a company.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	companyID uint
}

type envelope struct {
	companyID uint
	payload   []byte
}

// Hub fans history updates out to the dashboard clients of each company.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
	log        *logrus.Logger
}

func NewHub(log *logrus.Logger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		log:        log,
	}
}

// Run serves registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.WithField("company_id", client.companyID).Debug("websocket client registered")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.log.WithField("company_id", client.companyID).Debug("websocket client unregistered")
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.companyID != msg.companyID {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount is the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

type WSEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// BroadcastEvent queues an event for the company's clients. It never blocks;
// when the queue is full the event is dropped.
func (h *Hub) BroadcastEvent(companyID uint, eventType string, data interface{}) {
	payload, err := json.Marshal(WSEvent{Type: eventType, Data: data})
	if err != nil {
		h.log.WithError(err).Error("error marshaling websocket event")
		return
	}
	select {
	case h.broadcast <- envelope{companyID: companyID, payload: payload}:
	default:
		h.log.WithField("type", eventType).Warn("websocket broadcast queue full, dropping event")
	}
}

// HistoryUpdate is the payload of a "history_update" event.
type HistoryUpdate struct {
	ID           uint         `json:"id"`
	MessageID    string       `json:"message_id,omitempty"`
	TemplateCode string       `json:"template_code,omitempty"`
	Phone        string       `json:"phone"`
	State        models.State `json:"state"`
	ErrorMessage string       `json:"error_message,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (h *Hub) HistoryChanged(_ context.Context, row *models.History) {
	h.BroadcastEvent(row.CompanyID, "history_update", HistoryUpdate{
		ID:           row.ID,
		MessageID:    row.RemoteID(),
		TemplateCode: row.TemplateCode,
		Phone:        row.Phone,
		State:        row.State,
		ErrorMessage: row.ErrorMessage,
		UpdatedAt:    row.UpdatedAt,
	})
}

func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request, companyID uint) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade error")
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256), companyID: companyID}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
