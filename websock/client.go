package websock

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"staybook/middleware"
	"staybook/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is enforced in front of the router
		return true
	},
}

type Client struct {
	Conn     *websocket.Conn
	Send     chan []byte
	Audience Audience
	UserID   string

	mu     sync.Mutex
	closed bool
}

func NewClient(conn *websocket.Conn, audience Audience, userID string) *Client {
	return &Client{
		Conn:     conn,
		Send:     make(chan []byte, sendBuffer),
		Audience: audience,
		UserID:   userID,
	}
}

// enqueue never blocks; false means the buffer is full or the client is gone.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

func (c *Client) reply(t models.EventType, data any) {
	msg, err := models.NewMessage(t, data)
	if err != nil {
		log.Printf("[Hub] build %s: %v", t, err)
		return
	}
	out, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[Hub] marshal %s: %v", t, err)
		return
	}
	c.enqueue(out)
}

// Handler upgrades the request and attaches the connection to the hub.
func (h *Hub) Handler(audience Audience) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[Hub] upgrade failed: %v", err)
			return
		}

		c := NewClient(conn, audience, middleware.UserIDFromContext(r.Context()))
		if !h.Register(c) {
			conn.Close()
			return
		}
		c.reply(models.EventConnected, map[string]string{"audience": string(audience)})

		go writePump(c)
		readPump(c, h)
	}
}

func readPump(c *Client, hub *Hub) {
	defer func() {
		hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[Hub] read error: %v", err)
			}
			return
		}
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))

		var in models.Message
		if err := json.Unmarshal(data, &in); err != nil {
			log.Printf("[Hub] invalid payload: %v", err)
			continue
		}
		if in.Type == models.EventPing {
			c.reply(models.EventPong, nil)
		}
	}
}

func writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// not a normal close: watchers should come back
				_ = c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseServiceRestart, "hub closed connection"))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
