package websock

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"staybook/models"
)

// Audience decides which events a client may see.
type Audience string

const (
	AudiencePublic Audience = "public"
	AudienceAdmin  Audience = "admin"
)

// public widgets never see guest details, only what redraws the calendar
// and the public listing
var publicEvents = map[models.EventType]bool{
	models.EventCalendarUpdate:  true,
	models.EventPricingUpdate:   true,
	models.EventPromotionUpdate: true,
	models.EventReviewUpdate:    true,
}

// Allows reports whether clients of audience a receive events of type t.
func (a Audience) Allows(t models.EventType) bool {
	if a == AudienceAdmin {
		return true
	}
	return publicEvents[t]
}

type broadcastMsg struct {
	Type models.EventType
	Data []byte
}

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg
	quit       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMsg, 64),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			log.Printf("[Hub] %s client joined (%s)", c.Audience, c.UserID)

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				c.close()
			}
			h.mu.Unlock()

		case m := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if !c.Audience.Allows(m.Type) {
					continue
				}
				if !c.enqueue(m.Data) {
					// slow client; drop it rather than stall everyone
					log.Printf("[Hub] dropping slow %s client", c.Audience)
					delete(h.clients, c)
					c.close()
				}
			}
			h.mu.Unlock()

		case <-h.quit:
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				c.close()
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop disconnects every client and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
	<-h.done
}

func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		c.close()
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// Broadcast queues msg for every client whose audience allows it.
func (h *Hub) Broadcast(msg models.Message) {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[Hub] marshal %s: %v", msg.Type, err)
		return
	}
	select {
	case h.broadcast <- broadcastMsg{Type: msg.Type, Data: data}:
	case <-h.quit:
	}
}

// Count returns connected clients of audience a.
func (h *Hub) Count(a Audience) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for c := range h.clients {
		if c.Audience == a {
			n++
		}
	}
	return n
}
