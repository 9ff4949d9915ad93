package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"staybook/models"
)

// Handler receives one decoded event.
type Handler func(models.Message)

// StateHandler observes lifecycle transitions, in the order they happen.
type StateHandler func(State)

type Config struct {
	URL                  string
	Header               http.Header
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	HeartbeatInterval    time.Duration
	HandshakeTimeout     time.Duration
}

func DefaultConfig(url string) Config {
	return Config{
		URL:                  url,
		ReconnectInterval:    3 * time.Second,
		MaxReconnectAttempts: 5,
		HeartbeatInterval:    30 * time.Second,
		HandshakeTimeout:     10 * time.Second,
	}
}

type handlerEntry struct {
	id int
	fn Handler
}

// Manager owns one persistent channel to the event source: it dials,
// reconnects with a fixed interval and a bounded budget, keeps the link alive
// with ping messages, and fans decoded events out to subscribers.
type Manager struct {
	cfg    Config
	dialer Dialer

	mu        sync.Mutex
	state     State
	conn      Conn
	gen       uint64 // bumped on Connect/Disconnect; stale goroutines compare and bail
	attempts  int
	reconnect *time.Timer
	heartbeat chan struct{}
	handlers  map[models.EventType][]handlerEntry
	nextID    int
	stateSubs []StateHandler
	pending   []State

	writeMu  sync.Mutex
	notifyMu sync.Mutex
}

// New builds a Manager. A nil dialer means gorilla websocket.
func New(cfg Config, dialer Dialer) *Manager {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.MaxReconnectAttempts < 0 {
		cfg.MaxReconnectAttempts = 0
	}
	if dialer == nil {
		dialer = NewWSDialer(cfg.HandshakeTimeout)
	}
	return &Manager{
		cfg:      cfg,
		dialer:   dialer,
		state:    StateDisconnected,
		handlers: make(map[models.EventType][]handlerEntry),
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts is the number of reconnects scheduled since the last successful
// connection or explicit Connect.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Connect opens the channel. It is a no-op while connecting or connected.
// From any other state it cancels a pending retry and starts over with a
// fresh retry budget.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateConnected {
		m.mu.Unlock()
		return
	}
	m.stopReconnectLocked()
	m.gen++
	m.attempts = 0
	gen := m.gen
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()
	m.notify()

	go m.dial(gen)
}

// Disconnect closes the channel with a normal close code and cancels every
// timer. No reconnect follows.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	m.stopReconnectLocked()
	m.stopHeartbeatLocked()
	conn := m.conn
	m.conn = nil
	m.attempts = 0
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()
	m.notify()

	if conn != nil {
		m.writeMu.Lock()
		err := conn.Close(websocket.CloseNormalClosure, "client disconnect")
		m.writeMu.Unlock()
		if err != nil {
			log.Printf("[realtime] close: %v", err)
		}
	}
}

// Send writes msg if the channel is open. The timestamp is always set to the
// send time. It reports whether the write went out.
func (m *Manager) Send(msg models.Message) bool {
	m.mu.Lock()
	conn := m.conn
	open := m.state == StateConnected && conn != nil
	m.mu.Unlock()
	if !open {
		return false
	}

	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[realtime] encode %s: %v", msg.Type, err)
		return false
	}

	m.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	m.writeMu.Unlock()
	if err != nil {
		log.Printf("[realtime] send %s: %v", msg.Type, err)
		return false
	}
	return true
}

// On subscribes h to events of type t. The returned func removes exactly
// this subscription.
func (m *Manager) On(t models.EventType, h Handler) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.handlers[t] = append(m.handlers[t], handlerEntry{id: id, fn: h})

	var once sync.Once
	return func() {
		once.Do(func() { m.off(t, id) })
	}
}

func (m *Manager) off(t models.EventType, id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.handlers[t]
	for i, e := range entries {
		if e.id == id {
			m.handlers[t] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(m.handlers[t]) == 0 {
		delete(m.handlers, t)
	}
}

func (m *Manager) OnStateChange(h StateHandler) {
	m.mu.Lock()
	m.stateSubs = append(m.stateSubs, h)
	m.mu.Unlock()
}

func (m *Manager) dial(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.HandshakeTimeout)
	conn, err := m.dialer.Dial(ctx, m.cfg.URL, m.cfg.Header)
	cancel()

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close(websocket.CloseNormalClosure, "superseded")
		}
		return
	}
	if err != nil {
		log.Printf("[realtime] dial %s: %v", m.cfg.URL, err)
		m.scheduleReconnectLocked(gen)
		m.mu.Unlock()
		m.notify()
		return
	}
	m.conn = conn
	m.attempts = 0
	m.setStateLocked(StateConnected)
	stop := make(chan struct{})
	m.heartbeat = stop
	m.mu.Unlock()
	m.notify()

	log.Printf("[realtime] connected to %s", m.cfg.URL)
	go m.keepAlive(stop)
	m.readLoop(gen, conn)
}

func (m *Manager) readLoop(gen uint64, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.closed(gen, conn, err)
			return
		}
		var msg models.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[realtime] dropping malformed message: %v", err)
			continue
		}
		m.dispatch(msg)
	}
}

func (m *Manager) closed(gen uint64, conn Conn, err error) {
	m.mu.Lock()
	if gen != m.gen || m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.stopHeartbeatLocked()
	code := closeCode(err)
	log.Printf("[realtime] connection closed (%d): %v", code, err)
	m.setStateLocked(StateDisconnected)
	if code != websocket.CloseNormalClosure && code != websocket.CloseGoingAway {
		m.scheduleReconnectLocked(gen)
	}
	m.mu.Unlock()
	m.notify()

	m.writeMu.Lock()
	_ = conn.Close(websocket.CloseNormalClosure, "")
	m.writeMu.Unlock()
}

func (m *Manager) scheduleReconnectLocked(gen uint64) {
	if m.attempts >= m.cfg.MaxReconnectAttempts {
		log.Printf("[realtime] giving up after %d reconnect attempts", m.attempts)
		m.setStateLocked(StateError)
		return
	}
	m.attempts++
	m.setStateLocked(StateReconnecting)
	log.Printf("[realtime] reconnecting in %s (attempt %d/%d)", m.cfg.ReconnectInterval, m.attempts, m.cfg.MaxReconnectAttempts)
	m.reconnect = time.AfterFunc(m.cfg.ReconnectInterval, func() { m.retry(gen) })
}

func (m *Manager) retry(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.reconnect = nil
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()
	m.notify()

	m.dial(gen)
}

func (m *Manager) keepAlive(stop <-chan struct{}) {
	if m.cfg.HeartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.Send(models.Message{Type: models.EventPing})
		}
	}
}

func (m *Manager) stopReconnectLocked() {
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
}

func (m *Manager) stopHeartbeatLocked() {
	if m.heartbeat != nil {
		close(m.heartbeat)
		m.heartbeat = nil
	}
}

func (m *Manager) dispatch(msg models.Message) {
	m.mu.Lock()
	entries := append([]handlerEntry(nil), m.handlers[msg.Type]...)
	m.mu.Unlock()
	for _, e := range entries {
		m.invoke(msg, e.fn)
	}
}

func (m *Manager) invoke(msg models.Message, fn Handler) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[realtime] handler for %q panicked: %v", msg.Type, r)
		}
	}()
	fn(msg)
}

func (m *Manager) setStateLocked(s State) {
	if s == m.state {
		return
	}
	m.state = s
	m.pending = append(m.pending, s)
}

// notify delivers queued transitions outside m.mu. Only one goroutine drains
// at a time; a handler that triggers another transition has it queued and
// delivered after the current batch.
func (m *Manager) notify() {
	for {
		if !m.notifyMu.TryLock() {
			return
		}
		m.mu.Lock()
		states := m.pending
		m.pending = nil
		subs := append([]StateHandler(nil), m.stateSubs...)
		m.mu.Unlock()

		for _, s := range states {
			for _, h := range subs {
				m.deliver(h, s)
			}
		}
		m.notifyMu.Unlock()

		m.mu.Lock()
		more := len(m.pending) > 0
		m.mu.Unlock()
		if !more {
			return
		}
	}
}

func (m *Manager) deliver(h StateHandler, s State) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[realtime] state handler panicked on %s: %v", s, r)
		}
	}()
	h(s)
}
