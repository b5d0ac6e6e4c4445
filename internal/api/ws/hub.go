package ws

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/filedeck/internal/api/middleware"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// ErrHubClosed is returned when connecting after Close
var ErrHubClosed = errors.New("stream hub closed")

// Options configures a Hub
type Options struct {
	// Auth resolves ?token= for clients that cannot set headers
	Auth           middleware.Authenticator
	AllowedOrigins []string // empty or "*" allows any origin
	Metrics        *monitoring.Metrics
	Logger         *zap.Logger
}

// Hub fans published events out to the connections of each user
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool

	upgrader websocket.Upgrader
	auth     middleware.Authenticator
	metrics  *monitoring.Metrics
	log      *zap.Logger
}

type client struct {
	conn   *websocket.Conn
	userID string
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// NewHub creates a hub
func NewHub(opts Options) *Hub {
	h := &Hub{
		clients: make(map[*client]struct{}),
		auth:    opts.Auth,
		metrics: opts.Metrics,
		log:     opts.Logger,
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: originChecker(opts.AllowedOrigins)}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || (len(allowed) == 1 && allowed[0] == "*") {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// HandleConnection upgrades an authenticated request and serves it until
// the client disconnects or the hub closes
func (h *Hub) HandleConnection(c *gin.Context) {
	userID := h.userFor(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
	if err := h.register(cl); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, err.Error()),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	defer h.unregister(cl)

	h.sendTo(cl, "system", map[string]interface{}{"message": "connected to FileDeck"})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.writePump(cl)
	}()
	h.readPump(cl)
	cl.close()
	wg.Wait()
}

func (h *Hub) userFor(c *gin.Context) string {
	if user := middleware.CurrentUser(c); user != nil {
		return user.ID
	}
	token := c.Query("token")
	if token == "" || h.auth == nil {
		return ""
	}
	user, _, err := h.auth.UserForToken(token)
	if err != nil {
		return ""
	}
	return user.ID
}

func (h *Hub) register(cl *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	h.clients[cl] = struct{}{}
	if h.metrics != nil {
		h.metrics.IncWSConnections()
	}
	h.log.Debug("stream client connected", zap.String("user_id", cl.userID))
	return nil
}

func (h *Hub) unregister(cl *client) {
	cl.close()
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl]; !ok {
		return
	}
	delete(h.clients, cl)
	if h.metrics != nil {
		h.metrics.DecWSConnections()
	}
	h.log.Debug("stream client disconnected", zap.String("user_id", cl.userID))
}

// readPump handles client messages until the connection fails
func (h *Hub) readPump(cl *client) {
	cl.conn.SetReadLimit(maxMessageSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("stream read error", zap.Error(err))
			}
			return
		}

		var msg types.WSMessage
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			h.sendTo(cl, "error", map[string]interface{}{"message": "malformed message"})
			continue
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", msg.Type)
		}

		switch msg.Type {
		case "ping":
			h.sendTo(cl, "pong", nil)
		default:
			h.sendTo(cl, "error", map[string]interface{}{"message": "unknown message type"})
		}
	}
}

// writePump is the only writer on the connection
func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-cl.done:
			return
		case frame := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				cl.close()
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cl.close()
				return
			}
		}
	}
}

type event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func encode(topic string, payload interface{}) ([]byte, error) {
	return sonic.Marshal(event{Type: topic, Data: payload, Timestamp: time.Now().Unix()})
}

// sendTo queues a frame for one client. A client whose buffer is full is
// disconnected.
func (h *Hub) sendTo(cl *client, topic string, payload interface{}) {
	frame, err := encode(topic, payload)
	if err != nil {
		h.log.Warn("failed to encode stream event", zap.String("type", topic), zap.Error(err))
		return
	}
	h.enqueue(cl, topic, frame)
}

func (h *Hub) enqueue(cl *client, topic string, frame []byte) {
	select {
	case <-cl.done:
		return
	default:
	}
	select {
	case cl.send <- frame:
		if h.metrics != nil {
			h.metrics.RecordWSMessage("out", topic)
		}
	default:
		h.log.Warn("dropping slow stream client", zap.String("user_id", cl.userID))
		cl.close()
	}
}

// Publish sends an event to every connection of userID
func (h *Hub) Publish(userID, topic string, payload interface{}) {
	frame, err := encode(topic, payload)
	if err != nil {
		h.log.Warn("failed to encode stream event", zap.String("type", topic), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for cl := range h.clients {
		if cl.userID == userID {
			h.enqueue(cl, topic, frame)
		}
	}
}

// Broadcast sends an event to every connected client
func (h *Hub) Broadcast(topic string, payload interface{}) {
	frame, err := encode(topic, payload)
	if err != nil {
		h.log.Warn("failed to encode stream event", zap.String("type", topic), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for cl := range h.clients {
		h.enqueue(cl, topic, frame)
	}
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.Unlock()

	for _, cl := range clients {
		_ = cl.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		cl.close()
	}
}
