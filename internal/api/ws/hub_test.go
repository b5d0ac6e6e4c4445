package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"

	"github.com/GriffinCanCode/filedeck/internal/api/middleware"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/filedeck/internal/providers/auth"
)

type received struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

type harness struct {
	hub     *Hub
	server  *httptest.Server
	metrics *monitoring.Metrics
	tokens  map[string]string
	users   map[string]string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	provider, err := auth.NewProvider(auth.Options{BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)

	h := &harness{tokens: map[string]string{}, users: map[string]string{}, metrics: monitoring.NewMetrics()}
	for _, name := range []string{"alice", "bob"} {
		user, err := provider.Register(name, "correct horse", "")
		require.NoError(t, err)
		token, _, err := provider.Login(name, "correct horse")
		require.NoError(t, err)
		h.tokens[name] = token
		h.users[name] = user.ID
	}

	h.hub = NewHub(Options{Auth: provider, Metrics: h.metrics})
	router := gin.New()
	router.Use(middleware.Auth(provider, nil))
	router.GET("/stream", h.hub.HandleConnection)
	h.server = httptest.NewServer(router)
	return h
}

func (h *harness) close() {
	h.hub.Close()
	h.server.Close()
}

func (h *harness) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/stream"
	header := http.Header{}
	header.Set("Authorization", "Bearer "+h.tokens[user])
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = resp.Body.Close()

	msg := read(t, conn)
	require.Equal(t, "system", msg.Type)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg received
	require.NoError(t, sonic.Unmarshal(raw, &msg))
	return msg
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Count() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestPublishReachesOnlyOwner(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t)
	defer h.close()

	alice := h.dial(t, "alice")
	defer alice.Close()
	bob := h.dial(t, "bob")
	defer bob.Close()
	waitForClients(t, h.hub, 2)

	h.hub.Publish(h.users["alice"], "sync.progress", map[string]interface{}{"done": 1, "total": 3})
	h.hub.Publish(h.users["bob"], "sync.completed", map[string]interface{}{"uploaded": 2})

	msg := read(t, alice)
	assert.Equal(t, "sync.progress", msg.Type)
	assert.Equal(t, float64(3), msg.Data["total"])

	msg = read(t, bob)
	assert.Equal(t, "sync.completed", msg.Type)
	assert.Equal(t, float64(2), testutil.ToFloat64(h.metrics.WSConnections))
}

func TestPingPong(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t)
	defer h.close()

	conn := h.dial(t, "alice")
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	assert.Equal(t, "pong", read(t, conn).Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat"}`)))
	msg := read(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "unknown message type", msg.Data["message"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	assert.Equal(t, "error", read(t, conn).Type)
}

func TestQueryToken(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t)
	defer h.close()

	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/stream?token=" + h.tokens["bob"]
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer conn.Close()

	assert.Equal(t, "system", read(t, conn).Type)
	waitForClients(t, h.hub, 1)
}

func TestRejectsAnonymous(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t)
	defer h.close()

	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, h.hub.Count())
}

func TestDisconnectUnregisters(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t)
	defer h.close()

	conn := h.dial(t, "alice")
	waitForClients(t, h.hub, 1)
	require.NoError(t, conn.Close())
	waitForClients(t, h.hub, 0)

	// publishing to a user with no connections is a no-op
	h.hub.Publish(h.users["alice"], "sync.started", nil)
}

func TestCloseDisconnectsClients(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t)
	defer h.server.Close()

	conn := h.dial(t, "alice")
	defer conn.Close()
	waitForClients(t, h.hub, 1)

	h.hub.Close()
	waitForClients(t, h.hub, 0)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/stream"
	header := http.Header{}
	header.Set("Authorization", "Bearer "+h.tokens["alice"])
	late, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer late.Close()
	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = late.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://deck.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://deck.example.com")
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(req))

	assert.True(t, originChecker(nil)(req))
	assert.True(t, originChecker([]string{"*"})(req))
}
