package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hubServer upgrades incoming connections, registers them on the hub, and
// reports each registered client on the returned channel.
func hubServer(t *testing.T, hub *Hub) (*httptest.Server, <-chan *Client) {
	t.Helper()

	registered := make(chan *Client, 16)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade failed: %v", err)
			return
		}
		registered <- hub.Register(conn)
	}))
	t.Cleanup(server.Close)
	return server, registered
}

func dialHub(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForConnections(t *testing.T, hub *Hub, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.ActiveConnections() == want
	}, time.Second, 5*time.Millisecond)
}

func TestHubRegister(t *testing.T) {
	hub := NewHub(10)
	server, _ := hubServer(t, hub)

	dialHub(t, server)
	dialHub(t, server)
	waitForConnections(t, hub, 2)
}

func TestHubRejectsConnectionsOverTheLimit(t *testing.T) {
	hub := NewHub(1)
	server, _ := hubServer(t, hub)

	dialHub(t, server)
	waitForConnections(t, hub, 1)

	// The second connection is closed with a policy violation.
	rejected := dialHub(t, server)
	_ = rejected.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := rejected.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation),
		"expected policy violation close, got %v", err)

	assert.Equal(t, 1, hub.ActiveConnections())
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(10)
	server, _ := hubServer(t, hub)

	first := dialHub(t, server)
	second := dialHub(t, server)
	waitForConnections(t, hub, 2)

	hub.Broadcast(Event{Type: EventFolderSynced, AccountID: "a1", FolderID: "inbox"})

	for _, conn := range []*websocket.Conn{first, second} {
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		kind, payload, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, kind)

		var event Event
		require.NoError(t, json.Unmarshal(payload, &event))
		assert.Equal(t, EventFolderSynced, event.Type)
		assert.Equal(t, "a1", event.AccountID)
		assert.Equal(t, "inbox", event.FolderID)
		assert.Empty(t, event.DraftID)
	}
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub(10)
	server, registered := hubServer(t, hub)

	dialHub(t, server)
	client := <-registered
	require.NotNil(t, client)
	waitForConnections(t, hub, 1)

	// Unregistering nil is a no-op.
	hub.Unregister(nil)
	assert.Equal(t, 1, hub.ActiveConnections())

	hub.Unregister(client)
	assert.Equal(t, 0, hub.ActiveConnections())
}

func TestHubDropsClientsThatFailToWrite(t *testing.T) {
	hub := NewHub(10)
	server, _ := hubServer(t, hub)

	conn := dialHub(t, server)
	waitForConnections(t, hub, 1)

	// Kill the client side, then broadcast twice; the dead connection is
	// eventually unregistered.
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		hub.Broadcast(Event{Type: EventMutationApplied})
		return hub.ActiveConnections() == 0
	}, 2*time.Second, 20*time.Millisecond)
}
