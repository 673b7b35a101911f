package telemetry

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dialHub(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := strings.Replace(server.URL, "http://", "ws://", 1)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHub(t *testing.T) {
	// Arrange
	hub := NewHub(zap.NewNop())
	server := httptest.NewServer(hub)
	defer server.Close()

	first := dialHub(t, server)
	defer first.Close()
	second := dialHub(t, server)
	defer second.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	// Act
	hub.Emit(Event{Kind: KindPositionOpened, RoundID: "round-1", Size: 0.1})

	// Assert
	for _, conn := range []*websocket.Conn{first, second} {
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)

		var ev Event
		require.NoError(t, json.Unmarshal(msg, &ev))
		assert.Equal(t, KindPositionOpened, ev.Kind)
		assert.Equal(t, "round-1", ev.RoundID)
	}

	// A disconnecting client is unsubscribed.
	require.NoError(t, second.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Equal(t, 0, hub.ClientCount())
}
