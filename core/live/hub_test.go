package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"DHAdmin/events"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := hub.NewClient(conn, r.URL.Query().Get("project"), "u1")
		hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, project string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?project=" + project
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg WSMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_BroadcastsConfigSavedToProjectSubscribers(t *testing.T) {
	hub, srv := startHub(t)
	watcher := dial(t, srv, "p1")
	other := dial(t, srv, "p2")

	require.Eventually(t, func() bool {
		return hub.ClientCount("p1") == 1 && hub.ClientCount("p2") == 1
	}, 2*time.Second, 10*time.Millisecond)

	saved := time.UnixMilli(1_700_000_000_000)
	err := hub.PublishConfigSaved(context.Background(), events.ConfigSaved{
		Kind:      events.KindNode,
		ProjectID: "p1",
		Config:    map[string]string{"id": "n1"},
		SavedAt:   saved,
	})
	require.NoError(t, err)

	msg := readMessage(t, watcher)
	assert.Equal(t, MsgTypeNodeConfig, msg.Type)
	assert.Equal(t, "p1", msg.ProjectID)
	assert.Equal(t, saved.UnixMilli(), msg.Timestamp)
	assert.JSONEq(t, `{"id":"n1"}`, string(msg.Data))

	// p2 只会收到自己的心跳响应
	require.NoError(t, other.WriteJSON(WSMessage{Type: MsgTypePing}))
	assert.Equal(t, MsgTypePong, readMessage(t, other).Type)
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "p1")

	require.Eventually(t, func() bool { return hub.ClientCount("p1") == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount("p1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_PublishAfterStopDoesNotBlock(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	hub.Stop()

	done := make(chan error, 1)
	go func() {
		done <- hub.PublishConfigSaved(context.Background(), events.ConfigSaved{Kind: events.KindGlobal, ProjectID: "p"})
	}()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked after stop")
	}
}
