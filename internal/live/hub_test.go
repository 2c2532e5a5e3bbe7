package live_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"dtr/internal/live"
)

func dial(t *testing.T, hub *live.Hub, orgID string) *websocket.Conn {
	t.Helper()
	return dialAs(t, hub, orgID, "u1")
}

func dialAs(t *testing.T, hub *live.Hub, orgID, userID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, hub.Serve(w, r, orgID, userID))
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHubDeliversToOrgClientsOnly(t *testing.T) {
	hub := live.NewHub()
	a := dial(t, hub, "org-a")
	b := dial(t, hub, "org-b")

	require.Eventually(t, func() bool {
		return hub.Clients("org-a") == 1 && hub.Clients("org-b") == 1
	}, time.Second, 10*time.Millisecond)

	at := time.Date(2024, 1, 1, 23, 50, 0, 0, time.UTC)
	hub.Publish(context.Background(), live.Event{Type: live.EventClockIn, OrgID: "org-a", UserID: "u1", At: at})

	require.NoError(t, a.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := a.ReadMessage()
	require.NoError(t, err)

	var ev live.Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	require.Equal(t, live.EventClockIn, ev.Type)
	require.Equal(t, "org-a", ev.OrgID)
	require.True(t, at.Equal(ev.At))

	// клиент другой организации ничего не получает
	require.NoError(t, b.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err = b.ReadMessage()
	require.Error(t, err)
}

func TestHubForgetsClosedClients(t *testing.T) {
	hub := live.NewHub()
	conn := dial(t, hub, "org-a")
	require.Eventually(t, func() bool { return hub.Clients("org-a") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients("org-a") == 0 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 0, hub.Deliver("org-a", []byte(`{}`)))
}

func readEvent(t *testing.T, conn *websocket.Conn) live.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev live.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestHubDisconnectsRemovedMember(t *testing.T) {
	hub := live.NewHub()
	stay := dialAs(t, hub, "org-a", "u1")
	gone := dialAs(t, hub, "org-a", "u2")
	other := dialAs(t, hub, "org-b", "u2")
	require.Eventually(t, func() bool {
		return hub.Clients("org-a") == 2 && hub.Clients("org-b") == 1
	}, time.Second, 10*time.Millisecond)

	ctx := context.Background()
	hub.Publish(ctx, live.Event{Type: live.EventMemberRemoved, OrgID: "org-a", UserID: "u2"})
	require.Equal(t, 1, hub.Clients("org-a"))
	require.Equal(t, 1, hub.Clients("org-b"))

	// уведомление об удалении доходит, затем соединение закрывается
	require.Equal(t, live.EventMemberRemoved, readEvent(t, gone).Type)
	require.NoError(t, gone.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := gone.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure), "got %v", err)

	hub.Publish(ctx, live.Event{Type: live.EventClockIn, OrgID: "org-a", UserID: "u1"})
	require.Equal(t, live.EventMemberRemoved, readEvent(t, stay).Type)
	require.Equal(t, live.EventClockIn, readEvent(t, stay).Type)

	// подписка на другую организацию не затронута
	hub.Publish(ctx, live.Event{Type: live.EventClockIn, OrgID: "org-b", UserID: "u2"})
	require.Equal(t, live.EventClockIn, readEvent(t, other).Type)
}

func TestDisconnectUnknownUser(t *testing.T) {
	hub := live.NewHub()
	dialAs(t, hub, "org-a", "u1")
	require.Eventually(t, func() bool { return hub.Clients("org-a") == 1 }, time.Second, 10*time.Millisecond)
	require.Equal(t, 0, hub.Disconnect("org-a", "nobody"))
	require.Equal(t, 0, hub.Disconnect("org-x", "u1"))
	require.Equal(t, 1, hub.Clients("org-a"))
}
