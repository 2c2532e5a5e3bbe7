package live_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"dtr/internal/live"
)

func TestRedisBusFallsBackToLocalDelivery(t *testing.T) {
	hub := live.NewHub()
	conn := dial(t, hub, "org-a")
	require.Eventually(t, func() bool { return hub.Clients("org-a") == 1 }, time.Second, 10*time.Millisecond)

	// порт 1 никто не слушает: publish падает сразу
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	bus := live.NewRedisBus(client, "dtr:test", hub)
	bus.Publish(context.Background(), live.Event{Type: live.EventClockOut, OrgID: "org-a", UserID: "u1"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev live.Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	require.Equal(t, live.EventClockOut, ev.Type)
}

func TestRedisBusFallbackDisconnectsRemovedMember(t *testing.T) {
	hub := live.NewHub()
	conn := dialAs(t, hub, "org-a", "u2")
	require.Eventually(t, func() bool { return hub.Clients("org-a") == 1 }, time.Second, 10*time.Millisecond)

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	live.NewRedisBus(client, "dtr:test", hub).
		Publish(context.Background(), live.Event{Type: live.EventMemberRemoved, OrgID: "org-a", UserID: "u2"})

	require.Equal(t, live.EventMemberRemoved, readEvent(t, conn).Type)
	require.Equal(t, 0, hub.Clients("org-a"))
}

func TestDialRedisFailsFast(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := live.DialRedis(ctx, "127.0.0.1:1")
	require.Error(t, err)
}
