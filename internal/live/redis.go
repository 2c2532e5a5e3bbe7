package live

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"dtr/internal/logs"
)

// RedisBus публикует события в канал redis; подписчик каждой реплики
// раздаёт их своим websocket-клиентам.
type RedisBus struct {
	client  redis.UniversalClient
	channel string
	hub     *Hub
}

func NewRedisBus(client redis.UniversalClient, channel string, hub *Hub) *RedisBus {
	return &RedisBus{client: client, channel: channel, hub: hub}
}

// DialRedis открывает клиента и проверяет соединение.
func DialRedis(ctx context.Context, addr string) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logs.Logger.Errorf("live: marshal event: %v", err)
		return
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		// redis недоступен: хотя бы локальные клиенты получат событие
		logs.Logger.WithFields(logrus.Fields{"channel": b.channel, "org_id": ev.OrgID}).
			Warnf("live: redis publish failed, delivering locally: %v", err)
		b.hub.dispatch(ev, data)
	}
}

// Run слушает канал до отмены ctx.
func (b *RedisBus) Run(ctx context.Context) {
	sub := b.client.Subscribe(ctx, b.channel)
	defer func() { _ = sub.Close() }()
	ch := sub.Channel()
	logs.Logger.Infof("live: subscribed to redis channel %s", b.channel)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logs.Logger.Warnf("live: bad payload on %s: %v", b.channel, err)
				continue
			}
			// каждая реплика сама отключает удалённого участника
			b.hub.dispatch(ev, []byte(msg.Payload))
		}
	}
}
