package feed

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// RedisFeed 把本地事件发到 Redis 频道，同时把远端事件转发到本地总线。
// 发布的事件会经由订阅回流到本机，所以本地组件也是通过总线收到自己发的事件。
type RedisFeed struct {
	rdb     *redis.Client
	bus     *Bus
	channel string
}

func NewRedisFeed(rdb *redis.Client, bus *Bus, channel string) *RedisFeed {
	return &RedisFeed{
		rdb:     rdb,
		bus:     bus,
		channel: channel,
	}
}

func (f *RedisFeed) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return f.rdb.Publish(ctx, f.channel, data).Err()
}

// Start 订阅 Redis 频道并转发到本地总线。
// 订阅断开不报错，静默退出，组件靠轮询兜底。
func (f *RedisFeed) Start(ctx context.Context) {
	pubsub := f.rdb.Subscribe(ctx, f.channel)

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Printf("Failed to unmarshal feed event: %v", err)
					continue
				}
				if err := f.bus.Publish(ctx, event); err != nil {
					return
				}
			}
		}
	}()
}
