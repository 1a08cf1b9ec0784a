package feed

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Subscriber 一个订阅者，事件从 C 读取
type Subscriber struct {
	ID string
	C  chan Event
}

// Bus 进程内事件总线，目录、消息流、提醒分发器各自订阅，互不干扰
type Bus struct {
	subscribers map[string]*Subscriber
	mu          sync.RWMutex
	broadcast   chan Event
	register    chan *Subscriber
	unregister  chan *Subscriber
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewBus() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		subscribers: make(map[string]*Subscriber),
		broadcast:   make(chan Event, 256),
		register:    make(chan *Subscriber, 16),
		unregister:  make(chan *Subscriber, 16),
		ctx:         ctx,
		cancel:      cancel,
	}
	go b.run()
	return b
}

// 总线的核心分发循环
func (b *Bus) run() {
	for {
		select {
		case <-b.ctx.Done():
			return

		case sub := <-b.register:
			b.mu.Lock()
			b.subscribers[sub.ID] = sub
			b.mu.Unlock()

		case sub := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.subscribers[sub.ID]; ok {
				delete(b.subscribers, sub.ID)
				close(sub.C)
			}
			b.mu.Unlock()

		case event := <-b.broadcast:
			b.mu.RLock()
			subs := make([]*Subscriber, 0, len(b.subscribers))
			for _, sub := range b.subscribers {
				subs = append(subs, sub)
			}
			b.mu.RUnlock()

			for _, sub := range subs {
				select {
				case sub.C <- event:
				default:
					// 订阅者消费太慢就丢弃事件，靠各组件的轮询兜底
					log.Printf("Subscriber %s buffer full, dropping event", sub.ID)
				}
			}
		}
	}
}

func (b *Bus) Subscribe() *Subscriber {
	sub := &Subscriber{
		ID: uuid.New().String(),
		C:  make(chan Event, 256),
	}
	b.register <- sub
	return sub
}

func (b *Bus) Unsubscribe(sub *Subscriber) {
	b.unregister <- sub
}

func (b *Bus) Publish(ctx context.Context, event Event) error {
	select {
	case b.broadcast <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) Close() {
	b.cancel()
}
