package stream

import (
	"context"
	"log"
	"sync"
	"time"

	"LiveDesk/feed"
	"LiveDesk/store"
)

// 打开会话期间的轮询间隔，客服场景要求消息延迟尽量小
const DefaultReloadInterval = 2 * time.Second

// Manager 每个坐席同一时间只打开一个消息流，这里按坐席ID管理
type Manager struct {
	messages store.MessageStore
	sessions store.SessionStore
	pub      feed.Publisher
	interval time.Duration

	mu      sync.RWMutex
	streams map[uint]*Stream
}

func NewManager(messageStore store.MessageStore, sessionStore store.SessionStore, pub feed.Publisher) *Manager {
	return &Manager{
		messages: messageStore,
		sessions: sessionStore,
		pub:      pub,
		interval: DefaultReloadInterval,
		streams:  make(map[uint]*Stream),
	}
}

// Acquire 返回坐席自己的消息流，没有则创建
func (m *Manager) Acquire(agentID uint) *Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.streams[agentID]; ok {
		return s
	}
	s := New(m.messages, m.sessions, m.pub)
	m.streams[agentID] = s
	return s
}

// Release 坐席下线时释放它的消息流
func (m *Manager) Release(agentID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.streams[agentID]; ok {
		s.Detach()
		delete(m.streams, agentID)
	}
}

func (m *Manager) snapshot() []*Stream {
	m.mu.RLock()
	defer m.mu.RUnlock()
	streams := make([]*Stream, 0, len(m.streams))
	for _, s := range m.streams {
		streams = append(streams, s)
	}
	return streams
}

// Run 订阅事件总线，把消息事件分发给所有打开的流，并定时轮询兜底
func (m *Manager) Run(ctx context.Context, bus *feed.Bus) {
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			for _, s := range m.snapshot() {
				s.HandleEvent(event)
			}
		case <-ticker.C:
			for _, s := range m.snapshot() {
				if err := s.Reload(ctx); err != nil {
					log.Printf("Stream poll reload failed: %v", err)
				}
			}
		}
	}
}
