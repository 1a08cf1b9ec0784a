package stream

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"LiveDesk/feed"
	"LiveDesk/models"
	"LiveDesk/store"
)

// Stream 维护一个“当前打开”会话的消息缓存。
// 发送先乐观插入临时记录，远端确认（响应或变更事件，按ID去重）后收敛到唯一正式记录。
type Stream struct {
	messages store.MessageStore
	sessions store.SessionStore
	pub      feed.Publisher

	mu        sync.RWMutex
	sessionID string
	cache     map[string]models.ChatMessage
}

func New(messageStore store.MessageStore, sessionStore store.SessionStore, pub feed.Publisher) *Stream {
	return &Stream{
		messages: messageStore,
		sessions: sessionStore,
		pub:      pub,
		cache:    make(map[string]models.ChatMessage),
	}
}

// Open 切换到指定会话并加载历史消息，之前的缓存直接丢弃。
// 会话不存在返回 store.ErrSessionNotFound，当前打开状态不变。
func (s *Stream) Open(ctx context.Context, sessionID string) error {
	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return err
	}
	s.mu.Lock()
	s.sessionID = sessionID
	s.cache = make(map[string]models.ChatMessage)
	s.mu.Unlock()
	return s.Reload(ctx)
}

// Detach 取消当前打开的会话
func (s *Stream) Detach() {
	s.mu.Lock()
	s.sessionID = ""
	s.cache = make(map[string]models.ChatMessage)
	s.mu.Unlock()
}

// SessionID 当前打开的会话，未打开返回空串
func (s *Stream) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// Reload 重新拉取当前会话的消息并合并进缓存。
// 正在等待确认的临时记录保留，不会被拉取结果冲掉。
func (s *Stream) Reload(ctx context.Context) error {
	s.mu.RLock()
	sessionID := s.sessionID
	s.mu.RUnlock()
	if sessionID == "" {
		return nil
	}

	fetched, err := s.messages.ListBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID != sessionID {
		// 拉取期间切换了会话，结果作废
		return nil
	}
	next := make(map[string]models.ChatMessage, len(fetched))
	for _, m := range fetched {
		next[m.ID] = m
	}
	for id, m := range s.cache {
		if models.IsTempID(id) {
			next[id] = m
		}
	}
	s.cache = next
	return nil
}

// Messages 返回按创建时间升序的消息列表，同时间按ID排序。
// 顺序每次都从时间戳全量重算，与事件到达顺序无关。
func (s *Stream) Messages() []models.ChatMessage {
	s.mu.RLock()
	result := make([]models.ChatMessage, 0, len(s.cache))
	for _, m := range s.cache {
		result = append(result, m)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Send 发送一条坐席消息。空内容静默忽略。
// 乐观插入 -> 远端创建 -> 成功删临时记录并合并服务端回显；失败删临时记录并报错，不自动重试。
func (s *Stream) Send(ctx context.Context, agent *models.Agent, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	s.mu.Lock()
	sessionID := s.sessionID
	if sessionID == "" {
		s.mu.Unlock()
		return store.ErrSessionNotFound
	}
	now := time.Now()
	temp := models.ChatMessage{
		ID:          models.NewTempMessageID(),
		SessionID:   sessionID,
		SenderID:    &agent.ID,
		SenderType:  models.SenderAgent,
		MessageType: models.MessageText,
		Content:     content,
		CreatedAt:   now,
	}
	s.cache[temp.ID] = temp
	s.mu.Unlock()

	stored, err := s.messages.Create(ctx, &temp)
	if err != nil {
		// 远端失败，撤掉临时记录
		s.mu.Lock()
		delete(s.cache, temp.ID)
		s.mu.Unlock()
		return fmt.Errorf("send message: %w", err)
	}

	// 成功后删临时记录，靠响应/变更事件的正式记录收敛
	s.mu.Lock()
	delete(s.cache, temp.ID)
	if s.sessionID == sessionID {
		s.cache[stored.ID] = *stored
	}
	s.mu.Unlock()

	// 会话最后活跃时间一并刷新
	if err := s.sessions.Touch(ctx, sessionID, now); err != nil {
		log.Printf("Failed to touch session %s: %v", sessionID, err)
	}

	s.publish(ctx, feed.MessageEvent(feed.OpInsert, stored))
	s.publish(ctx, feed.SessionEvent(feed.OpUpdate, nil))
	return nil
}

// MarkRead 批量标记已读，只处理客户发送的消息，空集合不发请求
func (s *Stream) MarkRead(ctx context.Context, ids []string) error {
	s.mu.RLock()
	filtered := make([]string, 0, len(ids))
	for _, id := range ids {
		if m, ok := s.cache[id]; ok && m.SenderType == models.SenderCustomer {
			filtered = append(filtered, id)
		}
	}
	s.mu.RUnlock()

	if len(filtered) == 0 {
		return nil
	}
	if err := s.messages.MarkRead(ctx, filtered); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}

	s.mu.Lock()
	for _, id := range filtered {
		if m, ok := s.cache[id]; ok {
			m.Read = true
			s.cache[id] = m
		}
	}
	s.mu.Unlock()
	return nil
}

// HandleEvent 合并变更事件推来的消息。ID是唯一的去重键：
// 已存在的ID整条替换，缓存大小不变；无关会话的事件直接忽略。
func (s *Stream) HandleEvent(event feed.Event) {
	if event.Collection != feed.CollectionMessages || event.Message == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID == "" || event.Message.SessionID != s.sessionID {
		return
	}
	switch event.Op {
	case feed.OpInsert, feed.OpUpdate:
		s.cache[event.Message.ID] = *event.Message
	case feed.OpDelete:
		delete(s.cache, event.Message.ID)
	}
}

func (s *Stream) publish(ctx context.Context, event feed.Event) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, event); err != nil {
		log.Printf("Failed to publish message event: %v", err)
	}
}
