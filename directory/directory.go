package directory

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

// 轮询兜底间隔，变更事件才是主要的刷新渠道
const DefaultRefreshInterval = 10 * time.Second

// Directory 维护未结束会话的本地缓存，提供搜索、指派、关闭。
// 缓存只通过这里的方法修改，指派/关闭先乐观更新，远端失败再回滚。
type Directory struct {
	store    store.SessionStore
	pub      feed.Publisher
	interval time.Duration

	mu       sync.RWMutex
	sessions map[string]models.ChatSession
}

func New(sessionStore store.SessionStore, pub feed.Publisher) *Directory {
	return &Directory{
		store:    sessionStore,
		pub:      pub,
		interval: DefaultRefreshInterval,
		sessions: make(map[string]models.ChatSession),
	}
}

// Refresh 从后端全量拉取未结束会话，替换缓存
func (d *Directory) Refresh(ctx context.Context) error {
	sessions, err := d.store.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("refresh sessions: %w", err)
	}
	next := make(map[string]models.ChatSession, len(sessions))
	for _, s := range sessions {
		next[s.ID] = s
	}
	d.mu.Lock()
	d.sessions = next
	d.mu.Unlock()
	return nil
}

// List 按搜索词过滤（姓名/邮箱/主题，不区分大小写），
// 按优先级降序排序，同优先级按最后活跃时间降序
func (d *Directory) List(searchTerm string) []models.ChatSession {
	term := strings.ToLower(strings.TrimSpace(searchTerm))

	d.mu.RLock()
	result := make([]models.ChatSession, 0, len(d.sessions))
	for _, s := range d.sessions {
		if term != "" && !matches(s, term) {
			continue
		}
		result = append(result, s)
	}
	d.mu.RUnlock()

	// 每次读取都全量重排，避免增量排序产生偏差
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Priority.Rank() != result[j].Priority.Rank() {
			return result[i].Priority.Rank() > result[j].Priority.Rank()
		}
		return result[i].LastActivityAt.After(result[j].LastActivityAt)
	})
	return result
}

func matches(s models.ChatSession, term string) bool {
	return strings.Contains(strings.ToLower(s.CustomerName), term) ||
		strings.Contains(strings.ToLower(s.CustomerEmail), term) ||
		strings.Contains(strings.ToLower(s.Subject), term)
}

// Get 返回缓存中的会话副本
func (d *Directory) Get(sessionID string) (models.ChatSession, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.sessions[sessionID]
	return s, ok
}

// Assign 把会话指派给坐席。先乐观更新缓存，远端失败则恢复快照。
func (d *Directory) Assign(ctx context.Context, sessionID string, agent *models.Agent) error {
	now := time.Now()

	// 乐观更新前先留快照
	d.mu.Lock()
	snapshot, ok := d.sessions[sessionID]
	if !ok {
		d.mu.Unlock()
		return store.ErrSessionNotFound
	}
	next := snapshot
	next.Status = models.SessionActive
	next.AgentID = &agent.ID
	next.LastActivityAt = now
	next.UpdatedAt = now
	d.sessions[sessionID] = next
	d.mu.Unlock()

	updated, err := d.store.Assign(ctx, sessionID, agent.ID, now)
	if err != nil {
		// 远端失败，回滚到快照
		d.mu.Lock()
		d.sessions[sessionID] = snapshot
		d.mu.Unlock()
		return fmt.Errorf("assign session: %w", err)
	}

	d.publish(ctx, feed.SessionEvent(feed.OpUpdate, updated))

	// 远端成功后重新拉取，吸收服务端字段
	if err := d.Refresh(ctx); err != nil {
		log.Printf("Failed to refresh directory after assign: %v", err)
	}
	return nil
}

// Close 关闭会话并把它移出工作集。重复关闭不报错。
func (d *Directory) Close(ctx context.Context, sessionID string) error {
	now := time.Now()

	d.mu.Lock()
	snapshot, hadEntry := d.sessions[sessionID]
	if hadEntry {
		// 工作集只保留未结束会话，关闭即移除（乐观）
		delete(d.sessions, sessionID)
	}
	d.mu.Unlock()

	if !hadEntry {
		// 不在工作集里，可能已经关过；查一下远端，已结束就安静返回
		s, err := d.store.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		if s.Status.Terminal() {
			return nil
		}
	}

	closed, err := d.store.Close(ctx, sessionID, now)
	if err != nil {
		// 回滚：把会话原样放回工作集
		if hadEntry {
			d.mu.Lock()
			d.sessions[sessionID] = snapshot
			d.mu.Unlock()
		}
		return fmt.Errorf("close session: %w", err)
	}

	d.publish(ctx, feed.SessionEvent(feed.OpUpdate, closed))
	return nil
}

// HandleEvent 处理变更事件：会话集合的任何变更都触发刷新
func (d *Directory) HandleEvent(ctx context.Context, event feed.Event) {
	if event.Collection != feed.CollectionSessions {
		return
	}
	if err := d.Refresh(ctx); err != nil {
		log.Printf("Failed to refresh directory on feed event: %v", err)
	}
}

// Run 订阅事件总线并启动轮询兜底，阻塞直到 ctx 结束
func (d *Directory) Run(ctx context.Context, bus *feed.Bus) {
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	if err := d.Refresh(ctx); err != nil {
		log.Printf("Initial directory refresh failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			d.HandleEvent(ctx, event)
		case <-ticker.C:
			if err := d.Refresh(ctx); err != nil {
				log.Printf("Directory poll refresh failed: %v", err)
			}
		}
	}
}

func (d *Directory) publish(ctx context.Context, event feed.Event) {
	if d.pub == nil {
		return
	}
	if err := d.pub.Publish(ctx, event); err != nil {
		log.Printf("Failed to publish session event: %v", err)
	}
}
