package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"LiveDesk/feed"
	"LiveDesk/models"
	"LiveDesk/notify"
	deskredis "LiveDesk/redis"
	"LiveDesk/stream"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// 没有任何坐席控制台在线
var ErrNoConsole = errors.New("no console connected")

// 坐席控制台客户端 代表一个 WebSocket 连接，包含连接、坐席信息和消息通道
type ConsoleClient struct {
	ID          string                      // 客户端唯一标识（UUID）
	AgentID     uint                        // 坐席数据库ID
	Username    string                      // 坐席用户名
	DisplayName string                      // 坐席显示名
	Conn        *websocket.Conn             // WebSocket连接
	Send        chan map[string]interface{} // 发送消息队列（缓冲256条）
	ctx         context.Context             // 上下文管理
	cancel      context.CancelFunc          // 取消函数
}

// ConsoleHub 管理所有在线坐席控制台的连接和帧分发，
// 同时作为提醒分发器的输出口（声音/横幅/系统通知都推给控制台）
type ConsoleHub struct {
	clients    map[string]*ConsoleClient
	mu         sync.RWMutex
	broadcast  chan map[string]interface{}
	register   chan *ConsoleClient
	unregister chan *ConsoleClient
	ctx        context.Context
	cancel     context.CancelFunc
	redis      *deskredis.RedisClient
	streams    *stream.Manager
}

func NewConsoleHub(redisClient *deskredis.RedisClient, streams *stream.Manager) *ConsoleHub {
	ctx, cancel := context.WithCancel(context.Background())
	hub := &ConsoleHub{
		clients:    make(map[string]*ConsoleClient),
		broadcast:  make(chan map[string]interface{}, 256),
		register:   make(chan *ConsoleClient, 16),
		unregister: make(chan *ConsoleClient, 16),
		ctx:        ctx,
		cancel:     cancel,
		redis:      redisClient,
		streams:    streams,
	}
	go hub.run()
	return hub
}

// 核心帧分发循环
func (hub *ConsoleHub) run() {
	for {
		select {
		case <-hub.ctx.Done():
			return

		case client := <-hub.register:
			hub.mu.Lock()
			hub.clients[client.ID] = client
			hub.mu.Unlock()

			// 添加坐席到Redis在线列表
			hub.addAgentToRedis(client)

		case client := <-hub.unregister:
			hub.disconnect(client)

		case frame := <-hub.broadcast:
			hub.mu.RLock()
			clients := make([]*ConsoleClient, 0, len(hub.clients))
			for _, client := range hub.clients {
				clients = append(clients, client)
			}
			hub.mu.RUnlock()

			for _, client := range clients {
				select {
				case client.Send <- frame:
				default:
					log.Printf("Console %s send buffer full, disconnecting", client.ID)
					hub.disconnect(client)
				}
			}
		}
	}
}

// 注销一个控制台连接。广播循环发现慢客户端也直接走这里，
// 不能往 unregister 队列回投，分发循环自己就是消费者。
// 坐席的最后一个连接断开时，顺带下线 Redis 在线状态并释放它的消息流。
func (hub *ConsoleHub) disconnect(client *ConsoleClient) {
	hub.mu.Lock()
	if _, ok := hub.clients[client.ID]; !ok {
		hub.mu.Unlock()
		return
	}
	delete(hub.clients, client.ID)
	close(client.Send)

	// 同一坐席可能开多个控制台
	hasOtherConnection := false
	for _, c := range hub.clients {
		if c.AgentID == client.AgentID {
			hasOtherConnection = true
			break
		}
	}
	hub.mu.Unlock()

	if hasOtherConnection {
		return
	}
	hub.removeAgentFromRedis(client)
	if hub.streams != nil {
		hub.streams.Release(client.AgentID)
	}
}

func (hub *ConsoleHub) addAgentToRedis(client *ConsoleClient) {
	if hub.redis == nil {
		return
	}
	info := deskredis.AgentInfo{
		AgentID:     client.AgentID,
		Username:    client.Username,
		DisplayName: client.DisplayName,
	}
	if err := hub.redis.AddOnlineAgent(context.Background(), info); err != nil {
		log.Printf("Failed to add agent to Redis: %v", err)
	}
}

func (hub *ConsoleHub) removeAgentFromRedis(client *ConsoleClient) {
	if hub.redis == nil {
		return
	}
	if err := hub.redis.RemoveOnlineAgent(context.Background(), client.AgentID); err != nil {
		log.Printf("Failed to remove agent from Redis: %v", err)
	}
}

// ClientCount 当前连接的控制台数量
func (hub *ConsoleHub) ClientCount() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.clients)
}

// Broadcast 给所有在线控制台推一帧
func (hub *ConsoleHub) Broadcast(frame map[string]interface{}) {
	select {
	case hub.broadcast <- frame:
	default:
		log.Println("Console broadcast queue full, dropping frame")
	}
}

func (hub *ConsoleHub) Close() {
	hub.cancel()
}

// Run 订阅事件总线，把变更事件转发给所有在线控制台
func (hub *ConsoleHub) Run(ctx context.Context, bus *feed.Bus) {
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			hub.Broadcast(map[string]interface{}{
				"type": "feed_event",
				"payload": map[string]interface{}{
					"collection": event.Collection,
					"op":         event.Op,
					"session":    event.Session,
					"message":    event.Message,
				},
			})
		}
	}
}

// PlaySound 实现 notify.Sink：没人在线返回错误，分发器会静默吞掉
func (hub *ConsoleHub) PlaySound(tone notify.Tone) error {
	if hub.ClientCount() == 0 {
		return ErrNoConsole
	}
	hub.Broadcast(map[string]interface{}{
		"type": "sound",
		"payload": map[string]interface{}{
			"tone": tone,
		},
	})
	return nil
}

// ShowToast 实现 notify.Sink
func (hub *ConsoleHub) ShowToast(toast notify.Toast) {
	hub.Broadcast(map[string]interface{}{
		"type": "toast",
		"payload": map[string]interface{}{
			"title":  toast.Title,
			"body":   toast.Body,
			"sticky": toast.Sticky,
		},
	})
}

// PushNotification 实现 notify.Sink
func (hub *ConsoleHub) PushNotification(n notify.Notification) {
	hub.Broadcast(map[string]interface{}{
		"type": "notification",
		"payload": map[string]interface{}{
			"title":               n.Title,
			"body":                n.Body,
			"require_interaction": n.RequireInteraction,
			"timeout_seconds":     int(n.Timeout.Seconds()),
		},
	})
}

// RequestPermission 实现 notify.Sink：有控制台在线即视为授权
func (hub *ConsoleHub) RequestPermission() bool {
	hub.Broadcast(map[string]interface{}{
		"type": "request_permission",
	})
	return hub.ClientCount() > 0
}

type ConsoleWebSocketHandler struct {
	hub *ConsoleHub
}

func NewConsoleWebSocketHandler(hub *ConsoleHub) *ConsoleWebSocketHandler {
	return &ConsoleWebSocketHandler{hub: hub}
}

func (h *ConsoleWebSocketHandler) HandleWebSocket(c echo.Context) error {
	agent := c.Get("agent").(*models.Agent)

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &ConsoleClient{
		ID:          uuid.New().String(),
		AgentID:     agent.ID,
		Username:    agent.Username,
		DisplayName: agent.DisplayName,
		Conn:        ws,
		Send:        make(chan map[string]interface{}, 256),
		ctx:         ctx,
		cancel:      cancel,
	}

	h.hub.register <- client

	// 发送初始化数据（当前在线坐席）
	h.sendInitData(client)

	// 启动写入goroutine
	go h.writePump(client)

	// 当前goroutine处理读取
	h.readPump(client)

	return nil
}

// 读取客户端消息，断开时注销
func (h *ConsoleWebSocketHandler) readPump(client *ConsoleClient) {
	defer func() {
		client.cancel()
		h.hub.unregister <- client
		client.Conn.Close()
	}()

	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg map[string]interface{}
		err := client.Conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
		// 控制台目前只收不发，读循环只用来保活和探测断开
	}
}

// 向客户端写入消息
func (h *ConsoleWebSocketHandler) writePump(client *ConsoleClient) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case <-client.ctx.Done():
			return

		case frame, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Conn.WriteJSON(frame); err != nil {
				log.Printf("WriteJSON error: %v", err)
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// 发送初始化数据（从Redis获取在线坐席列表）
func (h *ConsoleWebSocketHandler) sendInitData(client *ConsoleClient) {
	agents := []deskredis.AgentInfo{}
	if h.hub.redis != nil {
		fetched, err := h.hub.redis.GetOnlineAgents(context.Background())
		if err != nil {
			log.Printf("Failed to get online agents from Redis: %v", err)
		} else {
			agents = fetched
		}
	}

	client.Send <- map[string]interface{}{
		"type": "init",
		"payload": map[string]interface{}{
			"agents": agents,
		},
	}
}
