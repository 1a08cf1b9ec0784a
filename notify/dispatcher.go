package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"LiveDesk/feed"
	"LiveDesk/models"
)

const (
	DefaultPreviewLength = 80
	DefaultToastTimeout  = 8 * time.Second
)

// Dispatcher 把变更事件翻译成坐席可感知的提醒。
// 独立订阅事件总线，不关心目录或消息流当前是否展示对应会话。
type Dispatcher struct {
	sink          Sink
	previewLength int
	toastTimeout  time.Duration

	mu           sync.Mutex
	lastPriority map[string]models.SessionPriority
	permAsked    bool
	permGranted  bool
}

func NewDispatcher(sink Sink) *Dispatcher {
	return &Dispatcher{
		sink:          sink,
		previewLength: DefaultPreviewLength,
		toastTimeout:  DefaultToastTimeout,
		lastPriority:  make(map[string]models.SessionPriority),
	}
}

func (d *Dispatcher) SetPreviewLength(n int) {
	if n > 0 {
		d.previewLength = n
	}
}

func (d *Dispatcher) SetToastTimeout(t time.Duration) {
	if t > 0 {
		d.toastTimeout = t
	}
}

// Run 订阅事件总线，阻塞直到 ctx 结束。
// 订阅丢失时安静退出，提醒只是便利层，数据一致性由目录的轮询兜底。
func (d *Dispatcher) Run(ctx context.Context, bus *feed.Bus) {
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
			d.HandleEvent(event)
		}
	}
}

// HandleEvent 按事件类型分发提醒
func (d *Dispatcher) HandleEvent(event feed.Event) {
	switch event.Collection {
	case feed.CollectionSessions:
		d.handleSessionEvent(event)
	case feed.CollectionMessages:
		d.handleMessageEvent(event)
	}
}

func (d *Dispatcher) handleSessionEvent(event feed.Event) {
	if event.Session == nil {
		return
	}
	session := event.Session

	switch event.Op {
	case feed.OpInsert:
		d.rememberPriority(session.ID, session.Priority)
		d.alertNewSession(session)

	case feed.OpUpdate:
		prev, seen := d.swapPriority(session.ID, session.Priority)
		// 边沿触发：只有从非紧急变成紧急才提醒，持续紧急不重复提醒。
		// 首次观察到的紧急不算跃迁，按未知前值处理，不提醒。
		if seen && prev != models.PriorityUrgent && session.Priority == models.PriorityUrgent {
			d.alertUrgent(session)
		}
		if session.Status.Terminal() {
			d.forgetPriority(session.ID)
		}

	case feed.OpDelete:
		d.forgetPriority(session.ID)
	}
}

func (d *Dispatcher) handleMessageEvent(event feed.Event) {
	if event.Op != feed.OpInsert || event.Message == nil {
		return
	}
	// 只有客户消息值得打扰坐席
	if event.Message.SenderType != models.SenderCustomer {
		return
	}
	d.alertCustomerMessage(event.Message)
}

// 新会话提醒，按优先级分档
func (d *Dispatcher) alertNewSession(session *models.ChatSession) {
	title := fmt.Sprintf("New chat from %s", session.CustomerName)
	switch session.Priority {
	case models.PriorityUrgent:
		d.playSound(ToneUrgent)
		d.sink.ShowToast(Toast{Title: title, Body: session.Subject, Sticky: true})
		d.pushNotification(Notification{
			Title:              title,
			Body:               session.Subject,
			RequireInteraction: true,
		})
	case models.PriorityHigh:
		d.playSound(ToneWarning)
		d.sink.ShowToast(Toast{Title: title, Body: session.Subject})
	default:
		d.playSound(ToneInfo)
		d.sink.ShowToast(Toast{Title: title, Body: session.Subject})
	}
}

// 优先级升级为紧急的提醒
func (d *Dispatcher) alertUrgent(session *models.ChatSession) {
	title := fmt.Sprintf("Chat with %s escalated to urgent", session.CustomerName)
	d.playSound(ToneUrgent)
	d.sink.ShowToast(Toast{Title: title, Body: session.Subject, Sticky: true})
	d.pushNotification(Notification{
		Title:              title,
		Body:               session.Subject,
		RequireInteraction: true,
	})
}

// 客户新消息提醒，带截断的内容预览
func (d *Dispatcher) alertCustomerMessage(message *models.ChatMessage) {
	preview := truncate(message.Content, d.previewLength)
	title := "New customer message"
	d.playSound(ToneMessage)
	d.sink.ShowToast(Toast{Title: title, Body: preview})
	d.pushNotification(Notification{
		Title:   title,
		Body:    preview,
		Timeout: d.toastTimeout,
	})
}

// 播放失败直接吞掉（浏览器自动播放限制等），绝不打断后续逻辑
func (d *Dispatcher) playSound(tone Tone) {
	_ = d.sink.PlaySound(tone)
}

// 系统通知权限只在第一次需要时懒请求，拒绝后本进程内不再询问
func (d *Dispatcher) pushNotification(n Notification) {
	d.mu.Lock()
	if !d.permAsked {
		d.permAsked = true
		d.permGranted = d.sink.RequestPermission()
	}
	granted := d.permGranted
	d.mu.Unlock()

	if !granted {
		// 权限被拒，页面内横幅和声音就是兜底渠道
		return
	}
	d.sink.PushNotification(n)
}

func (d *Dispatcher) rememberPriority(id string, p models.SessionPriority) {
	d.mu.Lock()
	d.lastPriority[id] = p
	d.mu.Unlock()
}

func (d *Dispatcher) swapPriority(id string, p models.SessionPriority) (models.SessionPriority, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	prev, seen := d.lastPriority[id]
	d.lastPriority[id] = p
	return prev, seen
}

func (d *Dispatcher) forgetPriority(id string) {
	d.mu.Lock()
	delete(d.lastPriority, id)
	d.mu.Unlock()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
