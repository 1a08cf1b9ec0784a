package notify

import "time"

type Tone string

const (
	ToneInfo    Tone = "info"
	ToneWarning Tone = "warning"
	ToneUrgent  Tone = "urgent"
	ToneMessage Tone = "message"
)

// Toast 页面内横幅提醒
type Toast struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Sticky bool   `json:"sticky"` // 紧急提醒不自动消失
}

// Notification 系统级通知
type Notification struct {
	Title              string        `json:"title"`
	Body               string        `json:"body"`
	RequireInteraction bool          `json:"require_interaction"` // 需要用户手动关闭
	Timeout            time.Duration `json:"timeout"`
}

// Sink 提醒的输出口：声音、横幅、系统通知。
// 全部是 fire-and-forget，没有返回给核心逻辑的契约。
type Sink interface {
	// PlaySound 播放提示音。失败由调用方静默吞掉。
	PlaySound(tone Tone) error
	ShowToast(toast Toast)
	PushNotification(n Notification)
	// RequestPermission 请求系统通知权限，只会被调用一次
	RequestPermission() bool
}
