package notify

import (
	"errors"
	"strings"
	"testing"

	"LiveDesk/feed"
	"LiveDesk/models"
)

type fakeSink struct {
	sounds        []Tone
	toasts        []Toast
	notifications []Notification
	permCalls     int
	permGranted   bool
	soundErr      error
}

func (f *fakeSink) PlaySound(tone Tone) error {
	f.sounds = append(f.sounds, tone)
	return f.soundErr
}

func (f *fakeSink) ShowToast(toast Toast) {
	f.toasts = append(f.toasts, toast)
}

func (f *fakeSink) PushNotification(n Notification) {
	f.notifications = append(f.notifications, n)
}

func (f *fakeSink) RequestPermission() bool {
	f.permCalls++
	return f.permGranted
}

func grantedSink() *fakeSink {
	return &fakeSink{permGranted: true}
}

func sessionWithPriority(id string, p models.SessionPriority) *models.ChatSession {
	return &models.ChatSession{
		ID: id, CustomerName: "alice", Subject: "billing",
		Status: models.SessionWaiting, Priority: p,
	}
}

func countTone(sounds []Tone, tone Tone) int {
	n := 0
	for _, s := range sounds {
		if s == tone {
			n++
		}
	}
	return n
}

func TestNewSessionAlertTiers(t *testing.T) {
	tests := []struct {
		priority     models.SessionPriority
		wantTone     Tone
		wantSticky   bool
		wantOSNotify bool
	}{
		{models.PriorityUrgent, ToneUrgent, true, true},
		{models.PriorityHigh, ToneWarning, false, false},
		{models.PriorityMedium, ToneInfo, false, false},
		{models.PriorityLow, ToneInfo, false, false},
	}
	for _, tt := range tests {
		sink := grantedSink()
		d := NewDispatcher(sink)
		d.HandleEvent(feed.SessionEvent(feed.OpInsert, sessionWithPriority("s1", tt.priority)))

		if len(sink.sounds) != 1 || sink.sounds[0] != tt.wantTone {
			t.Errorf("%s: sounds %v, want [%s]", tt.priority, sink.sounds, tt.wantTone)
		}
		if len(sink.toasts) != 1 || sink.toasts[0].Sticky != tt.wantSticky {
			t.Errorf("%s: toasts %+v, want sticky=%v", tt.priority, sink.toasts, tt.wantSticky)
		}
		if got := len(sink.notifications) > 0; got != tt.wantOSNotify {
			t.Errorf("%s: OS notification dispatched=%v, want %v", tt.priority, got, tt.wantOSNotify)
		}
		if tt.wantOSNotify && !sink.notifications[0].RequireInteraction {
			t.Errorf("%s: urgent OS notification must require interaction", tt.priority)
		}
	}
}

// medium→urgent→urgent→high→urgent 只在两次跃迁时提醒
func TestUrgentAlertIsEdgeTriggered(t *testing.T) {
	sink := grantedSink()
	d := NewDispatcher(sink)

	sequence := []models.SessionPriority{
		models.PriorityMedium,
		models.PriorityUrgent,
		models.PriorityUrgent,
		models.PriorityHigh,
		models.PriorityUrgent,
	}
	for _, p := range sequence {
		d.HandleEvent(feed.SessionEvent(feed.OpUpdate, sessionWithPriority("s1", p)))
	}

	if got := countTone(sink.sounds, ToneUrgent); got != 2 {
		t.Errorf("urgent alerts = %d, want exactly 2 (one per transition into urgent)", got)
	}
}

// 降级不提醒
func TestDeEscalationDoesNotAlert(t *testing.T) {
	sink := grantedSink()
	d := NewDispatcher(sink)

	d.HandleEvent(feed.SessionEvent(feed.OpUpdate, sessionWithPriority("s1", models.PriorityUrgent)))
	d.HandleEvent(feed.SessionEvent(feed.OpUpdate, sessionWithPriority("s1", models.PriorityLow)))

	if got := countTone(sink.sounds, ToneUrgent); got != 0 {
		t.Errorf("urgent alerts = %d, want 0 (first observation and de-escalation are not transitions)", got)
	}
}

func TestCustomerMessageAlert(t *testing.T) {
	sink := grantedSink()
	d := NewDispatcher(sink)
	d.SetPreviewLength(10)

	msg := &models.ChatMessage{
		ID: "m1", SessionID: "s1", SenderType: models.SenderCustomer,
		Content: "this is a very long customer message",
	}
	d.HandleEvent(feed.MessageEvent(feed.OpInsert, msg))

	if len(sink.sounds) != 1 || sink.sounds[0] != ToneMessage {
		t.Fatalf("sounds %v, want [message]", sink.sounds)
	}
	if len(sink.toasts) != 1 {
		t.Fatalf("toasts %v, want one", sink.toasts)
	}
	preview := sink.toasts[0].Body
	if !strings.HasPrefix(preview, "this is a ") || !strings.HasSuffix(preview, "...") {
		t.Errorf("preview %q not truncated to limit", preview)
	}
	if len(sink.notifications) != 1 || sink.notifications[0].RequireInteraction {
		t.Errorf("message notification %+v, want auto-dismissing", sink.notifications)
	}
}

func TestNonCustomerMessagesIgnored(t *testing.T) {
	sink := grantedSink()
	d := NewDispatcher(sink)

	for _, sender := range []models.SenderType{models.SenderAgent, models.SenderSystem} {
		d.HandleEvent(feed.MessageEvent(feed.OpInsert, &models.ChatMessage{
			ID: "m1", SessionID: "s1", SenderType: sender, Content: "hi",
		}))
	}
	if len(sink.sounds) != 0 || len(sink.toasts) != 0 {
		t.Error("agent/system messages must not raise alerts")
	}
}

// 权限只请求一次，被拒后不再推系统通知
func TestPermissionRequestedOnceAndDenialIsPermanent(t *testing.T) {
	sink := &fakeSink{permGranted: false}
	d := NewDispatcher(sink)

	for i := 0; i < 3; i++ {
		d.HandleEvent(feed.SessionEvent(feed.OpInsert, sessionWithPriority("s1", models.PriorityUrgent)))
	}

	if sink.permCalls != 1 {
		t.Errorf("permission requested %d times, want once", sink.permCalls)
	}
	if len(sink.notifications) != 0 {
		t.Errorf("OS notifications dispatched after denial: %d", len(sink.notifications))
	}
	// 页面内提醒继续工作
	if len(sink.toasts) != 3 || len(sink.sounds) != 3 {
		t.Error("toast/sound fallback must keep working after denial")
	}
}

// 声音播放失败被吞掉，不影响后续提醒
func TestSoundFailureSwallowed(t *testing.T) {
	sink := grantedSink()
	sink.soundErr = errors.New("autoplay blocked")
	d := NewDispatcher(sink)

	d.HandleEvent(feed.SessionEvent(feed.OpInsert, sessionWithPriority("s1", models.PriorityHigh)))

	if len(sink.toasts) != 1 {
		t.Error("toast skipped after sound failure")
	}
}

func TestTerminalSessionDropsPriorityTracking(t *testing.T) {
	sink := grantedSink()
	d := NewDispatcher(sink)

	d.HandleEvent(feed.SessionEvent(feed.OpUpdate, sessionWithPriority("s1", models.PriorityUrgent)))
	resolved := sessionWithPriority("s1", models.PriorityUrgent)
	resolved.Status = models.SessionResolved
	d.HandleEvent(feed.SessionEvent(feed.OpUpdate, resolved))

	d.mu.Lock()
	_, tracked := d.lastPriority["s1"]
	d.mu.Unlock()
	if tracked {
		t.Error("resolved session still tracked for priority transitions")
	}
}
