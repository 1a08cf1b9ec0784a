package feed

import (
	"context"
	"testing"
	"time"

	"LiveDesk/models"
)

func recv(t *testing.T, sub *Subscriber) Event {
	t.Helper()
	select {
	case event := <-sub.C:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBusFanOut(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	first := bus.Subscribe()
	second := bus.Subscribe()

	session := &models.ChatSession{ID: "s1", Priority: models.PriorityHigh}
	if err := bus.Publish(context.Background(), SessionEvent(OpInsert, session)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for _, sub := range []*Subscriber{first, second} {
		event := recv(t, sub)
		if event.Collection != CollectionSessions || event.Op != OpInsert {
			t.Errorf("got event %+v, want session insert", event)
		}
		if event.Session == nil || event.Session.ID != "s1" {
			t.Error("event payload lost in fan-out")
		}
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub := bus.Subscribe()
	// 先发一条确认订阅生效
	if err := bus.Publish(context.Background(), SessionEvent(OpUpdate, &models.ChatSession{ID: "s1"})); err != nil {
		t.Fatalf("publish: %v", err)
	}
	recv(t, sub)

	bus.Unsubscribe(sub)

	select {
	case _, ok := <-sub.C:
		if ok {
			t.Error("expected closed channel after unsubscribe")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
}

func TestBusSlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	slow := bus.Subscribe()
	_ = slow // 从不消费

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// 超过订阅者缓冲也不能阻塞发布端
	for i := 0; i < 600; i++ {
		if err := bus.Publish(ctx, MessageEvent(OpInsert, &models.ChatMessage{ID: "m", SessionID: "s1"})); err != nil {
			t.Fatalf("publish blocked at %d: %v", i, err)
		}
	}
}
