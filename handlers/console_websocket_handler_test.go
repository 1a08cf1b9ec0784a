package handlers

import (
	"testing"
	"time"

	"LiveDesk/stream"
)

func testClient(id string, agentID uint) *ConsoleClient {
	return &ConsoleClient{
		ID:      id,
		AgentID: agentID,
		Send:    make(chan map[string]interface{}, 1),
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

// 最后一个控制台断开时释放坐席的消息流，停掉它的轮询
func TestDisconnectReleasesAgentStream(t *testing.T) {
	streams := stream.NewManager(nil, nil, nil)
	hub := NewConsoleHub(nil, streams)
	defer hub.Close()

	first := testClient("c1", 7)
	second := testClient("c2", 7)
	hub.mu.Lock()
	hub.clients[first.ID] = first
	hub.clients[second.ID] = second
	hub.mu.Unlock()

	opened := streams.Acquire(7)

	// 同一坐席还有别的控制台，流保留
	hub.disconnect(first)
	if streams.Acquire(7) != opened {
		t.Fatal("stream released while the agent still has a console connected")
	}

	// 最后一个连接断开后，再获取拿到的是新流
	hub.disconnect(second)
	if streams.Acquire(7) == opened {
		t.Error("stream not released after the agent's last console disconnected")
	}
}

// 重复注销同一个客户端不 panic，Send 只关一次
func TestDisconnectIdempotent(t *testing.T) {
	hub := NewConsoleHub(nil, stream.NewManager(nil, nil, nil))
	defer hub.Close()

	client := testClient("c1", 7)
	hub.mu.Lock()
	hub.clients[client.ID] = client
	hub.mu.Unlock()

	hub.disconnect(client)
	hub.disconnect(client)
	if hub.ClientCount() != 0 {
		t.Errorf("clients left after disconnect: %d", hub.ClientCount())
	}
}

// 慢客户端在广播里被就地注销，分发循环不能给自己回投注销请求
func TestSlowConsoleDisconnectedDuringBroadcast(t *testing.T) {
	hub := NewConsoleHub(nil, nil)
	defer hub.Close()

	slow := testClient("slow", 7)
	slow.Send <- map[string]interface{}{"type": "fill"} // 填满缓冲
	hub.register <- slow
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	// 多次广播也不能卡住分发循环
	for i := 0; i < 40; i++ {
		hub.Broadcast(map[string]interface{}{"type": "toast"})
	}
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}
