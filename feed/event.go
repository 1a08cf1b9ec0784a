package feed

import (
	"context"

	"LiveDesk/models"
)

type Collection string

const (
	CollectionSessions Collection = "chat_sessions"
	CollectionMessages Collection = "chat_messages"
)

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event 后端集合的行级变更事件
type Event struct {
	Collection Collection          `json:"collection"`
	Op         Op                  `json:"op"`
	Session    *models.ChatSession `json:"session,omitempty"`
	Message    *models.ChatMessage `json:"message,omitempty"`
}

// Publisher 事件发布口，本地 Bus 和 RedisFeed 都实现
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

func SessionEvent(op Op, session *models.ChatSession) Event {
	return Event{Collection: CollectionSessions, Op: op, Session: session}
}

func MessageEvent(op Op, message *models.ChatMessage) Event {
	return Event{Collection: CollectionMessages, Op: op, Message: message}
}
