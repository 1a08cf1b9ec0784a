package kafka

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"LiveDesk/feed"
	"LiveDesk/models"
	"LiveDesk/store"

	"github.com/IBM/sarama"
	"gorm.io/datatypes"
)

// 客户入口发来的会话创建事件
type SessionCreatedMessage struct {
	SessionID     string `json:"session_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerIP    string `json:"customer_ip"`
	UserAgent     string `json:"user_agent"`
	Referrer      string `json:"referrer"`
	Subject       string `json:"subject"`
	Priority      string `json:"priority"`
	Timestamp     int64  `json:"timestamp"`
}

// 客户入口发来的消息事件
type MessageCreatedMessage struct {
	SessionID   string          `json:"session_id"`
	SenderType  string          `json:"sender_type"`
	MessageType string          `json:"message_type"`
	Content     string          `json:"content"`
	Metadata    json.RawMessage `json:"metadata"`
	Timestamp   int64           `json:"timestamp"`
}

// IngestHandler 消费客户入口的事件：落库，再发变更事件通知各组件
type IngestHandler struct {
	sessions     store.SessionStore
	messages     store.MessageStore
	pub          feed.Publisher
	sessionTopic string
	messageTopic string
}

func NewIngestHandler(sessions store.SessionStore, messages store.MessageStore,
	pub feed.Publisher, sessionTopic, messageTopic string) *IngestHandler {
	return &IngestHandler{
		sessions:     sessions,
		messages:     messages,
		pub:          pub,
		sessionTopic: sessionTopic,
		messageTopic: messageTopic,
	}
}

func (h *IngestHandler) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	switch message.Topic {
	case h.sessionTopic:
		return h.handleSessionCreated(ctx, message.Value)
	case h.messageTopic:
		return h.handleMessageCreated(ctx, message.Value)
	}
	log.Printf("Ignoring message from unexpected topic %s", message.Topic)
	return nil
}

func (h *IngestHandler) handleSessionCreated(ctx context.Context, value []byte) error {
	var msg SessionCreatedMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		log.Printf("Failed to unmarshal session event: %v", err)
		return err
	}

	startedAt := time.Unix(msg.Timestamp, 0)
	if msg.Timestamp == 0 {
		startedAt = time.Now()
	}
	session := models.ChatSession{
		ID:             msg.SessionID,
		CustomerName:   msg.CustomerName,
		CustomerEmail:  msg.CustomerEmail,
		CustomerIP:     msg.CustomerIP,
		UserAgent:      msg.UserAgent,
		Referrer:       msg.Referrer,
		Subject:        msg.Subject,
		Status:         models.SessionWaiting,
		Priority:       models.NormalizePriority(msg.Priority),
		StartedAt:      startedAt,
		LastActivityAt: startedAt,
	}
	if err := h.sessions.Create(ctx, &session); err != nil {
		return err
	}

	return h.pub.Publish(ctx, feed.SessionEvent(feed.OpInsert, &session))
}

func (h *IngestHandler) handleMessageCreated(ctx context.Context, value []byte) error {
	var msg MessageCreatedMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		log.Printf("Failed to unmarshal message event: %v", err)
		return err
	}

	createdAt := time.Unix(msg.Timestamp, 0)
	if msg.Timestamp == 0 {
		createdAt = time.Now()
	}
	chatMessage := models.ChatMessage{
		SessionID:   msg.SessionID,
		SenderType:  models.NormalizeSenderType(msg.SenderType),
		MessageType: models.NormalizeMessageType(msg.MessageType),
		Content:     msg.Content,
		Metadata:    datatypes.JSON(msg.Metadata),
		CreatedAt:   createdAt,
	}
	stored, err := h.messages.Create(ctx, &chatMessage)
	if err != nil {
		return err
	}

	// 客户发消息也算会话活跃
	if err := h.sessions.Touch(ctx, msg.SessionID, createdAt); err != nil {
		log.Printf("Failed to touch session %s: %v", msg.SessionID, err)
	}

	if err := h.pub.Publish(ctx, feed.MessageEvent(feed.OpInsert, stored)); err != nil {
		return err
	}
	return h.pub.Publish(ctx, feed.SessionEvent(feed.OpUpdate, nil))
}
