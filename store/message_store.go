package store

import (
	"context"
	"time"

	"LiveDesk/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageStore 消息集合的远程变更接口
type MessageStore interface {
	// ListBySession 返回某会话的全部消息，按创建时间升序，同时间按ID排序
	ListBySession(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	// Create 落库并返回服务端消息记录，临时ID会被替换为服务端ID
	Create(ctx context.Context, message *models.ChatMessage) (*models.ChatMessage, error)
	// MarkRead 批量设置已读，只作用于客户发送的消息；
	// 一条都没匹配上返回 ErrMessageNotFound
	MarkRead(ctx context.Context, ids []string) error
}

type messageStore struct {
	db *gorm.DB
}

func NewMessageStore(db *gorm.DB) MessageStore {
	return &messageStore{db: db}
}

func (s *messageStore) ListBySession(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *messageStore) Create(ctx context.Context, message *models.ChatMessage) (*models.ChatMessage, error) {
	stored := *message
	// 临时ID不入库，服务端分配正式ID
	if stored.ID == "" || models.IsTempID(stored.ID) {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.SenderType = models.NormalizeSenderType(string(stored.SenderType))
	stored.MessageType = models.NormalizeMessageType(string(stored.MessageType))
	if err := s.db.WithContext(ctx).Create(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *messageStore) MarkRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	result := s.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Where("id IN ? AND sender_type = ?", ids, models.SenderCustomer).
		Update("read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}
