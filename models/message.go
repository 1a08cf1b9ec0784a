package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderAgent    SenderType = "agent"
	SenderSystem   SenderType = "system"
)

type MessageType string

const (
	MessageText   MessageType = "text"
	MessageFile   MessageType = "file"
	MessageImage  MessageType = "image"
	MessageSystem MessageType = "system"
)

// 临时消息ID前缀，服务端ID永远不会带这个前缀
const tempIDPrefix = "tmp-"

type ChatMessage struct {
	ID          string         `json:"id" gorm:"primaryKey"`
	SessionID   string         `json:"session_id" gorm:"index"`
	SenderID    *uint          `json:"sender_id"`
	SenderType  SenderType     `json:"sender_type" gorm:"type:varchar(16);index"`
	MessageType MessageType    `json:"message_type" gorm:"type:varchar(16)"`
	Content     string         `json:"content" gorm:"type:text"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
	Read        bool           `json:"read" gorm:"default:false"`
	CreatedAt   time.Time      `json:"created_at" gorm:"index"`
}

// NewTempMessageID 生成乐观插入用的临时ID，随机UUID避免撞车
func NewTempMessageID() string {
	return tempIDPrefix + uuid.New().String()
}

// IsTempID 判断是否为客户端临时ID
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

// 规范化发送者类型，未知值归为 system
func NormalizeSenderType(raw string) SenderType {
	switch SenderType(raw) {
	case SenderCustomer, SenderAgent, SenderSystem:
		return SenderType(raw)
	}
	return SenderSystem
}

// 规范化消息类型，未知值归为 text
func NormalizeMessageType(raw string) MessageType {
	switch MessageType(raw) {
	case MessageText, MessageFile, MessageImage, MessageSystem:
		return MessageType(raw)
	}
	return MessageText
}
