package models

import "time"

type SessionStatus string

const (
	SessionWaiting   SessionStatus = "waiting"
	SessionActive    SessionStatus = "active"
	SessionResolved  SessionStatus = "resolved"
	SessionAbandoned SessionStatus = "abandoned"
)

type SessionPriority string

const (
	PriorityLow    SessionPriority = "low"
	PriorityMedium SessionPriority = "medium"
	PriorityHigh   SessionPriority = "high"
	PriorityUrgent SessionPriority = "urgent"
)

// 客服会话
type ChatSession struct {
	ID             string          `json:"id" gorm:"primaryKey"`
	CustomerName   string          `json:"customer_name"`
	CustomerEmail  string          `json:"customer_email"`
	CustomerIP     string          `json:"customer_ip,omitempty"`
	UserAgent      string          `json:"user_agent,omitempty"`
	Referrer       string          `json:"referrer,omitempty"`
	Subject        string          `json:"subject,omitempty"`
	Status         SessionStatus   `json:"status" gorm:"type:varchar(16);index;default:'waiting'"`
	Priority       SessionPriority `json:"priority" gorm:"type:varchar(16);index;default:'medium'"`
	AgentID        *uint           `json:"agent_id" gorm:"index"`
	StartedAt      time.Time       `json:"started_at"`
	LastActivityAt time.Time       `json:"last_activity_at" gorm:"index"`
	EndedAt        *time.Time      `json:"ended_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// 会话是否已结束（resolved / abandoned）
func (s SessionStatus) Terminal() bool {
	return s == SessionResolved || s == SessionAbandoned
}

// 优先级排序权重，urgent 最高
func (p SessionPriority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// 规范化后端传入的状态值，未知值归为 waiting
func NormalizeStatus(raw string) SessionStatus {
	switch SessionStatus(raw) {
	case SessionWaiting, SessionActive, SessionResolved, SessionAbandoned:
		return SessionStatus(raw)
	}
	return SessionWaiting
}

// 规范化优先级，未知值归为 medium
func NormalizePriority(raw string) SessionPriority {
	switch SessionPriority(raw) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return SessionPriority(raw)
	}
	return PriorityMedium
}
