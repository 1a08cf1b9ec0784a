package store

import (
	"context"
	"errors"
	"time"

	"LiveDesk/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionStore 会话集合的远程变更接口
type SessionStore interface {
	// ListOpen 返回所有未结束的会话（waiting / active）
	ListOpen(ctx context.Context) ([]models.ChatSession, error)
	Get(ctx context.Context, id string) (*models.ChatSession, error)
	Create(ctx context.Context, session *models.ChatSession) error
	// Assign 会话指派给坐席，waiting -> active
	Assign(ctx context.Context, id string, agentID uint, at time.Time) (*models.ChatSession, error)
	// Close 会话关闭，-> resolved，重复关闭不报错
	Close(ctx context.Context, id string, at time.Time) (*models.ChatSession, error)
	// Touch 刷新会话最后活跃时间
	Touch(ctx context.Context, id string, at time.Time) error
}

type sessionStore struct {
	db *gorm.DB
}

func NewSessionStore(db *gorm.DB) SessionStore {
	return &sessionStore{db: db}
}

func (s *sessionStore) ListOpen(ctx context.Context) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	err := s.db.WithContext(ctx).
		Where("status IN ?", []models.SessionStatus{models.SessionWaiting, models.SessionActive}).
		Order("last_activity_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *sessionStore) Get(ctx context.Context, id string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *sessionStore) Create(ctx context.Context, session *models.ChatSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	now := time.Now()
	if session.StartedAt.IsZero() {
		session.StartedAt = now
	}
	if session.LastActivityAt.IsZero() {
		session.LastActivityAt = session.StartedAt
	}
	session.Status = models.NormalizeStatus(string(session.Status))
	session.Priority = models.NormalizePriority(string(session.Priority))
	return s.db.WithContext(ctx).Create(session).Error
}

func (s *sessionStore) Assign(ctx context.Context, id string, agentID uint, at time.Time) (*models.ChatSession, error) {
	var session models.ChatSession
	// 必须用事务，保证“先查后改”的原子性
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		// 已结束的会话不能再指派
		if session.Status.Terminal() {
			return ErrSessionClosed
		}
		session.Status = models.SessionActive
		session.AgentID = &agentID
		session.LastActivityAt = at
		session.UpdatedAt = at
		return tx.Save(&session).Error
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *sessionStore) Close(ctx context.Context, id string, at time.Time) (*models.ChatSession, error) {
	var session models.ChatSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		// 重复关闭直接返回当前状态
		if session.Status.Terminal() {
			return nil
		}
		session.Status = models.SessionResolved
		session.EndedAt = &at
		session.UpdatedAt = at
		return tx.Save(&session).Error
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *sessionStore) Touch(ctx context.Context, id string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.ChatSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"last_activity_at": at, "updated_at": at}).Error
}
