package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"LiveDesk/directory"
	"LiveDesk/kafka"
	"LiveDesk/models"
	"LiveDesk/store"
	"LiveDesk/stream"

	"github.com/labstack/echo/v4"
)

// DeskHandler 坐席工作台：会话目录 + 消息流
type DeskHandler struct {
	directory *directory.Directory
	streams   *stream.Manager
	audit     *kafka.Producer // 可为空，审计是旁路
}

func NewDeskHandler(dir *directory.Directory, streams *stream.Manager, audit *kafka.Producer) *DeskHandler {
	return &DeskHandler{
		directory: dir,
		streams:   streams,
		audit:     audit,
	}
}

// 获取会话列表，q 为搜索词
func (h *DeskHandler) ListSessions(c echo.Context) error {
	sessions := h.directory.List(c.QueryParam("q"))
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// 把会话指派给当前坐席
func (h *DeskHandler) AssignSession(c echo.Context) error {
	agent := c.Get("agent").(*models.Agent)
	sessionID := c.Param("sessionId")

	if err := h.directory.Assign(c.Request().Context(), sessionID, agent); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "session not found",
			})
		}
		if errors.Is(err, store.ErrSessionClosed) {
			return c.JSON(http.StatusConflict, map[string]string{
				"error": "session already closed",
			})
		}
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "failed to assign session",
		})
	}

	h.sendAudit(kafka.AuditEvent{
		SessionID: sessionID,
		AgentID:   agent.ID,
		Action:    "assigned",
		Timestamp: time.Now(),
	})

	session, _ := h.directory.Get(sessionID)
	return c.JSON(http.StatusOK, session)
}

// 关闭会话
func (h *DeskHandler) CloseSession(c echo.Context) error {
	agent := c.Get("agent").(*models.Agent)
	sessionID := c.Param("sessionId")

	if err := h.directory.Close(c.Request().Context(), sessionID); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "session not found",
			})
		}
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "failed to close session",
		})
	}

	h.sendAudit(kafka.AuditEvent{
		SessionID: sessionID,
		AgentID:   agent.ID,
		Action:    "closed",
		Timestamp: time.Now(),
	})

	return c.JSON(http.StatusOK, map[string]string{
		"status": "closed",
	})
}

// 打开会话的消息流并返回历史消息
func (h *DeskHandler) GetMessages(c echo.Context) error {
	agent := c.Get("agent").(*models.Agent)
	sessionID := c.Param("sessionId")

	s := h.streams.Acquire(agent.ID)
	if s.SessionID() != sessionID {
		if err := s.Open(c.Request().Context(), sessionID); err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				return c.JSON(http.StatusNotFound, map[string]string{
					"error": "session not found",
				})
			}
			return c.JSON(http.StatusBadGateway, map[string]string{
				"error": "failed to load messages",
			})
		}
	}

	return c.JSON(http.StatusOK, s.Messages())
}

// 发送坐席消息
func (h *DeskHandler) SendMessage(c echo.Context) error {
	agent := c.Get("agent").(*models.Agent)
	sessionID := c.Param("sessionId")

	var req struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request",
		})
	}

	s := h.streams.Acquire(agent.ID)
	if s.SessionID() != sessionID {
		if err := s.Open(c.Request().Context(), sessionID); err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				return c.JSON(http.StatusNotFound, map[string]string{
					"error": "session not found",
				})
			}
			return c.JSON(http.StatusBadGateway, map[string]string{
				"error": "failed to open session",
			})
		}
	}

	if err := s.Send(c.Request().Context(), agent, req.Content); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "session not found",
			})
		}
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "failed to send message",
		})
	}

	return c.JSON(http.StatusOK, s.Messages())
}

// 批量标记已读
func (h *DeskHandler) MarkRead(c echo.Context) error {
	agent := c.Get("agent").(*models.Agent)

	var req struct {
		MessageIDs []string `json:"message_ids"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request",
		})
	}

	s := h.streams.Acquire(agent.ID)
	if err := s.MarkRead(c.Request().Context(), req.MessageIDs); err != nil {
		if errors.Is(err, store.ErrMessageNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "messages not found",
			})
		}
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "failed to mark read",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// 审计失败只记日志，不影响主流程
func (h *DeskHandler) sendAudit(event kafka.AuditEvent) {
	if h.audit == nil {
		return
	}
	if err := h.audit.SendAudit(event); err != nil {
		log.Printf("Failed to send audit event: %v", err)
	}
}
