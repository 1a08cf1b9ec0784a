package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"LiveDesk/directory"
	"LiveDesk/models"
	"LiveDesk/store"
	"LiveDesk/stream"

	"github.com/labstack/echo/v4"
)

// 空库：所有会话都不存在
type emptySessionStore struct{}

func (emptySessionStore) ListOpen(ctx context.Context) ([]models.ChatSession, error) {
	return nil, nil
}

func (emptySessionStore) Get(ctx context.Context, id string) (*models.ChatSession, error) {
	return nil, store.ErrSessionNotFound
}

func (emptySessionStore) Create(ctx context.Context, session *models.ChatSession) error {
	return nil
}

func (emptySessionStore) Assign(ctx context.Context, id string, agentID uint, at time.Time) (*models.ChatSession, error) {
	return nil, store.ErrSessionNotFound
}

func (emptySessionStore) Close(ctx context.Context, id string, at time.Time) (*models.ChatSession, error) {
	return nil, store.ErrSessionNotFound
}

func (emptySessionStore) Touch(ctx context.Context, id string, at time.Time) error {
	return nil
}

type emptyMessageStore struct{}

func (emptyMessageStore) ListBySession(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	return nil, nil
}

func (emptyMessageStore) Create(ctx context.Context, message *models.ChatMessage) (*models.ChatMessage, error) {
	stored := *message
	return &stored, nil
}

func (emptyMessageStore) MarkRead(ctx context.Context, ids []string) error {
	return store.ErrMessageNotFound
}

func deskRequest(method, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, "/", nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("sessionId")
	c.SetParamValues("missing")
	c.Set("agent", &models.Agent{ID: 7, Username: "agent7"})
	return c, rec
}

func emptyDeskHandler() *DeskHandler {
	streams := stream.NewManager(emptyMessageStore{}, emptySessionStore{}, nil)
	dir := directory.New(emptySessionStore{}, nil)
	return NewDeskHandler(dir, streams, nil)
}

// 打开不存在会话的消息流返回 404，而不是笼统的网关错误
func TestGetMessagesUnknownSession(t *testing.T) {
	h := emptyDeskHandler()
	c, rec := deskRequest(http.MethodGet, "")

	if err := h.GetMessages(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("status %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestSendMessageUnknownSession(t *testing.T) {
	h := emptyDeskHandler()
	c, rec := deskRequest(http.MethodPost, `{"content":"hello"}`)

	if err := h.SendMessage(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("status %d, want %d", rec.Code, http.StatusNotFound)
	}
}
