package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fleet-support-go/internal/model"
	"fleet-support-go/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type fakeChatService struct {
	session    *model.ChatSession
	response   *model.ChatResponseDTO
	err        error
	lastQ      string
	lastSessID string
	deleted    []string
}

func (f *fakeChatService) StartSession(ctx context.Context) (*model.ChatSession, error) {
	return f.session, f.err
}

func (f *fakeChatService) Chat(ctx context.Context, sessionID, question string) (*model.ChatResponseDTO, error) {
	f.lastSessID = sessionID
	f.lastQ = question
	return f.response, f.err
}

func (f *fakeChatService) StreamChat(ctx context.Context, sessionID, question string, ws *websocket.Conn) error {
	return f.err
}

func (f *fakeChatService) GetSession(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	if f.session == nil || f.session.SessionID != sessionID {
		return nil, service.ErrSessionNotFound
	}
	return f.session, nil
}

func (f *fakeChatService) DeleteSession(ctx context.Context, sessionID string) error {
	if f.session == nil || f.session.SessionID != sessionID {
		return service.ErrSessionNotFound
	}
	f.deleted = append(f.deleted, sessionID)
	return nil
}

func newChatRouter(svc service.ChatService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewChatHandler(svc)
	r := gin.New()
	r.POST("/chat/start-session", h.StartSession)
	r.POST("/chat", h.Chat)
	r.GET("/chat/session/:sessionId", h.GetSession)
	r.DELETE("/chat/session/:sessionId", h.DeleteSession)
	return r
}

func TestStartSessionReturnsNewSessionID(t *testing.T) {
	svc := &fakeChatService{session: &model.ChatSession{SessionID: "abc123", CreatedAt: time.Now()}}
	r := newChatRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat/start-session", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "abc123", body["session_id"])
	require.Equal(t, "New session started", body["message"])
}

func TestChatRequiresQuestion(t *testing.T) {
	r := newChatRouter(&fakeChatService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(`{"session_id":"abc123"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatReturnsServiceResponse(t *testing.T) {
	sim := 0.87
	svc := &fakeChatService{
		response: &model.ChatResponseDTO{
			Source:     "gpt_kb",
			Similarity: &sim,
			Answer:     "Restart the print spooler.\n\nSource: Knowledge Base (RAG)",
			SessionID:  "abc123",
		},
	}
	r := newChatRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(`{"question":"printer not working","session_id":"abc123"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "printer not working", svc.lastQ)
	require.Equal(t, "abc123", svc.lastSessID)

	var resp model.ChatResponseDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "gpt_kb", resp.Source)
	require.NotNil(t, resp.Similarity)
	require.InDelta(t, 0.87, *resp.Similarity, 1e-9)
	require.Contains(t, resp.Answer, "Source: Knowledge Base (RAG)")
}

func TestGetSessionNotFound(t *testing.T) {
	r := newChatRouter(&fakeChatService{session: &model.ChatSession{SessionID: "other"}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/chat/session/missing", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "Session not found")
}

func TestDeleteSession(t *testing.T) {
	svc := &fakeChatService{session: &model.ChatSession{SessionID: "abc123"}}
	r := newChatRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/chat/session/abc123", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"abc123"}, svc.deleted)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/chat/session/missing", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}
