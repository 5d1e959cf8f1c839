package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleet-support-go/internal/config"
	"fleet-support-go/internal/model"
	"fleet-support-go/pkg/llm"

	"github.com/stretchr/testify/require"
)

type fakeRetrieval struct {
	hits []model.RetrievalHit
	err  error
}

func (f *fakeRetrieval) Search(_ context.Context, _ string, _ int) ([]model.RetrievalHit, error) {
	return f.hits, f.err
}

type fakeLLM struct {
	answer  string
	err     error
	prompts []string
}

func (f *fakeLLM) Chat(_ context.Context, messages []llm.Message) (string, error) {
	f.prompts = append(f.prompts, messages[len(messages)-1].Content)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeLLM) StreamChatMessages(_ context.Context, messages []llm.Message, _ *llm.GenerationParams, writer llm.MessageWriter) error {
	f.prompts = append(f.prompts, messages[len(messages)-1].Content)
	if f.err != nil {
		return f.err
	}
	return writer.WriteMessage(1, []byte(f.answer))
}

type memSessionRepo struct {
	sessions map[string]*model.ChatSession
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*model.ChatSession)}
}

func (r *memSessionRepo) Get(_ context.Context, sessionID string) (*model.ChatSession, error) {
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (r *memSessionRepo) Save(_ context.Context, session *model.ChatSession) error {
	copied := *session
	r.sessions[session.SessionID] = &copied
	return nil
}

func (r *memSessionRepo) Delete(_ context.Context, sessionID string) error {
	delete(r.sessions, sessionID)
	return nil
}

func (r *memSessionRepo) ListSessionIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}

func newTestChatService(retrieval RetrievalService, client llm.Client, repo *memSessionRepo) ChatService {
	return NewChatService(retrieval, client, repo, config.RetrievalConfig{Threshold: 0.5, TopK: 3})
}

func TestChatKBHit(t *testing.T) {
	retrieval := &fakeRetrieval{hits: []model.RetrievalHit{
		{CustomerIssue: "printer not working", TechResponse: "Restart the spooler", Score: 0.9},
	}}
	client := &fakeLLM{answer: "1. Restart the print spooler"}
	repo := newMemSessionRepo()
	svc := newTestChatService(retrieval, client, repo)

	resp, err := svc.Chat(context.Background(), "", "My printer is broken")
	require.NoError(t, err)

	require.Equal(t, model.SourceKB, resp.Source)
	require.NotNil(t, resp.Similarity)
	require.InDelta(t, 0.9, *resp.Similarity, 1e-9)
	require.False(t, resp.IsFollowup)
	require.Contains(t, resp.Answer, "1. Restart the print spooler")
	require.Contains(t, resp.Answer, "Source: Knowledge Base (RAG)")
	require.NotEmpty(t, resp.SessionID)

	// 润色提示词应包含用户问题与知识库原文
	require.Contains(t, client.prompts[0], "My printer is broken")
	require.Contains(t, client.prompts[0], "Restart the spooler")

	// 会话应记录问题与方案，历史为一问一答
	session := repo.sessions[resp.SessionID]
	require.NotNil(t, session)
	require.Equal(t, "My printer is broken", session.Problem)
	require.Equal(t, "Restart the spooler", session.Solution)
	require.Equal(t, 1, session.CurrentStep)
	require.Len(t, session.History, 2)
	require.Equal(t, "user", session.History[0].Role)
	require.Equal(t, "bot", session.History[1].Role)
}

func TestChatLowScoreFallsBackToLLM(t *testing.T) {
	retrieval := &fakeRetrieval{hits: []model.RetrievalHit{
		{TechResponse: "irrelevant", Score: 0.2},
	}}
	client := &fakeLLM{answer: "Try checking the cable"}
	svc := newTestChatService(retrieval, client, newMemSessionRepo())

	resp, err := svc.Chat(context.Background(), "", "Something very unusual")
	require.NoError(t, err)

	require.Equal(t, model.SourceGPT, resp.Source)
	require.Nil(t, resp.Similarity)
	require.Contains(t, resp.Answer, "Source: GPT fallback")
	// 兜底时直接用原始问题提问
	require.Equal(t, "Something very unusual", client.prompts[0])
}

func TestChatFollowupUsesContext(t *testing.T) {
	retrieval := &fakeRetrieval{hits: []model.RetrievalHit{
		{TechResponse: "reboot", Score: 0.9},
	}}
	client := &fakeLLM{answer: "Let's try another approach"}
	repo := newMemSessionRepo()
	svc := newTestChatService(retrieval, client, repo)

	now := time.Now()
	repo.sessions["sess-1"] = &model.ChatSession{
		SessionID:    "sess-1",
		Problem:      "printer broken",
		Solution:     "Restart the spooler",
		CurrentStep:  1,
		History:      []model.ChatMessage{{Role: "user", Content: "printer broken", Timestamp: now}},
		CreatedAt:    now,
		LastActivity: now,
	}

	resp, err := svc.Chat(context.Background(), "sess-1", "this didn't work")
	require.NoError(t, err)

	require.Equal(t, model.SourceContext, resp.Source)
	require.True(t, resp.IsFollowup)
	require.Nil(t, resp.Similarity)
	require.Equal(t, "sess-1", resp.SessionID)

	// 上下文提示词应包含此前的问题与方案
	require.Contains(t, client.prompts[0], "Previous Problem: printer broken")
	require.Contains(t, client.prompts[0], "Previous Solution Provided: Restart the spooler")
	require.Contains(t, client.prompts[0], "User's current question: this didn't work")
}

func TestChatShortNegativeIsFollowup(t *testing.T) {
	repo := newMemSessionRepo()
	client := &fakeLLM{answer: "ok"}
	svc := newTestChatService(&fakeRetrieval{}, client, repo)

	now := time.Now()
	repo.sessions["sess-2"] = &model.ChatSession{
		SessionID:    "sess-2",
		Problem:      "vpn drops",
		Solution:     "reinstall client",
		CreatedAt:    now,
		LastActivity: now,
	}

	resp, err := svc.Chat(context.Background(), "sess-2", "still broken")
	require.NoError(t, err)
	require.Equal(t, model.SourceContext, resp.Source)
	require.True(t, resp.IsFollowup)
}

func TestChatLLMErrorReturnsErrorSource(t *testing.T) {
	client := &fakeLLM{err: errors.New("api down")}
	svc := newTestChatService(&fakeRetrieval{}, client, newMemSessionRepo())

	resp, err := svc.Chat(context.Background(), "", "anything")
	require.NoError(t, err)

	require.Equal(t, model.SourceError, resp.Source)
	require.Contains(t, resp.Answer, "Failed to get an answer")
}

func TestChatKBPolishErrorFallsBackToRawText(t *testing.T) {
	retrieval := &fakeRetrieval{hits: []model.RetrievalHit{
		{TechResponse: "Raw KB steps", Score: 0.8},
	}}
	client := &fakeLLM{err: errors.New("api down")}
	svc := newTestChatService(retrieval, client, newMemSessionRepo())

	resp, err := svc.Chat(context.Background(), "", "printer jam")
	require.NoError(t, err)

	require.Equal(t, model.SourceKB, resp.Source)
	require.Contains(t, resp.Answer, "Raw KB steps")
	require.Contains(t, resp.Answer, "Source: Knowledge Base (RAG)")
}

func TestIsFollowupQuestion(t *testing.T) {
	withSolution := &model.ChatSession{Solution: "do something"}
	noSolution := &model.ChatSession{}

	require.False(t, isFollowupQuestion("it's not working", noSolution))
	require.True(t, isFollowupQuestion("I don't understand step 2", withSolution))
	require.True(t, isFollowupQuestion("still broken", withSolution))
	require.False(t, isFollowupQuestion("my monitor shows a blue screen on boot", withSolution))
}

func TestStartAndDeleteSession(t *testing.T) {
	repo := newMemSessionRepo()
	svc := newTestChatService(&fakeRetrieval{}, &fakeLLM{answer: "ok"}, repo)

	session, err := svc.StartSession(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, session.SessionID)

	got, err := svc.GetSession(context.Background(), session.SessionID)
	require.NoError(t, err)
	require.Equal(t, session.SessionID, got.SessionID)

	require.NoError(t, svc.DeleteSession(context.Background(), session.SessionID))
	_, err = svc.GetSession(context.Background(), session.SessionID)
	require.ErrorIs(t, err, ErrSessionNotFound)
}
