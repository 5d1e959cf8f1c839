// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"fleet-support-go/internal/config"
	"fleet-support-go/internal/model"
	"fleet-support-go/internal/repository"
	"fleet-support-go/pkg/llm"
	"fleet-support-go/pkg/log"

	"github.com/gorilla/websocket"
)

// ErrSessionNotFound 表示请求的会话不存在或已过期。
var ErrSessionNotFound = errors.New("session not found")

// ChatService 定义了问答会话的业务操作。
type ChatService interface {
	StartSession(ctx context.Context) (*model.ChatSession, error)
	// Chat 处理一轮问答并返回完整回答。sessionID 为空时自动创建会话。
	Chat(ctx context.Context, sessionID, question string) (*model.ChatResponseDTO, error)
	// StreamChat 处理一轮问答并把回答分块写入 WebSocket 连接。
	StreamChat(ctx context.Context, sessionID, question string, ws *websocket.Conn) error
	GetSession(ctx context.Context, sessionID string) (*model.ChatSession, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

type chatService struct {
	retrieval   RetrievalService
	llmClient   llm.Client
	sessionRepo repository.SessionRepository
	threshold   float64
	topK        int
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(retrieval RetrievalService, llmClient llm.Client, sessionRepo repository.SessionRepository, cfg config.RetrievalConfig) ChatService {
	return &chatService{
		retrieval:   retrieval,
		llmClient:   llmClient,
		sessionRepo: sessionRepo,
		threshold:   cfg.Threshold,
		topK:        cfg.TopK,
	}
}

// 追问关键词：命中任意一个即认为用户在追问上一个解决方案。
var followupKeywords = []string{
	"don't understand", "don't get", "confused", "unclear",
	"step", "how to", "what does", "explain", "clarify",
	"not working", "doesn't work", "still have", "still experiencing",
	"help", "assist", "guide", "walk me through",
	"this didn't work", "this solution didn't work", "it's not working",
	"tried this", "already tried", "still not working", "doesn't help",
	"not helping", "still have the problem", "problem persists",
}

// 短否定词：问题很短且包含这些词时也视为追问。
var shortNegativeWords = []string{"not", "didn't", "doesn't", "still", "this", "that"}

// StartSession 创建一个新的空会话。
func (s *chatService) StartSession(ctx context.Context) (*model.ChatSession, error) {
	session := newSession(newSessionID())
	if err := s.sessionRepo.Save(ctx, session); err != nil {
		return nil, err
	}
	log.Infof("[ChatService] 新会话已创建: %s", session.SessionID)
	return session, nil
}

// GetSession 返回指定会话的完整状态。
func (s *chatService) GetSession(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	session, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// DeleteSession 删除指定会话。
func (s *chatService) DeleteSession(ctx context.Context, sessionID string) error {
	session, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	return s.sessionRepo.Delete(ctx, sessionID)
}

// Chat 执行一轮完整的问答流程：
// 追问且有历史方案时带上下文调用 LLM；否则先做知识库检索，
// 高置信命中时让 LLM 润色知识库答案，未命中时回退到纯 LLM 回答。
func (s *chatService) Chat(ctx context.Context, sessionID, question string) (*model.ChatResponseDTO, error) {
	session, err := s.getOrCreateSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	session.LastActivity = time.Now()
	session.History = append(session.History, model.ChatMessage{
		Role:      "user",
		Content:   question,
		Timestamp: time.Now(),
	})

	isFollowup := isFollowupQuestion(question, session)
	log.Infof("[ChatService] 步骤1: 追问检测结果: %v, session: %s", isFollowup, session.SessionID)

	// 追问且有历史方案：带完整上下文调用 LLM
	if isFollowup && session.Solution != "" {
		prompt := buildConversationContext(session) + "\n\nUser's current question: " + question
		answer, err := s.llmClient.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}})
		if err == nil {
			return s.finishTurn(ctx, session, answer, model.SourceContext, nil, true), nil
		}
		// 上下文调用失败时继续走检索与兜底
		log.Errorf("[ChatService] 带上下文调用 LLM 失败: %v", err)
	}

	// 知识库检索
	log.Info("[ChatService] 步骤2: 开始知识库检索")
	best := s.bestHit(ctx, question)

	if best != nil && best.Score >= s.threshold && !isFollowup {
		// 高置信命中：记录问题与方案，让 LLM 把知识库答案润色成步骤化回复
		session.Problem = question
		session.Solution = best.TechResponse
		session.CurrentStep = 1

		polished, err := s.llmClient.Chat(ctx, []llm.Message{{Role: "user", Content: buildKBPolishPrompt(question, best.TechResponse)}})
		if err != nil {
			log.Errorf("[ChatService] 润色知识库答案失败, 回退到原始文本: %v", err)
			polished = best.TechResponse
		}
		answer := polished + "\n\nSource: Knowledge Base (RAG)"
		score := best.Score
		return s.finishTurn(ctx, session, answer, model.SourceKB, &score, false), nil
	}
	if best != nil && best.Score >= s.threshold && isFollowup {
		log.Infof("[ChatService] 追问命中知识库(相似度 %.3f)，改用 LLM 上下文回答", best.Score)
	}

	// LLM 兜底：有历史上下文时带上，没有则直接问
	log.Info("[ChatService] 步骤3: 回退到 LLM 兜底")
	var prompt, footer string
	if session.Problem != "" && session.Solution != "" {
		prompt = buildConversationContext(session) + "\n\nUser's current question: " + question
		footer = "Source: GPT with context"
	} else {
		prompt = question
		footer = "Source: GPT fallback"
	}

	answer, err := s.llmClient.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}})
	if err != nil {
		log.Errorf("[ChatService] LLM 兜底调用失败: %v", err)
		errMsg := "❌ Failed to get an answer. Please try again."
		return s.finishTurn(ctx, session, errMsg, model.SourceError, nil, false), nil
	}
	return s.finishTurn(ctx, session, answer+"\n\n"+footer, model.SourceGPT, nil, false), nil
}

// StreamChat 与 Chat 流程一致，但 LLM 回答通过 WebSocket 流式下发。
// 分块以 {"chunk":"..."} 形式发送，结束后追加完成通知。
func (s *chatService) StreamChat(ctx context.Context, sessionID, question string, ws *websocket.Conn) error {
	session, err := s.getOrCreateSession(ctx, sessionID)
	if err != nil {
		return err
	}

	session.LastActivity = time.Now()
	session.History = append(session.History, model.ChatMessage{
		Role:      "user",
		Content:   question,
		Timestamp: time.Now(),
	})

	isFollowup := isFollowupQuestion(question, session)

	answerBuilder := &strings.Builder{}
	interceptor := &wsWriterInterceptor{conn: ws, writer: answerBuilder}

	stream := func(prompt string) error {
		return s.llmClient.StreamChatMessages(ctx, []llm.Message{{Role: "user", Content: prompt}}, nil, interceptor)
	}

	var source, footer string
	var similarity *float64

	switch {
	case isFollowup && session.Solution != "":
		source = model.SourceContext
		err = stream(buildConversationContext(session) + "\n\nUser's current question: " + question)

	default:
		best := s.bestHit(ctx, question)
		if best != nil && best.Score >= s.threshold && !isFollowup {
			session.Problem = question
			session.Solution = best.TechResponse
			session.CurrentStep = 1
			source = model.SourceKB
			score := best.Score
			similarity = &score
			footer = "\n\nSource: Knowledge Base (RAG)"
			if err = stream(buildKBPolishPrompt(question, best.TechResponse)); err != nil {
				// 润色失败则把原始知识库答案整体作为一个分块下发
				log.Errorf("[ChatService] 流式润色失败, 回退到原始文本: %v", err)
				err = interceptor.WriteMessage(websocket.TextMessage, []byte(best.TechResponse))
			}
		} else {
			source = model.SourceGPT
			if session.Problem != "" && session.Solution != "" {
				footer = "\n\nSource: GPT with context"
				err = stream(buildConversationContext(session) + "\n\nUser's current question: " + question)
			} else {
				footer = "\n\nSource: GPT fallback"
				err = stream(question)
			}
		}
	}

	if err != nil {
		log.Errorf("[ChatService] 流式调用 LLM 失败: %v", err)
		errMsg := "❌ Failed to get an answer. Please try again."
		_ = interceptor.WriteMessage(websocket.TextMessage, []byte(errMsg))
		source = model.SourceError
		footer = ""
		similarity = nil
	} else if footer != "" {
		_ = interceptor.WriteMessage(websocket.TextMessage, []byte(footer))
	}

	sendCompletion(ws, session.SessionID, source, similarity)

	// 即使原始请求被取消，也要保存已生成的答案
	_ = s.finishTurn(context.Background(), session, answerBuilder.String(), source, similarity, isFollowup && source == model.SourceContext)
	return nil
}

// finishTurn 把机器人回答写入会话历史并持久化，返回响应 DTO。
func (s *chatService) finishTurn(ctx context.Context, session *model.ChatSession, answer, source string, similarity *float64, isFollowup bool) *model.ChatResponseDTO {
	session.History = append(session.History, model.ChatMessage{
		Role:      "bot",
		Content:   answer,
		Source:    source,
		Timestamp: time.Now(),
	})
	if err := s.sessionRepo.Save(ctx, session); err != nil {
		// 只记录错误，回答本身已经生成
		log.Errorf("[ChatService] 保存会话失败: %v", err)
	}
	return &model.ChatResponseDTO{
		Source:     source,
		Similarity: similarity,
		Answer:     answer,
		SessionID:  session.SessionID,
		IsFollowup: isFollowup,
	}
}

// bestHit 返回知识库的最优命中，检索失败时返回 nil 继续兜底流程。
func (s *chatService) bestHit(ctx context.Context, question string) *model.RetrievalHit {
	hits, err := s.retrieval.Search(ctx, question, s.topK)
	if err != nil {
		log.Errorf("[ChatService] 知识库检索失败: %v", err)
		return nil
	}
	if len(hits) == 0 {
		return nil
	}
	best := hits[0]
	log.Infof("[ChatService] 检索最优命中: score=%.3f, issue='%s'", best.Score, best.CustomerIssue)
	return &best
}

// getOrCreateSession 获取会话，sessionID 为空或会话已过期时新建。
func (s *chatService) getOrCreateSession(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	if sessionID != "" {
		session, err := s.sessionRepo.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if session != nil {
			return session, nil
		}
		// 会话已过期：沿用原 ID 重建，客户端无需感知
		return newSession(sessionID), nil
	}
	return newSession(newSessionID()), nil
}

func newSession(sessionID string) *model.ChatSession {
	now := time.Now()
	return &model.ChatSession{
		SessionID:    sessionID,
		History:      []model.ChatMessage{},
		CreatedAt:    now,
		LastActivity: now,
	}
}

// newSessionID 生成随机会话 ID。
func newSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// isFollowupQuestion 判断当前问题是否是对上一个方案的追问。
func isFollowupQuestion(question string, session *model.ChatSession) bool {
	if session.Solution == "" {
		return false
	}

	questionLower := strings.ToLower(question)

	for _, kw := range followupKeywords {
		if strings.Contains(questionLower, kw) {
			return true
		}
	}

	// 很短且带否定词的问题大概率是追问
	if len(strings.Fields(question)) <= 5 {
		for _, w := range shortNegativeWords {
			if strings.Contains(questionLower, w) {
				return true
			}
		}
	}

	return false
}

// buildKBPolishPrompt 构造让 LLM 润色知识库答案的提示词。
func buildKBPolishPrompt(question, kbSolution string) string {
	return "You are an IT support assistant.\n" +
		"Below is a knowledge-base solution relevant to the user's problem.\n" +
		"Rewrite it as a concise, friendly, step-by-step response.\n" +
		"- Keep only factual steps from the KB, do not invent.\n" +
		"- Clarify where needed.\n" +
		"- Prefer bullet points or short numbered steps.\n\n" +
		fmt.Sprintf("User question: %s\n\n", question) +
		fmt.Sprintf("Knowledge-base solution:\n%s\n", kbSolution)
}

// buildConversationContext 基于会话状态构造带上下文的提示词。
func buildConversationContext(session *model.ChatSession) string {
	var b strings.Builder
	b.WriteString("You are an IT support specialist helping with a technical issue.\n\n")
	b.WriteString(fmt.Sprintf("Previous Problem: %s\n\n", session.Problem))
	b.WriteString(fmt.Sprintf("Previous Solution Provided: %s\n\n", session.Solution))
	b.WriteString("Current Conversation History:\n")

	// 只取最近 4 条消息作为上下文
	history := session.History
	if len(history) > 4 {
		history = history[len(history)-4:]
	}
	for _, msg := range history {
		role := "Support"
		if msg.Role == "user" {
			role = "User"
		}
		b.WriteString(fmt.Sprintf("%s: %s\n", role, msg.Content))
	}

	b.WriteString(fmt.Sprintf("\n\nIMPORTANT CONTEXT: The user is currently experiencing issues with: %s\n", session.Problem))
	b.WriteString(fmt.Sprintf("You provided this solution: %s\n\n", session.Solution))
	b.WriteString("The user is now saying the solution didn't work or they need clarification. \n\n")
	b.WriteString("Please provide a helpful, contextual response that:\n")
	b.WriteString("1. Acknowledges their current problem\n")
	b.WriteString("2. Offers alternative solutions or troubleshooting steps\n")
	b.WriteString("3. Asks clarifying questions if needed\n")
	b.WriteString("4. Is supportive and understanding\n\n")
	b.WriteString("Be conversational and supportive. If they're saying something isn't working, help troubleshoot further with specific steps.")
	return b.String()
}

// wsWriterInterceptor 是对 websocket.Conn 的封装，用于捕获写入的消息。
type wsWriterInterceptor struct {
	conn   *websocket.Conn
	writer *strings.Builder
}

// WriteMessage 满足 llm.MessageWriter 接口，把原始分块包装成 {"chunk":"..."}。
func (w *wsWriterInterceptor) WriteMessage(messageType int, data []byte) error {
	w.writer.Write(data)
	payload := map[string]string{"chunk": string(data)}
	b, _ := json.Marshal(payload)
	return w.conn.WriteMessage(messageType, b)
}

// sendCompletion 发送完成通知 JSON。
func sendCompletion(ws *websocket.Conn, sessionID, source string, similarity *float64) {
	notif := map[string]interface{}{
		"type":       "completion",
		"status":     "finished",
		"session_id": sessionID,
		"source":     source,
		"similarity": similarity,
		"timestamp":  time.Now().UnixMilli(),
	}
	b, _ := json.Marshal(notif)
	_ = ws.WriteMessage(websocket.TextMessage, b)
}
