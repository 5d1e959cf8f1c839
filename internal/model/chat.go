// Package model 包含了应用的数据模型定义。
package model

import "time"

// 回答来源标识，与前端约定保持一致。
const (
	SourceKB      = "gpt_kb"      // 知识库命中后由 LLM 润色
	SourceContext = "gpt_context" // 追问场景，带会话上下文调用 LLM
	SourceGPT     = "gpt"         // 无命中时的 LLM 兜底
	SourceError   = "error"       // LLM 调用失败
)

// ChatMessage 代表存储在 Redis 中的单条对话消息。
type ChatMessage struct {
	Role      string    `json:"role"` // "user" 或 "bot"
	Content   string    `json:"content"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatSession 代表一次完整的问答会话状态。
// Problem/Solution/CurrentStep 记录了最近一次知识库命中的上下文，
// 供追问检测与带上下文的 LLM 调用使用。
type ChatSession struct {
	SessionID    string        `json:"sessionId"`
	Problem      string        `json:"problem"`
	Solution     string        `json:"solution"`
	CurrentStep  int           `json:"currentStep"`
	History      []ChatMessage `json:"conversationHistory"`
	CreatedAt    time.Time     `json:"createdAt"`
	LastActivity time.Time     `json:"lastActivity"`
}

// ChatResponseDTO 定义了一次聊天回合返回给前端的结构。
type ChatResponseDTO struct {
	Source     string   `json:"source"`
	Similarity *float64 `json:"similarity"`
	Answer     string   `json:"answer"`
	SessionID  string   `json:"session_id"`
	IsFollowup bool     `json:"is_followup"`
}
