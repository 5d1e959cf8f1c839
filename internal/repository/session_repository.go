// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fleet-support-go/internal/config"
	"fleet-support-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// SessionRepository 定义了聊天会话状态的存储接口。
type SessionRepository interface {
	Get(ctx context.Context, sessionID string) (*model.ChatSession, error)
	Save(ctx context.Context, session *model.ChatSession) error
	Delete(ctx context.Context, sessionID string) error
	ListSessionIDs(ctx context.Context) ([]string, error)
}

type redisSessionRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
	maxHistory  int
}

// NewSessionRepository 创建一个新的 SessionRepository 实例。
func NewSessionRepository(redisClient *redis.Client, cfg config.SessionConfig) SessionRepository {
	return &redisSessionRepository{
		redisClient: redisClient,
		ttl:         time.Duration(cfg.TTLHours) * time.Hour,
		maxHistory:  cfg.MaxHistory,
	}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("chat:session:%s", sessionID)
}

// Get 从 Redis 获取会话，不存在时返回 nil 而非错误。
func (r *redisSessionRepository) Get(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	jsonData, err := r.redisClient.Get(ctx, sessionKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat session: %w", err)
	}
	var session model.ChatSession
	if err := json.Unmarshal([]byte(jsonData), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat session: %w", err)
	}
	return &session, nil
}

// Save 写入会话并刷新过期时间，历史只保留最近 maxHistory 条。
func (r *redisSessionRepository) Save(ctx context.Context, session *model.ChatSession) error {
	if r.maxHistory > 0 && len(session.History) > r.maxHistory {
		session.History = session.History[len(session.History)-r.maxHistory:]
	}
	jsonData, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal chat session: %w", err)
	}
	if err := r.redisClient.Set(ctx, sessionKey(session.SessionID), jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set chat session: %w", err)
	}
	return nil
}

// Delete 删除指定会话。
func (r *redisSessionRepository) Delete(ctx context.Context, sessionID string) error {
	return r.redisClient.Del(ctx, sessionKey(sessionID)).Err()
}

// ListSessionIDs 扫描所有活跃会话的 ID，供管理端查看。
func (r *redisSessionRepository) ListSessionIDs(ctx context.Context) ([]string, error) {
	keys, err := r.redisClient.Keys(ctx, "chat:session:*").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan chat session keys: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, "chat:session:"))
	}
	return ids, nil
}
