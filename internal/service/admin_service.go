// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"

	"fleet-support-go/internal/model"
	"fleet-support-go/internal/repository"
)

// AdminService 定义了管理端的业务操作。
type AdminService interface {
	ListUsers(page, size int) ([]model.User, int64, error)
	// ListActiveSessions 返回当前所有未过期的聊天会话概要。
	ListActiveSessions(ctx context.Context) ([]SessionSummaryDTO, error)
}

// SessionSummaryDTO 是管理端看到的会话概要。
type SessionSummaryDTO struct {
	SessionID    string `json:"sessionId"`
	Problem      string `json:"problem"`
	MessageCount int    `json:"messageCount"`
	CreatedAt    string `json:"createdAt"`
	LastActivity string `json:"lastActivity"`
}

type adminService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
}

// NewAdminService 创建一个新的 AdminService 实例。
func NewAdminService(userRepo repository.UserRepository, sessionRepo repository.SessionRepository) AdminService {
	return &adminService{userRepo: userRepo, sessionRepo: sessionRepo}
}

// ListUsers 分页返回全部用户。
func (s *adminService) ListUsers(page, size int) ([]model.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}
	return s.userRepo.FindWithPagination((page-1)*size, size)
}

// ListActiveSessions 扫描 Redis 中的活跃会话并汇总。
func (s *adminService) ListActiveSessions(ctx context.Context) ([]SessionSummaryDTO, error) {
	ids, err := s.sessionRepo.ListSessionIDs(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]SessionSummaryDTO, 0, len(ids))
	for _, id := range ids {
		session, err := s.sessionRepo.Get(ctx, id)
		if err != nil || session == nil {
			// 会话在扫描和读取之间过期属正常情况
			continue
		}
		summaries = append(summaries, SessionSummaryDTO{
			SessionID:    session.SessionID,
			Problem:      session.Problem,
			MessageCount: len(session.History),
			CreatedAt:    session.CreatedAt.Format("2006-01-02T15:04:05"),
			LastActivity: session.LastActivity.Format("2006-01-02T15:04:05"),
		})
	}
	return summaries, nil
}
