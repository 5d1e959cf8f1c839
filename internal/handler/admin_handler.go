package handler

import (
	"net/http"
	"strconv"

	"fleet-support-go/internal/service"
	"fleet-support-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AdminHandler 提供管理端的用户与会话查询接口。
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler 创建一个新的 AdminHandler。
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// ListUsers 分页返回所有用户。
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 10
	}

	users, total, err := h.adminService.ListUsers(page, size)
	if err != nil {
		log.Error("Admin: Failed to list users", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "查询用户列表失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "操作成功",
		"data": gin.H{
			"records": users,
			"total":   total,
			"page":    page,
			"size":    size,
		},
	})
}

// ListSessions 返回当前所有活跃的聊天会话概要。
func (h *AdminHandler) ListSessions(c *gin.Context) {
	sessions, err := h.adminService.ListActiveSessions(c.Request.Context())
	if err != nil {
		log.Error("Admin: Failed to list sessions", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "查询会话列表失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "操作成功",
		"data": gin.H{
			"sessions": sessions,
			"total":    len(sessions),
		},
	})
}
