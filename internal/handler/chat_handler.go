// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"fleet-support-go/internal/service"
	"fleet-support-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责处理问答会话相关的 API 请求与 WebSocket 连接。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// StartSession 创建一个新的问答会话。
func (h *ChatHandler) StartSession(c *gin.Context) {
	session, err := h.chatService.StartSession(c.Request.Context())
	if err != nil {
		log.Error("StartSession: Failed to create session", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "创建会话失败",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": session.SessionID,
		"message":    "New session started",
	})
}

// ChatRequest 定义了聊天 API 的请求体结构。
type ChatRequest struct {
	Question  string `json:"question" binding:"required"`
	SessionID string `json:"session_id"`
}

// Chat 处理一轮问答。
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Chat: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：question 不能为空",
		})
		return
	}

	resp, err := h.chatService.Chat(c.Request.Context(), req.SessionID, req.Question)
	if err != nil {
		log.Error("Chat: Failed to process question", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "处理问题失败",
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetSession 返回会话的完整状态。
func (h *ChatHandler) GetSession(c *gin.Context) {
	session, err := h.chatService.GetSession(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, session)
}

// DeleteSession 删除会话。
func (h *ChatHandler) DeleteSession(c *gin.Context) {
	err := h.chatService.DeleteSession(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session deleted"})
}

// Stream 处理一个传入的 WebSocket 连接，每条文本消息作为一个问题流式回答。
func (h *ChatHandler) Stream(c *gin.Context) {
	sessionID := c.Param("sessionId")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立, session: %s", sessionID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}
		question := string(message)
		if question == "" {
			continue
		}
		log.Infof("收到 WebSocket 问题: %s", question)

		if err := h.chatService.StreamChat(c.Request.Context(), sessionID, question, conn); err != nil {
			log.Errorf("处理流式响应失败: %v", err)
			_ = conn.WriteJSON(gin.H{"error": "服务暂时不可用，请稍后重试"})
			break
		}
	}
}
