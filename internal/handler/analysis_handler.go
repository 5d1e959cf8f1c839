// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"fleet-support-go/internal/analysis"
	"fleet-support-go/internal/model"
	"fleet-support-go/internal/service"
	"fleet-support-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AnalysisHandler 负责处理数据集分析相关的 API 请求。
type AnalysisHandler struct {
	analysisService service.AnalysisService
}

// NewAnalysisHandler 创建一个新的 AnalysisHandler 实例。
func NewAnalysisHandler(analysisService service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analysisService: analysisService}
}

// Upload 处理数据集上传与同步分析。
// 请求为 multipart 表单：file 为 CSV 文件，cleaning_options 为 JSON 字符串，
// 例如 {"drop_na": true, "fill_na": "mean", "remove_duplicates": true, "top_n": 5}。
func (h *AnalysisHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "缺少上传文件",
		})
		return
	}

	var opts analysis.CleaningOptions
	if raw := c.PostForm("cleaning_options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			log.Warnf("Upload: Invalid cleaning_options, error: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    http.StatusBadRequest,
				"message": "cleaning_options 必须是合法的 JSON 对象",
			})
			return
		}
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "读取上传文件失败",
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "读取上传文件失败",
		})
		return
	}

	user := currentUser(c)
	if user == nil {
		return
	}

	result, err := h.analysisService.Analyze(c.Request.Context(), user, fileHeader.Filename, data, opts)
	if err != nil {
		log.Warnf("Upload: Analysis failed for '%s', error: %v", fileHeader.Filename, err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    result,
	})
}

// ListReports 分页返回当前用户的历史分析报告。
func (h *AnalysisHandler) ListReports(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))

	reports, total, err := h.analysisService.ListReports(user, page, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"reports": reports,
			"total":   total,
			"page":    page,
			"size":    size,
		},
	})
}

// GetReport 返回单份报告详情。
func (h *AnalysisHandler) GetReport(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	reportID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的报告 ID",
		})
		return
	}

	detail, err := h.analysisService.GetReport(user, uint(reportID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    http.StatusNotFound,
			"message": "报告不存在或无权访问",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    detail,
	})
}

// currentUser 从上下文取出 AuthMiddleware 注入的用户，失败时直接写错误响应。
func currentUser(c *gin.Context) *model.User {
	userValue, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return nil
	}
	user, ok := userValue.(*model.User)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "用户数据类型错误"})
		return nil
	}
	return user
}
