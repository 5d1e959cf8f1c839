package handler

import (
	"io"
	"net/http"
	"strconv"

	"fleet-support-go/internal/service"
	"fleet-support-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// KBHandler 负责知识库的上传、导入进度查询与相似检索。
type KBHandler struct {
	kbService        service.KBService
	retrievalService service.RetrievalService
	defaultTopK      int
}

// NewKBHandler 创建一个新的 KBHandler。
func NewKBHandler(kbService service.KBService, retrievalService service.RetrievalService, defaultTopK int) *KBHandler {
	return &KBHandler{kbService: kbService, retrievalService: retrievalService, defaultTopK: defaultTopK}
}

// Upload 接收知识库 CSV 文件，归档后投递异步导入任务。
func (h *KBHandler) Upload(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "请在 'file' 字段中提供知识库 CSV 文件",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "读取上传文件失败"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "读取上传文件失败"})
		return
	}

	fileMD5, err := h.kbService.Upload(c.Request.Context(), user, fileHeader.Filename, data)
	if err != nil {
		log.Error("KB Upload: Failed to enqueue ingest task", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "知识库导入任务提交失败"})
		return
	}

	// 导入是异步的，返回 202 及任务标识
	c.JSON(http.StatusAccepted, gin.H{
		"code":    http.StatusAccepted,
		"message": "知识库导入任务已提交",
		"data": gin.H{
			"file_md5":  fileMD5,
			"file_name": fileHeader.Filename,
		},
	})
}

// Status 返回指定文件已导入的知识库条目数。
func (h *KBHandler) Status(c *gin.Context) {
	fileMD5 := c.Param("md5")
	count, err := h.kbService.Status(fileMD5)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "查询导入进度失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "操作成功",
		"data": gin.H{
			"file_md5":      fileMD5,
			"entries_ready": count,
		},
	})
}

// Search 对知识库执行相似检索，便于调试召回质量。
func (h *KBHandler) Search(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "查询参数 'query' 不能为空"})
		return
	}
	topK, err := strconv.Atoi(c.DefaultQuery("topK", strconv.Itoa(h.defaultTopK)))
	if err != nil || topK <= 0 {
		topK = h.defaultTopK
	}

	hits, err := h.retrievalService.Search(c.Request.Context(), query, topK)
	if err != nil {
		log.Error("KB Search: Retrieval failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "检索失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "操作成功",
		"data":    hits,
	})
}
