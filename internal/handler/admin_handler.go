package handler

import (
	"cv-rag-go/internal/index"
	"cv-rag-go/pkg/log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminHandler 负责处理索引维护相关的 API 请求。
type AdminHandler struct {
	vectorIndex index.Index
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(vectorIndex index.Index) *AdminHandler {
	return &AdminHandler{vectorIndex: vectorIndex}
}

// CompactIndex 重建索引丢弃软删除记录, 并持久化压缩后的索引。
func (h *AdminHandler) CompactIndex(c *gin.Context) {
	removed := h.vectorIndex.Compact()
	if err := h.vectorIndex.Persist(); err != nil {
		log.Errorf("[AdminHandler] 压缩后持久化索引失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "索引持久化失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "success",
		"data": gin.H{
			"removed":   removed,
			"remaining": h.vectorIndex.Count(),
		},
	})
}
