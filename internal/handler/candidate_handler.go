package handler

import (
	"cv-rag-go/internal/model"
	"cv-rag-go/internal/service"
	"cv-rag-go/pkg/log"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CandidateHandler 负责处理候选人档案相关的 API 请求。
type CandidateHandler struct {
	candidateService service.CandidateService
}

// NewCandidateHandler 创建一个新的 CandidateHandler 实例。
func NewCandidateHandler(candidateService service.CandidateService) *CandidateHandler {
	return &CandidateHandler{candidateService: candidateService}
}

// List 返回全部候选人的基础信息。
func (h *CandidateHandler) List(c *gin.Context) {
	items, err := h.candidateService.List()
	if err != nil {
		log.Errorf("[CandidateHandler] 查询候选人列表失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询候选人列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "message": "success", "data": items})
}

// Get 返回候选人的完整结构化简历。
func (h *CandidateHandler) Get(c *gin.Context) {
	candidateID := c.Param("id")
	cv, err := h.candidateService.Get(candidateID)
	if err != nil {
		h.renderGetError(c, candidateID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "message": "success", "data": cv})
}

// GetContext 返回候选人档案及其全部已索引的节。
func (h *CandidateHandler) GetContext(c *gin.Context) {
	candidateID := c.Param("id")
	context, err := h.candidateService.GetContext(candidateID)
	if err != nil {
		h.renderGetError(c, candidateID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "message": "success", "data": context})
}

// Filter 按结构化条件筛选候选人。
func (h *CandidateHandler) Filter(c *gin.Context) {
	var filter model.CandidateFilter
	if err := c.ShouldBindJSON(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}
	items, err := h.candidateService.Filter(filter)
	if err != nil {
		log.Errorf("[CandidateHandler] 筛选候选人失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "筛选候选人失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "message": "success", "data": items})
}

// Delete 级联删除候选人的全部数据。
func (h *CandidateHandler) Delete(c *gin.Context) {
	candidateID := c.Param("id")
	if err := h.candidateService.Delete(c.Request.Context(), candidateID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "候选人不存在"})
			return
		}
		log.Errorf("[CandidateHandler] 删除候选人 %s 失败: %v", candidateID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除候选人失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "message": "候选人已删除"})
}

func (h *CandidateHandler) renderGetError(c *gin.Context, candidateID string, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "候选人不存在"})
		return
	}
	log.Errorf("[CandidateHandler] 查询候选人 %s 失败: %v", candidateID, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "查询候选人失败"})
}
