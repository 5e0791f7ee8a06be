package handler

import (
	"cv-rag-go/internal/config"
	"cv-rag-go/internal/model"
	"cv-rag-go/internal/repository"
	"cv-rag-go/internal/service"
	"cv-rag-go/pkg/embedding"
	"cv-rag-go/pkg/llm"
	"cv-rag-go/pkg/log"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// QueryHandler 负责处理简历问答与语义搜索的 API 请求。
type QueryHandler struct {
	retrievalService service.RetrievalService
	answerService    service.AnswerService
	historyRepo      repository.HistoryRepository
	defaultTopK      int
}

// NewQueryHandler 创建一个新的 QueryHandler 实例。
func NewQueryHandler(
	retrievalService service.RetrievalService,
	answerService service.AnswerService,
	historyRepo repository.HistoryRepository,
	cfg config.RetrievalConfig,
) *QueryHandler {
	defaultTopK := cfg.DefaultTopK
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &QueryHandler{
		retrievalService: retrievalService,
		answerService:    answerService,
		historyRepo:      historyRepo,
		defaultTopK:      defaultTopK,
	}
}

// Query 执行完整的检索加答案合成流程。
func (h *QueryHandler) Query(c *gin.Context) {
	var req model.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}
	if req.TopK == 0 {
		req.TopK = h.defaultTopK
	}
	log.Infof("[QueryHandler] 收到问答请求, question: '%s', candidateID: '%s', topK: %d", req.Question, req.CandidateID, req.TopK)

	chunks, err := h.retrievalService.Retrieve(c.Request.Context(), req.Question, req.TopK, req.CandidateID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	result, err := h.answerService.Answer(c.Request.Context(), req.Question, chunks)
	if err != nil {
		h.renderError(c, err)
		return
	}

	log.Infof("[QueryHandler] 问答完成, 置信度: %s, 来源: %d 条", result.Confidence, len(result.Sources))
	c.JSON(http.StatusOK, gin.H{"code": 200, "message": "success", "data": result})
}

// Search 执行纯检索的语义搜索, 不合成答案。
func (h *QueryHandler) Search(c *gin.Context) {
	var req model.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}
	if req.TopK == 0 {
		req.TopK = h.defaultTopK
	}
	log.Infof("[QueryHandler] 收到语义搜索请求, question: '%s', candidateID: '%s', topK: %d", req.Question, req.CandidateID, req.TopK)

	chunks, err := h.retrievalService.Retrieve(c.Request.Context(), req.Question, req.TopK, req.CandidateID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "message": "success", "data": chunks})
}

// Recent 返回最近的问答历史。
func (h *QueryHandler) Recent(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	logs, err := h.historyRepo.Recent(c.Request.Context(), limit)
	if err != nil {
		log.Errorf("[QueryHandler] 查询问答历史失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询问答历史失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "message": "success", "data": logs})
}

// renderError 把服务层错误映射为 HTTP 状态码：
// 参数错误 → 400, 外部依赖不可用 → 503, 其余 → 500。
func (h *QueryHandler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, embedding.ErrUnavailable):
		log.Errorf("[QueryHandler] 向量化服务不可用: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "向量化服务暂时不可用"})
	case errors.Is(err, llm.ErrUnavailable):
		log.Errorf("[QueryHandler] LLM 服务不可用: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "答案合成服务暂时不可用"})
	default:
		log.Errorf("[QueryHandler] 请求处理失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
	}
}
