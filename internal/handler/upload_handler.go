// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"cv-rag-go/internal/model"
	"cv-rag-go/internal/repository"
	"cv-rag-go/pkg/kafka"
	"cv-rag-go/pkg/log"
	"cv-rag-go/pkg/storage"
	"cv-rag-go/pkg/tasks"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// 允许上传的简历文件格式
var allowedExtensions = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// UploadHandler 负责处理简历上传相关的 API 请求。
type UploadHandler struct {
	uploadRepo repository.UploadRepository
	bucketName string
}

// NewUploadHandler 创建一个新的 UploadHandler 实例。
func NewUploadHandler(uploadRepo repository.UploadRepository, bucketName string) *UploadHandler {
	return &UploadHandler{uploadRepo: uploadRepo, bucketName: bucketName}
}

// Upload 接收简历文件, 存入对象存储并投递索引任务。
// 上传是异步的：接口返回时简历尚不可检索, 处理进度通过 /uploads/:id 查询。
func (h *UploadHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "未能获取上传的文件"})
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	contentType, ok := allowedExtensions[ext]
	if !ok {
		log.Warnf("[UploadHandler] 拒绝不支持的文件格式: %s", header.Filename)
		c.JSON(http.StatusBadRequest, gin.H{"error": "仅支持 pdf 与 docx 格式的简历"})
		return
	}

	candidateID := uuid.NewString()
	objectKey := fmt.Sprintf("cv/%s%s", candidateID, ext)
	log.Infof("[UploadHandler] 收到简历上传, FileName: %s, Size: %d, CandidateID: %s", header.Filename, header.Size, candidateID)

	// 1. 原始文件入对象存储
	if err := storage.PutObject(c.Request.Context(), h.bucketName, objectKey, file, header.Size, contentType); err != nil {
		log.Errorf("[UploadHandler] 写入对象存储失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "文件存储失败"})
		return
	}

	// 2. 创建上传进度记录
	upload := &model.CVUpload{
		CandidateID: candidateID,
		FileName:    header.Filename,
		ObjectKey:   objectKey,
		TotalSize:   header.Size,
		Stage:       model.StageReceived,
	}
	if err := h.uploadRepo.Create(upload); err != nil {
		log.Errorf("[UploadHandler] 创建上传记录失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建上传记录失败"})
		return
	}

	// 3. 投递异步索引任务
	task := tasks.CVIndexTask{
		UploadID:    upload.ID,
		CandidateID: candidateID,
		ObjectKey:   objectKey,
		FileName:    header.Filename,
	}
	if err := kafka.ProduceIndexTask(task); err != nil {
		log.Errorf("[UploadHandler] 投递索引任务失败: %v", err)
		if markErr := h.uploadRepo.MarkFailed(upload.ID, model.StageReceived); markErr != nil {
			log.Errorf("[UploadHandler] 标记上传失败状态时出错: %v", markErr)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "索引任务投递失败"})
		return
	}

	log.Infof("[UploadHandler] 简历上传受理成功, UploadID: %d, CandidateID: %s", upload.ID, candidateID)
	c.JSON(http.StatusAccepted, gin.H{
		"code":    202,
		"message": "简历已受理, 正在后台处理",
		"data": gin.H{
			"uploadId":    upload.ID,
			"candidateId": candidateID,
			"stage":       upload.Stage,
		},
	})
}

// GetUpload 查询一次上传的处理进度。
func (h *UploadHandler) GetUpload(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的上传记录 ID"})
		return
	}
	upload, err := h.uploadRepo.GetByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "上传记录不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "message": "success", "data": upload})
}
