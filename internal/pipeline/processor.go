// Package pipeline 定义了简历索引的核心流程。
// 成功路径为 received → parsed → chunked → embedded → indexed,
// 任一阶段失败时记录失败阶段, 失败的上传只能整体重新提交。
package pipeline

import (
	"bytes"
	"context"
	"cv-rag-go/internal/chunker"
	"cv-rag-go/internal/index"
	"cv-rag-go/internal/model"
	"cv-rag-go/internal/repository"
	"cv-rag-go/internal/service"
	"cv-rag-go/pkg/embedding"
	"cv-rag-go/pkg/log"
	"cv-rag-go/pkg/tasks"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ObjectFetcher 从对象存储获取简历原始文件。
type ObjectFetcher interface {
	Fetch(ctx context.Context, objectKey string) (io.ReadCloser, error)
}

// TextExtractor 从简历文件中提取原始文本。
type TextExtractor interface {
	ExtractText(fileReader io.Reader, fileName string) (string, error)
}

// Processor 封装了简历索引流水线的所有依赖和逻辑。
type Processor struct {
	fetcher         ObjectFetcher
	extractor       TextExtractor
	extraction      service.ExtractionService
	cvChunker       chunker.Chunker
	embeddingClient embedding.Client
	candidateRepo   repository.CandidateRepository
	chunkRepo       repository.ChunkRepository
	uploadRepo      repository.UploadRepository
	vectorIndex     index.Index
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(
	fetcher ObjectFetcher,
	extractor TextExtractor,
	extraction service.ExtractionService,
	cvChunker chunker.Chunker,
	embeddingClient embedding.Client,
	candidateRepo repository.CandidateRepository,
	chunkRepo repository.ChunkRepository,
	uploadRepo repository.UploadRepository,
	vectorIndex index.Index,
) *Processor {
	return &Processor{
		fetcher:         fetcher,
		extractor:       extractor,
		extraction:      extraction,
		cvChunker:       cvChunker,
		embeddingClient: embeddingClient,
		candidateRepo:   candidateRepo,
		chunkRepo:       chunkRepo,
		uploadRepo:      uploadRepo,
		vectorIndex:     vectorIndex,
	}
}

// Process 是简历索引的主函数。
func (p *Processor) Process(ctx context.Context, task tasks.CVIndexTask) error {
	log.Infof("[Processor] 开始处理简历, UploadID: %d, CandidateID: %s, FileName: %s", task.UploadID, task.CandidateID, task.FileName)

	// 1. 从对象存储下载文件
	log.Infof("[Processor] 步骤1: 下载简历文件, Object: %s", task.ObjectKey)
	object, err := p.fetcher.Fetch(ctx, task.ObjectKey)
	if err != nil {
		return p.fail(task, model.StageParsed, fmt.Errorf("下载简历文件失败: %w", err))
	}
	buf := new(bytes.Buffer)
	size, err := buf.ReadFrom(object)
	object.Close()
	if err != nil {
		return p.fail(task, model.StageParsed, fmt.Errorf("读取对象流失败: %w", err))
	}
	log.Infof("[Processor] 步骤1: 文件下载成功, 大小: %d 字节", size)
	if size == 0 {
		return p.fail(task, model.StageParsed, errors.New("简历文件内容为空"))
	}

	// 2. 提取文本
	log.Info("[Processor] 步骤2: 使用Tika提取文本内容")
	rawText, err := p.extractor.ExtractText(bytes.NewReader(buf.Bytes()), task.FileName)
	if err != nil {
		return p.fail(task, model.StageParsed, fmt.Errorf("提取文本失败: %w", err))
	}
	if rawText == "" {
		return p.fail(task, model.StageParsed, errors.New("提取的文本内容为空"))
	}
	log.Infof("[Processor] 步骤2: 文本提取成功, 内容长度: %d 字符", utf8.RuneCountInString(rawText))

	// 3. LLM 结构化抽取
	log.Info("[Processor] 步骤3: 结构化抽取简历")
	cv, err := p.extraction.ParseCV(ctx, rawText)
	if err != nil {
		return p.fail(task, model.StageParsed, fmt.Errorf("结构化抽取失败: %w", err))
	}

	// 4. 落库候选人记录。重新提交同一候选人时先清理旧数据（幂等）。
	log.Info("[Processor] 步骤4: 写入候选人记录")
	if err := p.cleanPrevious(task.CandidateID); err != nil {
		return p.fail(task, model.StageParsed, err)
	}
	candidate, err := buildCandidate(task, cv)
	if err != nil {
		return p.fail(task, model.StageParsed, err)
	}
	if err := p.candidateRepo.Create(candidate); err != nil {
		return p.fail(task, model.StageParsed, fmt.Errorf("写入候选人记录失败: %w", err))
	}
	p.advance(task.UploadID, model.StageParsed)

	// 5. 分块
	log.Info("[Processor] 步骤5: 简历分块")
	chunks := p.cvChunker.BuildChunks(task.CandidateID, cv)
	if len(chunks) == 0 {
		return p.fail(task, model.StageChunked, errors.New("未生成任何简历分块"))
	}
	// 分块文本先于向量落库：嵌入失败时分块仍可按候选人浏览, 只是不可被搜索到
	if err := p.chunkRepo.BatchCreate(chunks); err != nil {
		return p.fail(task, model.StageChunked, fmt.Errorf("写入分块记录失败: %w", err))
	}
	p.advance(task.UploadID, model.StageChunked)
	log.Infof("[Processor] 步骤5: 分块完成, 共 %d 个分块", len(chunks))

	// 6. 批量向量化, 整批成功或整批失败
	log.Info("[Processor] 步骤6: 批量向量化分块")
	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, chunk.Text)
	}
	vectors, err := p.embeddingClient.CreateEmbeddings(ctx, texts)
	if err != nil {
		log.Warnf("[Processor] 候选人 %s 的 %d 个分块已落库但未进入索引, 可浏览不可搜索, 需重新提交修复", task.CandidateID, len(chunks))
		return p.fail(task, model.StageEmbedded, fmt.Errorf("批量向量化失败: %w", err))
	}
	p.advance(task.UploadID, model.StageEmbedded)
	log.Infof("[Processor] 步骤6: 向量化完成, 共 %d 个向量", len(vectors))

	// 7. 写入向量索引并持久化
	log.Info("[Processor] 步骤7: 写入向量索引")
	for i, chunk := range chunks {
		if err := p.vectorIndex.Add(chunk.ChunkID, chunk.CandidateID, chunk.Section, vectors[i]); err != nil {
			return p.fail(task, model.StageIndexed, fmt.Errorf("向量写入索引失败 (chunk=%s): %w", chunk.ChunkID, err))
		}
	}
	if err := p.vectorIndex.Persist(); err != nil {
		return p.fail(task, model.StageIndexed, fmt.Errorf("持久化向量索引失败: %w", err))
	}
	if err := p.uploadRepo.MarkIndexed(task.UploadID); err != nil {
		log.Errorf("[Processor] 更新上传记录为 indexed 失败, UploadID: %d, Error: %v", task.UploadID, err)
	}

	log.Infof("[Processor] 简历处理完毕, CandidateID: %s, 索引新增 %d 条记录", task.CandidateID, len(chunks))
	return nil
}

// cleanPrevious 清理同一候选人既有的分块与向量, 保证重新提交的幂等性。
func (p *Processor) cleanPrevious(candidateID string) error {
	if removed := p.vectorIndex.RemoveByCandidate(candidateID); removed > 0 {
		log.Infof("[Processor] 已软删除候选人 %s 的 %d 条旧向量", candidateID, removed)
	}
	if err := p.chunkRepo.DeleteByCandidateID(candidateID); err != nil {
		return fmt.Errorf("清理旧分块记录失败: %w", err)
	}
	if err := p.candidateRepo.Delete(candidateID); err != nil {
		return fmt.Errorf("清理旧候选人记录失败: %w", err)
	}
	return nil
}

// advance 推进上传记录的处理阶段, 失败只记录日志。
func (p *Processor) advance(uploadID uint, stage string) {
	if err := p.uploadRepo.UpdateStage(uploadID, stage); err != nil {
		log.Errorf("[Processor] 更新上传记录阶段失败, UploadID: %d, Stage: %s, Error: %v", uploadID, stage, err)
	}
}

// fail 标记上传失败并返回原始错误。
func (p *Processor) fail(task tasks.CVIndexTask, stage string, cause error) error {
	log.Errorf("[Processor] 简历处理失败, UploadID: %d, Stage: %s, Error: %v", task.UploadID, stage, cause)
	if err := p.uploadRepo.MarkFailed(task.UploadID, stage); err != nil {
		log.Errorf("[Processor] 标记上传失败状态时出错, UploadID: %d, Error: %v", task.UploadID, err)
	}
	return cause
}

// buildCandidate 把结构化简历展开为候选人数据库记录。
func buildCandidate(task tasks.CVIndexTask, cv *model.ParsedCV) (*model.Candidate, error) {
	candidate := &model.Candidate{
		ID:        task.CandidateID,
		Name:      cv.Name,
		Email:     cv.Email,
		Phone:     cv.Phone,
		Summary:   cv.Summary,
		FileName:  task.FileName,
		ObjectKey: task.ObjectKey,
	}
	fields := []struct {
		src interface{}
		dst *string
	}{
		{cv.Skills, &candidate.Skills},
		{cv.Experience, &candidate.Experience},
		{cv.Education, &candidate.Education},
		{cv.Projects, &candidate.Projects},
		{cv.Certifications, &candidate.Certifications},
		{cv.Interests, &candidate.Interests},
	}
	for _, f := range fields {
		data, err := json.Marshal(f.src)
		if err != nil {
			return nil, fmt.Errorf("序列化候选人结构化字段失败: %w", err)
		}
		*f.dst = string(data)
	}
	return candidate, nil
}
