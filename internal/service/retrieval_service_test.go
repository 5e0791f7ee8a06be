package service

import (
	"context"
	"cv-rag-go/internal/config"
	"cv-rag-go/internal/index"
	"cv-rag-go/internal/model"
	"cv-rag-go/pkg/embedding"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeEmbeddingClient 返回固定的查询向量。
type fakeEmbeddingClient struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbeddingClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbeddingClient) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = f.vector
	}
	return vectors, nil
}

// fakeChunkRepo 以内存 map 模拟分块存储。
type fakeChunkRepo struct {
	chunks map[string]model.CVChunk
}

func newFakeChunkRepo(chunks ...model.CVChunk) *fakeChunkRepo {
	m := make(map[string]model.CVChunk)
	for _, c := range chunks {
		m[c.ChunkID] = c
	}
	return &fakeChunkRepo{chunks: m}
}

func (f *fakeChunkRepo) BatchCreate(chunks []model.CVChunk) error {
	for _, c := range chunks {
		f.chunks[c.ChunkID] = c
	}
	return nil
}

func (f *fakeChunkRepo) GetByChunkID(chunkID string) (*model.CVChunk, error) {
	c, ok := f.chunks[chunkID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (f *fakeChunkRepo) FindByCandidateID(candidateID string) ([]model.CVChunk, error) {
	var result []model.CVChunk
	for _, c := range f.chunks {
		if c.CandidateID == candidateID {
			result = append(result, c)
		}
	}
	return result, nil
}

func (f *fakeChunkRepo) FindBatchByChunkIDs(chunkIDs []string) ([]model.CVChunk, error) {
	var result []model.CVChunk
	for _, id := range chunkIDs {
		if c, ok := f.chunks[id]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

func (f *fakeChunkRepo) ListChunkIDs(candidateID string) ([]string, error) {
	var ids []string
	for _, c := range f.chunks {
		if c.CandidateID == candidateID {
			ids = append(ids, c.ChunkID)
		}
	}
	return ids, nil
}

func (f *fakeChunkRepo) DeleteByCandidateID(candidateID string) error {
	for id, c := range f.chunks {
		if c.CandidateID == candidateID {
			delete(f.chunks, id)
		}
	}
	return nil
}

// fakeCandidateRepo 只实现检索用到的批量查询。
type fakeCandidateRepo struct {
	candidates map[string]model.Candidate
}

func newFakeCandidateRepo(candidates ...model.Candidate) *fakeCandidateRepo {
	m := make(map[string]model.Candidate)
	for _, c := range candidates {
		m[c.ID] = c
	}
	return &fakeCandidateRepo{candidates: m}
}

func (f *fakeCandidateRepo) Create(candidate *model.Candidate) error {
	f.candidates[candidate.ID] = *candidate
	return nil
}

func (f *fakeCandidateRepo) GetByID(candidateID string) (*model.Candidate, *model.ParsedCV, error) {
	c, ok := f.candidates[candidateID]
	if !ok {
		return nil, nil, gorm.ErrRecordNotFound
	}
	return &c, &model.ParsedCV{Name: c.Name}, nil
}

func (f *fakeCandidateRepo) FindAll() ([]model.Candidate, error) {
	var result []model.Candidate
	for _, c := range f.candidates {
		result = append(result, c)
	}
	return result, nil
}

func (f *fakeCandidateRepo) FindBatchByIDs(ids []string) ([]model.Candidate, error) {
	var result []model.Candidate
	for _, id := range ids {
		if c, ok := f.candidates[id]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

func (f *fakeCandidateRepo) Delete(candidateID string) error {
	delete(f.candidates, candidateID)
	return nil
}

func (f *fakeCandidateRepo) Filter(filter model.CandidateFilter) ([]model.Candidate, error) {
	return f.FindAll()
}

func newTestIndex(t *testing.T, dimensions int) index.Index {
	t.Helper()
	return index.New(config.IndexConfig{
		Path:       filepath.Join(t.TempDir(), "index.json"),
		Dimensions: dimensions,
	})
}

func TestRetrieveRejectsEmptyQuestion(t *testing.T) {
	embedder := &fakeEmbeddingClient{vector: []float32{1, 0}}
	svc := NewRetrievalService(embedder, newTestIndex(t, 2), newFakeChunkRepo(), newFakeCandidateRepo(), config.RetrievalConfig{})

	_, err := svc.Retrieve(context.Background(), "   ", 5, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	// 参数校验必须先于外部调用
	assert.Equal(t, 0, embedder.calls)
}

func TestRetrieveRejectsNonPositiveTopK(t *testing.T) {
	embedder := &fakeEmbeddingClient{vector: []float32{1, 0}}
	svc := NewRetrievalService(embedder, newTestIndex(t, 2), newFakeChunkRepo(), newFakeCandidateRepo(), config.RetrievalConfig{})

	for _, topK := range []int{0, -1} {
		_, err := svc.Retrieve(context.Background(), "问题", topK, "")
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
	assert.Equal(t, 0, embedder.calls)
}

func TestRetrieveEmbeddingFailurePropagates(t *testing.T) {
	embedder := &fakeEmbeddingClient{err: embedding.ErrUnavailable}
	svc := NewRetrievalService(embedder, newTestIndex(t, 2), newFakeChunkRepo(), newFakeCandidateRepo(), config.RetrievalConfig{})

	_, err := svc.Retrieve(context.Background(), "问题", 5, "")
	assert.ErrorIs(t, err, embedding.ErrUnavailable)
}

func TestRetrieveCandidateFilterNeverLeaks(t *testing.T) {
	idx := newTestIndex(t, 2)
	// 候选人 A 三个分块, 候选人 B 两个分块
	require.NoError(t, idx.Add("a_summary", "cand-a", "summary", []float32{1, 0}))
	require.NoError(t, idx.Add("a_skills", "cand-a", "skills", []float32{0.9, 0.1}))
	require.NoError(t, idx.Add("a_experience_0", "cand-a", "experience_0", []float32{0.8, 0.2}))
	require.NoError(t, idx.Add("b_summary", "cand-b", "summary", []float32{0.84, 0.5426}))
	require.NoError(t, idx.Add("b_skills", "cand-b", "skills", []float32{0.62, 0.7846}))

	chunkRepo := newFakeChunkRepo(
		model.CVChunk{ChunkID: "a_summary", CandidateID: "cand-a", Section: "summary", Text: "A 概要"},
		model.CVChunk{ChunkID: "a_skills", CandidateID: "cand-a", Section: "skills", Text: "A 技能"},
		model.CVChunk{ChunkID: "a_experience_0", CandidateID: "cand-a", Section: "experience_0", Text: "A 经历"},
		model.CVChunk{ChunkID: "b_summary", CandidateID: "cand-b", Section: "summary", Text: "B 概要"},
		model.CVChunk{ChunkID: "b_skills", CandidateID: "cand-b", Section: "skills", Text: "B 技能"},
	)
	candidateRepo := newFakeCandidateRepo(
		model.Candidate{ID: "cand-a", Name: "张三"},
		model.Candidate{ID: "cand-b", Name: "李四"},
	)
	embedder := &fakeEmbeddingClient{vector: []float32{1, 0}}
	svc := NewRetrievalService(embedder, idx, chunkRepo, candidateRepo, config.RetrievalConfig{DefaultTopK: 5, MaxTopK: 20})

	results, err := svc.Retrieve(context.Background(), "他的技能是什么", 5, "cand-b")
	require.NoError(t, err)
	require.Len(t, results, 2)

	// 只返回候选人 B 的分块, 按分数降序
	assert.Equal(t, "b_summary", results[0].ChunkID)
	assert.Equal(t, "李四", results[0].CandidateName)
	assert.InDelta(t, 0.92, results[0].Score, 1e-3)
	assert.Equal(t, "b_skills", results[1].ChunkID)
	assert.InDelta(t, 0.81, results[1].Score, 1e-3)
	for _, r := range results {
		assert.Equal(t, "cand-b", r.CandidateID)
	}
}

func TestRetrieveSkipsStaleIndexEntries(t *testing.T) {
	idx := newTestIndex(t, 2)
	require.NoError(t, idx.Add("live_chunk", "cand-a", "summary", []float32{1, 0}))
	require.NoError(t, idx.Add("stale_chunk", "cand-a", "skills", []float32{0.9, 0.1}))

	// stale_chunk 在索引中存在但数据库中已无文本
	chunkRepo := newFakeChunkRepo(
		model.CVChunk{ChunkID: "live_chunk", CandidateID: "cand-a", Section: "summary", Text: "概要"},
	)
	candidateRepo := newFakeCandidateRepo(model.Candidate{ID: "cand-a", Name: "张三"})
	embedder := &fakeEmbeddingClient{vector: []float32{1, 0}}
	svc := NewRetrievalService(embedder, idx, chunkRepo, candidateRepo, config.RetrievalConfig{DefaultTopK: 5, MaxTopK: 20})

	results, err := svc.Retrieve(context.Background(), "问题", 5, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "live_chunk", results[0].ChunkID)
}

func TestRetrieveClampsTopK(t *testing.T) {
	idx := newTestIndex(t, 2)
	chunkRepo := newFakeChunkRepo()
	for i := 0; i < 10; i++ {
		chunkID := string(rune('a'+i)) + "_summary"
		require.NoError(t, idx.Add(chunkID, "cand-a", "summary", []float32{1, 0}))
		require.NoError(t, chunkRepo.BatchCreate([]model.CVChunk{
			{ChunkID: chunkID, CandidateID: "cand-a", Section: "summary", Text: "文本"},
		}))
	}
	candidateRepo := newFakeCandidateRepo(model.Candidate{ID: "cand-a", Name: "张三"})
	embedder := &fakeEmbeddingClient{vector: []float32{1, 0}}
	svc := NewRetrievalService(embedder, idx, chunkRepo, candidateRepo, config.RetrievalConfig{DefaultTopK: 5, MaxTopK: 3})

	results, err := svc.Retrieve(context.Background(), "问题", 100, "")
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestRetrieveEmptyIndex(t *testing.T) {
	embedder := &fakeEmbeddingClient{vector: []float32{1, 0}}
	svc := NewRetrievalService(embedder, newTestIndex(t, 2), newFakeChunkRepo(), newFakeCandidateRepo(), config.RetrievalConfig{})

	results, err := svc.Retrieve(context.Background(), "问题", 5, "")
	require.NoError(t, err)
	assert.Empty(t, results)
}
