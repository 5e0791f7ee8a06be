package service

import (
	"context"
	"cv-rag-go/internal/model"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeUploadRepo struct {
	deleted []string
}

func (f *fakeUploadRepo) Create(upload *model.CVUpload) error { return nil }

func (f *fakeUploadRepo) GetByID(id uint) (*model.CVUpload, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUploadRepo) GetByCandidateID(candidateID string) (*model.CVUpload, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUploadRepo) UpdateStage(id uint, stage string) error      { return nil }
func (f *fakeUploadRepo) MarkIndexed(id uint) error                    { return nil }
func (f *fakeUploadRepo) MarkFailed(id uint, failedStage string) error { return nil }

func (f *fakeUploadRepo) DeleteByCandidateID(candidateID string) error {
	f.deleted = append(f.deleted, candidateID)
	return nil
}

func TestDeleteCandidateRemovesAllChunks(t *testing.T) {
	idx := newTestIndex(t, 2)
	chunkRepo := newFakeChunkRepo()
	// 候选人有 5 个分块
	for i := 0; i < 5; i++ {
		chunkID := fmt.Sprintf("cand-1_section_%d", i)
		require.NoError(t, idx.Add(chunkID, "cand-1", fmt.Sprintf("section_%d", i), []float32{1, 0}))
		require.NoError(t, chunkRepo.BatchCreate([]model.CVChunk{
			{ChunkID: chunkID, CandidateID: "cand-1", Section: fmt.Sprintf("section_%d", i), Text: "文本"},
		}))
	}
	require.NoError(t, idx.Add("cand-2_summary", "cand-2", "summary", []float32{0, 1}))

	candidateRepo := newFakeCandidateRepo(
		model.Candidate{ID: "cand-1", Name: "张三"},
		model.Candidate{ID: "cand-2", Name: "李四"},
	)
	uploadRepo := &fakeUploadRepo{}
	svc := NewCandidateService(candidateRepo, chunkRepo, uploadRepo, idx, "cv-files")

	require.NoError(t, svc.Delete(context.Background(), "cand-1"))

	// 向量、分块、候选人记录全部清理, 其他候选人不受影响
	assert.Equal(t, 1, idx.Count())
	ids, err := chunkRepo.ListChunkIDs("cand-1")
	require.NoError(t, err)
	assert.Empty(t, ids)
	_, _, err = candidateRepo.GetByID("cand-1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Equal(t, []string{"cand-1"}, uploadRepo.deleted)

	hits, err := idx.Search([]float32{1, 0}, 10, "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "cand-2_summary", hits[0].ChunkID)
}

func TestDeleteCandidateWithoutChunksSucceeds(t *testing.T) {
	idx := newTestIndex(t, 2)
	candidateRepo := newFakeCandidateRepo(model.Candidate{ID: "cand-1", Name: "张三"})
	svc := NewCandidateService(candidateRepo, newFakeChunkRepo(), &fakeUploadRepo{}, idx, "cv-files")

	// 处理中途失败的候选人可能没有任何分块, 删除仍需成功
	require.NoError(t, svc.Delete(context.Background(), "cand-1"))
	_, _, err := candidateRepo.GetByID("cand-1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestDeleteMissingCandidate(t *testing.T) {
	idx := newTestIndex(t, 2)
	svc := NewCandidateService(newFakeCandidateRepo(), newFakeChunkRepo(), &fakeUploadRepo{}, idx, "cv-files")

	err := svc.Delete(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
