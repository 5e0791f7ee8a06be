package index

import (
	"cv-rag-go/internal/config"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T, dimensions int) Index {
	t.Helper()
	return New(config.IndexConfig{
		Path:       filepath.Join(t.TempDir(), "index.json"),
		Dimensions: dimensions,
	})
}

func TestAddDimensionMismatch(t *testing.T) {
	idx := newTestIndex(t, 3)

	err := idx.Add("c1_summary", "c1", "summary", []float32{1, 0})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 0, idx.Count())
}

func TestSearchSelfMatchRanksFirst(t *testing.T) {
	idx := newTestIndex(t, 3)

	require.NoError(t, idx.Add("c1_summary", "c1", "summary", []float32{1, 0, 0}))
	require.NoError(t, idx.Add("c1_skills", "c1", "skills", []float32{0, 1, 0}))
	require.NoError(t, idx.Add("c2_summary", "c2", "summary", []float32{0, 0, 1}))

	hits, err := idx.Search([]float32{0, 1, 0}, 3, "")
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "c1_skills", hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	// 正交向量映射到 0.5
	assert.InDelta(t, 0.5, hits[1].Score, 1e-6)
}

func TestSearchScoreRange(t *testing.T) {
	idx := newTestIndex(t, 2)

	require.NoError(t, idx.Add("c1_a", "c1", "summary", []float32{1, 0}))
	require.NoError(t, idx.Add("c1_b", "c1", "skills", []float32{-1, 0}))

	hits, err := idx.Search([]float32{1, 0}, 2, "")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	// 反向向量映射到 0, 同向映射到 1
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.InDelta(t, 0.0, hits[1].Score, 1e-6)
}

func TestSearchNormalizesUnnormalizedInput(t *testing.T) {
	idx := newTestIndex(t, 2)

	// 写入未归一化的向量, 分数不受向量长度影响
	require.NoError(t, idx.Add("c1_a", "c1", "summary", []float32{10, 0}))
	hits, err := idx.Search([]float32{3, 0}, 1, "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestSearchCandidateFilter(t *testing.T) {
	idx := newTestIndex(t, 2)

	require.NoError(t, idx.Add("c1_summary", "c1", "summary", []float32{1, 0}))
	require.NoError(t, idx.Add("c2_summary", "c2", "summary", []float32{1, 0}))
	require.NoError(t, idx.Add("c2_skills", "c2", "skills", []float32{0, 1}))

	hits, err := idx.Search([]float32{1, 0}, 10, "c2")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, hit := range hits {
		assert.Equal(t, "c2", hit.CandidateID)
	}
}

func TestSearchTieBreakByInsertionOrder(t *testing.T) {
	idx := newTestIndex(t, 2)

	// 三条相同向量, 分数完全相同, 必须按插入顺序返回
	require.NoError(t, idx.Add("c1_a", "c1", "summary", []float32{1, 0}))
	require.NoError(t, idx.Add("c1_b", "c1", "skills", []float32{1, 0}))
	require.NoError(t, idx.Add("c1_c", "c1", "interests", []float32{1, 0}))

	for i := 0; i < 5; i++ {
		hits, err := idx.Search([]float32{1, 0}, 3, "")
		require.NoError(t, err)
		require.Len(t, hits, 3)
		assert.Equal(t, "c1_a", hits[0].ChunkID)
		assert.Equal(t, "c1_b", hits[1].ChunkID)
		assert.Equal(t, "c1_c", hits[2].ChunkID)
	}
}

func TestSearchFewerThanK(t *testing.T) {
	idx := newTestIndex(t, 2)

	require.NoError(t, idx.Add("c1_a", "c1", "summary", []float32{1, 0}))
	hits, err := idx.Search([]float32{1, 0}, 10, "")
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestRemoveIsIdempotent(t *testing.T) {
	idx := newTestIndex(t, 2)

	require.NoError(t, idx.Add("c1_a", "c1", "summary", []float32{1, 0}))
	idx.Remove("c1_a")
	idx.Remove("c1_a")
	idx.Remove("does-not-exist")

	assert.Equal(t, 0, idx.Count())
	hits, err := idx.Search([]float32{1, 0}, 10, "")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRemoveByCandidate(t *testing.T) {
	idx := newTestIndex(t, 2)

	require.NoError(t, idx.Add("c1_a", "c1", "summary", []float32{1, 0}))
	require.NoError(t, idx.Add("c1_b", "c1", "skills", []float32{0, 1}))
	require.NoError(t, idx.Add("c2_a", "c2", "summary", []float32{1, 0}))

	removed := idx.RemoveByCandidate("c1")
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, idx.Count())

	hits, err := idx.Search([]float32{1, 0}, 10, "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c2_a", hits[0].ChunkID)
}

func TestReAddSameChunkKeepsSingleLiveRecord(t *testing.T) {
	idx := newTestIndex(t, 2)

	require.NoError(t, idx.Add("c1_a", "c1", "summary", []float32{1, 0}))
	require.NoError(t, idx.Add("c1_a", "c1", "summary", []float32{0, 1}))

	assert.Equal(t, 1, idx.Count())
	hits, err := idx.Search([]float32{0, 1}, 10, "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestPersistLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	cfg := config.IndexConfig{Path: path, Dimensions: 3}

	idx := New(cfg)
	require.NoError(t, idx.Add("c1_summary", "c1", "summary", []float32{0.3, 0.4, 0.5}))
	require.NoError(t, idx.Add("c2_summary", "c2", "summary", []float32{0.9, 0.1, 0.2}))
	require.NoError(t, idx.Add("c2_skills", "c2", "skills", []float32{0.1, 0.8, 0.3}))
	idx.Remove("c1_summary")
	require.NoError(t, idx.Persist())

	reloaded := New(cfg)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, idx.Count(), reloaded.Count())

	query := []float32{0.5, 0.5, 0.5}
	before, err := idx.Search(query, 10, "")
	require.NoError(t, err)
	after, err := reloaded.Search(query, 10, "")
	require.NoError(t, err)
	// 重载后的搜索结果必须与重载前完全一致, 包括软删除状态与分数
	assert.Equal(t, before, after)
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	idx := newTestIndex(t, 2)

	require.NoError(t, idx.Load())
	assert.Equal(t, 0, idx.Count())
}

func TestLoadCorruptFileKeepsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	cfg := config.IndexConfig{Path: path, Dimensions: 2}

	idx := New(cfg)
	require.NoError(t, idx.Add("c1_a", "c1", "summary", []float32{1, 0}))

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	err := idx.Load()
	require.Error(t, err)
	// 加载失败不得污染内存中的索引
	assert.Equal(t, 1, idx.Count())
}

func TestLoadDimensionMismatchKeepsState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")

	other := New(config.IndexConfig{Path: path, Dimensions: 3})
	require.NoError(t, other.Add("c1_a", "c1", "summary", []float32{1, 0, 0}))
	require.NoError(t, other.Persist())

	idx := New(config.IndexConfig{Path: path, Dimensions: 2})
	require.NoError(t, idx.Add("c2_a", "c2", "summary", []float32{1, 0}))
	err := idx.Load()
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 1, idx.Count())
}

func TestCompactDropsDeletedRecords(t *testing.T) {
	idx := newTestIndex(t, 2)

	require.NoError(t, idx.Add("c1_a", "c1", "summary", []float32{1, 0}))
	require.NoError(t, idx.Add("c1_b", "c1", "skills", []float32{1, 0}))
	require.NoError(t, idx.Add("c2_a", "c2", "summary", []float32{1, 0}))
	idx.Remove("c1_a")

	removed := idx.Compact()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, idx.Count())

	// 压缩保留插入序号, 平分时的顺序不变
	hits, err := idx.Search([]float32{1, 0}, 10, "")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "c1_b", hits[0].ChunkID)
	assert.Equal(t, "c2_a", hits[1].ChunkID)
}

func TestSearchQueryDimensionMismatch(t *testing.T) {
	idx := newTestIndex(t, 3)

	_, err := idx.Search([]float32{1, 0}, 5, "")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
