// Package index 实现了简历分块向量的平面索引。
// 索引是向量的唯一所有者，分块文本归数据库所有，两者仅通过 chunk_id 关联。
// 删除采用软删除标记，不回收底层存储空间；空间回收通过 Compact 维护操作完成。
package index

import (
	"cv-rag-go/internal/config"
	"cv-rag-go/pkg/log"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ErrDimensionMismatch 表示向量维度与索引维度不一致。
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Hit 表示一次搜索的单条命中结果。
type Hit struct {
	ChunkID     string
	CandidateID string
	Section     string
	Score       float64
}

// Index 定义了向量索引的操作接口。
// 实现必须保证：Add/Remove/Persist/Load/Compact 之间互斥，Search 可并发执行。
type Index interface {
	// Add 追加一条向量记录。向量在写入前做 L2 归一化。
	Add(chunkID, candidateID, section string, vector []float32) error
	// Search 返回至多 k 条未删除记录，按相似度降序排列。
	// candidateID 非空时仅返回该候选人的分块。
	// 相同分数按插入序号升序排列（先插入者优先），保证结果确定性。
	Search(query []float32, k int, candidateID string) ([]Hit, error)
	// Remove 软删除指定分块的向量，id 不存在时为幂等空操作。
	Remove(chunkID string)
	// RemoveByCandidate 软删除某候选人的全部向量，返回标记数量。
	RemoveByCandidate(candidateID string) int
	// Persist 将完整索引原子地写入磁盘（先写临时文件再重命名）。
	Persist() error
	// Load 从磁盘加载索引。文件不存在时得到空索引；
	// 文件损坏或维度不符时返回错误且不改变内存中的索引。
	Load() error
	// Compact 重建索引并丢弃软删除记录，返回回收的记录数。仅供维护使用。
	Compact() int
	// Count 返回未删除的记录数。
	Count() int
}

// record 是索引中的一条向量记录。Seq 为单调递增的插入序号。
type record struct {
	ChunkID     string    `json:"chunk_id"`
	CandidateID string    `json:"candidate_id"`
	Section     string    `json:"section"`
	Vector      []float32 `json:"vector"`
	Deleted     bool      `json:"deleted"`
	Seq         uint64    `json:"seq"`
}

// fileSnapshot 是索引文件的持久化布局。
type fileSnapshot struct {
	Dimension int      `json:"dimension"`
	NextSeq   uint64   `json:"next_seq"`
	Records   []record `json:"records"`
}

type flatIndex struct {
	mu        sync.RWMutex
	dimension int
	path      string
	nextSeq   uint64
	records   []record
	// byChunk 映射 chunk_id 到最近一条未删除记录的下标
	byChunk map[string]int
}

// New 创建一个空的平面向量索引。
func New(cfg config.IndexConfig) Index {
	return &flatIndex{
		dimension: cfg.Dimensions,
		path:      cfg.Path,
		byChunk:   make(map[string]int),
	}
}

// Add 追加一条向量记录。
func (idx *flatIndex) Add(chunkID, candidateID, section string, vector []float32) error {
	if len(vector) != idx.dimension {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, idx.dimension, len(vector))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	// 同一 chunk_id 重新写入时，先软删除旧记录，保持任意时刻每个 id 至多一条活跃记录
	if prev, ok := idx.byChunk[chunkID]; ok && !idx.records[prev].Deleted {
		idx.records[prev].Deleted = true
	}

	idx.records = append(idx.records, record{
		ChunkID:     chunkID,
		CandidateID: candidateID,
		Section:     section,
		Vector:      normalize(vector),
		Seq:         idx.nextSeq,
	})
	idx.byChunk[chunkID] = len(idx.records) - 1
	idx.nextSeq++
	return nil
}

// Search 执行暴力最近邻搜索。
func (idx *flatIndex) Search(query []float32, k int, candidateID string) ([]Hit, error) {
	if len(query) != idx.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, idx.dimension, len(query))
	}
	if k <= 0 {
		return nil, nil
	}
	q := normalize(query)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	type scored struct {
		hit Hit
		seq uint64
	}
	candidates := make([]scored, 0, len(idx.records))
	for i := range idx.records {
		r := &idx.records[i]
		if r.Deleted {
			continue
		}
		if candidateID != "" && r.CandidateID != candidateID {
			continue
		}
		candidates = append(candidates, scored{
			hit: Hit{
				ChunkID:     r.ChunkID,
				CandidateID: r.CandidateID,
				Section:     r.Section,
				Score:       cosineScore(q, r.Vector),
			},
			seq: r.Seq,
		})
	}

	// 按分数降序排列，分数相同时先插入者优先
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].hit.Score != candidates[j].hit.Score {
			return candidates[i].hit.Score > candidates[j].hit.Score
		}
		return candidates[i].seq < candidates[j].seq
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	hits := make([]Hit, 0, k)
	for i := 0; i < k; i++ {
		hits = append(hits, candidates[i].hit)
	}
	return hits, nil
}

// Remove 软删除指定分块的向量。
func (idx *flatIndex) Remove(chunkID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if i, ok := idx.byChunk[chunkID]; ok && !idx.records[i].Deleted {
		idx.records[i].Deleted = true
	}
}

// RemoveByCandidate 软删除某候选人的全部向量。
func (idx *flatIndex) RemoveByCandidate(candidateID string) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	removed := 0
	for i := range idx.records {
		if !idx.records[i].Deleted && idx.records[i].CandidateID == candidateID {
			idx.records[i].Deleted = true
			removed++
		}
	}
	return removed
}

// Persist 将完整索引原子地写入磁盘。
func (idx *flatIndex) Persist() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	snapshot := fileSnapshot{
		Dimension: idx.dimension,
		NextSeq:   idx.nextSeq,
		Records:   idx.records,
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("序列化索引失败: %w", err)
	}

	dir := filepath.Dir(idx.path)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("创建索引目录失败: %w", err)
	}

	// 先写临时文件，再原子重命名，保证并发 Load 不会读到半截文件
	tmp, err := os.CreateTemp(dir, ".index-*.tmp")
	if err != nil {
		return fmt.Errorf("创建临时索引文件失败: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("写入临时索引文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("关闭临时索引文件失败: %w", err)
	}
	if err := os.Rename(tmpName, idx.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("替换索引文件失败: %w", err)
	}

	log.Infof("[VectorIndex] 索引已持久化到 %s, 共 %d 条记录", idx.path, len(idx.records))
	return nil
}

// Load 从磁盘加载索引。
func (idx *flatIndex) Load() error {
	data, err := os.ReadFile(idx.path)
	if err != nil {
		if os.IsNotExist(err) {
			// 首次启动：索引文件不存在时从空索引开始
			log.Infof("[VectorIndex] 索引文件 %s 不存在, 从空索引启动", idx.path)
			idx.mu.Lock()
			idx.records = nil
			idx.byChunk = make(map[string]int)
			idx.nextSeq = 0
			idx.mu.Unlock()
			return nil
		}
		return fmt.Errorf("读取索引文件失败: %w", err)
	}

	// 先完整校验到临时结构，成功后再替换内存状态，加载失败不污染现有索引
	var snapshot fileSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("索引文件损坏: %w", err)
	}
	if snapshot.Dimension != idx.dimension {
		return fmt.Errorf("%w: index file dimension %d, configured %d", ErrDimensionMismatch, snapshot.Dimension, idx.dimension)
	}
	byChunk := make(map[string]int, len(snapshot.Records))
	for i, r := range snapshot.Records {
		if len(r.Vector) != snapshot.Dimension {
			return fmt.Errorf("%w: record %q has dimension %d", ErrDimensionMismatch, r.ChunkID, len(r.Vector))
		}
		if !r.Deleted {
			byChunk[r.ChunkID] = i
		}
	}

	idx.mu.Lock()
	idx.records = snapshot.Records
	idx.byChunk = byChunk
	idx.nextSeq = snapshot.NextSeq
	idx.mu.Unlock()

	log.Infof("[VectorIndex] 已从 %s 加载索引, 共 %d 条记录", idx.path, len(snapshot.Records))
	return nil
}

// Compact 重建索引并丢弃软删除记录。
func (idx *flatIndex) Compact() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	kept := make([]record, 0, len(idx.records))
	byChunk := make(map[string]int)
	for _, r := range idx.records {
		if r.Deleted {
			continue
		}
		byChunk[r.ChunkID] = len(kept)
		kept = append(kept, r)
	}
	removed := len(idx.records) - len(kept)
	idx.records = kept
	idx.byChunk = byChunk

	log.Infof("[VectorIndex] 索引压缩完成, 回收 %d 条软删除记录, 剩余 %d 条", removed, len(kept))
	return removed
}

// Count 返回未删除的记录数。
func (idx *flatIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := 0
	for i := range idx.records {
		if !idx.records[i].Deleted {
			n++
		}
	}
	return n
}

// normalize 返回 L2 归一化后的向量副本，零向量原样返回。
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// cosineScore 计算两个已归一化向量的余弦相似度，并映射到 [0,1] 区间。
func cosineScore(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	score := (1 + dot) / 2
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}
