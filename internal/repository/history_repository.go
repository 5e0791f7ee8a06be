package repository

import (
	"context"
	"cv-rag-go/internal/model"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	queryHistoryKey = "query:history"
	// 只保留最近 20 条问答记录
	queryHistoryCap = 20
	queryHistoryTTL = 7 * 24 * time.Hour
)

// HistoryRepository 定义了问答历史记录的操作接口。
type HistoryRepository interface {
	Append(ctx context.Context, entry model.QueryLog) error
	Recent(ctx context.Context, limit int) ([]model.QueryLog, error)
}

type redisHistoryRepository struct {
	redisClient *redis.Client
}

// NewHistoryRepository 创建一个新的 HistoryRepository 实例。
func NewHistoryRepository(redisClient *redis.Client) HistoryRepository {
	return &redisHistoryRepository{redisClient: redisClient}
}

// Append 在 Redis 列表头部追加一条问答记录，并裁剪到容量上限。
func (r *redisHistoryRepository) Append(ctx context.Context, entry model.QueryLog) error {
	jsonData, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal query log: %w", err)
	}
	pipe := r.redisClient.TxPipeline()
	pipe.LPush(ctx, queryHistoryKey, jsonData)
	pipe.LTrim(ctx, queryHistoryKey, 0, queryHistoryCap-1)
	pipe.Expire(ctx, queryHistoryKey, queryHistoryTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append query log: %w", err)
	}
	return nil
}

// Recent 返回最近的问答记录，新的在前。
func (r *redisHistoryRepository) Recent(ctx context.Context, limit int) ([]model.QueryLog, error) {
	if limit <= 0 || limit > queryHistoryCap {
		limit = queryHistoryCap
	}
	items, err := r.redisClient.LRange(ctx, queryHistoryKey, 0, int64(limit-1)).Result()
	if err != nil {
		if err == redis.Nil {
			return []model.QueryLog{}, nil
		}
		return nil, fmt.Errorf("failed to get query history: %w", err)
	}
	logs := make([]model.QueryLog, 0, len(items))
	for _, item := range items {
		var entry model.QueryLog
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			// 历史记录是尽力而为的辅助数据, 跳过坏条目
			continue
		}
		logs = append(logs, entry)
	}
	return logs, nil
}
