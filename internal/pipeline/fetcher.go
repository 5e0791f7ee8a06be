package pipeline

import (
	"context"
	"cv-rag-go/pkg/storage"
	"io"
)

// minioFetcher 是 ObjectFetcher 的 MinIO 实现。
type minioFetcher struct {
	bucketName string
}

// NewMinioFetcher 创建一个从 MinIO 指定桶读取对象的 ObjectFetcher。
func NewMinioFetcher(bucketName string) ObjectFetcher {
	return &minioFetcher{bucketName: bucketName}
}

// Fetch 返回对象的读取流, 调用方负责关闭。
func (f *minioFetcher) Fetch(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	return storage.GetObject(ctx, f.bucketName, objectKey)
}
