package embedding

import (
	"context"
	"cv-rag-go/internal/config"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string, dimensions int) Client {
	return NewClient(config.EmbeddingConfig{
		APIKey:     "test-key",
		BaseURL:    serverURL,
		Model:      "test-model",
		Dimensions: dimensions,
	})
}

func TestCreateEmbeddingsPreservesInputOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Input, 3)

		// 故意乱序返回, 客户端必须按 index 还原顺序
		resp := map[string]interface{}{
			"data": []map[string]interface{}{
				{"index": 2, "embedding": []float32{0, 0, 3}},
				{"index": 0, "embedding": []float32{1, 0, 0}},
				{"index": 1, "embedding": []float32{0, 2, 0}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	vectors, err := client.CreateEmbeddings(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{1, 0, 0}, vectors[0])
	assert.Equal(t, []float32{0, 2, 0}, vectors[1])
	assert.Equal(t, []float32{0, 0, 3}, vectors[2])
}

func TestCreateEmbeddingsNon200IsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	_, err := client.CreateEmbeddings(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCreateEmbeddingsIncompleteBatchFailsWhole(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 请求 2 条, 返回 1 条
		resp := map[string]interface{}{
			"data": []map[string]interface{}{
				{"index": 0, "embedding": []float32{1, 0, 0}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	vectors, err := client.CreateEmbeddings(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Nil(t, vectors)
}

func TestCreateEmbeddingsDimensionMismatchIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"data": []map[string]interface{}{
				{"index": 0, "embedding": []float32{1, 0}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	_, err := client.CreateEmbeddings(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCreateEmbeddingsServerDownIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(server.URL, 3)
	_, err := client.CreateEmbeddings(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCreateEmbeddingSingle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		resp := map[string]interface{}{
			"data": []map[string]interface{}{
				{"index": 0, "embedding": []float32{0.1, 0.2, 0.3}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	vector, err := client.CreateEmbedding(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vector, 3)
}
