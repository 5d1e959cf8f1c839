// Package service 提供了知识库检索相关的业务逻辑。
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"fleet-support-go/internal/model"
	"fleet-support-go/internal/pipeline"
	"fleet-support-go/pkg/embedding"
	"fleet-support-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
)

// RetrievalService 接口定义了知识库的语义检索操作。
type RetrievalService interface {
	// Search 返回与 query 最相似的知识库条目，按相似度降序。
	Search(ctx context.Context, query string, topK int) ([]model.RetrievalHit, error)
}

type retrievalService struct {
	embeddingClient embedding.Client
	esClient        *elasticsearch.Client
	indexName       string
}

// NewRetrievalService 创建一个新的 RetrievalService 实例。
func NewRetrievalService(embeddingClient embedding.Client, esClient *elasticsearch.Client, indexName string) RetrievalService {
	return &retrievalService{
		embeddingClient: embeddingClient,
		esClient:        esClient,
		indexName:       indexName,
	}
}

// Search 执行向量近邻检索。
func (s *retrievalService) Search(ctx context.Context, query string, topK int) ([]model.RetrievalHit, error) {
	log.Infof("[RetrievalService] 开始检索, query: '%s', topK: %d", query, topK)

	// 1. 与入库时相同的规范化，保证查询与语料同分布
	normalized := pipeline.NormalizeIssue(query)
	if normalized == "" {
		normalized = query
	}

	// 2. 向量化查询
	log.Info("[RetrievalService] 步骤1: 开始向量化查询")
	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, normalized)
	if err != nil {
		log.Errorf("[RetrievalService] 向量化查询失败: %v", err)
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}
	log.Infof("[RetrievalService] 步骤1: 向量化查询成功, 向量维度: %d", len(queryVector))

	// 3. 构建 kNN 查询
	log.Info("[RetrievalService] 步骤2: 开始构建 Elasticsearch kNN 查询")
	var buf bytes.Buffer
	esQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   queryVector,
			"k":              topK,
			"num_candidates": topK * 30,
		},
		"size": topK,
	}
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		log.Errorf("[RetrievalService] 序列化 Elasticsearch 查询失败: %v", err)
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	// 4. 执行搜索
	log.Info("[RetrievalService] 步骤3: 开始向 Elasticsearch 发送搜索请求")
	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(ctx),
		s.esClient.Search.WithIndex(s.indexName),
		s.esClient.Search.WithBody(&buf),
	)
	if err != nil {
		log.Errorf("[RetrievalService] 向 Elasticsearch 发送搜索请求失败: %v", err)
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[RetrievalService] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	// 5. 解析结果
	log.Info("[RetrievalService] 步骤4: 开始解析 Elasticsearch 响应")
	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.KBDocument `json:"_source"`
				Score  float64          `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		log.Errorf("[RetrievalService] 解析 Elasticsearch 响应失败: %v", err)
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	hits := make([]model.RetrievalHit, 0, len(esResponse.Hits.Hits))
	for _, h := range esResponse.Hits.Hits {
		hits = append(hits, model.RetrievalHit{
			CustomerIssue: h.Source.CustomerIssue,
			TechResponse:  h.Source.TechResponse,
			Category:      h.Source.Category,
			Score:         cosineFromESScore(h.Score),
		})
	}

	log.Infof("[RetrievalService] 检索完成, 命中 %d 条", len(hits))
	return hits, nil
}

// cosineFromESScore 把 ES 的 kNN 得分还原为余弦相似度并截断到 [0, 1]。
// dense_vector 余弦索引的 _score = (1 + cosine) / 2。
func cosineFromESScore(score float64) float64 {
	cos := 2*score - 1
	if cos < 0 {
		return 0
	}
	if cos > 1 {
		return 1
	}
	return cos
}
