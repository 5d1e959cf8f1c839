package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"fleet-support-go/internal/model"
	"fleet-support-go/internal/repository"
	"fleet-support-go/pkg/embedding"
	"fleet-support-go/pkg/es"
	"fleet-support-go/pkg/log"
	"fleet-support-go/pkg/storage"
	"fleet-support-go/pkg/tasks"

	"github.com/minio/minio-go/v7"
)

// Processor 消费 Kafka 中的知识库导入任务：
// 从 MinIO 拉取 CSV，解析并清洗问答对，写入 MySQL，再逐条向量化并索引到 Elasticsearch。
type Processor struct {
	kbRepo          repository.KBRepository
	embeddingClient embedding.Client
	bucketName      string
	indexName       string
	modelVersion    string
}

// NewProcessor 创建一个新的导入处理器。
func NewProcessor(kbRepo repository.KBRepository, embeddingClient embedding.Client, bucketName, indexName, modelVersion string) *Processor {
	return &Processor{
		kbRepo:          kbRepo,
		embeddingClient: embeddingClient,
		bucketName:      bucketName,
		indexName:       indexName,
		modelVersion:    modelVersion,
	}
}

// Process 执行单个导入任务。任务可重入：重复导入同一文件会先清理旧数据。
func (p *Processor) Process(ctx context.Context, task tasks.KBIngestTask) error {
	log.Infof("[Pipeline] 开始处理知识库文件: MD5=%s, FileName=%s", task.FileMD5, task.FileName)

	// 1. 从 MinIO 获取原始 CSV
	log.Info("[Pipeline] 步骤1: 从 MinIO 下载文件")
	obj, err := storage.MinioClient.GetObject(ctx, p.bucketName, task.ObjectKey, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("从 MinIO 获取对象失败: %w", err)
	}
	defer obj.Close()

	// 2. 解析并清洗问答对
	log.Info("[Pipeline] 步骤2: 解析 CSV 并清洗问答对")
	entries, err := p.parseEntries(obj, task.FileMD5)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		log.Warnf("[Pipeline] 文件中没有有效的问答对: MD5=%s", task.FileMD5)
		return nil
	}
	log.Infof("[Pipeline] 步骤2: 解析出 %d 条有效问答对", len(entries))

	// 3. 幂等清理：删除同一文件此前导入的数据
	log.Info("[Pipeline] 步骤3: 清理该文件的历史数据")
	if err := es.DeleteByFileMD5(ctx, p.indexName, task.FileMD5); err != nil {
		return fmt.Errorf("清理 Elasticsearch 历史数据失败: %w", err)
	}
	if err := p.kbRepo.DeleteByFileMD5(task.FileMD5); err != nil {
		return fmt.Errorf("清理 MySQL 历史数据失败: %w", err)
	}

	// 4. 入库 MySQL
	log.Info("[Pipeline] 步骤4: 批量写入 MySQL")
	if err := p.kbRepo.BatchCreate(entries); err != nil {
		return fmt.Errorf("批量写入知识库条目失败: %w", err)
	}

	// 5. 逐条向量化并索引到 Elasticsearch
	log.Info("[Pipeline] 步骤5: 向量化并写入 Elasticsearch")
	for i := range entries {
		entry := &entries[i]
		vector, err := p.embeddingClient.CreateEmbedding(ctx, entry.CleanIssue)
		if err != nil {
			return fmt.Errorf("向量化第 %d 行失败: %w", entry.RowID, err)
		}

		doc := model.KBDocument{
			EntryID:       fmt.Sprintf("%s_%d", entry.FileMD5, entry.RowID),
			FileMD5:       entry.FileMD5,
			RowID:         entry.RowID,
			CustomerIssue: entry.CustomerIssue,
			CleanIssue:    entry.CleanIssue,
			TechResponse:  entry.TechResponse,
			Category:      entry.Category,
			Vector:        vector,
			ModelVersion:  p.modelVersion,
		}
		if err := es.IndexDocument(ctx, p.indexName, doc); err != nil {
			return fmt.Errorf("索引第 %d 行到 Elasticsearch 失败: %w", entry.RowID, err)
		}
	}

	log.Infof("[Pipeline] 知识库文件处理完成: MD5=%s, 共导入 %d 条", task.FileMD5, len(entries))
	return nil
}

// parseEntries 从 CSV 中提取问答对。
// 硬性要求存在 Customer_Issue 和 Tech_Response 两列，Category 列可选。
// 清洗后问题为空或解决方案为空的行会被跳过。
func (p *Processor) parseEntries(r io.Reader, fileMD5 string) ([]model.KBEntry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("读取 CSV 表头失败: %w", err)
	}

	issueIdx, responseIdx, categoryIdx := -1, -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case "Customer_Issue":
			issueIdx = i
		case "Tech_Response":
			responseIdx = i
		case "Category":
			categoryIdx = i
		}
	}
	if issueIdx < 0 || responseIdx < 0 {
		return nil, fmt.Errorf("CSV 缺少必需的列: Customer_Issue / Tech_Response")
	}

	var entries []model.KBEntry
	rowID := 0
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("读取 CSV 行失败: %w", err)
		}
		rowID++

		if issueIdx >= len(rec) || responseIdx >= len(rec) {
			continue
		}
		issue := strings.TrimSpace(rec[issueIdx])
		response := strings.TrimSpace(rec[responseIdx])
		cleanIssue := NormalizeIssue(issue)
		if cleanIssue == "" || response == "" {
			continue
		}

		entry := model.KBEntry{
			FileMD5:       fileMD5,
			RowID:         rowID,
			CustomerIssue: issue,
			CleanIssue:    cleanIssue,
			TechResponse:  response,
			ModelVersion:  p.modelVersion,
		}
		if categoryIdx >= 0 && categoryIdx < len(rec) {
			entry.Category = strings.TrimSpace(rec[categoryIdx])
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
