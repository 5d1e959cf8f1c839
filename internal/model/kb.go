// Package model 定义了与数据库表对应的 Go 结构体。
package model

// KBEntry 对应于数据库中的 kb_entries 表。
// 每行是知识库 CSV 中的一条 问题/解决方案 记录。
type KBEntry struct {
	EntryID       uint   `gorm:"primaryKey;autoIncrement;column:entry_id"`
	FileMD5       string `gorm:"type:varchar(32);not null;index;column:file_md5"`
	RowID         int    `gorm:"not null;column:row_id"`
	CustomerIssue string `gorm:"type:text;column:customer_issue"`
	CleanIssue    string `gorm:"type:text;column:clean_issue"`
	TechResponse  string `gorm:"type:text;column:tech_response"`
	Category      string `gorm:"type:varchar(100);column:category"`
	ModelVersion  string `gorm:"type:varchar(50);column:model_version"`
}

func (KBEntry) TableName() string {
	return "kb_entries"
}

// KBDocument 代表存储在 Elasticsearch 中的知识库文档结构。
type KBDocument struct {
	EntryID       string    `json:"entry_id"` // 唯一标识，例如 fileMd5 + rowId
	FileMD5       string    `json:"file_md5"`
	RowID         int       `json:"row_id"`
	CustomerIssue string    `json:"customer_issue"`
	CleanIssue    string    `json:"clean_issue"`
	TechResponse  string    `json:"tech_response"`
	Category      string    `json:"category"`
	Vector        []float32 `json:"vector"` // 清洗后问题文本的向量表示
	ModelVersion  string    `json:"model_version"`
}

// RetrievalHit 定义了返回给调用方的单条检索结果。
// Score 为余弦相似度，取值范围 [0, 1]。
type RetrievalHit struct {
	CustomerIssue string  `json:"customerIssue"`
	TechResponse  string  `json:"techResponse"`
	Category      string  `json:"category,omitempty"`
	Score         float64 `json:"score"`
}
