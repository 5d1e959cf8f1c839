// Package tasks 定义通过 Kafka 传递的异步任务结构。
package tasks

// KBIngestTask 表示一条知识库 CSV 导入任务。
// 上传接口把原始文件写入 MinIO 后，以该结构投递任务，由消费者完成解析、入库和向量化。
type KBIngestTask struct {
	// FileMD5 是文件内容的 MD5，作为幂等键：重复导入同一文件会先清理旧数据。
	FileMD5 string `json:"file_md5"`
	// ObjectKey 是文件在 MinIO 桶中的对象名。
	ObjectKey string `json:"object_key"`
	FileName  string `json:"file_name"`
	UserID    uint   `json:"user_id"`
}
