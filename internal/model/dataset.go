// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// DatasetUpload 定义了 dataset_uploads 表的 ORM 模型。
// 它记录了每个上传的遥测 CSV 数据集的元数据。
type DatasetUpload struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	FileMD5   string    `gorm:"type:varchar(32);not null;index" json:"fileMd5"`
	FileName  string    `gorm:"type:varchar(255);not null" json:"fileName"`
	TotalSize int64     `gorm:"not null" json:"totalSize"`
	RowCount  int       `gorm:"not null;default:0" json:"rowCount"`
	UserID    uint      `gorm:"not null" json:"userId"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (DatasetUpload) TableName() string {
	return "dataset_uploads"
}
