// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// AnalysisReport 对应于数据库中的 analysis_reports 表。
// KPI、高危机器与图表对象键以 JSON 文本形式落库，便于原样回放给前端。
type AnalysisReport struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	DatasetMD5  string    `gorm:"type:varchar(32);not null;index" json:"datasetMd5"`
	DatasetName string    `gorm:"type:varchar(255);not null" json:"datasetName"`
	UserID      uint      `gorm:"not null;index" json:"userId"`
	TotalRows   int       `gorm:"not null" json:"totalRows"`
	KPIs        string    `gorm:"type:text;column:kpis" json:"-"`
	TopCritical string    `gorm:"type:text;column:top_critical" json:"-"`
	ChartKeys   string    `gorm:"type:text;column:chart_keys" json:"-"`
	Columns     string    `gorm:"type:text;column:columns_available" json:"-"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (AnalysisReport) TableName() string {
	return "analysis_reports"
}
