package repository

import (
	"fleet-support-go/internal/model"

	"gorm.io/gorm"
)

// ReportRepository 接口定义了分析报告的持久化操作。
type ReportRepository interface {
	Create(report *model.AnalysisReport) error
	FindByID(reportID uint) (*model.AnalysisReport, error)
	FindWithPagination(userID uint, offset, limit int) ([]model.AnalysisReport, int64, error)
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository 创建一个新的 ReportRepository 实例。
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(report *model.AnalysisReport) error {
	return r.db.Create(report).Error
}

func (r *reportRepository) FindByID(reportID uint) (*model.AnalysisReport, error) {
	var report model.AnalysisReport
	err := r.db.First(&report, reportID).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// FindWithPagination 按用户分页检索分析报告，按创建时间倒序。
func (r *reportRepository) FindWithPagination(userID uint, offset, limit int) ([]model.AnalysisReport, int64, error) {
	var reports []model.AnalysisReport
	var total int64

	db := r.db.Model(&model.AnalysisReport{}).Where("user_id = ?", userID)

	err := db.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&reports).Error
	if err != nil {
		return nil, 0, err
	}

	return reports, total, nil
}
