package repository

import (
	"fleet-support-go/internal/model"

	"gorm.io/gorm"
)

// DatasetRepository 接口定义了数据集上传记录的持久化操作。
type DatasetRepository interface {
	Create(upload *model.DatasetUpload) error
	FindByMD5AndUser(fileMD5 string, userID uint) (*model.DatasetUpload, error)
	FindByUser(userID uint) ([]model.DatasetUpload, error)
}

type datasetRepository struct {
	db *gorm.DB
}

// NewDatasetRepository 创建一个新的 DatasetRepository 实例。
func NewDatasetRepository(db *gorm.DB) DatasetRepository {
	return &datasetRepository{db: db}
}

func (r *datasetRepository) Create(upload *model.DatasetUpload) error {
	return r.db.Create(upload).Error
}

func (r *datasetRepository) FindByMD5AndUser(fileMD5 string, userID uint) (*model.DatasetUpload, error) {
	var upload model.DatasetUpload
	err := r.db.Where("file_md5 = ? AND user_id = ?", fileMD5, userID).First(&upload).Error
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

func (r *datasetRepository) FindByUser(userID uint) ([]model.DatasetUpload, error) {
	var uploads []model.DatasetUpload
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&uploads).Error
	return uploads, err
}
