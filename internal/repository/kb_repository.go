package repository

import (
	"fleet-support-go/internal/model"

	"gorm.io/gorm"
)

// KBRepository 接口定义了知识库条目的持久化操作。
type KBRepository interface {
	BatchCreate(entries []model.KBEntry) error
	FindByFileMD5(fileMD5 string) ([]model.KBEntry, error)
	DeleteByFileMD5(fileMD5 string) error
	Count() (int64, error)
}

type kbRepository struct {
	db *gorm.DB
}

// NewKBRepository 创建一个新的 KBRepository 实例。
func NewKBRepository(db *gorm.DB) KBRepository {
	return &kbRepository{db: db}
}

// BatchCreate 分批插入知识库条目，避免单条 SQL 过大。
func (r *kbRepository) BatchCreate(entries []model.KBEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.CreateInBatches(entries, 100).Error
}

func (r *kbRepository) FindByFileMD5(fileMD5 string) ([]model.KBEntry, error) {
	var entries []model.KBEntry
	err := r.db.Where("file_md5 = ?", fileMD5).Find(&entries).Error
	return entries, err
}

// DeleteByFileMD5 删除同一文件此前导入的所有条目，保证重复导入幂等。
func (r *kbRepository) DeleteByFileMD5(fileMD5 string) error {
	return r.db.Where("file_md5 = ?", fileMD5).Delete(&model.KBEntry{}).Error
}

func (r *kbRepository) Count() (int64, error) {
	var total int64
	err := r.db.Model(&model.KBEntry{}).Count(&total).Error
	return total, err
}
