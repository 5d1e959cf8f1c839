// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"crypto/md5"
	"fmt"

	"fleet-support-go/internal/model"
	"fleet-support-go/internal/repository"
	"fleet-support-go/pkg/kafka"
	"fleet-support-go/pkg/log"
	"fleet-support-go/pkg/storage"
	"fleet-support-go/pkg/tasks"
)

// KBService 定义了知识库管理的业务操作。
type KBService interface {
	// Upload 接收知识库 CSV，归档到 MinIO 并投递异步导入任务。
	// 返回文件 MD5 作为任务标识。
	Upload(ctx context.Context, user *model.User, fileName string, data []byte) (string, error)
	// Status 返回该文件已导入的条目数，用于查询导入进度。
	Status(fileMD5 string) (int64, error)
	Count() (int64, error)
}

type kbService struct {
	kbRepo     repository.KBRepository
	bucketName string
}

// NewKBService 创建一个新的 KBService 实例。
func NewKBService(kbRepo repository.KBRepository, bucketName string) KBService {
	return &kbService{kbRepo: kbRepo, bucketName: bucketName}
}

// Upload 处理知识库 CSV 上传。实际解析与向量化由 Kafka 消费者异步完成。
func (s *kbService) Upload(ctx context.Context, user *model.User, fileName string, data []byte) (string, error) {
	fileMD5 := fmt.Sprintf("%x", md5.Sum(data))
	log.Infof("[KBService] 收到知识库文件: file=%s, md5=%s, user=%s", fileName, fileMD5, user.Username)

	// 1. 原件归档到 MinIO，消费者从这里取文件
	objectKey := fmt.Sprintf("kb/%s/%s", fileMD5, fileName)
	if err := storage.PutBytes(ctx, s.bucketName, objectKey, data, "text/csv"); err != nil {
		return "", fmt.Errorf("归档知识库文件失败: %w", err)
	}

	// 2. 投递导入任务
	task := tasks.KBIngestTask{
		FileMD5:   fileMD5,
		ObjectKey: objectKey,
		FileName:  fileName,
		UserID:    user.ID,
	}
	if err := kafka.ProduceKBTask(task); err != nil {
		return "", fmt.Errorf("投递知识库导入任务失败: %w", err)
	}

	log.Infof("[KBService] 导入任务已投递: md5=%s", fileMD5)
	return fileMD5, nil
}

// Status 返回指定文件当前已入库的条目数。
func (s *kbService) Status(fileMD5 string) (int64, error) {
	entries, err := s.kbRepo.FindByFileMD5(fileMD5)
	if err != nil {
		return 0, err
	}
	return int64(len(entries)), nil
}

// Count 返回知识库的总条目数。
func (s *kbService) Count() (int64, error) {
	return s.kbRepo.Count()
}
