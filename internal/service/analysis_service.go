// Package service 包含了应用的业务逻辑层。
package service

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"fleet-support-go/internal/analysis"
	"fleet-support-go/internal/config"
	"fleet-support-go/internal/model"
	"fleet-support-go/internal/repository"
	"fleet-support-go/pkg/log"
	"fleet-support-go/pkg/storage"
)

// AnalysisResultDTO 是一次数据集分析返回给前端的完整结果。
type AnalysisResultDTO struct {
	ReportID         uint              `json:"report_id"`
	KPIs             analysis.KPIs     `json:"kpis"`
	Charts           map[string]string `json:"charts"`
	DataPreview      []map[string]any  `json:"data_preview"`
	TopCritical      []map[string]any  `json:"top_critical"`
	TotalRows        int               `json:"total_rows"`
	ColumnsAvailable []string          `json:"columns_available"`
}

// ReportDetailDTO 是历史报告详情，图表以预签名 URL 形式返回。
type ReportDetailDTO struct {
	Report      *model.AnalysisReport `json:"report"`
	KPIs        json.RawMessage       `json:"kpis"`
	TopCritical json.RawMessage       `json:"top_critical"`
	Columns     json.RawMessage       `json:"columns_available"`
	ChartURLs   map[string]string     `json:"chart_urls"`
}

// AnalysisService 定义了数据集分析相关的业务操作。
type AnalysisService interface {
	// Analyze 对上传的 CSV 执行清洗、评分、KPI 与图表生成，并持久化报告。
	Analyze(ctx context.Context, user *model.User, fileName string, data []byte, opts analysis.CleaningOptions) (*AnalysisResultDTO, error)
	ListReports(user *model.User, page, size int) ([]model.AnalysisReport, int64, error)
	GetReport(user *model.User, reportID uint) (*ReportDetailDTO, error)
}

type analysisService struct {
	datasetRepo repository.DatasetRepository
	reportRepo  repository.ReportRepository
	bucketName  string
	cfg         config.AnalysisConfig
}

// NewAnalysisService 创建一个新的 AnalysisService 实例。
func NewAnalysisService(datasetRepo repository.DatasetRepository, reportRepo repository.ReportRepository, bucketName string, cfg config.AnalysisConfig) AnalysisService {
	return &analysisService{
		datasetRepo: datasetRepo,
		reportRepo:  reportRepo,
		bucketName:  bucketName,
		cfg:         cfg,
	}
}

// Analyze 执行完整的分析流程。
func (s *analysisService) Analyze(ctx context.Context, user *model.User, fileName string, data []byte, opts analysis.CleaningOptions) (*AnalysisResultDTO, error) {
	fileMD5 := fmt.Sprintf("%x", md5.Sum(data))
	log.Infof("[AnalysisService] 开始分析数据集: file=%s, md5=%s, user=%s", fileName, fileMD5, user.Username)

	// 1. 解析 CSV
	log.Info("[AnalysisService] 步骤1: 解析 CSV")
	frame, err := analysis.ParseCSV(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	// 2. 按用户选项清洗
	log.Infof("[AnalysisService] 步骤2: 执行清洗, options: %+v", opts)
	cleaned := analysis.Clean(frame, opts)
	if len(cleaned.Rows) == 0 {
		return nil, fmt.Errorf("清洗后数据集为空")
	}

	// 3. 问题检测与评分
	log.Info("[AnalysisService] 步骤3: 问题检测与严重度评分")
	result := analysis.Score(cleaned, analysis.Thresholds{
		CPU:  s.cfg.CPUThreshold,
		RAM:  s.cfg.RAMThreshold,
		Disk: s.cfg.DiskThreshold,
	})

	// 4. KPI 汇总
	log.Info("[AnalysisService] 步骤4: 计算 KPI")
	kpis := analysis.CalculateKPIs(result.Machines)

	topN := opts.TopN
	if topN <= 0 {
		topN = s.cfg.DefaultTopN
	}
	topCritical := result.TopCritical(topN)

	// 5. 生成图表
	log.Info("[AnalysisService] 步骤5: 生成图表")
	charts := analysis.GenerateCharts(result)

	// 6. 归档：CSV 原件与图表 PNG 写入 MinIO
	log.Info("[AnalysisService] 步骤6: 归档文件到 MinIO")
	datasetKey := fmt.Sprintf("datasets/%s/%s", fileMD5, fileName)
	if err := storage.PutBytes(ctx, s.bucketName, datasetKey, data, "text/csv"); err != nil {
		log.Errorf("[AnalysisService] 归档 CSV 失败: %v", err)
	}
	chartKeys := s.archiveCharts(ctx, fileMD5, charts)

	// 7. 持久化数据集记录与报告
	log.Info("[AnalysisService] 步骤7: 持久化分析报告")
	if _, err := s.datasetRepo.FindByMD5AndUser(fileMD5, user.ID); err != nil {
		upload := &model.DatasetUpload{
			FileMD5:   fileMD5,
			FileName:  fileName,
			TotalSize: int64(len(data)),
			RowCount:  len(cleaned.Rows),
			UserID:    user.ID,
		}
		if err := s.datasetRepo.Create(upload); err != nil {
			log.Errorf("[AnalysisService] 保存数据集记录失败: %v", err)
		}
	}

	report := &model.AnalysisReport{
		DatasetMD5:  fileMD5,
		DatasetName: fileName,
		UserID:      user.ID,
		TotalRows:   len(cleaned.Rows),
		KPIs:        mustJSON(kpis),
		TopCritical: mustJSON(topCritical),
		ChartKeys:   mustJSON(chartKeys),
		Columns:     mustJSON(result.Frame.Columns),
	}
	if err := s.reportRepo.Create(report); err != nil {
		log.Errorf("[AnalysisService] 保存分析报告失败: %v", err)
	}

	log.Infof("[AnalysisService] 分析完成: md5=%s, rows=%d, reportID=%d", fileMD5, len(cleaned.Rows), report.ID)
	return &AnalysisResultDTO{
		ReportID:         report.ID,
		KPIs:             kpis,
		Charts:           charts,
		DataPreview:      result.Preview(20),
		TopCritical:      topCritical,
		TotalRows:        len(cleaned.Rows),
		ColumnsAvailable: result.Frame.Columns,
	}, nil
}

// archiveCharts 把 base64 图表解码后写入 MinIO，返回 chart 名到对象键的映射。
func (s *analysisService) archiveCharts(ctx context.Context, fileMD5 string, charts map[string]string) map[string]string {
	keys := make(map[string]string, len(charts))
	for name, b64 := range charts {
		if name == "error" {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			log.Errorf("[AnalysisService] 解码图表 %s 失败: %v", name, err)
			continue
		}
		key := fmt.Sprintf("charts/%s/%s.png", fileMD5, name)
		if err := storage.PutBytes(ctx, s.bucketName, key, raw, "image/png"); err != nil {
			log.Errorf("[AnalysisService] 归档图表 %s 失败: %v", name, err)
			continue
		}
		keys[name] = key
	}
	return keys
}

// ListReports 分页返回当前用户的历史报告。
func (s *analysisService) ListReports(user *model.User, page, size int) ([]model.AnalysisReport, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}
	return s.reportRepo.FindWithPagination(user.ID, (page-1)*size, size)
}

// GetReport 返回单份报告详情，归档图表转换为限时的预签名 URL。
func (s *analysisService) GetReport(user *model.User, reportID uint) (*ReportDetailDTO, error) {
	report, err := s.reportRepo.FindByID(reportID)
	if err != nil {
		return nil, err
	}
	if report.UserID != user.ID && user.Role != "ADMIN" {
		return nil, fmt.Errorf("无权访问该报告")
	}

	var chartKeys map[string]string
	if err := json.Unmarshal([]byte(report.ChartKeys), &chartKeys); err != nil {
		chartKeys = map[string]string{}
	}
	chartURLs := make(map[string]string, len(chartKeys))
	for name, key := range chartKeys {
		url, err := storage.GetPresignedURL(s.bucketName, key, 1*time.Hour)
		if err != nil {
			log.Errorf("[AnalysisService] 生成图表预签名 URL 失败: %v", err)
			continue
		}
		chartURLs[name] = url
	}

	return &ReportDetailDTO{
		Report:      report,
		KPIs:        json.RawMessage(report.KPIs),
		TopCritical: json.RawMessage(report.TopCritical),
		Columns:     json.RawMessage(report.Columns),
		ChartURLs:   chartURLs,
	}, nil
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
