package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"fleet-support-go/internal/analysis"
	"fleet-support-go/internal/model"
	"fleet-support-go/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type fakeAnalysisService struct {
	result   *service.AnalysisResultDTO
	detail   *service.ReportDetailDTO
	err      error
	lastName string
	lastOpts analysis.CleaningOptions
}

func (f *fakeAnalysisService) Analyze(ctx context.Context, user *model.User, fileName string, data []byte, opts analysis.CleaningOptions) (*service.AnalysisResultDTO, error) {
	f.lastName = fileName
	f.lastOpts = opts
	return f.result, f.err
}

func (f *fakeAnalysisService) ListReports(user *model.User, page, size int) ([]model.AnalysisReport, int64, error) {
	return nil, 0, f.err
}

func (f *fakeAnalysisService) GetReport(user *model.User, reportID uint) (*service.ReportDetailDTO, error) {
	if f.detail == nil {
		return nil, f.err
	}
	return f.detail, nil
}

// injectUser 模拟 AuthMiddleware 注入已认证用户。
func injectUser(user *model.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user", user)
		c.Next()
	}
}

func newAnalysisRouter(svc service.AnalysisService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAnalysisHandler(svc)
	r := gin.New()
	user := &model.User{Username: "tester", Role: "USER"}
	group := r.Group("/analysis", injectUser(user))
	group.POST("/upload", h.Upload)
	group.GET("/reports", h.ListReports)
	group.GET("/reports/:id", h.GetReport)
	return r
}

func buildUploadRequest(t *testing.T, fileName, csv, cleaningOptions string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(csv))
	require.NoError(t, err)
	if cleaningOptions != "" {
		require.NoError(t, writer.WriteField("cleaning_options", cleaningOptions))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/analysis/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadParsesCleaningOptions(t *testing.T) {
	svc := &fakeAnalysisService{
		result: &service.AnalysisResultDTO{ReportID: 42, TotalRows: 3},
	}
	r := newAnalysisRouter(svc)

	w := httptest.NewRecorder()
	req := buildUploadRequest(t, "fleet.csv", "ID,CPU Usage (%)\nPC-1,90\n",
		`{"drop_na": true, "fill_na": "median", "remove_duplicates": true, "top_n": 3}`)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "fleet.csv", svc.lastName)
	require.True(t, svc.lastOpts.DropNA)
	require.Equal(t, "median", svc.lastOpts.FillNA)
	require.True(t, svc.lastOpts.RemoveDuplicates)
	require.Equal(t, 3, svc.lastOpts.TopN)

	var body struct {
		Code int                       `json:"code"`
		Data service.AnalysisResultDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, http.StatusOK, body.Code)
	require.Equal(t, uint(42), body.Data.ReportID)
}

func TestUploadRejectsInvalidCleaningOptions(t *testing.T) {
	r := newAnalysisRouter(&fakeAnalysisService{})

	w := httptest.NewRecorder()
	req := buildUploadRequest(t, "fleet.csv", "ID\nPC-1\n", "{not json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadRequiresFile(t *testing.T) {
	r := newAnalysisRouter(&fakeAnalysisService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analysis/upload", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetReportInvalidID(t *testing.T) {
	r := newAnalysisRouter(&fakeAnalysisService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/analysis/reports/notanumber", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
