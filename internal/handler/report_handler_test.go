package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-portal-api/internal/dto"
	"github.com/noah-isme/attendance-portal-api/internal/middleware"
	"github.com/noah-isme/attendance-portal-api/internal/models"
	"github.com/noah-isme/attendance-portal-api/internal/service"
	appErrors "github.com/noah-isme/attendance-portal-api/pkg/errors"
)

type reportServiceMock struct {
	monthlyResp  *dto.MonthlyReportResponse
	semesterResp *dto.SemesterReportResponse
	createResp   *dto.ReportJobResponse
	createErr    error
	createdReq   dto.ReportRequest
	createdBy    string
	statusResp   *dto.ReportStatusResponse
	statusErr    error
	download     *service.ReportDownload
	downloadErr  error
}

func (m *reportServiceMock) MonthlyReport(ctx context.Context, class string, month, year int) (*dto.MonthlyReportResponse, error) {
	return m.monthlyResp, nil
}

func (m *reportServiceMock) SemesterReport(ctx context.Context, class, semester string) (*dto.SemesterReportResponse, error) {
	return m.semesterResp, nil
}

func (m *reportServiceMock) CreateJob(ctx context.Context, req dto.ReportRequest, actorID string) (*dto.ReportJobResponse, error) {
	m.createdReq = req
	m.createdBy = actorID
	return m.createResp, m.createErr
}

func (m *reportServiceMock) GetStatus(ctx context.Context, id string, actorID string, role models.UserRole) (*dto.ReportStatusResponse, error) {
	return m.statusResp, m.statusErr
}

func (m *reportServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error) {
	return m.download, m.downloadErr
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func withClaims(c *gin.Context, userID string, role models.UserRole) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID, Role: role})
}

func TestReportHandlerExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{
		createResp: &dto.ReportJobResponse{ID: "job-1", Status: models.ReportStatusQueued},
	}
	handler := NewReportHandler(mockSvc)

	payload, _ := json.Marshal(dto.ReportRequest{
		Type:   models.ReportTypeMonthly,
		Class:  "10A",
		Month:  3,
		Year:   2026,
		Format: models.ReportFormatCSV,
	})
	c, w := newGinContext(http.MethodPost, "/reports/export", payload)
	withClaims(c, "teacher-1", models.RoleTeacher)

	handler.Export(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, "teacher-1", mockSvc.createdBy)
	require.Equal(t, "10A", mockSvc.createdReq.Class)

	var envelope struct {
		Data dto.ReportJobResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, "job-1", envelope.Data.ID)
	require.Equal(t, models.ReportStatusQueued, envelope.Data.Status)
}

func TestReportHandlerExportRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{})

	c, w := newGinContext(http.MethodPost, "/reports/export", []byte(`{}`))

	handler.Export(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReportHandlerExportInvalidPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{})

	c, w := newGinContext(http.MethodPost, "/reports/export", []byte(`{"month":"three"}`))
	withClaims(c, "teacher-1", models.RoleTeacher)

	handler.Export(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerJobStatusForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{
		statusErr: appErrors.Clone(appErrors.ErrForbidden, "not your report"),
	}
	handler := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/reports/jobs/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	withClaims(c, "teacher-2", models.RoleTeacher)

	handler.JobStatus(c)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestReportHandlerMonthly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{
		monthlyResp: &dto.MonthlyReportResponse{Class: "10A", Month: 3, Year: 2026},
	}
	handler := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/reports/monthly?class=10A&month=3&year=2026", nil)

	handler.Monthly(c)

	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data dto.MonthlyReportResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, "10A", envelope.Data.Class)
	require.Equal(t, 3, envelope.Data.Month)
}

func TestReportHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, os.WriteFile(path, []byte("student,subject,percentage\n"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	mockSvc := &reportServiceMock{
		download: &service.ReportDownload{
			File:      file,
			Filename:  "attendance_10A_2026-03.csv",
			Format:    models.ReportFormatCSV,
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
	handler := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/export/token-1", nil)
	c.Params = gin.Params{{Key: "token", Value: "token-1"}}

	handler.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	require.Contains(t, w.Header().Get("Content-Disposition"), "attendance_10A_2026-03.csv")
	require.Contains(t, w.Body.String(), "student,subject,percentage")
}

func TestReportHandlerDownloadExpired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{
		downloadErr: appErrors.Clone(appErrors.ErrNotFound, "download link expired"),
	}
	handler := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/export/expired", nil)
	c.Params = gin.Params{{Key: "token", Value: "expired"}}

	handler.Download(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}
