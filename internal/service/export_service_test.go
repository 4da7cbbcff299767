package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-portal-api/internal/models"
	"github.com/noah-isme/attendance-portal-api/pkg/export"
	"github.com/noah-isme/attendance-portal-api/pkg/storage"
)

type recordsStub struct {
	classRecords   []models.AttendanceContext
	studentRecords []models.AttendanceContext
	err            error
}

func (r recordsStub) ClassRecords(ctx context.Context, class, semester string, from, to *time.Time) ([]models.AttendanceContext, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.classRecords, nil
}

func (r recordsStub) StudentRecords(ctx context.Context, studentID, semester string, from, to *time.Time) ([]models.AttendanceContext, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.studentRecords, nil
}

func attendanceCtx(student, subject string, status models.AttendanceStatus) models.AttendanceContext {
	return models.AttendanceContext{
		AttendanceRecord: models.AttendanceRecord{Status: status, Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		Class:            "10A",
		Subject:          subject,
		Semester:         "2026-1",
		StudentName:      student,
	}
}

func newExportServiceForTest(t *testing.T, records recordsStub) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}
	builder := NewReportBuilder(records)
	svc := NewExportService(builder, store, signer, cfg, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	return svc, store
}

func TestExportServiceGenerateMonthlyCSV(t *testing.T) {
	records := recordsStub{classRecords: []models.AttendanceContext{
		attendanceCtx("Alice", "Math", models.AttendanceStatusPresent),
		attendanceCtx("Alice", "Math", models.AttendanceStatusAbsent),
		attendanceCtx("Bob", "Math", models.AttendanceStatusPresent),
	}}
	svc, store := newExportServiceForTest(t, records)
	job := &models.ReportJob{
		ID:        "job-1",
		Type:      models.ReportTypeMonthly,
		Params:    models.ReportJobParams{Class: "10A", Month: 3, Year: 2026, Format: models.ReportFormatCSV},
		CreatedBy: "admin",
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.NotEmpty(t, result.RelativePath)
	require.Contains(t, result.URL, "/export/")

	path := store.Path(result.RelativePath)
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestExportServiceGenerateSemesterPDF(t *testing.T) {
	records := recordsStub{classRecords: []models.AttendanceContext{
		attendanceCtx("Alice", "Math", models.AttendanceStatusPresent),
		attendanceCtx("Alice", "Physics", models.AttendanceStatusAbsent),
	}}
	svc, store := newExportServiceForTest(t, records)
	job := &models.ReportJob{
		ID:        "job-2",
		Type:      models.ReportTypeSemester,
		Params:    models.ReportJobParams{Class: "10A", Semester: "2026-1", Format: models.ReportFormatPDF},
		CreatedBy: "admin",
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, models.ReportFormatPDF, result.Format)

	path := filepath.Clean(store.Path(result.RelativePath))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestExportServiceGenerateStudentCSV(t *testing.T) {
	records := recordsStub{studentRecords: []models.AttendanceContext{
		attendanceCtx("Alice", "Math", models.AttendanceStatusPresent),
	}}
	svc, _ := newExportServiceForTest(t, records)
	job := &models.ReportJob{
		ID:        "job-3",
		Type:      models.ReportTypeStudent,
		Params:    models.ReportJobParams{StudentID: "student-1", Semester: "2026-1", Format: models.ReportFormatCSV},
		CreatedBy: "admin",
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
}
