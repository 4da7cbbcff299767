package service

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-portal-api/internal/dto"
	"github.com/noah-isme/attendance-portal-api/internal/models"
	"github.com/noah-isme/attendance-portal-api/internal/repository"
	"github.com/noah-isme/attendance-portal-api/pkg/jobs"
)

type reportRepoStub struct {
	jobs map[string]*models.ReportJob
}

func newReportRepoStub() *reportRepoStub {
	return &reportRepoStub{jobs: map[string]*models.ReportJob{}}
}

func (r *reportRepoStub) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *reportRepoStub) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (r *reportRepoStub) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	job, ok := r.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (r *reportRepoStub) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	var queued []models.ReportJob
	for _, job := range r.jobs {
		if job.Status == models.ReportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (r *reportRepoStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	return nil, nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func newReportServiceForTest(t *testing.T, records recordsStub) (*ReportService, *reportRepoStub, *queueStub, *ExportService) {
	t.Helper()
	repo := newReportRepoStub()
	queue := &queueStub{}
	exportSvc, _ := newExportServiceForTest(t, records)
	builder := NewReportBuilder(records)
	service := NewReportService(repo, builder, queue, exportSvc, zap.NewNop(), ReportServiceConfig{
		ResultTTL:       time.Hour,
		CleanupInterval: time.Hour,
		MaxRetries:      3,
	})
	return service, repo, queue, exportSvc
}

func TestReportServiceMonthlyReport(t *testing.T) {
	records := recordsStub{classRecords: []models.AttendanceContext{
		attendanceCtx("Alice", "Math", models.AttendanceStatusPresent),
		attendanceCtx("Alice", "Math", models.AttendanceStatusAbsent),
	}}
	svc, _, _, _ := newReportServiceForTest(t, records)

	resp, err := svc.MonthlyReport(context.Background(), "10A", 3, 2026)
	require.NoError(t, err)
	assert.False(t, resp.NoData)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, "Alice", resp.Rows[0].StudentName)
	assert.Equal(t, 1, resp.Rows[0].PresentDays)
	assert.Equal(t, 2, resp.Rows[0].TotalDays)
	assert.Equal(t, 50, resp.Rows[0].Percentage)
}

func TestReportServiceMonthlyReportNoData(t *testing.T) {
	svc, _, _, _ := newReportServiceForTest(t, recordsStub{})
	resp, err := svc.MonthlyReport(context.Background(), "10A", 3, 2026)
	require.NoError(t, err)
	assert.True(t, resp.NoData)
	assert.Empty(t, resp.Rows)
}

func TestReportServiceSemesterReportConsolidates(t *testing.T) {
	records := recordsStub{classRecords: []models.AttendanceContext{
		attendanceCtx("Alice", "Math", models.AttendanceStatusPresent),
		attendanceCtx("Alice", "Physics", models.AttendanceStatusAbsent),
		attendanceCtx("Alice", "Physics", models.AttendanceStatusAbsent),
		attendanceCtx("Alice", "Physics", models.AttendanceStatusAbsent),
	}}
	svc, _, _, _ := newReportServiceForTest(t, records)

	resp, err := svc.SemesterReport(context.Background(), "10A", "2026-1")
	require.NoError(t, err)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, 1, resp.Rows[0].PresentDays)
	assert.Equal(t, 4, resp.Rows[0].TotalDays)
	assert.Equal(t, 25, resp.Rows[0].Percentage)
}

func TestReportServiceCreateJob(t *testing.T) {
	svc, repo, queue, _ := newReportServiceForTest(t, recordsStub{})
	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeMonthly,
		Class:  "10A",
		Month:  3,
		Year:   2026,
		Format: models.ReportFormatCSV,
	}, "admin")
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	assert.Contains(t, repo.jobs, resp.ID)
}

func TestReportServiceCreateJobValidation(t *testing.T) {
	svc, _, _, _ := newReportServiceForTest(t, recordsStub{})

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeMonthly,
		Class:  "10A",
		Month:  13,
		Year:   2026,
		Format: models.ReportFormatCSV,
	}, "admin")
	require.Error(t, err)

	_, err = svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeStudent,
		Format: models.ReportFormatPDF,
	}, "admin")
	require.Error(t, err)
}

func TestReportServiceGetStatusOwnership(t *testing.T) {
	svc, repo, _, _ := newReportServiceForTest(t, recordsStub{})
	job := &models.ReportJob{
		ID:        "job-1",
		Type:      models.ReportTypeMonthly,
		Params:    models.ReportJobParams{Class: "10A", Month: 3, Year: 2026, Format: models.ReportFormatCSV},
		Status:    models.ReportStatusFinished,
		Progress:  100,
		CreatedBy: "teacher-1",
	}
	repo.jobs[job.ID] = job

	resp, err := svc.GetStatus(context.Background(), job.ID, "teacher-1", models.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, job.Status, resp.Status)
	assert.Equal(t, job.Progress, resp.Progress)

	_, err = svc.GetStatus(context.Background(), job.ID, "teacher-2", models.RoleTeacher)
	require.Error(t, err)

	_, err = svc.GetStatus(context.Background(), job.ID, "admin", models.RoleAdmin)
	require.NoError(t, err)
}

func TestReportServiceResolveDownload(t *testing.T) {
	records := recordsStub{classRecords: []models.AttendanceContext{
		attendanceCtx("Alice", "Math", models.AttendanceStatusPresent),
	}}
	svc, repo, _, exportSvc := newReportServiceForTest(t, records)
	job := &models.ReportJob{
		ID:        "job-download",
		Type:      models.ReportTypeMonthly,
		Params:    models.ReportJobParams{Class: "10A", Month: 3, Year: 2026, Format: models.ReportFormatCSV},
		Status:    models.ReportStatusFinished,
		Progress:  100,
		CreatedBy: "admin",
	}
	repo.jobs[job.ID] = job
	result, err := exportSvc.Generate(context.Background(), job)
	require.NoError(t, err)
	job.ResultURL = &result.URL
	now := time.Now()
	job.FinishedAt = &now

	download, err := svc.ResolveDownload(context.Background(), result.Token)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(result.RelativePath), download.Filename)
	download.File.Close()
}

type exportStub struct {
	result *ExportResult
	err    error
}

func (e exportStub) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func TestReportWorkerHandleSuccess(t *testing.T) {
	repo := &reportRepoStub{
		jobs: map[string]*models.ReportJob{
			"job-1": {
				ID:        "job-1",
				Type:      models.ReportTypeMonthly,
				Params:    models.ReportJobParams{Class: "10A", Month: 3, Year: 2026, Format: models.ReportFormatCSV},
				Status:    models.ReportStatusQueued,
				CreatedBy: "admin",
			},
		},
	}
	exporter := exportStub{result: &ExportResult{URL: "/api/v1/export/token"}}
	worker := NewReportWorker(repo, exporter, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1"})
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusFinished, repo.jobs["job-1"].Status)
	require.Equal(t, 100, repo.jobs["job-1"].Progress)
}

func TestReportWorkerHandleFailureRetries(t *testing.T) {
	repo := &reportRepoStub{
		jobs: map[string]*models.ReportJob{
			"job-1": {
				ID:        "job-1",
				Type:      models.ReportTypeMonthly,
				Params:    models.ReportJobParams{Class: "10A", Month: 3, Year: 2026, Format: models.ReportFormatCSV},
				Status:    models.ReportStatusQueued,
				CreatedBy: "admin",
			},
		},
	}
	exporter := exportStub{err: errors.New("boom")}
	worker := NewReportWorker(repo, exporter, 2, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 2})
	require.Error(t, err)
	require.Equal(t, models.ReportStatusFailed, repo.jobs["job-1"].Status)
}
