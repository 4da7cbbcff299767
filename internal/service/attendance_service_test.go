package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-portal-api/internal/aggregate"
	"github.com/noah-isme/attendance-portal-api/internal/models"
	appErrors "github.com/noah-isme/attendance-portal-api/pkg/errors"
)

type attendanceRepoStub struct {
	upserted       []models.AttendanceRecord
	bulkRecords    []models.AttendanceRecord
	bulkAtomic     bool
	bulkConflicts  []models.AttendanceBulkConflict
	bulkErr        error
	studentRecords []models.AttendanceContext
	presentDates   []time.Time
	presentCount   int
	marked         bool
	markedStatus   map[string]models.AttendanceStatus
}

func (r *attendanceRepoStub) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceContext, int, error) {
	return r.studentRecords, len(r.studentRecords), nil
}

func (r *attendanceRepoStub) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	r.upserted = append(r.upserted, *record)
	stored := *record
	stored.ID = "rec-1"
	return &stored, nil
}

func (r *attendanceRepoStub) BulkInsert(ctx context.Context, records []models.AttendanceRecord, atomic bool) ([]models.AttendanceBulkConflict, error) {
	r.bulkRecords = records
	r.bulkAtomic = atomic
	if r.bulkErr != nil {
		return nil, r.bulkErr
	}
	return r.bulkConflicts, nil
}

func (r *attendanceRepoStub) StudentRecords(ctx context.Context, studentID, semester string, from, to *time.Time) ([]models.AttendanceContext, error) {
	return r.studentRecords, nil
}

func (r *attendanceRepoStub) PresentDates(ctx context.Context, studentID, semester string) ([]time.Time, error) {
	return r.presentDates, nil
}

func (r *attendanceRepoStub) PresentDayCount(ctx context.Context, studentID, semester string) (int, error) {
	return r.presentCount, nil
}

func (r *attendanceRepoStub) MarkedStatus(ctx context.Context, timetableID string, date time.Time, studentIDs []string) (map[string]models.AttendanceStatus, error) {
	if r.markedStatus == nil {
		return map[string]models.AttendanceStatus{}, nil
	}
	return r.markedStatus, nil
}

func (r *attendanceRepoStub) IsMarked(ctx context.Context, timetableID string, date time.Time) (bool, error) {
	return r.marked, nil
}

type timetableReaderStub struct {
	period *models.TimetablePeriodDetail
	err    error
}

func (t timetableReaderStub) GetByID(ctx context.Context, id string) (*models.TimetablePeriodDetail, error) {
	if t.err != nil {
		return nil, t.err
	}
	return t.period, nil
}

type workingDaysReaderStub struct {
	cfg *models.WorkingDaysConfig
	err error
}

func (w workingDaysReaderStub) GetBySemester(ctx context.Context, semester string) (*models.WorkingDaysConfig, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.cfg, nil
}

type leaveReaderStub struct {
	spans []models.LeaveSpan
}

func (l leaveReaderStub) ApprovedSpans(ctx context.Context, studentID string, from, to *time.Time) ([]models.LeaveSpan, error) {
	return l.spans, nil
}

type rosterReaderStub struct {
	students []models.User
}

func (r rosterReaderStub) StudentsByClass(ctx context.Context, class string) ([]models.User, error) {
	return r.students, nil
}

func periodDetail() *models.TimetablePeriodDetail {
	return &models.TimetablePeriodDetail{
		TimetablePeriod: models.TimetablePeriod{
			ID: "tt-1", Class: "10A", Semester: "2026-1", Subject: "Math",
			TeacherID: "teacher-1", DayOfWeek: "Monday", StartTime: "08:00", EndTime: "09:00",
		},
	}
}

func newAttendanceServiceForTest(repo *attendanceRepoStub, timetable timetableReaderStub, working workingDaysReaderStub, leaves leaveReaderStub, roster rosterReaderStub) *AttendanceService {
	return NewAttendanceService(repo, timetable, working, leaves, roster, 75, aggregate.CreditPerRequest, validator.New(), zap.NewNop())
}

func TestAttendanceServiceMarkUpserts(t *testing.T) {
	repo := &attendanceRepoStub{}
	svc := newAttendanceServiceForTest(repo, timetableReaderStub{period: periodDetail()}, workingDaysReaderStub{}, leaveReaderStub{}, rosterReaderStub{})

	record, err := svc.Mark(context.Background(), "teacher-1", MarkAttendanceRequest{
		StudentID: "student-1", TimetableID: "tt-1", Date: "2026-03-02", Status: "Present",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusPresent, record.Status)
	assert.Equal(t, models.CategoryRegularClass, record.Category)
	require.Len(t, repo.upserted, 1)
	assert.Equal(t, "teacher-1", repo.upserted[0].MarkedBy)
}

func TestAttendanceServiceMarkUnknownPeriod(t *testing.T) {
	repo := &attendanceRepoStub{}
	svc := newAttendanceServiceForTest(repo, timetableReaderStub{err: sql.ErrNoRows}, workingDaysReaderStub{}, leaveReaderStub{}, rosterReaderStub{})

	_, err := svc.Mark(context.Background(), "teacher-1", MarkAttendanceRequest{
		StudentID: "student-1", TimetableID: "missing", Date: "2026-03-02", Status: "present",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestAttendanceServiceMarkRejectsBadStatus(t *testing.T) {
	repo := &attendanceRepoStub{}
	svc := newAttendanceServiceForTest(repo, timetableReaderStub{period: periodDetail()}, workingDaysReaderStub{}, leaveReaderStub{}, rosterReaderStub{})

	_, err := svc.Mark(context.Background(), "teacher-1", MarkAttendanceRequest{
		StudentID: "student-1", TimetableID: "tt-1", Date: "2026-03-02", Status: "sleeping",
	})
	require.Error(t, err)
	assert.Empty(t, repo.upserted)
}

func TestAttendanceServiceBulkMarkPartial(t *testing.T) {
	repo := &attendanceRepoStub{bulkConflicts: []models.AttendanceBulkConflict{{StudentID: "student-2", Reason: "already marked"}}}
	svc := newAttendanceServiceForTest(repo, timetableReaderStub{period: periodDetail()}, workingDaysReaderStub{}, leaveReaderStub{}, rosterReaderStub{})

	result, err := svc.BulkMark(context.Background(), "teacher-1", BulkMarkAttendanceRequest{
		TimetableID: "tt-1", Date: "2026-03-02", Mode: "partialOnError",
		Items: []BulkAttendanceItem{
			{StudentID: "student-1", Status: "present"},
			{StudentID: "student-2", Status: "absent"},
		},
	})
	require.NoError(t, err)
	assert.False(t, repo.bulkAtomic)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Success)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "student-2", result.Conflicts[0].StudentID)
}

func TestAttendanceServiceBulkMarkDuplicateStudent(t *testing.T) {
	repo := &attendanceRepoStub{}
	svc := newAttendanceServiceForTest(repo, timetableReaderStub{period: periodDetail()}, workingDaysReaderStub{}, leaveReaderStub{}, rosterReaderStub{})

	_, err := svc.BulkMark(context.Background(), "teacher-1", BulkMarkAttendanceRequest{
		TimetableID: "tt-1", Date: "2026-03-02", Mode: "atomic",
		Items: []BulkAttendanceItem{
			{StudentID: "student-1", Status: "present"},
			{StudentID: "student-1", Status: "absent"},
		},
	})
	require.Error(t, err)
	assert.Nil(t, repo.bulkRecords)
}

func TestAttendanceServiceClassRosterPercentages(t *testing.T) {
	repo := &attendanceRepoStub{
		presentCount: 10,
		markedStatus: map[string]models.AttendanceStatus{"student-1": models.AttendanceStatusPresent},
	}
	cfg := &models.WorkingDaysConfig{Semester: "2026-1", TotalWorkingDays: 20, TotalSessions: 120}
	leaves := leaveReaderStub{spans: []models.LeaveSpan{{
		From: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
	}}}
	roster := rosterReaderStub{students: []models.User{
		{ID: "student-1", FullName: "Alice", Email: "alice@example.com"},
		{ID: "student-2", FullName: "Bob", Email: "bob@example.com"},
	}}
	svc := newAttendanceServiceForTest(repo, timetableReaderStub{period: periodDetail()}, workingDaysReaderStub{cfg: cfg}, leaves, roster)

	result, err := svc.ClassRoster(context.Background(), "tt-1", "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, "10A", result.Class)
	assert.True(t, result.AlreadyMarked)
	require.Len(t, result.Students, 2)
	// 10 present + 1 leave request credited, over 20 days
	assert.Equal(t, 55, result.Students[0].Percentage)
	require.NotNil(t, result.Students[0].ExistingStatus)
	assert.Equal(t, models.AttendanceStatusPresent, *result.Students[0].ExistingStatus)
	assert.Nil(t, result.Students[1].ExistingStatus)
}

func TestAttendanceServiceClassRosterConfigMissing(t *testing.T) {
	repo := &attendanceRepoStub{}
	svc := newAttendanceServiceForTest(repo, timetableReaderStub{period: periodDetail()}, workingDaysReaderStub{err: sql.ErrNoRows}, leaveReaderStub{}, rosterReaderStub{})

	_, err := svc.ClassRoster(context.Background(), "tt-1", "2026-03-02")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConfigurationMissing.Code, appErr.Code)
}

func TestAttendanceServiceStudentSummaryUsesConfiguredDenominator(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }
	rows := []models.AttendanceContext{
		{AttendanceRecord: models.AttendanceRecord{Status: models.AttendanceStatusPresent, Date: day(2)}, Class: "10A", Subject: "Math", Semester: "2026-1"},
		{AttendanceRecord: models.AttendanceRecord{Status: models.AttendanceStatusAbsent, Date: day(3)}, Class: "10A", Subject: "Math", Semester: "2026-1"},
	}
	override := 80
	cfg := &models.WorkingDaysConfig{Semester: "2026-1", TotalWorkingDays: 4, RequiredPercentage: &override}
	repo := &attendanceRepoStub{studentRecords: rows}
	svc := newAttendanceServiceForTest(repo, timetableReaderStub{}, workingDaysReaderStub{cfg: cfg}, leaveReaderStub{}, rosterReaderStub{})

	summary, err := svc.StudentSummary(context.Background(), "student-1", "2026-1")
	require.NoError(t, err)
	assert.Equal(t, 25, summary.OverallPercentage)
	assert.Equal(t, 80, summary.RequiredPercentage)
	assert.NotEmpty(t, summary.Daily)
	assert.NotEmpty(t, summary.Monthly)
}

func TestAttendanceServiceStudentSummaryNoRecords(t *testing.T) {
	repo := &attendanceRepoStub{}
	svc := newAttendanceServiceForTest(repo, timetableReaderStub{}, workingDaysReaderStub{err: sql.ErrNoRows}, leaveReaderStub{}, rosterReaderStub{})

	summary, err := svc.StudentSummary(context.Background(), "student-1", "")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.OverallPercentage)
	assert.Equal(t, aggregate.StandingNoRecords, summary.Status)
	assert.Empty(t, summary.Daily)
}

func TestAttendanceServiceStudentSummaryConfigMissing(t *testing.T) {
	repo := &attendanceRepoStub{}
	svc := newAttendanceServiceForTest(repo, timetableReaderStub{}, workingDaysReaderStub{err: sql.ErrNoRows}, leaveReaderStub{}, rosterReaderStub{})

	_, err := svc.StudentSummary(context.Background(), "student-1", "2026-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConfigurationMissing.Code, appErr.Code)
}

func TestAttendanceServiceRequiredPercentageFallback(t *testing.T) {
	repo := &attendanceRepoStub{}
	svc := newAttendanceServiceForTest(repo, timetableReaderStub{}, workingDaysReaderStub{err: sql.ErrNoRows}, leaveReaderStub{}, rosterReaderStub{})
	assert.Equal(t, 75, svc.RequiredPercentage(context.Background(), ""))
	assert.Equal(t, 75, svc.RequiredPercentage(context.Background(), "2026-1"))
}
