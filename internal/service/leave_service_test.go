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

	"github.com/noah-isme/attendance-portal-api/internal/models"
	appErrors "github.com/noah-isme/attendance-portal-api/pkg/errors"
)

type leaveRepoStub struct {
	leaves        map[string]*models.LeaveRequestDetail
	created       []*models.LeaveRequest
	reviewApplied bool
	reviewErr     error
	deleted       bool
}

func (r *leaveRepoStub) Create(ctx context.Context, leave *models.LeaveRequest) error {
	leave.ID = "leave-1"
	r.created = append(r.created, leave)
	return nil
}

func (r *leaveRepoStub) GetByID(ctx context.Context, id string) (*models.LeaveRequestDetail, error) {
	leave, ok := r.leaves[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *leave
	return &copy, nil
}

func (r *leaveRepoStub) List(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveRequestDetail, error) {
	var out []models.LeaveRequestDetail
	for _, leave := range r.leaves {
		out = append(out, *leave)
	}
	return out, nil
}

func (r *leaveRepoStub) Review(ctx context.Context, id string, status models.LeaveStatus, reviewerID string) (bool, error) {
	if r.reviewErr != nil {
		return false, r.reviewErr
	}
	if !r.reviewApplied {
		return false, nil
	}
	if leave, ok := r.leaves[id]; ok {
		leave.Status = status
		leave.ReviewedBy = &reviewerID
	}
	return true, nil
}

func (r *leaveRepoStub) DeletePending(ctx context.Context, id, studentID string) (bool, error) {
	if leave, ok := r.leaves[id]; ok && leave.StudentID == studentID && leave.Status == models.LeaveStatusPending {
		delete(r.leaves, id)
		r.deleted = true
		return true, nil
	}
	return false, nil
}

type eventReaderStub struct {
	events map[string]*models.Event
}

func (e eventReaderStub) GetByID(ctx context.Context, id string) (*models.Event, error) {
	event, ok := e.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return event, nil
}

type leaveAttendanceStub struct {
	calls  int
	status models.AttendanceStatus
	from   time.Time
	to     time.Time
}

func (a *leaveAttendanceStub) MarkApprovedLeave(ctx context.Context, studentID string, from, to time.Time, status models.AttendanceStatus) (int64, error) {
	a.calls++
	a.status = status
	a.from = from
	a.to = to
	return 2, nil
}

func pendingLeave(id, studentID string) *models.LeaveRequestDetail {
	return &models.LeaveRequestDetail{
		LeaveRequest: models.LeaveRequest{
			ID:        id,
			StudentID: studentID,
			FromDate:  time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
			ToDate:    time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
			Reason:    "family event",
			Status:    models.LeaveStatusPending,
			AppliedAt: time.Now().UTC(),
		},
		StudentName: "Alice",
	}
}

func newLeaveServiceForTest(repo *leaveRepoStub, events eventReaderStub, attendance *leaveAttendanceStub) *LeaveService {
	return NewLeaveService(repo, events, attendance, validator.New(), zap.NewNop())
}

func TestLeaveServiceApply(t *testing.T) {
	repo := &leaveRepoStub{leaves: map[string]*models.LeaveRequestDetail{}}
	svc := newLeaveServiceForTest(repo, eventReaderStub{}, &leaveAttendanceStub{})

	leave, err := svc.Apply(context.Background(), "student-1", ApplyLeaveRequest{
		FromDate: "2026-03-02", ToDate: "2026-03-04", Reason: "family event",
	})
	require.NoError(t, err)
	assert.Equal(t, models.LeaveStatusPending, leave.Status)
	assert.False(t, leave.IsEventLeave)
	require.Len(t, repo.created, 1)
}

func TestLeaveServiceApplyRejectsReversedDates(t *testing.T) {
	repo := &leaveRepoStub{leaves: map[string]*models.LeaveRequestDetail{}}
	svc := newLeaveServiceForTest(repo, eventReaderStub{}, &leaveAttendanceStub{})

	_, err := svc.Apply(context.Background(), "student-1", ApplyLeaveRequest{
		FromDate: "2026-03-04", ToDate: "2026-03-02", Reason: "family event",
	})
	require.Error(t, err)
	assert.Empty(t, repo.created)
}

func TestLeaveServiceApplyEventLeave(t *testing.T) {
	repo := &leaveRepoStub{leaves: map[string]*models.LeaveRequestDetail{}}
	events := eventReaderStub{events: map[string]*models.Event{"event-1": {ID: "event-1", Title: "Science Fair"}}}
	svc := newLeaveServiceForTest(repo, events, &leaveAttendanceStub{})

	eventID := "event-1"
	leave, err := svc.Apply(context.Background(), "student-1", ApplyLeaveRequest{
		FromDate: "2026-03-02", ToDate: "2026-03-02", Reason: "representing school", EventID: &eventID,
	})
	require.NoError(t, err)
	assert.True(t, leave.IsEventLeave)

	missing := "event-404"
	_, err = svc.Apply(context.Background(), "student-1", ApplyLeaveRequest{
		FromDate: "2026-03-02", ToDate: "2026-03-02", Reason: "representing school", EventID: &missing,
	})
	require.Error(t, err)
}

func TestLeaveServiceReviewApprovedPropagates(t *testing.T) {
	repo := &leaveRepoStub{leaves: map[string]*models.LeaveRequestDetail{"leave-1": pendingLeave("leave-1", "student-1")}, reviewApplied: true}
	attendance := &leaveAttendanceStub{}
	svc := newLeaveServiceForTest(repo, eventReaderStub{}, attendance)

	reviewed, err := svc.Review(context.Background(), "leave-1", "teacher-1", ReviewLeaveRequest{Status: "approved"})
	require.NoError(t, err)
	assert.Equal(t, models.LeaveStatusApproved, reviewed.Status)
	assert.Equal(t, 1, attendance.calls)
	assert.Equal(t, models.AttendanceStatusOnLeave, attendance.status)
}

func TestLeaveServiceReviewDutyLeaveStatus(t *testing.T) {
	repo := &leaveRepoStub{leaves: map[string]*models.LeaveRequestDetail{"leave-1": pendingLeave("leave-1", "student-1")}, reviewApplied: true}
	attendance := &leaveAttendanceStub{}
	svc := newLeaveServiceForTest(repo, eventReaderStub{}, attendance)

	_, err := svc.Review(context.Background(), "leave-1", "teacher-1", ReviewLeaveRequest{Status: "duty_leave"})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusDutyLeave, attendance.status)
}

func TestLeaveServiceReviewDeniedSkipsPropagation(t *testing.T) {
	repo := &leaveRepoStub{leaves: map[string]*models.LeaveRequestDetail{"leave-1": pendingLeave("leave-1", "student-1")}, reviewApplied: true}
	attendance := &leaveAttendanceStub{}
	svc := newLeaveServiceForTest(repo, eventReaderStub{}, attendance)

	_, err := svc.Review(context.Background(), "leave-1", "teacher-1", ReviewLeaveRequest{Status: "denied"})
	require.NoError(t, err)
	assert.Equal(t, 0, attendance.calls)
}

func TestLeaveServiceReviewOnlyOnce(t *testing.T) {
	leave := pendingLeave("leave-1", "student-1")
	leave.Status = models.LeaveStatusApproved
	repo := &leaveRepoStub{leaves: map[string]*models.LeaveRequestDetail{"leave-1": leave}}
	svc := newLeaveServiceForTest(repo, eventReaderStub{}, &leaveAttendanceStub{})

	_, err := svc.Review(context.Background(), "leave-1", "teacher-1", ReviewLeaveRequest{Status: "denied"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrLeaveReviewed.Code, appErr.Code)
}

func TestLeaveServiceReviewLostRace(t *testing.T) {
	// Pending on read, but another reviewer wins the conditional update.
	repo := &leaveRepoStub{leaves: map[string]*models.LeaveRequestDetail{"leave-1": pendingLeave("leave-1", "student-1")}, reviewApplied: false}
	svc := newLeaveServiceForTest(repo, eventReaderStub{}, &leaveAttendanceStub{})

	_, err := svc.Review(context.Background(), "leave-1", "teacher-1", ReviewLeaveRequest{Status: "approved"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrLeaveReviewed.Code, appErr.Code)
}

func TestLeaveServiceReviewRejectsPendingOutcome(t *testing.T) {
	repo := &leaveRepoStub{leaves: map[string]*models.LeaveRequestDetail{"leave-1": pendingLeave("leave-1", "student-1")}, reviewApplied: true}
	svc := newLeaveServiceForTest(repo, eventReaderStub{}, &leaveAttendanceStub{})

	_, err := svc.Review(context.Background(), "leave-1", "teacher-1", ReviewLeaveRequest{Status: "pending"})
	require.Error(t, err)
}

func TestLeaveServiceDeleteGuards(t *testing.T) {
	repo := &leaveRepoStub{leaves: map[string]*models.LeaveRequestDetail{"leave-1": pendingLeave("leave-1", "student-1")}}
	svc := newLeaveServiceForTest(repo, eventReaderStub{}, &leaveAttendanceStub{})

	err := svc.Delete(context.Background(), "leave-1", "student-2")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	err = svc.Delete(context.Background(), "leave-404", "student-1")
	require.Error(t, err)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)

	err = svc.Delete(context.Background(), "leave-1", "student-1")
	require.NoError(t, err)
	assert.True(t, repo.deleted)
}

func TestLeaveServiceDeleteReviewedRejected(t *testing.T) {
	leave := pendingLeave("leave-1", "student-1")
	leave.Status = models.LeaveStatusDenied
	repo := &leaveRepoStub{leaves: map[string]*models.LeaveRequestDetail{"leave-1": leave}}
	svc := newLeaveServiceForTest(repo, eventReaderStub{}, &leaveAttendanceStub{})

	err := svc.Delete(context.Background(), "leave-1", "student-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrLeaveReviewed.Code, appErr.Code)
}
