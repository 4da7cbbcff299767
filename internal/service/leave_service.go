package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-portal-api/internal/models"
	appErrors "github.com/noah-isme/attendance-portal-api/pkg/errors"
)

type leaveRepository interface {
	Create(ctx context.Context, leave *models.LeaveRequest) error
	GetByID(ctx context.Context, id string) (*models.LeaveRequestDetail, error)
	List(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveRequestDetail, error)
	Review(ctx context.Context, id string, status models.LeaveStatus, reviewerID string) (bool, error)
	DeletePending(ctx context.Context, id, studentID string) (bool, error)
}

type leaveEventReader interface {
	GetByID(ctx context.Context, id string) (*models.Event, error)
}

type leaveAttendanceWriter interface {
	MarkApprovedLeave(ctx context.Context, studentID string, from, to time.Time, status models.AttendanceStatus) (int64, error)
}

// LeaveService manages the leave request lifecycle: created pending by a
// student, reviewed exactly once by staff, deletable only while pending.
type LeaveService struct {
	repo       leaveRepository
	events     leaveEventReader
	attendance leaveAttendanceWriter
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewLeaveService constructs the leave service.
func NewLeaveService(repo leaveRepository, events leaveEventReader, attendance leaveAttendanceWriter, validate *validator.Validate, logger *zap.Logger) *LeaveService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &LeaveService{repo: repo, events: events, attendance: attendance, validator: validate, logger: logger}
	svc.validator.RegisterValidation("leave_outcome", func(fl validator.FieldLevel) bool {
		return models.LeaveStatus(strings.ToLower(fl.Field().String())).ReviewOutcome()
	})
	return svc
}

// ApplyLeaveRequest is the payload for a new leave application.
type ApplyLeaveRequest struct {
	FromDate string  `json:"from_date" validate:"required"`
	ToDate   string  `json:"to_date" validate:"required"`
	Reason   string  `json:"reason" validate:"required,min=3"`
	EventID  *string `json:"event_id"`
}

// ReviewLeaveRequest carries the single review decision.
type ReviewLeaveRequest struct {
	Status string `json:"status" validate:"required,leave_outcome"`
}

// Apply creates a pending leave request for the student.
func (s *LeaveService) Apply(ctx context.Context, studentID string, req ApplyLeaveRequest) (*models.LeaveRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	from, err := time.Parse(dateLayout, req.FromDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid from_date, expected YYYY-MM-DD")
	}
	to, err := time.Parse(dateLayout, req.ToDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid to_date, expected YYYY-MM-DD")
	}
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to_date must not precede from_date")
	}
	leave := &models.LeaveRequest{
		StudentID: studentID,
		FromDate:  from,
		ToDate:    to,
		Reason:    req.Reason,
		Status:    models.LeaveStatusPending,
	}
	if req.EventID != nil && *req.EventID != "" {
		if _, err := s.events.GetByID(ctx, *req.EventID); err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify event")
		}
		leave.IsEventLeave = true
		leave.EventID = req.EventID
	}
	if err := s.repo.Create(ctx, leave); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create leave request")
	}
	return leave, nil
}

// List returns leave requests matching the filter.
func (s *LeaveService) List(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveRequestDetail, error) {
	leaves, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list leave requests")
	}
	return leaves, nil
}

// Get returns one leave request.
func (s *LeaveService) Get(ctx context.Context, id string) (*models.LeaveRequestDetail, error) {
	leave, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch leave request")
	}
	return leave, nil
}

// Review applies the one-time decision. Approved and duty-leave outcomes
// also flip any overlapping non-present attendance rows to leave status.
func (s *LeaveService) Review(ctx context.Context, id, reviewerID string, req ReviewLeaveRequest) (*models.LeaveRequestDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	outcome := models.LeaveStatus(strings.ToLower(req.Status))

	leave, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch leave request")
	}
	if leave.Status != models.LeaveStatusPending {
		return nil, appErrors.Clone(appErrors.ErrLeaveReviewed, "leave request already reviewed")
	}

	applied, err := s.repo.Review(ctx, id, outcome, reviewerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review leave request")
	}
	if !applied {
		return nil, appErrors.Clone(appErrors.ErrLeaveReviewed, "leave request already reviewed")
	}

	if outcome == models.LeaveStatusApproved || outcome == models.LeaveStatusDutyLeave {
		status := models.AttendanceStatusOnLeave
		if outcome == models.LeaveStatusDutyLeave {
			status = models.AttendanceStatusDutyLeave
		}
		if _, err := s.attendance.MarkApprovedLeave(ctx, leave.StudentID, leave.FromDate, leave.ToDate, status); err != nil {
			s.logger.Warn("failed to propagate leave to attendance",
				zap.String("leave_id", id), zap.Error(err))
		}
	}

	reviewed, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload leave request")
	}
	return reviewed, nil
}

// Delete removes the student's own request while it is still pending.
func (s *LeaveService) Delete(ctx context.Context, id, studentID string) error {
	deleted, err := s.repo.DeletePending(ctx, id, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete leave request")
	}
	if !deleted {
		leave, err := s.repo.GetByID(ctx, id)
		if err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, "leave request not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch leave request")
		}
		if leave.StudentID != studentID {
			return appErrors.Clone(appErrors.ErrForbidden, "leave request belongs to another student")
		}
		return appErrors.Clone(appErrors.ErrLeaveReviewed, "only pending leave requests can be deleted")
	}
	return nil
}
