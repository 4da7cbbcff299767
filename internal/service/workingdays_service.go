package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-portal-api/internal/models"
	"github.com/noah-isme/attendance-portal-api/internal/repository"
	appErrors "github.com/noah-isme/attendance-portal-api/pkg/errors"
)

type workingDaysRepository interface {
	Create(ctx context.Context, cfg *models.WorkingDaysConfig) error
	GetBySemester(ctx context.Context, semester string) (*models.WorkingDaysConfig, error)
	List(ctx context.Context) ([]models.WorkingDaysConfigDetail, error)
	UpdateSessions(ctx context.Context, semester string, totalSessions int) (bool, error)
}

type periodCounter interface {
	SemesterPeriodCount(ctx context.Context, semester string) (int, error)
}

// WorkingDaysService manages the per-semester attendance denominator.
type WorkingDaysService struct {
	repo      workingDaysRepository
	timetable periodCounter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewWorkingDaysService constructs the working days service.
func NewWorkingDaysService(repo workingDaysRepository, timetable periodCounter, validate *validator.Validate, logger *zap.Logger) *WorkingDaysService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkingDaysService{repo: repo, timetable: timetable, validator: validate, logger: logger}
}

// SetWorkingDaysRequest is the payload for configuring a semester.
type SetWorkingDaysRequest struct {
	Semester           string `json:"semester" validate:"required"`
	TotalWorkingDays   int    `json:"total_working_days" validate:"required,min=1,max=200"`
	RequiredPercentage *int   `json:"required_percentage" validate:"omitempty,min=1,max=100"`
}

// UpdateSessionsRequest replaces the derived session total explicitly.
type UpdateSessionsRequest struct {
	TotalSessions int `json:"total_sessions" validate:"required,min=1"`
}

/// Set configures a semester once. Total sessions derive from the timetable:
// scheduled periods per week times the number of whole-or-partial weeks in
// the configured working days. A semester with no scheduled periods cannot
// be configured.
func (s *WorkingDaysService) Set(ctx context.Context, createdBy string, req SetWorkingDaysRequest) (*models.WorkingDaysConfig, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	periodsPerWeek, err := s.timetable.SemesterPeriodCount(ctx, req.Semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count scheduled periods")
	}
	if periodsPerWeek == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no timetable periods scheduled for %s", req.Semester))
	}
	weeks := (req.TotalWorkingDays + 4) / 5
	cfg := &models.WorkingDaysConfig{
		Semester:           req.Semester,
		TotalWorkingDays:   req.TotalWorkingDays,
		TotalSessions:      periodsPerWeek * weeks,
		RequiredPercentage: req.RequiredPercentage,
		CreatedBy:          createdBy,
	}
	if err := s.repo.Create(ctx, cfg); err != nil {
		if errors.Is(err, repository.ErrSemesterConfigured) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("semester %s already configured", req.Semester))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save working days")
	}
	return cfg, nil
}

// Get returns the configuration for one semester or ConfigurationMissing.
func (s *WorkingDaysService) Get(ctx context.Context, semester string) (*models.WorkingDaysConfig, error) {
	cfg, err := s.repo.GetBySemester(ctx, semester)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrConfigurationMissing, fmt.Sprintf("no working days configured for %s", semester))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load working days")
	}
	return cfg, nil
}

// List returns every configured semester with creator details.
func (s *WorkingDaysService) List(ctx context.Context) ([]models.WorkingDaysConfigDetail, error) {
	configs, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list working days")
	}
	return configs, nil
}

// UpdateSessions explicitly replaces the session total for a semester.
func (s *WorkingDaysService) UpdateSessions(ctx context.Context, semester string, req UpdateSessionsRequest) (*models.WorkingDaysConfig, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	updated, err := s.repo.UpdateSessions(ctx, semester, req.TotalSessions)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update total sessions")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrConfigurationMissing, fmt.Sprintf("no working days configured for %s", semester))
	}
	return s.Get(ctx, semester)
}
