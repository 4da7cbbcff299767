package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-portal-api/internal/aggregate"
	"github.com/noah-isme/attendance-portal-api/internal/models"
	appErrors "github.com/noah-isme/attendance-portal-api/pkg/errors"
)

type attendanceRepository interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceContext, int, error)
	Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
	BulkInsert(ctx context.Context, records []models.AttendanceRecord, atomic bool) ([]models.AttendanceBulkConflict, error)
	StudentRecords(ctx context.Context, studentID string, semester string, from, to *time.Time) ([]models.AttendanceContext, error)
	PresentDates(ctx context.Context, studentID, semester string) ([]time.Time, error)
	PresentDayCount(ctx context.Context, studentID, semester string) (int, error)
	MarkedStatus(ctx context.Context, timetableID string, date time.Time, studentIDs []string) (map[string]models.AttendanceStatus, error)
	IsMarked(ctx context.Context, timetableID string, date time.Time) (bool, error)
}

type timetablePeriodReader interface {
	GetByID(ctx context.Context, id string) (*models.TimetablePeriodDetail, error)
}

type workingDaysReader interface {
	GetBySemester(ctx context.Context, semester string) (*models.WorkingDaysConfig, error)
}

type approvedLeaveReader interface {
	ApprovedSpans(ctx context.Context, studentID string, from, to *time.Time) ([]models.LeaveSpan, error)
}

type classRosterReader interface {
	StudentsByClass(ctx context.Context, class string) ([]models.User, error)
}

// AttendanceService coordinates attendance marking and the per-student
// summary flows.
type AttendanceService struct {
	repo        attendanceRepository
	timetable   timetablePeriodReader
	workingDays workingDaysReader
	leaves      approvedLeaveReader
	students    classRosterReader
	requiredPct int
	creditMode  aggregate.CreditMode
	cache       *CacheService
	cacheTTL    time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs the attendance service. requiredPct is the
// application default eligibility threshold; a semester config override wins
// when present.
func NewAttendanceService(
	repo attendanceRepository,
	timetable timetablePeriodReader,
	workingDays workingDaysReader,
	leaves approvedLeaveReader,
	students classRosterReader,
	requiredPct int,
	creditMode aggregate.CreditMode,
	validate *validator.Validate,
	logger *zap.Logger,
) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AttendanceService{
		repo:        repo,
		timetable:   timetable,
		workingDays: workingDays,
		leaves:      leaves,
		students:    students,
		requiredPct: requiredPct,
		creditMode:  creditMode,
		validator:   validate,
		logger:      logger,
	}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(strings.ToLower(fl.Field().String())).Valid()
	})
	svc.validator.RegisterValidation("attendance_category", func(fl validator.FieldLevel) bool {
		if fl.Field().String() == "" {
			return true
		}
		return models.AttendanceCategory(strings.ToLower(fl.Field().String())).Valid()
	})
	svc.validator.RegisterValidation("bulk_mode", func(fl validator.FieldLevel) bool {
		mode := models.BulkOperationMode(fl.Field().String())
		return mode == models.BulkModeAtomic || mode == models.BulkModePartialOnError
	})
	return svc
}

// UseCache enables student summary caching. Marking attendance invalidates
// the affected student's cached summaries.
func (s *AttendanceService) UseCache(cache *CacheService, ttl time.Duration) {
	s.cache = cache
	s.cacheTTL = ttl
}

func (s *AttendanceService) invalidateSummaries(ctx context.Context, studentIDs ...string) {
	if s.cache == nil || !s.cache.Enabled() {
		return
	}
	for _, id := range studentIDs {
		if err := s.cache.Invalidate(ctx, fmt.Sprintf("attendance:summary:%s:*", id)); err != nil {
			s.logger.Warn("summary cache invalidation failed", zap.String("student_id", id), zap.Error(err))
		}
	}
}

// AttendanceListRequest filters attendance listings.
type AttendanceListRequest struct {
	StudentID   string     `json:"student_id"`
	TimetableID string     `json:"timetable_id"`
	Class       string     `json:"class"`
	Semester    string     `json:"semester"`
	Subject     string     `json:"subject"`
	Status      *string    `json:"status" validate:"omitempty,attendance_status"`
	DateFrom    *time.Time `json:"date_from"`
	DateTo      *time.Time `json:"date_to"`
	Page        int        `json:"page"`
	PageSize    int        `json:"page_size"`
	SortBy      string     `json:"sort_by"`
	SortOrder   string     `json:"sort_order"`
}

// MarkAttendanceRequest is the payload for marking one student in a period.
type MarkAttendanceRequest struct {
	StudentID   string `json:"student_id" validate:"required"`
	TimetableID string `json:"timetable_id" validate:"required"`
	Date        string `json:"date" validate:"required"`
	Status      string `json:"status" validate:"required,attendance_status"`
	Reason      string `json:"reason"`
	Category    string `json:"category" validate:"attendance_category"`
}

// BulkAttendanceItem is one student entry in a bulk mark payload.
type BulkAttendanceItem struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required,attendance_status"`
	Reason    string `json:"reason"`
}

// BulkMarkAttendanceRequest marks a whole class for one period and date.
type BulkMarkAttendanceRequest struct {
	TimetableID string               `json:"timetable_id" validate:"required"`
	Date        string               `json:"date" validate:"required"`
	Mode        string               `json:"mode" validate:"required,bulk_mode"`
	Category    string               `json:"category" validate:"attendance_category"`
	Items       []BulkAttendanceItem `json:"items" validate:"required,min=1,dive"`
}

// BulkAttendanceResult summarises bulk execution.
type BulkAttendanceResult struct {
	Processed int                             `json:"processed"`
	Success   int                             `json:"success"`
	Conflicts []models.AttendanceBulkConflict `json:"conflicts,omitempty"`
}

// StudentAttendanceSummary is the full per-student aggregation payload.
type StudentAttendanceSummary struct {
	StudentID          string                    `json:"student_id"`
	Semester           string                    `json:"semester,omitempty"`
	OverallPercentage  int                       `json:"overall_percentage"`
	RequiredPercentage int                       `json:"required_percentage"`
	Status             aggregate.Standing        `json:"status"`
	Daily              []aggregate.DailyEntry    `json:"daily"`
	Monthly            []aggregate.MonthlyEntry  `json:"monthly"`
	Semesters          []aggregate.SemesterEntry `json:"semester"`
}

const dateLayout = "2006-01-02"

// List returns attendance rows with their timetable context.
func (s *AttendanceService) List(ctx context.Context, req AttendanceListRequest) ([]models.AttendanceContext, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filter")
	}
	var status *models.AttendanceStatus
	if req.Status != nil {
		st := models.AttendanceStatus(strings.ToLower(*req.Status))
		status = &st
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 {
		size = 50
	}
	filter := models.AttendanceFilter{
		StudentID:   req.StudentID,
		TimetableID: req.TimetableID,
		Class:       req.Class,
		Semester:    req.Semester,
		Subject:     req.Subject,
		Status:      status,
		DateFrom:    req.DateFrom,
		DateTo:      req.DateTo,
		Page:        page,
		PageSize:    size,
		SortBy:      req.SortBy,
		SortOrder:   req.SortOrder,
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return rows, pagination, nil
}

// Mark records one student's attendance for a period. Marking the same
// (student, period, date) again replaces the stored status.
func (s *AttendanceService) Mark(ctx context.Context, markedBy string, req MarkAttendanceRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	if _, err := s.timetable.GetByID(ctx, req.TimetableID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify timetable period")
	}
	category := models.AttendanceCategory(strings.ToLower(req.Category))
	if req.Category == "" {
		category = models.CategoryRegularClass
	}
	record := &models.AttendanceRecord{
		StudentID:   req.StudentID,
		TimetableID: req.TimetableID,
		Date:        date,
		Status:      models.AttendanceStatus(strings.ToLower(req.Status)),
		Reason:      req.Reason,
		MarkedBy:    markedBy,
		Category:    category,
	}
	stored, err := s.repo.Upsert(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}
	s.invalidateSummaries(ctx, req.StudentID)
	return stored, nil
}

// BulkMark records attendance for many students of one period and date.
// Rows already marked are reported as conflicts in partial mode; atomic
// mode rejects the whole batch on the first conflict.
func (s *AttendanceService) BulkMark(ctx context.Context, markedBy string, req BulkMarkAttendanceRequest) (*BulkAttendanceResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	if _, err := s.timetable.GetByID(ctx, req.TimetableID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify timetable period")
	}
	category := models.AttendanceCategory(strings.ToLower(req.Category))
	if req.Category == "" {
		category = models.CategoryRegularClass
	}
	mode := models.BulkOperationMode(req.Mode)
	seen := map[string]struct{}{}
	records := make([]models.AttendanceRecord, len(req.Items))
	for i, item := range req.Items {
		if _, ok := seen[item.StudentID]; ok {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("duplicate student %s in payload", item.StudentID))
		}
		seen[item.StudentID] = struct{}{}
		records[i] = models.AttendanceRecord{
			StudentID:   item.StudentID,
			TimetableID: req.TimetableID,
			Date:        date,
			Status:      models.AttendanceStatus(strings.ToLower(item.Status)),
			Reason:      item.Reason,
			MarkedBy:    markedBy,
			Category:    category,
		}
	}
	conflicts, err := s.repo.BulkInsert(ctx, records, mode == models.BulkModeAtomic)
	if err != nil {
		if mode == models.BulkModeAtomic {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, err.Error())
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "bulk mark failed")
	}
	result := &BulkAttendanceResult{Processed: len(records), Success: len(records) - len(conflicts)}
	if len(conflicts) > 0 {
		result.Conflicts = conflicts
	}
	marked := make([]string, 0, len(records))
	for _, record := range records {
		marked = append(marked, record.StudentID)
	}
	s.invalidateSummaries(ctx, marked...)
	return result, nil
}

// MarkingStatus reports whether a period has been marked on a date and the
// stored status per student.
func (s *AttendanceService) MarkingStatus(ctx context.Context, timetableID, dateStr string) (bool, map[string]models.AttendanceStatus, error) {
	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return false, nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	period, err := s.timetable.GetByID(ctx, timetableID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil, appErrors.Clone(appErrors.ErrNotFound, "timetable period not found")
		}
		return false, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify timetable period")
	}
	marked, err := s.repo.IsMarked(ctx, timetableID, date)
	if err != nil {
		return false, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check marking status")
	}
	if !marked {
		return false, map[string]models.AttendanceStatus{}, nil
	}
	students, err := s.students.StudentsByClass(ctx, period.Class)
	if err != nil {
		return false, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class students")
	}
	ids := make([]string, len(students))
	for i, st := range students {
		ids[i] = st.ID
	}
	statuses, err := s.repo.MarkedStatus(ctx, timetableID, date, ids)
	if err != nil {
		return false, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load marked statuses")
	}
	return true, statuses, nil
}

// ClassRoster builds the marking roster for a period and date: every active
// student of the class with their effective-presence percentage and any
// status already stored for the date.
func (s *AttendanceService) ClassRoster(ctx context.Context, timetableID, dateStr string) (*models.ClassRoster, error) {
	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	period, err := s.timetable.GetByID(ctx, timetableID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify timetable period")
	}
	cfg, err := s.workingDays.GetBySemester(ctx, period.Semester)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrConfigurationMissing, fmt.Sprintf("no working days configured for %s", period.Semester))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load working days")
	}
	students, err := s.students.StudentsByClass(ctx, period.Class)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class students")
	}
	ids := make([]string, len(students))
	for i, st := range students {
		ids[i] = st.ID
	}
	existing, err := s.repo.MarkedStatus(ctx, timetableID, date, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load marked statuses")
	}

	roster := &models.ClassRoster{
		Class:            period.Class,
		Semester:         period.Semester,
		TotalWorkingDays: cfg.TotalWorkingDays,
		AlreadyMarked:    len(existing) > 0,
		Students:         make([]models.RosterEntry, 0, len(students)),
	}
	for _, student := range students {
		pct, err := s.effectivePercentage(ctx, student.ID, period.Semester, cfg.TotalWorkingDays)
		if err != nil {
			return nil, err
		}
		entry := models.RosterEntry{
			StudentID:  student.ID,
			Name:       student.FullName,
			Email:      student.Email,
			Percentage: pct,
		}
		if status, ok := existing[student.ID]; ok {
			st := status
			entry.ExistingStatus = &st
		}
		roster.Students = append(roster.Students, entry)
	}
	return roster, nil
}

// StudentSummary aggregates a student's records into the daily, monthly and
// semester views plus the overall standing. With a semester the configured
// working days become the denominator; without one the record count does.
func (s *AttendanceService) StudentSummary(ctx context.Context, studentID, semester string) (*StudentAttendanceSummary, error) {
	cacheKey := fmt.Sprintf("attendance:summary:%s:%s", studentID, semester)
	if s.cache != nil {
		var cached StudentAttendanceSummary
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	opts := aggregate.Options{RequiredPercentage: s.requiredPct}
	if semester != "" {
		cfg, err := s.workingDays.GetBySemester(ctx, semester)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrConfigurationMissing, fmt.Sprintf("no working days configured for %s", semester))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load working days")
		}
		opts.TotalWorkingDays = cfg.TotalWorkingDays
		if cfg.RequiredPercentage != nil {
			opts.RequiredPercentage = *cfg.RequiredPercentage
		}
	}

	rows, err := s.repo.StudentRecords(ctx, studentID, semester, nil, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance records")
	}
	records := make([]aggregate.Record, len(rows))
	for i, row := range rows {
		records[i] = aggregate.Record{
			Date:     row.Date,
			Class:    row.Class,
			Subject:  row.Subject,
			Semester: row.Semester,
			Status:   row.Status,
		}
	}
	summary := aggregate.Summarize(records, opts)
	result := &StudentAttendanceSummary{
		StudentID:          studentID,
		Semester:           semester,
		OverallPercentage:  summary.OverallPercentage,
		RequiredPercentage: summary.RequiredPercentage,
		Status:             summary.Status,
		Daily:              summary.Daily,
		Monthly:            summary.Monthly,
		Semesters:          summary.Semester,
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, result, s.cacheTTL)
	}
	return result, nil
}

// EffectivePercentage exposes the leave-credited percentage for one student
// in a semester. The warning sweep shares this path with the roster.
func (s *AttendanceService) EffectivePercentage(ctx context.Context, studentID, semester string) (int, error) {
	cfg, err := s.workingDays.GetBySemester(ctx, semester)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, appErrors.Clone(appErrors.ErrConfigurationMissing, fmt.Sprintf("no working days configured for %s", semester))
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load working days")
	}
	return s.effectivePercentage(ctx, studentID, semester, cfg.TotalWorkingDays)
}

// RequiredPercentage resolves the threshold for a semester, falling back to
// the application default when no override is configured.
func (s *AttendanceService) RequiredPercentage(ctx context.Context, semester string) int {
	if semester == "" {
		return s.requiredPct
	}
	cfg, err := s.workingDays.GetBySemester(ctx, semester)
	if err != nil || cfg.RequiredPercentage == nil {
		return s.requiredPct
	}
	return *cfg.RequiredPercentage
}

func (s *AttendanceService) effectivePercentage(ctx context.Context, studentID, semester string, totalWorkingDays int) (int, error) {
	present, err := s.repo.PresentDayCount(ctx, studentID, semester)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count present days")
	}
	spans, err := s.leaves.ApprovedSpans(ctx, studentID, nil, nil)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approved leaves")
	}
	var presentDates []time.Time
	if s.creditMode == aggregate.CreditPerDayCovered {
		presentDates, err = s.repo.PresentDates(ctx, studentID, semester)
		if err != nil {
			return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load present dates")
		}
	}
	effective := aggregate.EffectivePresent(present, spans, s.creditMode, presentDates)
	return aggregate.Percentage(effective, totalWorkingDays), nil
}
