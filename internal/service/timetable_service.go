package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-portal-api/internal/models"
	appErrors "github.com/noah-isme/attendance-portal-api/pkg/errors"
)

type timetableRepository interface {
	Create(ctx context.Context, period *models.TimetablePeriod) error
	GetByID(ctx context.Context, id string) (*models.TimetablePeriodDetail, error)
	List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetablePeriodDetail, error)
	Update(ctx context.Context, period *models.TimetablePeriod) error
	Delete(ctx context.Context, id string) error
	ClassSubjects(ctx context.Context, teacherID, semester string) ([]models.ClassSubject, error)
}

type timetableUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type timetableAttendanceReader interface {
	IsMarked(ctx context.Context, timetableID string, date time.Time) (bool, error)
}

var weekdayNames = map[string]time.Weekday{
	"Sunday":    time.Sunday,
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
}

// TimetableService manages scheduled periods.
type TimetableService struct {
	repo       timetableRepository
	users      timetableUserReader
	attendance timetableAttendanceReader
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewTimetableService constructs the timetable service.
func NewTimetableService(repo timetableRepository, users timetableUserReader, attendance timetableAttendanceReader, validate *validator.Validate, logger *zap.Logger) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &TimetableService{repo: repo, users: users, attendance: attendance, validator: validate, logger: logger, now: time.Now}
	svc.validator.RegisterValidation("day_of_week", func(fl validator.FieldLevel) bool {
		_, ok := weekdayNames[fl.Field().String()]
		return ok
	})
	svc.validator.RegisterValidation("clock_time", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("15:04", fl.Field().String())
		return err == nil
	})
	return svc
}

// CreatePeriodRequest is the payload for a new timetable period.
type CreatePeriodRequest struct {
	Class     string `json:"class" validate:"required"`
	Semester  string `json:"semester" validate:"required"`
	Subject   string `json:"subject" validate:"required"`
	TeacherID string `json:"teacher_id" validate:"required"`
	DayOfWeek string `json:"day_of_week" validate:"required,day_of_week"`
	StartTime string `json:"start_time" validate:"required,clock_time"`
	EndTime   string `json:"end_time" validate:"required,clock_time"`
	Room      string `json:"room"`
}

// Create registers a period after checking the teacher exists and holds the
// teaching role.
func (s *TimetableService) Create(ctx context.Context, req CreatePeriodRequest) (*models.TimetablePeriod, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if req.StartTime >= req.EndTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must precede end_time")
	}
	teacher, err := s.users.FindByID(ctx, req.TeacherID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify teacher")
	}
	if teacher.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assigned user is not a teacher")
	}
	period := &models.TimetablePeriod{
		Class:     req.Class,
		Semester:  req.Semester,
		Subject:   req.Subject,
		TeacherID: req.TeacherID,
		DayOfWeek: req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Room:      req.Room,
	}
	if err := s.repo.Create(ctx, period); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable period")
	}
	return period, nil
}

// Get returns a single period with teacher details.
func (s *TimetableService) Get(ctx context.Context, id string) (*models.TimetablePeriodDetail, error) {
	period, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch timetable period")
	}
	return period, nil
}

// List returns the periods matching the filter.
func (s *TimetableService) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetablePeriodDetail, error) {
	periods, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable periods")
	}
	return periods, nil
}

// Delete removes a period.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable period not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable period")
	}
	return nil
}

// ClassSubjects returns the distinct (class, subject) pairs a teacher
// teaches in the semester.
func (s *TimetableService) ClassSubjects(ctx context.Context, teacherID, semester string) ([]models.ClassSubject, error) {
	pairs, err := s.repo.ClassSubjects(ctx, teacherID, semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class subjects")
	}
	return pairs, nil
}

// UpcomingClasses projects a teacher's periods onto concrete dates over the
// next seven days and flags those already marked.
func (s *TimetableService) UpcomingClasses(ctx context.Context, teacherID, semester string) ([]models.UpcomingClass, error) {
	periods, err := s.repo.List(ctx, models.TimetableFilter{TeacherID: teacherID, Semester: semester})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable periods")
	}
	byDay := make(map[time.Weekday][]models.TimetablePeriodDetail)
	for _, p := range periods {
		day, ok := weekdayNames[p.DayOfWeek]
		if !ok {
			continue
		}
		byDay[day] = append(byDay[day], p)
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	upcoming := make([]models.UpcomingClass, 0)
	for offset := 0; offset < 7; offset++ {
		date := today.AddDate(0, 0, offset)
		for _, p := range byDay[date.Weekday()] {
			marked, err := s.attendance.IsMarked(ctx, p.ID, date)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check marking status")
			}
			upcoming = append(upcoming, models.UpcomingClass{
				TimetablePeriod: p.TimetablePeriod,
				Date:            date,
				IsMarked:        marked,
			})
		}
	}
	return upcoming, nil
}
