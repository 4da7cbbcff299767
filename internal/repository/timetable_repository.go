package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-portal-api/internal/models"
)

// TimetableRepository handles persistence for timetable periods.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs the repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// Create inserts a new timetable period.
func (r *TimetableRepository) Create(ctx context.Context, period *models.TimetablePeriod) error {
	now := time.Now().UTC()
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	period.CreatedAt = now
	period.UpdatedAt = now
	query := `INSERT INTO timetable_periods (id, class, semester, subject, teacher_id, day_of_week, start_time, end_time, room, created_at, updated_at)
VALUES (:id, :class, :semester, :subject, :teacher_id, :day_of_week, :start_time, :end_time, :room, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("create timetable period: %w", err)
	}
	return nil
}

// GetByID returns a period with its teacher's display fields.
func (r *TimetableRepository) GetByID(ctx context.Context, id string) (*models.TimetablePeriodDetail, error) {
	query := `SELECT tp.id, tp.class, tp.semester, tp.subject, tp.teacher_id, tp.day_of_week,
        tp.start_time, tp.end_time, tp.room, tp.created_at, tp.updated_at,
        u.full_name AS teacher_name, u.email AS teacher_email
FROM timetable_periods tp
JOIN users u ON u.id = tp.teacher_id
WHERE tp.id = $1`
	var period models.TimetablePeriodDetail
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get timetable period: %w", err)
	}
	return &period, nil
}

// List returns periods matching the filter, ordered by day then start time.
func (r *TimetableRepository) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetablePeriodDetail, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Class != "" {
		where = append(where, fmt.Sprintf("tp.class = $%d", len(args)+1))
		args = append(args, filter.Class)
	}
	if filter.Semester != "" {
		where = append(where, fmt.Sprintf("tp.semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.Subject != "" {
		where = append(where, fmt.Sprintf("tp.subject = $%d", len(args)+1))
		args = append(args, filter.Subject)
	}
	if filter.TeacherID != "" {
		where = append(where, fmt.Sprintf("tp.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.DayOfWeek != "" {
		where = append(where, fmt.Sprintf("tp.day_of_week = $%d", len(args)+1))
		args = append(args, filter.DayOfWeek)
	}
	query := fmt.Sprintf(`SELECT tp.id, tp.class, tp.semester, tp.subject, tp.teacher_id, tp.day_of_week,
        tp.start_time, tp.end_time, tp.room, tp.created_at, tp.updated_at,
        u.full_name AS teacher_name, u.email AS teacher_email
FROM timetable_periods tp
JOIN users u ON u.id = tp.teacher_id
WHERE %s
ORDER BY CASE tp.day_of_week
        WHEN 'Monday' THEN 1 WHEN 'Tuesday' THEN 2 WHEN 'Wednesday' THEN 3
        WHEN 'Thursday' THEN 4 WHEN 'Friday' THEN 5 WHEN 'Saturday' THEN 6
        ELSE 7 END, tp.start_time ASC`, strings.Join(where, " AND "))
	var periods []models.TimetablePeriodDetail
	if err := r.db.SelectContext(ctx, &periods, query, args...); err != nil {
		return nil, fmt.Errorf("list timetable periods: %w", err)
	}
	return periods, nil
}

// Update replaces the mutable fields of a period.
func (r *TimetableRepository) Update(ctx context.Context, period *models.TimetablePeriod) error {
	period.UpdatedAt = time.Now().UTC()
	query := `UPDATE timetable_periods
SET class = :class, semester = :semester, subject = :subject, teacher_id = :teacher_id,
        day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time,
        room = :room, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, period)
	if err != nil {
		return fmt.Errorf("update timetable period: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a period.
func (r *TimetableRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM timetable_periods WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete timetable period: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ClassSubjects returns the distinct (class, subject) pairs a teacher
// teaches in the semester.
func (r *TimetableRepository) ClassSubjects(ctx context.Context, teacherID, semester string) ([]models.ClassSubject, error) {
	query := `SELECT DISTINCT class, subject FROM timetable_periods
WHERE teacher_id = $1 AND semester = $2
ORDER BY class ASC, subject ASC`
	var pairs []models.ClassSubject
	if err := r.db.SelectContext(ctx, &pairs, query, teacherID, semester); err != nil {
		return nil, fmt.Errorf("class subjects: %w", err)
	}
	return pairs, nil
}

// SemesterPeriodCount counts all periods scheduled in the semester across
// classes. Session totals derive from this count.
func (r *TimetableRepository) SemesterPeriodCount(ctx context.Context, semester string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM timetable_periods WHERE semester = $1`
	if err := r.db.GetContext(ctx, &count, query, semester); err != nil {
		return 0, fmt.Errorf("semester period count: %w", err)
	}
	return count, nil
}

// Classes returns the distinct classes scheduled in the semester.
func (r *TimetableRepository) Classes(ctx context.Context, semester string) ([]string, error) {
	var classes []string
	query := `SELECT DISTINCT class FROM timetable_periods WHERE semester = $1 ORDER BY class ASC`
	if err := r.db.SelectContext(ctx, &classes, query, semester); err != nil {
		return nil, fmt.Errorf("semester classes: %w", err)
	}
	return classes, nil
}
