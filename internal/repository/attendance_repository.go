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

// QueryObserver receives per-query timings. MetricsService satisfies it.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// AttendanceRepository handles persistence for per-period attendance records.
type AttendanceRepository struct {
	db       *sqlx.DB
	observer QueryObserver
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Instrument attaches a query observer to the attendance hot paths.
func (r *AttendanceRepository) Instrument(obs QueryObserver) {
	r.observer = obs
}

func (r *AttendanceRepository) observe(label string, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveDBQuery(label, time.Since(start))
	}
}

const attendanceJoin = `FROM attendance_records ar
JOIN timetable_periods tp ON tp.id = ar.timetable_id
JOIN users u ON u.id = ar.student_id`

const attendanceColumns = `ar.id, ar.student_id, ar.timetable_id, ar.date, ar.status, ar.reason,
        ar.marked_by, ar.category, ar.approved_leave, ar.created_at, ar.updated_at,
        tp.class, tp.subject, tp.semester, u.full_name AS student_name`

func attendanceWhere(filter models.AttendanceFilter) (string, []interface{}) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("ar.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.TimetableID != "" {
		where = append(where, fmt.Sprintf("ar.timetable_id = $%d", len(args)+1))
		args = append(args, filter.TimetableID)
	}
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
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("ar.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("ar.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("ar.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	return strings.Join(where, " AND "), args
}

// List returns attendance rows matching the provided filter, joined with
// their timetable context.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceContext, int, error) {
	defer r.observe("attendance_list", time.Now())
	whereClause, args := attendanceWhere(filter)

	allowedSort := map[string]string{
		"date":       "ar.date",
		"status":     "ar.status",
		"subject":    "tp.subject",
		"created_at": "ar.created_at",
	}
	sortColumn, ok := allowedSort[filter.SortBy]
	if !ok {
		sortColumn = "ar.date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s
        %s WHERE %s
        ORDER BY %s %s
        LIMIT %d OFFSET %d`, attendanceColumns, attendanceJoin, whereClause, sortColumn, order, size, offset)

	var rows []models.AttendanceContext
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", attendanceJoin, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return rows, total, nil
}

// Upsert inserts or updates the record identified by
// (student_id, timetable_id, date) and returns the stored row.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	defer r.observe("attendance_upsert", time.Now())
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	query := `INSERT INTO attendance_records (id, student_id, timetable_id, date, status, reason, marked_by, category, approved_leave, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (student_id, timetable_id, date)
DO UPDATE SET status = EXCLUDED.status, reason = EXCLUDED.reason, marked_by = EXCLUDED.marked_by,
        category = EXCLUDED.category, approved_leave = EXCLUDED.approved_leave, updated_at = EXCLUDED.updated_at
RETURNING id, student_id, timetable_id, date, status, reason, marked_by, category, approved_leave, created_at, updated_at`
	var stored models.AttendanceRecord
	if err := r.db.GetContext(ctx, &stored, query,
		record.ID, record.StudentID, record.TimetableID, record.Date, record.Status, record.Reason,
		record.MarkedBy, record.Category, record.ApprovedLeave, record.CreatedAt, record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}
	return &stored, nil
}

// BulkInsert inserts many records; existing (student, period, date) rows are
// reported as conflicts. In atomic mode the first conflict aborts the whole
// batch.
func (r *AttendanceRepository) BulkInsert(ctx context.Context, records []models.AttendanceRecord, atomic bool) ([]models.AttendanceBulkConflict, error) {
	if len(records) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin bulk attendance: %w", err)
	}
	conflicts := make([]models.AttendanceBulkConflict, 0)
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()
	query := `INSERT INTO attendance_records (id, student_id, timetable_id, date, status, reason, marked_by, category, approved_leave, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (student_id, timetable_id, date) DO NOTHING RETURNING id`
	now := time.Now().UTC()
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		var insertedID string
		if err := tx.QueryRowxContext(ctx, query,
			rec.ID, rec.StudentID, rec.TimetableID, rec.Date, rec.Status, rec.Reason,
			rec.MarkedBy, rec.Category, rec.ApprovedLeave, rec.CreatedAt, rec.UpdatedAt).Scan(&insertedID); err != nil {
			if err == sql.ErrNoRows {
				if atomic {
					return nil, fmt.Errorf("bulk insert attendance: duplicate for student %s on %s", rec.StudentID, rec.Date.Format("2006-01-02"))
				}
				conflicts = append(conflicts, models.AttendanceBulkConflict{
					StudentID:   rec.StudentID,
					TimetableID: rec.TimetableID,
					Date:        rec.Date,
					Reason:      "already marked",
				})
				continue
			}
			return nil, fmt.Errorf("bulk insert attendance: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bulk attendance: %w", err)
	}
	commit = true
	return conflicts, nil
}

// StudentRecords returns every record for a student joined with its
// timetable context, ordered by date. The aggregation core consumes this.
func (r *AttendanceRepository) StudentRecords(ctx context.Context, studentID string, semester string, from, to *time.Time) ([]models.AttendanceContext, error) {
	defer r.observe("attendance_student_records", time.Now())
	where := []string{"ar.student_id = $1"}
	args := []interface{}{studentID}
	if semester != "" {
		where = append(where, fmt.Sprintf("tp.semester = $%d", len(args)+1))
		args = append(args, semester)
	}
	if from != nil {
		where = append(where, fmt.Sprintf("ar.date >= $%d", len(args)+1))
		args = append(args, *from)
	}
	if to != nil {
		where = append(where, fmt.Sprintf("ar.date <= $%d", len(args)+1))
		args = append(args, *to)
	}
	query := fmt.Sprintf(`SELECT %s
%s
WHERE %s
ORDER BY ar.date ASC`, attendanceColumns, attendanceJoin, strings.Join(where, " AND "))
	var rows []models.AttendanceContext
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("student attendance records: %w", err)
	}
	return rows, nil
}

// ClassRecords returns records for every student of a class within the
// window, joined with timetable context. Report builders consume this.
func (r *AttendanceRepository) ClassRecords(ctx context.Context, class, semester string, from, to *time.Time) ([]models.AttendanceContext, error) {
	defer r.observe("attendance_class_records", time.Now())
	where := []string{"tp.class = $1"}
	args := []interface{}{class}
	if semester != "" {
		where = append(where, fmt.Sprintf("tp.semester = $%d", len(args)+1))
		args = append(args, semester)
	}
	if from != nil {
		where = append(where, fmt.Sprintf("ar.date >= $%d", len(args)+1))
		args = append(args, *from)
	}
	if to != nil {
		where = append(where, fmt.Sprintf("ar.date <= $%d", len(args)+1))
		args = append(args, *to)
	}
	query := fmt.Sprintf(`SELECT %s
%s
WHERE %s
ORDER BY u.full_name ASC, ar.date ASC`, attendanceColumns, attendanceJoin, strings.Join(where, " AND "))
	var rows []models.AttendanceContext
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("class attendance records: %w", err)
	}
	return rows, nil
}

// PresentDates returns the distinct dates on which a student has a present
// record within the semester. The leave-credit resolver uses these to avoid
// double-crediting days already attended.
func (r *AttendanceRepository) PresentDates(ctx context.Context, studentID, semester string) ([]time.Time, error) {
	query := `SELECT DISTINCT ar.date
FROM attendance_records ar
JOIN timetable_periods tp ON tp.id = ar.timetable_id
WHERE ar.student_id = $1 AND tp.semester = $2 AND ar.status = 'present'
ORDER BY ar.date ASC`
	var dates []time.Time
	if err := r.db.SelectContext(ctx, &dates, query, studentID, semester); err != nil {
		return nil, fmt.Errorf("present dates: %w", err)
	}
	return dates, nil
}

// PresentDayCount returns the number of distinct days a student was present
// in the semester.
func (r *AttendanceRepository) PresentDayCount(ctx context.Context, studentID, semester string) (int, error) {
	query := `SELECT COUNT(DISTINCT ar.date)
FROM attendance_records ar
JOIN timetable_periods tp ON tp.id = ar.timetable_id
WHERE ar.student_id = $1 AND tp.semester = $2 AND ar.status = 'present'`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID, semester); err != nil {
		return 0, fmt.Errorf("present day count: %w", err)
	}
	return count, nil
}

// MarkedStatus reports which of the given students already have a record
// for the period and date, keyed by student id.
func (r *AttendanceRepository) MarkedStatus(ctx context.Context, timetableID string, date time.Time, studentIDs []string) (map[string]models.AttendanceStatus, error) {
	marked := make(map[string]models.AttendanceStatus, len(studentIDs))
	if len(studentIDs) == 0 {
		return marked, nil
	}
	query, args, err := sqlx.In(`SELECT student_id, status FROM attendance_records
WHERE timetable_id = ? AND date = ? AND student_id IN (?)`, timetableID, date, studentIDs)
	if err != nil {
		return nil, fmt.Errorf("marked status query: %w", err)
	}
	query = r.db.Rebind(query)
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("marked status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var studentID string
		var status models.AttendanceStatus
		if err := rows.Scan(&studentID, &status); err != nil {
			return nil, fmt.Errorf("scan marked status: %w", err)
		}
		marked[studentID] = status
	}
	return marked, rows.Err()
}

// IsMarked reports whether any record exists for the period on the date.
func (r *AttendanceRepository) IsMarked(ctx context.Context, timetableID string, date time.Time) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM attendance_records WHERE timetable_id = $1 AND date = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, timetableID, date); err != nil {
		return false, fmt.Errorf("attendance marked check: %w", err)
	}
	return exists, nil
}

// StudentIDsInSemester returns the distinct students appearing in the
// semester's attendance. The low-attendance sweep iterates these.
func (r *AttendanceRepository) StudentIDsInSemester(ctx context.Context, semester string) ([]string, error) {
	query := `SELECT DISTINCT ar.student_id
FROM attendance_records ar
JOIN timetable_periods tp ON tp.id = ar.timetable_id
WHERE tp.semester = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, semester); err != nil {
		return nil, fmt.Errorf("students in semester: %w", err)
	}
	return ids, nil
}

// MarkApprovedLeave flips matching rows to on_leave with the approved flag
// set, covering every date in [from, to] for the student. Rows already
// present are left alone.
func (r *AttendanceRepository) MarkApprovedLeave(ctx context.Context, studentID string, from, to time.Time, status models.AttendanceStatus) (int64, error) {
	query := `UPDATE attendance_records SET status = $1, approved_leave = TRUE, updated_at = $2
WHERE student_id = $3 AND date BETWEEN $4 AND $5 AND status <> 'present'`
	res, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), studentID, from, to)
	if err != nil {
		return 0, fmt.Errorf("mark approved leave: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark approved leave rows: %w", err)
	}
	return affected, nil
}
