package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-portal-api/internal/models"
)

// LeaveRepository handles persistence for leave requests.
type LeaveRepository struct {
	db *sqlx.DB
}

// NewLeaveRepository constructs the repository.
func NewLeaveRepository(db *sqlx.DB) *LeaveRepository {
	return &LeaveRepository{db: db}
}

// Create inserts a new pending leave request.
func (r *LeaveRepository) Create(ctx context.Context, leave *models.LeaveRequest) error {
	if leave.ID == "" {
		leave.ID = uuid.NewString()
	}
	if leave.Status == "" {
		leave.Status = models.LeaveStatusPending
	}
	if leave.AppliedAt.IsZero() {
		leave.AppliedAt = time.Now().UTC()
	}
	query := `INSERT INTO leave_requests (id, student_id, from_date, to_date, reason, status, is_event_leave, event_id, reviewed_by, applied_at)
VALUES (:id, :student_id, :from_date, :to_date, :reason, :status, :is_event_leave, :event_id, :reviewed_by, :applied_at)`
	if _, err := r.db.NamedExecContext(ctx, query, leave); err != nil {
		return fmt.Errorf("create leave request: %w", err)
	}
	return nil
}

const leaveDetailColumns = `lr.id, lr.student_id, lr.from_date, lr.to_date, lr.reason, lr.status,
        lr.is_event_leave, lr.event_id, lr.reviewed_by, lr.applied_at,
        s.full_name AS student_name, s.email AS student_email, s.class AS student_class,
        rv.full_name AS reviewer_name`

const leaveDetailJoin = `FROM leave_requests lr
JOIN users s ON s.id = lr.student_id
LEFT JOIN users rv ON rv.id = lr.reviewed_by`

// GetByID returns one leave request with joined display fields. Not found
// surfaces as sql.ErrNoRows.
func (r *LeaveRepository) GetByID(ctx context.Context, id string) (*models.LeaveRequestDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE lr.id = $1", leaveDetailColumns, leaveDetailJoin)
	var leave models.LeaveRequestDetail
	if err := r.db.GetContext(ctx, &leave, query, id); err != nil {
		return nil, err
	}
	return &leave, nil
}

// List returns leave requests matching the filter, newest first.
func (r *LeaveRepository) List(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveRequestDetail, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("lr.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Class != "" {
		where = append(where, fmt.Sprintf("s.class = $%d", len(args)+1))
		args = append(args, filter.Class)
	}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("lr.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("lr.to_date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("lr.from_date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY lr.applied_at DESC`,
		leaveDetailColumns, leaveDetailJoin, strings.Join(where, " AND "))
	var leaves []models.LeaveRequestDetail
	if err := r.db.SelectContext(ctx, &leaves, query, args...); err != nil {
		return nil, fmt.Errorf("list leave requests: %w", err)
	}
	return leaves, nil
}

// Review transitions a pending request to the given outcome. Returns false
// when the row was not pending anymore (or does not exist), so the decision
// is applied at most once.
func (r *LeaveRepository) Review(ctx context.Context, id string, status models.LeaveStatus, reviewerID string) (bool, error) {
	query := `UPDATE leave_requests SET status = $1, reviewed_by = $2
WHERE id = $3 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, status, reviewerID, id)
	if err != nil {
		return false, fmt.Errorf("review leave request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("review leave request rows: %w", err)
	}
	return affected == 1, nil
}

// DeletePending removes a request only while it is still pending and owned
// by the student. Returns false when nothing matched.
func (r *LeaveRepository) DeletePending(ctx context.Context, id, studentID string) (bool, error) {
	query := `DELETE FROM leave_requests WHERE id = $1 AND student_id = $2 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id, studentID)
	if err != nil {
		return false, fmt.Errorf("delete pending leave: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete pending leave rows: %w", err)
	}
	return affected == 1, nil
}

// ApprovedSpans returns the (from, to) windows of every approved or
// duty-leave request for a student, optionally clipped to a window. The
// leave-credit resolver consumes these.
func (r *LeaveRepository) ApprovedSpans(ctx context.Context, studentID string, from, to *time.Time) ([]models.LeaveSpan, error) {
	where := []string{"student_id = $1", "status IN ('approved', 'duty_leave')"}
	args := []interface{}{studentID}
	if from != nil {
		where = append(where, fmt.Sprintf("to_date >= $%d", len(args)+1))
		args = append(args, *from)
	}
	if to != nil {
		where = append(where, fmt.Sprintf("from_date <= $%d", len(args)+1))
		args = append(args, *to)
	}
	query := fmt.Sprintf(`SELECT from_date, to_date FROM leave_requests WHERE %s ORDER BY from_date ASC`,
		strings.Join(where, " AND "))
	var spans []models.LeaveSpan
	if err := r.db.SelectContext(ctx, &spans, query, args...); err != nil {
		return nil, fmt.Errorf("approved leave spans: %w", err)
	}
	return spans, nil
}

// CountApproved returns how many requests of a student carry a review
// outcome of approved or duty_leave.
func (r *LeaveRepository) CountApproved(ctx context.Context, studentID string) (int, error) {
	query := `SELECT COUNT(*) FROM leave_requests WHERE student_id = $1 AND status IN ('approved', 'duty_leave')`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID); err != nil {
		return 0, fmt.Errorf("count approved leaves: %w", err)
	}
	return count, nil
}
