package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/attendance-portal-api/internal/models"
)

// NotificationRepository persists notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO notifications (id, audience, recipient_id, message, type, read, created_at)
VALUES (:id, :audience, :recipient_id, :message, :type, :read, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// List returns notifications visible under the filter, newest first. A
// recipient sees rows addressed to them plus any matching broadcast
// audience.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.RecipientID != "" && len(filter.Audience) > 0 {
		audiences := make([]string, len(filter.Audience))
		for i, a := range filter.Audience {
			audiences[i] = string(a)
		}
		where = append(where, fmt.Sprintf("(recipient_id = $%d OR audience = ANY($%d))", len(args)+1, len(args)+2))
		args = append(args, filter.RecipientID, pq.Array(audiences))
	} else if filter.RecipientID != "" {
		where = append(where, fmt.Sprintf("recipient_id = $%d", len(args)+1))
		args = append(args, filter.RecipientID)
	}
	if filter.Unread != nil {
		where = append(where, fmt.Sprintf("read = $%d", len(args)+1))
		args = append(args, !*filter.Unread)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, audience, recipient_id, message, type, read, created_at
FROM notifications WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, whereClause, size, offset)
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM notifications WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return notifications, total, nil
}

// MarkRead flags a notification as read for its recipient. Returns false
// when nothing matched.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string) (bool, error) {
	query := `UPDATE notifications SET read = TRUE WHERE id = $1 AND (recipient_id = $2 OR recipient_id IS NULL)`
	res, err := r.db.ExecContext(ctx, query, id, recipientID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification read rows: %w", err)
	}
	return affected >= 1, nil
}

// WarnedToday reports whether a warning for the recipient was already
// written today, so the sweep does not repeat itself.
func (r *NotificationRepository) WarnedToday(ctx context.Context, recipientID string, day time.Time) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM notifications
WHERE recipient_id = $1 AND type = 'warning' AND created_at >= $2 AND created_at < $3)`
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, recipientID, start, start.AddDate(0, 0, 1)); err != nil {
		return false, fmt.Errorf("warning exists check: %w", err)
	}
	return exists, nil
}
