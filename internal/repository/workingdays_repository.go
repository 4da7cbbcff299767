package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/attendance-portal-api/internal/models"
)

// ErrSemesterConfigured is returned when a working-days row already exists
// for the semester.
var ErrSemesterConfigured = fmt.Errorf("semester already configured")

// WorkingDaysRepository handles persistence for per-semester working-day
// configuration.
type WorkingDaysRepository struct {
	db *sqlx.DB
}

// NewWorkingDaysRepository constructs the repository.
func NewWorkingDaysRepository(db *sqlx.DB) *WorkingDaysRepository {
	return &WorkingDaysRepository{db: db}
}

// Create inserts the configuration for a semester. A duplicate semester
// surfaces as ErrSemesterConfigured.
func (r *WorkingDaysRepository) Create(ctx context.Context, cfg *models.WorkingDaysConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO working_days_configs (id, semester, total_working_days, total_sessions, required_percentage, created_by, created_at)
VALUES (:id, :semester, :total_working_days, :total_sessions, :required_percentage, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, cfg); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrSemesterConfigured
		}
		return fmt.Errorf("create working days config: %w", err)
	}
	return nil
}

// GetBySemester returns the configuration for a semester. Not found
// surfaces as sql.ErrNoRows for the service to translate.
func (r *WorkingDaysRepository) GetBySemester(ctx context.Context, semester string) (*models.WorkingDaysConfig, error) {
	query := `SELECT id, semester, total_working_days, total_sessions, required_percentage, created_by, created_at
FROM working_days_configs WHERE semester = $1`
	var cfg models.WorkingDaysConfig
	if err := r.db.GetContext(ctx, &cfg, query, semester); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// List returns all configurations with creator display fields, newest
// semester first.
func (r *WorkingDaysRepository) List(ctx context.Context) ([]models.WorkingDaysConfigDetail, error) {
	query := `SELECT w.id, w.semester, w.total_working_days, w.total_sessions, w.required_percentage, w.created_by, w.created_at,
        u.full_name AS creator_name, u.email AS creator_email
FROM working_days_configs w
JOIN users u ON u.id = w.created_by
ORDER BY w.semester DESC`
	var configs []models.WorkingDaysConfigDetail
	if err := r.db.SelectContext(ctx, &configs, query); err != nil {
		return nil, fmt.Errorf("list working days configs: %w", err)
	}
	return configs, nil
}

// UpdateSessions replaces the derived session total for a semester.
// Returns false when the semester has no configuration row.
func (r *WorkingDaysRepository) UpdateSessions(ctx context.Context, semester string, totalSessions int) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE working_days_configs SET total_sessions = $1 WHERE semester = $2`, totalSessions, semester)
	if err != nil {
		return false, fmt.Errorf("update total sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update total sessions rows: %w", err)
	}
	return affected == 1, nil
}

// Semesters returns every configured semester code.
func (r *WorkingDaysRepository) Semesters(ctx context.Context) ([]string, error) {
	var semesters []string
	if err := r.db.SelectContext(ctx, &semesters,
		`SELECT semester FROM working_days_configs ORDER BY semester ASC`); err != nil {
		return nil, fmt.Errorf("configured semesters: %w", err)
	}
	return semesters, nil
}
