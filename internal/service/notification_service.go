package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-portal-api/internal/models"
	appErrors "github.com/noah-isme/attendance-portal-api/pkg/errors"
)

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, id, recipientID string) (bool, error)
}

// NotificationService delivers and lists notifications.
type NotificationService struct {
	repo      notificationRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNotificationService constructs the notification service.
func NewNotificationService(repo notificationRepository, validate *validator.Validate, logger *zap.Logger) *NotificationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{repo: repo, validator: validate, logger: logger}
	svc.validator.RegisterValidation("notification_audience", func(fl validator.FieldLevel) bool {
		return models.NotificationAudience(strings.ToLower(fl.Field().String())).Valid()
	})
	return svc
}

// SendNotificationRequest is the payload for publishing a notification.
type SendNotificationRequest struct {
	Audience    string  `json:"audience" validate:"required,notification_audience"`
	RecipientID *string `json:"recipient_id"`
	Message     string  `json:"message" validate:"required,min=1"`
}

// Send publishes a notification to an audience or a specific recipient.
func (s *NotificationService) Send(ctx context.Context, req SendNotificationRequest) (*models.Notification, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	audience := models.NotificationAudience(strings.ToLower(req.Audience))
	if audience == models.AudienceSpecific && (req.RecipientID == nil || *req.RecipientID == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "recipient_id required for specific audience")
	}
	n := &models.Notification{
		Audience:    audience,
		RecipientID: req.RecipientID,
		Message:     req.Message,
		Type:        models.NotificationInfo,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
	}
	return n, nil
}

// Warn writes a warning notification addressed to one user.
func (s *NotificationService) Warn(ctx context.Context, recipientID, message string) error {
	n := &models.Notification{
		Audience:    models.AudienceSpecific,
		RecipientID: &recipientID,
		Message:     message,
		Type:        models.NotificationWarning,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create warning")
	}
	return nil
}

// ListForUser returns notifications visible to a user given their role.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, role models.UserRole, unread *bool, page, pageSize int) ([]models.Notification, *models.Pagination, error) {
	audiences := []models.NotificationAudience{models.AudienceAll}
	switch role {
	case models.RoleStudent:
		audiences = append(audiences, models.AudienceStudents)
	case models.RoleTeacher:
		audiences = append(audiences, models.AudienceTeachers)
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	filter := models.NotificationFilter{
		RecipientID: userID,
		Audience:    audiences,
		Unread:      unread,
		Page:        page,
		PageSize:    pageSize,
	}
	notifications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
	return notifications, pagination, nil
}

// MarkRead flags one notification as read for its recipient.
func (s *NotificationService) MarkRead(ctx context.Context, id, recipientID string) error {
	read, err := s.repo.MarkRead(ctx, id, recipientID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	if !read {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}
