package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type sweepAttendanceSource interface {
	StudentIDsInSemester(ctx context.Context, semester string) ([]string, error)
}

type sweepLeaveSource interface {
	CountApproved(ctx context.Context, studentID string) (int, error)
}

type sweepSemesterSource interface {
	Semesters(ctx context.Context) ([]string, error)
}

type percentageResolver interface {
	EffectivePercentage(ctx context.Context, studentID, semester string) (int, error)
	RequiredPercentage(ctx context.Context, semester string) int
}

type warningSink interface {
	Warn(ctx context.Context, recipientID, message string) error
}

type warningGuard interface {
	WarnedToday(ctx context.Context, recipientID string, day time.Time) (bool, error)
}

// WarningServiceConfig tunes the low-attendance sweep.
type WarningServiceConfig struct {
	Interval      time.Duration
	MaxLeaveCount int
}

// WarningService periodically walks every configured semester and writes a
// warning notification for students below their required percentage or with
// an excessive number of approved leaves. At most one warning per student
// per day.
type WarningService struct {
	attendance    sweepAttendanceSource
	leaves        sweepLeaveSource
	semesters     sweepSemesterSource
	percentages   percentageResolver
	notifications warningSink
	guard         warningGuard
	logger        *zap.Logger
	cfg           WarningServiceConfig
}

// NewWarningService constructs the sweep.
func NewWarningService(
	attendance sweepAttendanceSource,
	leaves sweepLeaveSource,
	semesters sweepSemesterSource,
	percentages percentageResolver,
	notifications warningSink,
	guard warningGuard,
	cfg WarningServiceConfig,
	logger *zap.Logger,
) *WarningService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.MaxLeaveCount <= 0 {
		cfg.MaxLeaveCount = 5
	}
	return &WarningService{
		attendance:    attendance,
		leaves:        leaves,
		semesters:     semesters,
		percentages:   percentages,
		notifications: notifications,
		guard:         guard,
		logger:        logger,
		cfg:           cfg,
	}
}

// Start boots the sweep goroutine, stopped via the context.
func (s *WarningService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

// Sweep runs one pass over all configured semesters.
func (s *WarningService) Sweep(ctx context.Context) {
	semesters, err := s.semesters.Semesters(ctx)
	if err != nil {
		s.logger.Warn("warning sweep: failed to list semesters", zap.Error(err))
		return
	}
	today := time.Now().UTC()
	warned := 0
	for _, semester := range semesters {
		students, err := s.attendance.StudentIDsInSemester(ctx, semester)
		if err != nil {
			s.logger.Warn("warning sweep: failed to list students",
				zap.String("semester", semester), zap.Error(err))
			continue
		}
		for _, studentID := range students {
			if ctx.Err() != nil {
				return
			}
			sent, err := s.checkStudent(ctx, studentID, semester, today)
			if err != nil {
				s.logger.Warn("warning sweep: student check failed",
					zap.String("student_id", studentID), zap.Error(err))
				continue
			}
			if sent {
				warned++
			}
		}
	}
	s.logger.Info("warning sweep finished",
		zap.Int("semesters", len(semesters)), zap.Int("warned", warned))
}

func (s *WarningService) checkStudent(ctx context.Context, studentID, semester string, today time.Time) (bool, error) {
	already, err := s.guard.WarnedToday(ctx, studentID, today)
	if err != nil {
		return false, err
	}
	if already {
		return false, nil
	}

	pct, err := s.percentages.EffectivePercentage(ctx, studentID, semester)
	if err != nil {
		return false, err
	}
	required := s.percentages.RequiredPercentage(ctx, semester)
	leaveCount, err := s.leaves.CountApproved(ctx, studentID)
	if err != nil {
		return false, err
	}

	var message string
	switch {
	case pct < required:
		message = fmt.Sprintf("Your attendance is %d%%, below the required %d%%. Please attend classes regularly.", pct, required)
	case leaveCount > s.cfg.MaxLeaveCount:
		message = fmt.Sprintf("You have taken %d leaves this semester. Further leaves may affect your attendance standing.", leaveCount)
	default:
		return false, nil
	}
	if err := s.notifications.Warn(ctx, studentID, message); err != nil {
		return false, err
	}
	return true, nil
}
