package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-portal-api/internal/models"
	"github.com/noah-isme/attendance-portal-api/internal/repository"
	appErrors "github.com/noah-isme/attendance-portal-api/pkg/errors"
)

type workingDaysRepoStub struct {
	configs map[string]*models.WorkingDaysConfig
}

func newWorkingDaysRepoStub() *workingDaysRepoStub {
	return &workingDaysRepoStub{configs: map[string]*models.WorkingDaysConfig{}}
}

func (r *workingDaysRepoStub) Create(ctx context.Context, cfg *models.WorkingDaysConfig) error {
	if _, ok := r.configs[cfg.Semester]; ok {
		return repository.ErrSemesterConfigured
	}
	cfg.ID = "wd-1"
	copy := *cfg
	r.configs[cfg.Semester] = &copy
	return nil
}

func (r *workingDaysRepoStub) GetBySemester(ctx context.Context, semester string) (*models.WorkingDaysConfig, error) {
	cfg, ok := r.configs[semester]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *cfg
	return &copy, nil
}

func (r *workingDaysRepoStub) List(ctx context.Context) ([]models.WorkingDaysConfigDetail, error) {
	var out []models.WorkingDaysConfigDetail
	for _, cfg := range r.configs {
		out = append(out, models.WorkingDaysConfigDetail{WorkingDaysConfig: *cfg})
	}
	return out, nil
}

func (r *workingDaysRepoStub) UpdateSessions(ctx context.Context, semester string, totalSessions int) (bool, error) {
	cfg, ok := r.configs[semester]
	if !ok {
		return false, nil
	}
	cfg.TotalSessions = totalSessions
	return true, nil
}

type periodCounterStub struct {
	counts map[string]int
}

func (p periodCounterStub) SemesterPeriodCount(ctx context.Context, semester string) (int, error) {
	return p.counts[semester], nil
}

func newWorkingDaysServiceForTest(repo *workingDaysRepoStub, counter periodCounterStub) *WorkingDaysService {
	return NewWorkingDaysService(repo, counter, validator.New(), zap.NewNop())
}

func TestWorkingDaysServiceSetDerivesSessions(t *testing.T) {
	repo := newWorkingDaysRepoStub()
	svc := newWorkingDaysServiceForTest(repo, periodCounterStub{counts: map[string]int{"2026-1": 30}})

	cfg, err := svc.Set(context.Background(), "admin", SetWorkingDaysRequest{Semester: "2026-1", TotalWorkingDays: 92})
	require.NoError(t, err)
	// 92 days span 19 whole-or-partial weeks of 30 scheduled periods
	assert.Equal(t, 570, cfg.TotalSessions)
	assert.Equal(t, 92, cfg.TotalWorkingDays)
}

func TestWorkingDaysServiceSetOnce(t *testing.T) {
	repo := newWorkingDaysRepoStub()
	svc := newWorkingDaysServiceForTest(repo, periodCounterStub{counts: map[string]int{"2026-1": 30}})

	_, err := svc.Set(context.Background(), "admin", SetWorkingDaysRequest{Semester: "2026-1", TotalWorkingDays: 90})
	require.NoError(t, err)

	_, err = svc.Set(context.Background(), "admin", SetWorkingDaysRequest{Semester: "2026-1", TotalWorkingDays: 95})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestWorkingDaysServiceSetRequiresScheduledPeriods(t *testing.T) {
	repo := newWorkingDaysRepoStub()
	svc := newWorkingDaysServiceForTest(repo, periodCounterStub{counts: map[string]int{}})

	_, err := svc.Set(context.Background(), "admin", SetWorkingDaysRequest{Semester: "2026-1", TotalWorkingDays: 90})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestWorkingDaysServiceGetMissing(t *testing.T) {
	repo := newWorkingDaysRepoStub()
	svc := newWorkingDaysServiceForTest(repo, periodCounterStub{})

	_, err := svc.Get(context.Background(), "2026-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConfigurationMissing.Code, appErr.Code)
}

func TestWorkingDaysServiceUpdateSessions(t *testing.T) {
	repo := newWorkingDaysRepoStub()
	svc := newWorkingDaysServiceForTest(repo, periodCounterStub{counts: map[string]int{"2026-1": 30}})

	_, err := svc.Set(context.Background(), "admin", SetWorkingDaysRequest{Semester: "2026-1", TotalWorkingDays: 90})
	require.NoError(t, err)

	cfg, err := svc.UpdateSessions(context.Background(), "2026-1", UpdateSessionsRequest{TotalSessions: 480})
	require.NoError(t, err)
	assert.Equal(t, 480, cfg.TotalSessions)

	_, err = svc.UpdateSessions(context.Background(), "2027-1", UpdateSessionsRequest{TotalSessions: 480})
	require.Error(t, err)
}
