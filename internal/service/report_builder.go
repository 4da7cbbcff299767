package service

import (
	"context"
	"time"

	"github.com/noah-isme/attendance-portal-api/internal/aggregate"
	"github.com/noah-isme/attendance-portal-api/internal/models"
	appErrors "github.com/noah-isme/attendance-portal-api/pkg/errors"
)

type reportRecordsReader interface {
	ClassRecords(ctx context.Context, class, semester string, from, to *time.Time) ([]models.AttendanceContext, error)
	StudentRecords(ctx context.Context, studentID string, semester string, from, to *time.Time) ([]models.AttendanceContext, error)
}

// ReportBuilder turns stored attendance into the per-subject and
// consolidated report rows. Both the synchronous report endpoints and the
// export worker build through it so the numbers never diverge.
type ReportBuilder struct {
	attendance reportRecordsReader
}

// NewReportBuilder constructs the builder.
func NewReportBuilder(attendance reportRecordsReader) *ReportBuilder {
	return &ReportBuilder{attendance: attendance}
}

// MonthlyRows returns per-(student, subject) rows for a class within the
// given month. An empty month yields an empty slice, never an error.
func (b *ReportBuilder) MonthlyRows(ctx context.Context, class string, month, year int) ([]aggregate.SubjectRow, error) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)
	records, err := b.attendance.ClassRecords(ctx, class, "", &from, &to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class records")
	}
	return aggregate.BuildSubjectRows(toReportRecords(records)), nil
}

// SemesterRows returns one consolidated row per student for a class in the
// semester: per-subject counts are summed and the percentage recomputed
// from the sums.
func (b *ReportBuilder) SemesterRows(ctx context.Context, class, semester string) ([]aggregate.StudentRow, error) {
	records, err := b.attendance.ClassRecords(ctx, class, semester, nil, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class records")
	}
	return aggregate.Consolidate(aggregate.BuildSubjectRows(toReportRecords(records))), nil
}

// StudentRows returns per-subject rows for one student in a semester.
func (b *ReportBuilder) StudentRows(ctx context.Context, studentID, semester string) ([]aggregate.SubjectRow, error) {
	records, err := b.attendance.StudentRecords(ctx, studentID, semester, nil, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student records")
	}
	return aggregate.BuildSubjectRows(toReportRecords(records)), nil
}

func toReportRecords(rows []models.AttendanceContext) []aggregate.ReportRecord {
	records := make([]aggregate.ReportRecord, len(rows))
	for i, row := range rows {
		records[i] = aggregate.ReportRecord{
			StudentName: row.StudentName,
			Subject:     row.Subject,
			Status:      row.Status,
		}
	}
	return records
}
