package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-portal-api/internal/models"
)

func newAttendanceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func attendanceRow(id string, date time.Time, status models.AttendanceStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "student_id", "timetable_id", "date", "status", "reason",
		"marked_by", "category", "approved_leave", "created_at", "updated_at",
	}).AddRow(id, "student-1", "period-1", date, status, "", "teacher-1", "regular_class", false, time.Now(), time.Now())
}

func TestAttendanceRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance_records")).
		WithArgs(sqlmock.AnyArg(), "student-1", "period-1", date, models.AttendanceStatusPresent, "",
			"teacher-1", models.CategoryRegularClass, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(attendanceRow("rec-1", date, models.AttendanceStatusPresent))

	stored, err := repo.Upsert(context.Background(), &models.AttendanceRecord{
		StudentID:   "student-1",
		TimetableID: "period-1",
		Date:        date,
		Status:      models.AttendanceStatusPresent,
		MarkedBy:    "teacher-1",
		Category:    models.CategoryRegularClass,
	})
	require.NoError(t, err)
	require.Equal(t, "rec-1", stored.ID)
	require.Equal(t, models.AttendanceStatusPresent, stored.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryBulkInsertPartial(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	records := []models.AttendanceRecord{
		{StudentID: "student-1", TimetableID: "period-1", Date: date, Status: models.AttendanceStatusPresent, MarkedBy: "teacher-1", Category: models.CategoryRegularClass},
		{StudentID: "student-2", TimetableID: "period-1", Date: date, Status: models.AttendanceStatusAbsent, MarkedBy: "teacher-1", Category: models.CategoryRegularClass},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance_records")).
		WithArgs(sqlmock.AnyArg(), "student-1", "period-1", date, models.AttendanceStatusPresent, "",
			"teacher-1", models.CategoryRegularClass, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("rec-1"))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance_records")).
		WithArgs(sqlmock.AnyArg(), "student-2", "period-1", date, models.AttendanceStatusAbsent, "",
			"teacher-1", models.CategoryRegularClass, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	conflicts, err := repo.BulkInsert(context.Background(), records, false)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Equal(t, "student-2", conflicts[0].StudentID)
	require.Equal(t, "already marked", conflicts[0].Reason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryBulkInsertAtomicAborts(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	records := []models.AttendanceRecord{
		{StudentID: "student-1", TimetableID: "period-1", Date: date, Status: models.AttendanceStatusPresent, MarkedBy: "teacher-1", Category: models.CategoryRegularClass},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance_records")).
		WithArgs(sqlmock.AnyArg(), "student-1", "period-1", date, models.AttendanceStatusPresent, "",
			"teacher-1", models.CategoryRegularClass, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	conflicts, err := repo.BulkInsert(context.Background(), records, true)
	require.Error(t, err)
	require.Nil(t, conflicts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryIsMarked(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM attendance_records WHERE timetable_id = $1 AND date = $2)")).
		WithArgs("period-1", date).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	marked, err := repo.IsMarked(context.Background(), "period-1", date)
	require.NoError(t, err)
	require.True(t, marked)
	require.NoError(t, mock.ExpectationsWereMet())
}
