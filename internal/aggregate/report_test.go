package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-portal-api/internal/models"
)

func TestBuildSubjectRowsGroupsByStudentAndSubject(t *testing.T) {
	records := []ReportRecord{
		{StudentName: "Asha", Subject: "Maths", Status: models.AttendanceStatusPresent},
		{StudentName: "Asha", Subject: "Maths", Status: models.AttendanceStatusAbsent},
		{StudentName: "Asha", Subject: "Physics", Status: models.AttendanceStatusPresent},
		{StudentName: "Ravi", Subject: "Maths", Status: models.AttendanceStatusPresent},
	}

	rows := BuildSubjectRows(records)
	require.Len(t, rows, 3)

	assert.Equal(t, SubjectRow{StudentName: "Asha", Subject: "Maths", PresentDays: 1, TotalDays: 2, Percentage: 50}, rows[0])
	assert.Equal(t, SubjectRow{StudentName: "Asha", Subject: "Physics", PresentDays: 1, TotalDays: 1, Percentage: 100}, rows[1])
	assert.Equal(t, SubjectRow{StudentName: "Ravi", Subject: "Maths", PresentDays: 1, TotalDays: 1, Percentage: 100}, rows[2])
}

func TestBuildSubjectRowsEmptyInput(t *testing.T) {
	rows := BuildSubjectRows(nil)
	assert.Empty(t, rows)
}

func TestBuildSubjectRowsLeaveStatusesNotPresent(t *testing.T) {
	records := []ReportRecord{
		{StudentName: "Asha", Subject: "Maths", Status: models.AttendanceStatusOnLeave},
		{StudentName: "Asha", Subject: "Maths", Status: models.AttendanceStatusDutyLeave},
		{StudentName: "Asha", Subject: "Maths", Status: models.AttendanceStatusPresent},
	}

	rows := BuildSubjectRows(records)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].PresentDays)
	assert.Equal(t, 3, rows[0].TotalDays)
	assert.Equal(t, 33, rows[0].Percentage)
}

func TestConsolidateRecomputesFromSums(t *testing.T) {
	// subject A: 1/1 (100%), subject B: 0/3 (0%). Consolidated must be
	// round(1/4*100)=25, not the 50 an average of percentages would give.
	rows := []SubjectRow{
		{StudentName: "Asha", Subject: "A", PresentDays: 1, TotalDays: 1, Percentage: 100},
		{StudentName: "Asha", Subject: "B", PresentDays: 0, TotalDays: 3, Percentage: 0},
	}

	out := Consolidate(rows)
	require.Len(t, out, 1)
	assert.Equal(t, StudentRow{StudentName: "Asha", PresentDays: 1, TotalDays: 4, Percentage: 25}, out[0])
}

func TestConsolidateOneRowPerStudent(t *testing.T) {
	rows := BuildSubjectRows([]ReportRecord{
		{StudentName: "Asha", Subject: "Maths", Status: models.AttendanceStatusPresent},
		{StudentName: "Asha", Subject: "Physics", Status: models.AttendanceStatusAbsent},
		{StudentName: "Ravi", Subject: "Maths", Status: models.AttendanceStatusPresent},
		{StudentName: "Ravi", Subject: "Physics", Status: models.AttendanceStatusPresent},
	})

	out := Consolidate(rows)
	require.Len(t, out, 2)
	assert.Equal(t, "Asha", out[0].StudentName)
	assert.Equal(t, 50, out[0].Percentage)
	assert.Equal(t, "Ravi", out[1].StudentName)
	assert.Equal(t, 100, out[1].Percentage)
}

func TestConsolidateEmpty(t *testing.T) {
	assert.Empty(t, Consolidate(nil))
}
