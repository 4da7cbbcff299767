package aggregate

import (
	"sort"

	"github.com/noah-isme/attendance-portal-api/internal/models"
)

// ReportRecord is one attendance record prepared for report grouping.
type ReportRecord struct {
	StudentName string
	Subject     string
	Status      models.AttendanceStatus
}

// SubjectRow is one (student, subject) report row.
type SubjectRow struct {
	StudentName string `json:"studentName"`
	Subject     string `json:"subject"`
	PresentDays int    `json:"presentDays"`
	TotalDays   int    `json:"totalDays"`
	Percentage  int    `json:"percentage"`
}

// StudentRow is one consolidated per-student report row.
type StudentRow struct {
	StudentName string `json:"studentName"`
	PresentDays int    `json:"presentDays"`
	TotalDays   int    `json:"totalDays"`
	Percentage  int    `json:"percentage"`
}

// BuildSubjectRows groups records by (student, subject) and computes one row
// per pair. Empty input produces an empty slice; callers surface that as an
// explicit no-data payload rather than an error.
func BuildSubjectRows(records []ReportRecord) []SubjectRow {
	type key struct{ student, subject string }
	type bucket struct{ total, present int }

	buckets := map[key]*bucket{}
	for _, rec := range records {
		k := key{student: rec.StudentName, subject: rec.Subject}
		b := buckets[k]
		if b == nil {
			b = &bucket{}
			buckets[k] = b
		}
		b.total++
		if rec.Status == models.AttendanceStatusPresent {
			b.present++
		}
	}

	rows := make([]SubjectRow, 0, len(buckets))
	for k, b := range buckets {
		rows = append(rows, SubjectRow{
			StudentName: k.student,
			Subject:     k.subject,
			PresentDays: b.present,
			TotalDays:   b.total,
			Percentage:  Percentage(b.present, b.total),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].StudentName != rows[j].StudentName {
			return rows[i].StudentName < rows[j].StudentName
		}
		return rows[i].Subject < rows[j].Subject
	})
	return rows
}

// Consolidate collapses subject rows to one row per student. Present and
// total days are summed and the percentage recomputed from the sums;
// averaging the per-subject percentages would skew toward subjects with
// fewer sessions.
func Consolidate(rows []SubjectRow) []StudentRow {
	type bucket struct{ present, total int }
	buckets := map[string]*bucket{}
	for _, row := range rows {
		b := buckets[row.StudentName]
		if b == nil {
			b = &bucket{}
			buckets[row.StudentName] = b
		}
		b.present += row.PresentDays
		b.total += row.TotalDays
	}

	out := make([]StudentRow, 0, len(buckets))
	for student, b := range buckets {
		out = append(out, StudentRow{
			StudentName: student,
			PresentDays: b.present,
			TotalDays:   b.total,
			Percentage:  Percentage(b.present, b.total),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentName < out[j].StudentName })
	return out
}
