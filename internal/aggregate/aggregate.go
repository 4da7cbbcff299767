// Package aggregate implements the attendance computation core: percentage
// aggregation over per-period records, leave crediting, eligibility
// classification and report consolidation. Everything here is pure; callers
// fetch records (with their class/subject/semester context already joined)
// and feed them in.
package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/noah-isme/attendance-portal-api/internal/models"
)

// Record is one attendance record with its resolved timetable context.
type Record struct {
	Date     time.Time
	Class    string
	Subject  string
	Semester string
	Status   models.AttendanceStatus
}

// Options tunes a summary computation.
type Options struct {
	// TotalWorkingDays, when positive, is the configured denominator for the
	// overall percentage. Zero means "not configured": the record count is
	// used instead.
	TotalWorkingDays int
	// RequiredPercentage is the eligibility threshold (inclusive).
	RequiredPercentage int
}

// DailyEntry is a raw record passthrough row.
type DailyEntry struct {
	Date    time.Time               `json:"date"`
	Class   string                  `json:"class"`
	Subject string                  `json:"subject"`
	Status  models.AttendanceStatus `json:"status"`
}

// MonthlyEntry aggregates one (month, year) group.
type MonthlyEntry struct {
	Month        int `json:"month"`
	Year         int `json:"year"`
	TotalClasses int `json:"totalClasses"`
	Present      int `json:"present"`
	Percentage   int `json:"percentage"`
}

// SemesterEntry aggregates one semester group.
type SemesterEntry struct {
	Semester     string `json:"semester"`
	TotalClasses int    `json:"totalClasses"`
	Present      int    `json:"present"`
	Percentage   int    `json:"percentage"`
}

// Summary is the full per-student aggregation payload.
type Summary struct {
	RequiredPercentage int             `json:"requiredPercentage"`
	OverallPercentage  int             `json:"overallPercentage"`
	Status             Standing        `json:"status"`
	Daily              []DailyEntry    `json:"daily"`
	Monthly            []MonthlyEntry  `json:"monthly"`
	Semester           []SemesterEntry `json:"semester"`
}

// Percentage computes round(present/total*100) with half-up rounding,
// clamped to [0,100]. A non-positive total yields 0, never a division fault.
func Percentage(present, total int) int {
	if total <= 0 || present <= 0 {
		return 0
	}
	pct := int(math.Round(float64(present) / float64(total) * 100))
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Summarize aggregates a student's records at daily, monthly and semester
// granularity. Zero records yield a zeroed summary with the no-records
// standing, not an error.
func Summarize(records []Record, opts Options) Summary {
	summary := Summary{
		RequiredPercentage: opts.RequiredPercentage,
		Daily:              []DailyEntry{},
		Monthly:            []MonthlyEntry{},
		Semester:           []SemesterEntry{},
	}
	if len(records) == 0 {
		summary.Status = StandingNoRecords
		return summary
	}

	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	present := 0
	type bucket struct{ total, present int }
	type monthKey struct{ year, month int }
	monthly := map[monthKey]*bucket{}
	semesters := map[string]*bucket{}

	for _, rec := range sorted {
		summary.Daily = append(summary.Daily, DailyEntry{
			Date:    rec.Date,
			Class:   rec.Class,
			Subject: rec.Subject,
			Status:  rec.Status,
		})

		mk := monthKey{year: rec.Date.Year(), month: int(rec.Date.Month())}
		mb := monthly[mk]
		if mb == nil {
			mb = &bucket{}
			monthly[mk] = mb
		}
		sem := rec.Semester
		if sem == "" {
			sem = "Unknown"
		}
		sb := semesters[sem]
		if sb == nil {
			sb = &bucket{}
			semesters[sem] = sb
		}

		mb.total++
		sb.total++
		if rec.Status == models.AttendanceStatusPresent {
			present++
			mb.present++
			sb.present++
		}
	}

	for key, b := range monthly {
		summary.Monthly = append(summary.Monthly, MonthlyEntry{
			Month:        key.month,
			Year:         key.year,
			TotalClasses: b.total,
			Present:      b.present,
			Percentage:   Percentage(b.present, b.total),
		})
	}
	sort.Slice(summary.Monthly, func(i, j int) bool {
		if summary.Monthly[i].Year != summary.Monthly[j].Year {
			return summary.Monthly[i].Year < summary.Monthly[j].Year
		}
		return summary.Monthly[i].Month < summary.Monthly[j].Month
	})

	for sem, b := range semesters {
		summary.Semester = append(summary.Semester, SemesterEntry{
			Semester:     sem,
			TotalClasses: b.total,
			Present:      b.present,
			Percentage:   Percentage(b.present, b.total),
		})
	}
	sort.Slice(summary.Semester, func(i, j int) bool {
		return summary.Semester[i].Semester < summary.Semester[j].Semester
	})

	denominator := len(sorted)
	if opts.TotalWorkingDays > 0 {
		denominator = opts.TotalWorkingDays
	}
	summary.OverallPercentage = Percentage(present, denominator)
	summary.Status = Classify(summary.OverallPercentage, opts.RequiredPercentage)
	return summary
}
