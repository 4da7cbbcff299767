package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent   AttendanceStatus = "present"
	AttendanceStatusAbsent    AttendanceStatus = "absent"
	AttendanceStatusOnLeave   AttendanceStatus = "on_leave"
	AttendanceStatusDutyLeave AttendanceStatus = "duty_leave"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusOnLeave, AttendanceStatusDutyLeave:
		return true
	default:
		return false
	}
}

// AttendanceCategory distinguishes the kind of session a record belongs to.
type AttendanceCategory string

const (
	CategoryRegularClass AttendanceCategory = "regular_class"
	CategoryRevision     AttendanceCategory = "revision"
	CategoryExtra        AttendanceCategory = "extra"
)

// Valid returns true when the category is supported.
func (c AttendanceCategory) Valid() bool {
	switch c {
	case CategoryRegularClass, CategoryRevision, CategoryExtra:
		return true
	default:
		return false
	}
}

// BulkOperationMode controls how bulk writes behave on errors.
type BulkOperationMode string

const (
	BulkModeAtomic         BulkOperationMode = "atomic"
	BulkModePartialOnError BulkOperationMode = "partialOnError"
)

// AttendanceRecord is a single per-period attendance row. The natural
// identity is (student_id, timetable_id, date); writes are upserts on that
// key so concurrent marking never produces duplicate rows.
type AttendanceRecord struct {
	ID            string             `db:"id" json:"id"`
	StudentID     string             `db:"student_id" json:"student_id"`
	TimetableID   string             `db:"timetable_id" json:"timetable_id"`
	Date          time.Time          `db:"date" json:"date"`
	Status        AttendanceStatus   `db:"status" json:"status"`
	Reason        string             `db:"reason" json:"reason,omitempty"`
	MarkedBy      string             `db:"marked_by" json:"marked_by"`
	Category      AttendanceCategory `db:"category" json:"category"`
	ApprovedLeave bool               `db:"approved_leave" json:"approved_leave"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updated_at"`
}

// AttendanceContext is an attendance record joined with the timetable
// period it was recorded against. The (class, subject, semester) triple is
// resolved once at query time so aggregation never re-derives it.
type AttendanceContext struct {
	AttendanceRecord
	Class       string `db:"class" json:"class"`
	Subject     string `db:"subject" json:"subject"`
	Semester    string `db:"semester" json:"semester"`
	StudentName string `db:"student_name" json:"student_name"`
}

// AttendanceFilter defines query filters for listing records.
type AttendanceFilter struct {
	StudentID   string
	TimetableID string
	Class       string
	Semester    string
	Subject     string
	Status      *AttendanceStatus
	DateFrom    *time.Time
	DateTo      *time.Time
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}

// AttendanceBulkConflict captures a row skipped or rejected during bulk
// marking, with the reason returned to the caller.
type AttendanceBulkConflict struct {
	StudentID   string    `json:"student_id"`
	TimetableID string    `json:"timetable_id"`
	Date        time.Time `json:"date"`
	Reason      string    `json:"reason"`
}

// RosterEntry is one student in a teacher's class roster annotated with
// effective-presence eligibility data.
type RosterEntry struct {
	StudentID      string            `json:"student_id"`
	Name           string            `json:"name"`
	Email          string            `json:"email"`
	Percentage     int               `json:"attendance_percentage"`
	ExistingStatus *AttendanceStatus `json:"existing_status,omitempty"`
}

// ClassRoster is the roster payload for a period on a given day.
type ClassRoster struct {
	Class            string        `json:"class"`
	Semester         string        `json:"semester"`
	TotalWorkingDays int           `json:"total_working_days"`
	AlreadyMarked    bool          `json:"already_marked"`
	Students         []RosterEntry `json:"students"`
}
