package models

import "time"

// LeaveStatus captures the lifecycle of a leave request.
type LeaveStatus string

const (
	LeaveStatusPending   LeaveStatus = "pending"
	LeaveStatusApproved  LeaveStatus = "approved"
	LeaveStatusDenied    LeaveStatus = "denied"
	LeaveStatusDutyLeave LeaveStatus = "duty_leave"
)

// Valid returns true for a supported status value.
func (s LeaveStatus) Valid() bool {
	switch s {
	case LeaveStatusPending, LeaveStatusApproved, LeaveStatusDenied, LeaveStatusDutyLeave:
		return true
	default:
		return false
	}
}

// ReviewOutcome reports whether a status is a terminal review decision.
func (s LeaveStatus) ReviewOutcome() bool {
	switch s {
	case LeaveStatusApproved, LeaveStatusDenied, LeaveStatusDutyLeave:
		return true
	default:
		return false
	}
}

// LeaveRequest is a student's leave application. It is created pending,
// transitions exactly once to a review outcome, and is deletable only while
// pending by its owner.
type LeaveRequest struct {
	ID           string      `db:"id" json:"id"`
	StudentID    string      `db:"student_id" json:"student_id"`
	FromDate     time.Time   `db:"from_date" json:"from_date"`
	ToDate       time.Time   `db:"to_date" json:"to_date"`
	Reason       string      `db:"reason" json:"reason"`
	Status       LeaveStatus `db:"status" json:"status"`
	IsEventLeave bool        `db:"is_event_leave" json:"is_event_leave"`
	EventID      *string     `db:"event_id" json:"event_id,omitempty"`
	ReviewedBy   *string     `db:"reviewed_by" json:"reviewed_by,omitempty"`
	AppliedAt    time.Time   `db:"applied_at" json:"applied_at"`
}

// LeaveRequestDetail joins student and reviewer display fields.
type LeaveRequestDetail struct {
	LeaveRequest
	StudentName  string  `db:"student_name" json:"student_name"`
	StudentEmail string  `db:"student_email" json:"student_email"`
	StudentClass *string `db:"student_class" json:"student_class,omitempty"`
	ReviewerName *string `db:"reviewer_name" json:"reviewer_name,omitempty"`
}

// LeaveFilter scopes leave listings.
type LeaveFilter struct {
	StudentID string
	Class     string
	Status    *LeaveStatus
	From      *time.Time
	To        *time.Time
}

// LeaveSpan is the (from, to) window of one approved leave request, used by
// the leave-credit resolver.
type LeaveSpan struct {
	From time.Time `db:"from_date" json:"from"`
	To   time.Time `db:"to_date" json:"to"`
}
