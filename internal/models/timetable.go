package models

import "time"

// TimetablePeriod is a scheduled (class, subject, teacher, day-of-week,
// time-range) slot that attendance is recorded against.
type TimetablePeriod struct {
	ID        string    `db:"id" json:"id"`
	Class     string    `db:"class" json:"class"`
	Semester  string    `db:"semester" json:"semester"`
	Subject   string    `db:"subject" json:"subject"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	DayOfWeek string    `db:"day_of_week" json:"day_of_week"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	Room      string    `db:"room" json:"room,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TimetablePeriodDetail joins the teacher's display fields onto a period.
type TimetablePeriodDetail struct {
	TimetablePeriod
	TeacherName  string `db:"teacher_name" json:"teacher_name"`
	TeacherEmail string `db:"teacher_email" json:"teacher_email"`
}

// TimetableFilter narrows timetable listings.
type TimetableFilter struct {
	Class     string
	Semester  string
	Subject   string
	TeacherID string
	DayOfWeek string
}

// ClassSubject is a distinct (class, subject) pair taught by a teacher
// within a semester.
type ClassSubject struct {
	Class   string `db:"class" json:"class"`
	Subject string `db:"subject" json:"subject"`
}

// UpcomingClass is a timetable period projected onto a concrete date within
// the next week, flagged when attendance has already been marked.
type UpcomingClass struct {
	TimetablePeriod
	Date     time.Time `json:"date"`
	IsMarked bool      `json:"is_marked"`
}
