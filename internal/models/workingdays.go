package models

import "time"

// WorkingDaysConfig is the institutionally configured denominator for a
// semester's attendance percentage. One row per semester; creation rejects
// an existing semester and total_sessions changes only through an explicit
// update operation. RequiredPercentage overrides the application default
// when set.
type WorkingDaysConfig struct {
	ID                 string    `db:"id" json:"id"`
	Semester           string    `db:"semester" json:"semester"`
	TotalWorkingDays   int       `db:"total_working_days" json:"total_working_days"`
	TotalSessions      int       `db:"total_sessions" json:"total_sessions"`
	RequiredPercentage *int      `db:"required_percentage" json:"required_percentage,omitempty"`
	CreatedBy          string    `db:"created_by" json:"created_by"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// WorkingDaysConfigDetail joins the creator's display fields.
type WorkingDaysConfigDetail struct {
	WorkingDaysConfig
	CreatorName  string `db:"creator_name" json:"creator_name"`
	CreatorEmail string `db:"creator_email" json:"creator_email"`
}
