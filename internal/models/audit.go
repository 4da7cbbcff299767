package models

import "time"

// Audit actions recorded in the trail. Login, user mutations, leave
// reviews, and working-days changes are the operations the school needs
// to reconstruct after the fact.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionUserCreate     = "USER_CREATE"
	AuditActionUserUpdate     = "USER_UPDATE"
	AuditActionUserDelete     = "USER_DELETE"
	AuditActionUserImport     = "USER_IMPORT"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
	AuditActionLeaveReview    = "LEAVE_REVIEW"
	AuditActionWorkingDaysSet = "WORKING_DAYS_SET"
)

// AuditLog is one audit trail row. Old and new values hold raw JSON
// snapshots of the affected resource.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
