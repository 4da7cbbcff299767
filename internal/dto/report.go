package dto

import (
	"github.com/noah-isme/attendance-portal-api/internal/aggregate"
	"github.com/noah-isme/attendance-portal-api/internal/models"
)

// ReportRequest captures the POST /reports/export payload.
type ReportRequest struct {
	Type      models.ReportType   `json:"type"`
	Class     string              `json:"class"`
	Semester  string              `json:"semester,omitempty"`
	Month     int                 `json:"month,omitempty"`
	Year      int                 `json:"year,omitempty"`
	StudentID string              `json:"studentId,omitempty"`
	Format    models.ReportFormat `json:"format"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress metadata.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}

// MonthlyReportResponse is the synchronous monthly report payload.
type MonthlyReportResponse struct {
	Class  string                 `json:"class"`
	Month  int                    `json:"month"`
	Year   int                    `json:"year"`
	NoData bool                   `json:"no_data"`
	Rows   []aggregate.SubjectRow `json:"rows"`
}

// SemesterReportResponse is the synchronous consolidated semester payload.
type SemesterReportResponse struct {
	Class    string                 `json:"class"`
	Semester string                 `json:"semester"`
	NoData   bool                   `json:"no_data"`
	Rows     []aggregate.StudentRow `json:"rows"`
}
