package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-portal-api/internal/aggregate"
	"github.com/noah-isme/attendance-portal-api/internal/models"
	"github.com/noah-isme/attendance-portal-api/pkg/export"
	"github.com/noah-isme/attendance-portal-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService renders report datasets to files and signs download URLs.
type ExportService struct {
	builder *ReportBuilder
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(builder *ReportBuilder, stor fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		builder: builder,
		storage: stor,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Generate builds the dataset for a job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

const (
	colStudent     = "Student"
	colSubject     = "Subject"
	colPresentDays = "Present Days"
	colTotalDays   = "Total Days"
	colPercentage  = "Percentage"
)

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	params := job.Params
	switch job.Type {
	case models.ReportTypeMonthly:
		rows, err := s.builder.MonthlyRows(ctx, params.Class, params.Month, params.Year)
		if err != nil {
			return export.Dataset{}, "", err
		}
		title := fmt.Sprintf("Monthly Attendance %s %02d/%d", params.Class, params.Month, params.Year)
		return subjectDataset(rows), title, nil
	case models.ReportTypeSemester:
		rows, err := s.builder.SemesterRows(ctx, params.Class, params.Semester)
		if err != nil {
			return export.Dataset{}, "", err
		}
		dataset := export.Dataset{
			Headers: []string{colStudent, colPresentDays, colTotalDays, colPercentage},
			Rows:    make([]map[string]string, len(rows)),
		}
		for i, row := range rows {
			dataset.Rows[i] = map[string]string{
				colStudent:     row.StudentName,
				colPresentDays: strconv.Itoa(row.PresentDays),
				colTotalDays:   strconv.Itoa(row.TotalDays),
				colPercentage:  strconv.Itoa(row.Percentage),
			}
		}
		title := fmt.Sprintf("Semester Attendance %s %s", params.Class, params.Semester)
		return dataset, title, nil
	case models.ReportTypeStudent:
		rows, err := s.builder.StudentRows(ctx, params.StudentID, params.Semester)
		if err != nil {
			return export.Dataset{}, "", err
		}
		title := fmt.Sprintf("Student Attendance %s", params.Semester)
		return subjectDataset(rows), title, nil
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func subjectDataset(rows []aggregate.SubjectRow) export.Dataset {
	dataset := export.Dataset{
		Headers: []string{colStudent, colSubject, colPresentDays, colTotalDays, colPercentage},
		Rows:    make([]map[string]string, len(rows)),
	}
	for i, row := range rows {
		dataset.Rows[i] = map[string]string{
			colStudent:     row.StudentName,
			colSubject:     row.Subject,
			colPresentDays: strconv.Itoa(row.PresentDays),
			colTotalDays:   strconv.Itoa(row.TotalDays),
			colPercentage:  strconv.Itoa(row.Percentage),
		}
	}
	return dataset
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := sanitizeFilename(job.Params.Class)
	if job.Type == models.ReportTypeStudent {
		scope = sanitizeFilename(job.Params.StudentID)
	}
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), scope, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
