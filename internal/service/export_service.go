package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sunrise-clinic/booking-api/internal/models"
	appErrors "github.com/sunrise-clinic/booking-api/pkg/errors"
	"github.com/sunrise-clinic/booking-api/pkg/export"
	"github.com/sunrise-clinic/booking-api/pkg/jobs"
	"github.com/sunrise-clinic/booking-api/pkg/storage"
)

type exportAppointmentLister interface {
	ListDetailForTechnicianDay(ctx context.Context, technicianID string, from, to time.Time) ([]models.AppointmentDetail, error)
}

type exportTechnicianReader interface {
	FindByID(ctx context.Context, id string) (*models.Technician, error)
}

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

// ExportConfig tunes schedule export behaviour.
type ExportConfig struct {
	Enabled   bool
	APIPrefix string
	ResultTTL time.Duration
	Workers   int
	Retries   int
}

// ScheduleExportRequest asks for a technician day-schedule file.
type ScheduleExportRequest struct {
	TechnicianID string `json:"technician_id" validate:"required"`
	Date         string `json:"date" validate:"required,datetime=2006-01-02"`
	Format       string `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportService queues technician day-schedule exports and renders them in
// the background.
type ExportService struct {
	appointments exportAppointmentLister
	technicians  exportTechnicianReader
	storage      fileStorage
	csv          csvRenderer
	pdf          pdfRenderer
	signer       *storage.SignedURLSigner
	location     *time.Location
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          ExportConfig

	queue *jobs.Queue
	mu    sync.RWMutex
	reg   map[string]*models.ExportJob
}

// NewExportService constructs an ExportService.
func NewExportService(
	appointments exportAppointmentLister,
	technicians exportTechnicianReader,
	store fileStorage,
	signer *storage.SignedURLSigner,
	location *time.Location,
	cfg ExportConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if location == nil {
		location = time.UTC
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	s := &ExportService{
		appointments: appointments,
		technicians:  technicians,
		storage:      store,
		csv:          export.NewCSVExporter(),
		pdf:          export.NewPDFExporter(),
		signer:       signer,
		location:     location,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
		reg:          make(map[string]*models.ExportJob),
	}
	s.queue = jobs.NewQueue("schedule-exports", s.process, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		Logger:     logger,
	})
	return s
}

// Start launches the background workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the background workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Enqueue validates and queues a new export job.
func (s *ExportService) Enqueue(ctx context.Context, requestedBy string, req ScheduleExportRequest) (*models.ExportJob, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "schedule exports are disabled")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}

	if _, err := s.technicians.FindByID(ctx, req.TechnicianID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "technician not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify technician")
	}

	date, err := time.ParseInLocation("2006-01-02", req.Date, s.location)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export date")
	}

	job := &models.ExportJob{
		ID:           uuid.NewString(),
		TechnicianID: req.TechnicianID,
		Date:         date,
		Format:       models.ExportFormat(req.Format),
		Status:       models.ExportJobQueued,
		RequestedBy:  requestedBy,
		CreatedAt:    time.Now().UTC(),
	}
	s.mu.Lock()
	s.reg[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "schedule-export", Payload: job.ID}); err != nil {
		s.setFailed(job.ID, err.Error())
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}
	return job, nil
}

// Job returns the current status of a queued export.
func (s *ExportService) Job(id string) (*models.ExportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.reg[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	snapshot := *job
	return &snapshot, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	jobID, _ := job.Payload.(string)
	s.mu.Lock()
	stored, ok := s.reg[jobID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown export job %s", jobID)
	}
	stored.Status = models.ExportJobProcessing
	snapshot := *stored
	s.mu.Unlock()

	dataset, title, err := s.buildDataset(ctx, &snapshot)
	if err != nil {
		s.setFailed(jobID, err.Error())
		return err
	}

	var payload []byte
	switch snapshot.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", snapshot.Format)
	}
	if err != nil {
		s.setFailed(jobID, err.Error())
		return err
	}

	filename := s.buildFilename(&snapshot)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		s.setFailed(jobID, err.Error())
		return err
	}

	token, _, err := s.signer.Generate(jobID, relPath)
	if err != nil {
		s.setFailed(jobID, err.Error())
		return err
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	now := time.Now().UTC()

	s.mu.Lock()
	if stored, ok := s.reg[jobID]; ok {
		stored.Status = models.ExportJobCompleted
		stored.FileName = relPath
		stored.DownloadURL = fmt.Sprintf("%s/admin/exports/download/%s", prefix, token)
		stored.CompletedAt = &now
	}
	s.mu.Unlock()
	return nil
}

func (s *ExportService) setFailed(jobID, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, ok := s.reg[jobID]; ok {
		stored.Status = models.ExportJobFailed
		stored.Error = reason
	}
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ExportJob) (export.Dataset, string, error) {
	dayStart := job.Date
	dayEnd := dayStart.AddDate(0, 0, 1)
	appointments, err := s.appointments.ListDetailForTechnicianDay(ctx, job.TechnicianID, dayStart, dayEnd)
	if err != nil {
		return export.Dataset{}, "", err
	}

	headers := []string{"Start", "End", "Patient", "Status", "Booked By", "Price", "Notes"}
	rows := make([]map[string]string, 0, len(appointments))
	for _, appt := range appointments {
		patientName := appt.PatientName
		if patientName == "" {
			patientName = appt.PatientID
		}
		notes := ""
		if appt.Notes != nil {
			notes = *appt.Notes
		}
		rows = append(rows, map[string]string{
			"Start":     appt.StartTime.In(s.location).Format("15:04"),
			"End":       appt.EndTime.In(s.location).Format("15:04"),
			"Patient":   patientName,
			"Status":    string(appt.Status),
			"Booked By": string(appt.BookedByRole),
			"Price":     fmt.Sprintf("%.2f", appt.PriceAtBooking),
			"Notes":     notes,
		})
	}

	title := fmt.Sprintf("Schedule %s", job.Date.Format("2006-01-02"))
	if technician, err := s.technicians.FindByID(ctx, job.TechnicianID); err == nil {
		title = fmt.Sprintf("Schedule %s %s", technician.DisplayName, job.Date.Format("2006-01-02"))
	}
	return export.Dataset{Headers: headers, Rows: rows}, title, nil
}

func (s *ExportService) buildFilename(job *models.ExportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("schedule_%s_%s_%s.%s",
		sanitizeFilename(job.TechnicianID), job.Date.Format("20060102"), timestamp, job.Format)
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
