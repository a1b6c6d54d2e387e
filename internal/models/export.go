package models

import "time"

// ExportFormat picks the rendered file type for schedule exports.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportJobStatus tracks asynchronous export progress.
type ExportJobStatus string

const (
	ExportJobQueued     ExportJobStatus = "queued"
	ExportJobProcessing ExportJobStatus = "processing"
	ExportJobCompleted  ExportJobStatus = "completed"
	ExportJobFailed     ExportJobStatus = "failed"
)

// ExportJob is a queued technician day-schedule export.
type ExportJob struct {
	ID           string          `json:"id"`
	TechnicianID string          `json:"technician_id"`
	Date         time.Time       `json:"date"`
	Format       ExportFormat    `json:"format"`
	Status       ExportJobStatus `json:"status"`
	FileName     string          `json:"file_name,omitempty"`
	DownloadURL  string          `json:"download_url,omitempty"`
	Error        string          `json:"error,omitempty"`
	RequestedBy  string          `json:"requested_by"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}
