package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunrise-clinic/booking-api/internal/models"
	appErrors "github.com/sunrise-clinic/booking-api/pkg/errors"
	"github.com/sunrise-clinic/booking-api/pkg/storage"
)

type exportApptStub struct{}

func (exportApptStub) ListDetailForTechnicianDay(ctx context.Context, technicianID string, from, to time.Time) ([]models.AppointmentDetail, error) {
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	return []models.AppointmentDetail{
		{
			Appointment: models.Appointment{
				ID:             "appt-1",
				PatientID:      "pat-1",
				TechnicianID:   technicianID,
				StartTime:      start,
				EndTime:        start.Add(time.Hour),
				Status:         models.AppointmentScheduled,
				BookedByRole:   models.RoleCustomer,
				PriceAtBooking: 188,
			},
			PatientName: "Li Wei",
		},
	}, nil
}

func newExportFixture(t *testing.T, enabled bool) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(
		exportApptStub{},
		&mockTechnicianReader{technicians: map[string]*models.Technician{"tech-1": plainTechnician()}},
		store,
		signer,
		time.UTC,
		ExportConfig{Enabled: enabled, APIPrefix: "/api/v1", ResultTTL: time.Hour, Workers: 1},
		nil,
		nil,
	)
	return svc, store
}

func TestExportEnqueueDisabled(t *testing.T) {
	svc, _ := newExportFixture(t, false)

	_, err := svc.Enqueue(context.Background(), "admin-1", ScheduleExportRequest{TechnicianID: "tech-1", Date: "2025-06-02", Format: "csv"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportEnqueueUnknownTechnician(t *testing.T) {
	svc, _ := newExportFixture(t, true)
	svc.Start(context.Background())
	defer svc.Stop()

	_, err := svc.Enqueue(context.Background(), "admin-1", ScheduleExportRequest{TechnicianID: "tech-9", Date: "2025-06-02", Format: "csv"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportCSVCompletes(t *testing.T) {
	svc, store := newExportFixture(t, true)
	svc.Start(context.Background())
	defer svc.Stop()

	job, err := svc.Enqueue(context.Background(), "admin-1", ScheduleExportRequest{TechnicianID: "tech-1", Date: "2025-06-02", Format: "csv"})
	require.NoError(t, err)
	assert.Equal(t, models.ExportJobQueued, job.Status)

	require.Eventually(t, func() bool {
		current, err := svc.Job(job.ID)
		return err == nil && current.Status == models.ExportJobCompleted
	}, 5*time.Second, 10*time.Millisecond)

	current, err := svc.Job(job.ID)
	require.NoError(t, err)
	require.NotEmpty(t, current.FileName)
	require.Contains(t, current.DownloadURL, "/admin/exports/download/")

	content, err := os.ReadFile(store.Path(current.FileName))
	require.NoError(t, err)
	assert.Contains(t, string(content), "Li Wei")
}

func TestExportPDFCompletesAndTokenRoundTrips(t *testing.T) {
	svc, _ := newExportFixture(t, true)
	svc.Start(context.Background())
	defer svc.Stop()

	job, err := svc.Enqueue(context.Background(), "admin-1", ScheduleExportRequest{TechnicianID: "tech-1", Date: "2025-06-02", Format: "pdf"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		current, err := svc.Job(job.ID)
		return err == nil && current.Status == models.ExportJobCompleted
	}, 5*time.Second, 10*time.Millisecond)

	current, err := svc.Job(job.ID)
	require.NoError(t, err)

	parts := strings.Split(current.DownloadURL, "/")
	token := parts[len(parts)-1]
	jobID, relPath, _, err := svc.ParseToken(token, false)
	require.NoError(t, err)
	assert.Equal(t, job.ID, jobID)
	assert.Equal(t, current.FileName, relPath)

	file, err := svc.Open(relPath)
	require.NoError(t, err)
	require.NoError(t, file.Close())
}

func TestExportUnknownJob(t *testing.T) {
	svc, _ := newExportFixture(t, true)

	_, err := svc.Job("missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
