package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/sunrise-clinic/booking-api/internal/models"
)

func newAppointmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func sampleAppointment() *models.Appointment {
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	return &models.Appointment{
		PatientID:      "pat-1",
		OfferingID:     "off-1",
		TechnicianID:   "tech-1",
		StartTime:      start,
		EndTime:        start.Add(time.Hour),
		BookedByRole:   models.RoleCustomer,
		PriceAtBooking: 188,
	}
}

func TestAppointmentRepositoryCreateScheduled(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM appointments WHERE technician_id = $1 AND status = 'scheduled' AND start_time < $3 AND end_time > $2")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO appointments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	appt := sampleAppointment()
	err := repo.CreateScheduled(context.Background(), appt, 1)
	require.NoError(t, err)
	require.NotEmpty(t, appt.ID)
	require.Equal(t, models.AppointmentScheduled, appt.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryCreateScheduledCapacityExhausted(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.CreateScheduled(context.Background(), sampleAppointment(), 1)
	require.ErrorIs(t, err, ErrCapacityExhausted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryRescheduleExcludesSelf(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM appointments WHERE technician_id = $1 AND status = 'scheduled' AND id <> $2 AND start_time < $4 AND end_time > $3")).
		WithArgs("tech-1", "appt-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("UPDATE appointments SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	appt := sampleAppointment()
	appt.ID = "appt-1"
	appt.Status = models.AppointmentScheduled
	err := repo.Reschedule(context.Background(), appt, 1)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryCountCustomerBookedInRange(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	from := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM appointments WHERE technician_id = $1 AND status = 'scheduled' AND booked_by_role = 'customer' AND start_time >= $2 AND start_time < $3")).
		WithArgs("tech-1", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountCustomerBookedInRange(context.Background(), "tech-1", from, to)
	require.NoError(t, err)
	require.Equal(t, 3, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryListScheduledForTechnicianRange(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "patient_id", "booked_by_user_id", "offering_id", "technician_id", "start_time", "end_time", "status", "booked_by_role", "price_at_booking", "notes", "created_at", "updated_at"}).
		AddRow("appt-1", "pat-1", nil, "off-1", "tech-1", start, start.Add(time.Hour), models.AppointmentScheduled, models.RoleCustomer, 188.0, nil, start, start)
	mock.ExpectQuery("SELECT (.+) FROM appointments WHERE technician_id").
		WillReturnRows(rows)

	appts, err := repo.ListScheduledForTechnicianRange(context.Background(), "tech-1", start, start.Add(8*time.Hour))
	require.NoError(t, err)
	require.Len(t, appts, 1)
	require.Equal(t, "appt-1", appts[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryListDetailJoinsPatientNames(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "patient_id", "booked_by_user_id", "offering_id", "technician_id",
		"start_time", "end_time", "status", "booked_by_role", "price_at_booking",
		"notes", "created_at", "updated_at", "patient_name",
	}).AddRow("appt-1", "pat-1", nil, "off-1", "tech-1", start, start.Add(time.Hour), "scheduled", "customer", 188.0, nil, start, start, "Li Wei")
	mock.ExpectQuery(regexp.QuoteMeta("JOIN patients p ON p.id = a.patient_id")).
		WithArgs("tech-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(rows)

	details, err := repo.ListDetailForTechnicianDay(context.Background(), "tech-1", start, start.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.Equal(t, "Li Wei", details[0].PatientName)
	require.Equal(t, "appt-1", details[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
