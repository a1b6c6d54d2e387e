package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sunrise-clinic/booking-api/internal/models"
)

// ErrCapacityExhausted is returned when an insert or reschedule would push the
// number of overlapping scheduled appointments past the service concurrency
// level.
var ErrCapacityExhausted = errors.New("slot capacity exhausted")

const serializationFailureCode = "40001"

const maxReserveAttempts = 3

// AppointmentRepository provides persistence for appointments.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository creates a new appointment repository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

const appointmentColumns = `id, patient_id, booked_by_user_id, offering_id, technician_id, start_time, end_time, status, booked_by_role, price_at_booking, notes, created_at, updated_at`

const appointmentColumnsPrefixed = `a.id, a.patient_id, a.booked_by_user_id, a.offering_id, a.technician_id, a.start_time, a.end_time, a.status, a.booked_by_role, a.price_at_booking, a.notes, a.created_at, a.updated_at`

// FindByID loads an appointment by id.
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE id = $1`, appointmentColumns)
	var appt models.Appointment
	if err := r.db.GetContext(ctx, &appt, query, id); err != nil {
		return nil, err
	}
	return &appt, nil
}

// ListScheduledForTechnicianRange returns scheduled appointments for a
// technician overlapping [from, to), ordered by start time.
func (r *AppointmentRepository) ListScheduledForTechnicianRange(ctx context.Context, technicianID string, from, to time.Time) ([]models.Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE technician_id = $1 AND status = 'scheduled' AND start_time < $3 AND end_time > $2 ORDER BY start_time ASC`, appointmentColumns)
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, technicianID, from, to); err != nil {
		return nil, fmt.Errorf("list scheduled appointments: %w", err)
	}
	return appts, nil
}

// ListDetailForTechnicianDay returns a technician's appointments starting in
// [from, to) joined with patient names, ordered by start time. One query for
// the whole day schedule.
func (r *AppointmentRepository) ListDetailForTechnicianDay(ctx context.Context, technicianID string, from, to time.Time) ([]models.AppointmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s, p.full_name AS patient_name FROM appointments a JOIN patients p ON p.id = a.patient_id WHERE a.technician_id = $1 AND a.start_time >= $2 AND a.start_time < $3 ORDER BY a.start_time ASC`, appointmentColumnsPrefixed)
	var rows []models.AppointmentDetail
	if err := r.db.SelectContext(ctx, &rows, query, technicianID, from, to); err != nil {
		return nil, fmt.Errorf("list appointment schedule: %w", err)
	}
	return rows, nil
}

// CountCustomerBookedInRange counts scheduled customer-originated bookings for
// a technician whose start falls inside [from, to). Used for half-day quotas.
func (r *AppointmentRepository) CountCustomerBookedInRange(ctx context.Context, technicianID string, from, to time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM appointments WHERE technician_id = $1 AND status = 'scheduled' AND booked_by_role = 'customer' AND start_time >= $2 AND start_time < $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, technicianID, from, to); err != nil {
		return 0, fmt.Errorf("count customer bookings: %w", err)
	}
	return count, nil
}

// ListByManager returns appointments for patients managed by a user.
func (r *AppointmentRepository) ListByManager(ctx context.Context, userID string, upcomingOnly bool) ([]models.Appointment, error) {
	query := `SELECT a.id, a.patient_id, a.booked_by_user_id, a.offering_id, a.technician_id, a.start_time, a.end_time, a.status, a.booked_by_role, a.price_at_booking, a.notes, a.created_at, a.updated_at FROM appointments a JOIN patients p ON p.id = a.patient_id WHERE p.managed_by_user_id = $1`
	if upcomingOnly {
		query += ` AND a.status = 'scheduled' AND a.end_time > NOW()`
	}
	query += ` ORDER BY a.start_time DESC`
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, userID); err != nil {
		return nil, fmt.Errorf("list appointments by manager: %w", err)
	}
	return appts, nil
}

// List returns appointments matching the admin filter with pagination.
func (r *AppointmentRepository) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error) {
	base := "FROM appointments WHERE 1=1"
	var args []interface{}
	if filter.TechnicianID != "" {
		args = append(args, filter.TechnicianID)
		base += fmt.Sprintf(" AND technician_id = $%d", len(args))
	}
	if filter.PatientID != "" {
		args = append(args, filter.PatientID)
		base += fmt.Sprintf(" AND patient_id = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		base += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		base += fmt.Sprintf(" AND start_time >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		base += fmt.Sprintf(" AND start_time < $%d", len(args))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	query := fmt.Sprintf("SELECT %s %s ORDER BY start_time DESC LIMIT %d OFFSET %d", appointmentColumns, base, size, (page-1)*size)
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}
	return appts, total, nil
}

// CreateScheduled inserts a scheduled appointment after re-checking, inside a
// serializable transaction, that the overlap count stays below the service
// concurrency level. Serialization failures from racing inserts are retried;
// a full slot returns ErrCapacityExhausted.
func (r *AppointmentRepository) CreateScheduled(ctx context.Context, appt *models.Appointment, concurrencyLevel int) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	appt.Status = models.AppointmentScheduled

	var lastErr error
	for attempt := 0; attempt < maxReserveAttempts; attempt++ {
		err := r.reserveTx(ctx, appt, concurrencyLevel)
		if err == nil || errors.Is(err, ErrCapacityExhausted) {
			return err
		}
		if !isSerializationFailure(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("reserve slot: %w", lastErr)
}

func (r *AppointmentRepository) reserveTx(ctx context.Context, appt *models.Appointment, concurrencyLevel int) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin reserve tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var overlapping int
	const countQuery = `SELECT COUNT(*) FROM appointments WHERE technician_id = $1 AND status = 'scheduled' AND start_time < $3 AND end_time > $2`
	if err := tx.GetContext(ctx, &overlapping, countQuery, appt.TechnicianID, appt.StartTime, appt.EndTime); err != nil {
		return fmt.Errorf("count overlapping: %w", err)
	}
	if overlapping >= concurrencyLevel {
		return ErrCapacityExhausted
	}

	const insertQuery = `INSERT INTO appointments (id, patient_id, booked_by_user_id, offering_id, technician_id, start_time, end_time, status, booked_by_role, price_at_booking, notes, created_at, updated_at) VALUES (:id, :patient_id, :booked_by_user_id, :offering_id, :technician_id, :start_time, :end_time, :status, :booked_by_role, :price_at_booking, :notes, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, appt); err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reserve tx: %w", err)
	}
	return nil
}

// Reschedule moves an appointment to a new window inside a serializable
// transaction, excluding the appointment itself from the overlap count.
func (r *AppointmentRepository) Reschedule(ctx context.Context, appt *models.Appointment, concurrencyLevel int) error {
	appt.UpdatedAt = time.Now().UTC()

	var lastErr error
	for attempt := 0; attempt < maxReserveAttempts; attempt++ {
		err := r.rescheduleTx(ctx, appt, concurrencyLevel)
		if err == nil || errors.Is(err, ErrCapacityExhausted) {
			return err
		}
		if !isSerializationFailure(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("reschedule slot: %w", lastErr)
}

func (r *AppointmentRepository) rescheduleTx(ctx context.Context, appt *models.Appointment, concurrencyLevel int) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin reschedule tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var overlapping int
	const countQuery = `SELECT COUNT(*) FROM appointments WHERE technician_id = $1 AND status = 'scheduled' AND id <> $2 AND start_time < $4 AND end_time > $3`
	if err := tx.GetContext(ctx, &overlapping, countQuery, appt.TechnicianID, appt.ID, appt.StartTime, appt.EndTime); err != nil {
		return fmt.Errorf("count overlapping: %w", err)
	}
	if overlapping >= concurrencyLevel {
		return ErrCapacityExhausted
	}

	const updateQuery = `UPDATE appointments SET start_time = :start_time, end_time = :end_time, status = :status, price_at_booking = :price_at_booking, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, updateQuery, appt); err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reschedule tx: %w", err)
	}
	return nil
}

// Update persists status, notes and window changes without a capacity check.
func (r *AppointmentRepository) Update(ctx context.Context, appt *models.Appointment) error {
	appt.UpdatedAt = time.Now().UTC()
	const query = `UPDATE appointments SET start_time = :start_time, end_time = :end_time, status = :status, price_at_booking = :price_at_booking, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, appt); err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	return nil
}

// Delete removes an appointment row.
func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	return nil
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == serializationFailureCode
	}
	return false
}
