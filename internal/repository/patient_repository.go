package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sunrise-clinic/booking-api/internal/models"
)

// PatientRepository provides persistence for patients.
type PatientRepository struct {
	db *sqlx.DB
}

// NewPatientRepository creates a new patient repository.
func NewPatientRepository(db *sqlx.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

const patientColumns = `id, managed_by_user_id, full_name, phone_number, birth_date, notes, created_at, updated_at`

// FindByID loads a patient by id.
func (r *PatientRepository) FindByID(ctx context.Context, id string) (*models.Patient, error) {
	query := fmt.Sprintf(`SELECT %s FROM patients WHERE id = $1`, patientColumns)
	var patient models.Patient
	if err := r.db.GetContext(ctx, &patient, query, id); err != nil {
		return nil, err
	}
	return &patient, nil
}

// ListByManager returns all patients managed by a user, newest first.
func (r *PatientRepository) ListByManager(ctx context.Context, userID string) ([]models.Patient, error) {
	query := fmt.Sprintf(`SELECT %s FROM patients WHERE managed_by_user_id = $1 ORDER BY created_at DESC`, patientColumns)
	var patients []models.Patient
	if err := r.db.SelectContext(ctx, &patients, query, userID); err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return patients, nil
}

// Create stores a new patient.
func (r *PatientRepository) Create(ctx context.Context, patient *models.Patient) error {
	if patient.ID == "" {
		patient.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	patient.CreatedAt = now
	patient.UpdatedAt = now
	const query = `INSERT INTO patients (id, managed_by_user_id, full_name, phone_number, birth_date, notes, created_at, updated_at) VALUES (:id, :managed_by_user_id, :full_name, :phone_number, :birth_date, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, patient); err != nil {
		return fmt.Errorf("create patient: %w", err)
	}
	return nil
}

// Update modifies an existing patient.
func (r *PatientRepository) Update(ctx context.Context, patient *models.Patient) error {
	patient.UpdatedAt = time.Now().UTC()
	const query = `UPDATE patients SET full_name = :full_name, phone_number = :phone_number, birth_date = :birth_date, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, patient); err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	return nil
}

// Delete removes a patient row.
func (r *PatientRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	return nil
}

// CountScheduledAppointments returns how many scheduled appointments reference
// the patient. Used to block deleting a patient with upcoming bookings.
func (r *PatientRepository) CountScheduledAppointments(ctx context.Context, patientID string) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM appointments WHERE patient_id = $1 AND status = 'scheduled' AND start_time > NOW()`
	if err := r.db.GetContext(ctx, &count, query, patientID); err != nil {
		return 0, fmt.Errorf("count patient appointments: %w", err)
	}
	return count, nil
}
