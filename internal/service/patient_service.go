package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sunrise-clinic/booking-api/internal/models"
	appErrors "github.com/sunrise-clinic/booking-api/pkg/errors"
)

type patientRepository interface {
	FindByID(ctx context.Context, id string) (*models.Patient, error)
	ListByManager(ctx context.Context, userID string) ([]models.Patient, error)
	Create(ctx context.Context, patient *models.Patient) error
	Update(ctx context.Context, patient *models.Patient) error
	Delete(ctx context.Context, id string) error
	CountScheduledAppointments(ctx context.Context, patientID string) (int, error)
}

// PatientRequest carries patient create and update payloads.
type PatientRequest struct {
	FullName    string  `json:"full_name" validate:"required,min=1"`
	PhoneNumber *string `json:"phone_number"`
	BirthDate   *string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Notes       *string `json:"notes"`
}

// PatientService manages the patients a customer books for.
type PatientService struct {
	repo      patientRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPatientService constructs a PatientService instance.
func NewPatientService(repo patientRepository, validate *validator.Validate, logger *zap.Logger) *PatientService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PatientService{repo: repo, validator: validate, logger: logger}
}

// ListMine returns the patients managed by the given user.
func (s *PatientService) ListMine(ctx context.Context, userID string) ([]models.Patient, error) {
	patients, err := s.repo.ListByManager(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list patients")
	}
	return patients, nil
}

// Create registers a new patient under the given user.
func (s *PatientService) Create(ctx context.Context, userID string, req PatientRequest) (*models.Patient, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid patient payload")
	}

	patient := &models.Patient{
		ID:              uuid.NewString(),
		ManagedByUserID: userID,
		FullName:        req.FullName,
		PhoneNumber:     req.PhoneNumber,
		BirthDate:       req.BirthDate,
		Notes:           req.Notes,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create patient")
	}
	return patient, nil
}

// Update modifies a patient owned by the given user.
func (s *PatientService) Update(ctx context.Context, userID, patientID string, req PatientRequest) (*models.Patient, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid patient payload")
	}

	patient, err := s.ownedPatient(ctx, userID, patientID)
	if err != nil {
		return nil, err
	}

	patient.FullName = req.FullName
	patient.PhoneNumber = req.PhoneNumber
	patient.BirthDate = req.BirthDate
	patient.Notes = req.Notes
	patient.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update patient")
	}
	return patient, nil
}

// Delete removes a patient. Patients with upcoming scheduled appointments
// cannot be removed.
func (s *PatientService) Delete(ctx context.Context, userID, patientID string) error {
	patient, err := s.ownedPatient(ctx, userID, patientID)
	if err != nil {
		return err
	}

	upcoming, err := s.repo.CountScheduledAppointments(ctx, patient.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check patient appointments")
	}
	if upcoming > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "patient has upcoming appointments")
	}

	if err := s.repo.Delete(ctx, patient.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete patient")
	}
	return nil
}

func (s *PatientService) ownedPatient(ctx context.Context, userID, patientID string) (*models.Patient, error) {
	patient, err := s.repo.FindByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "patient not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load patient")
	}
	if patient.ManagedByUserID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "patient belongs to another account")
	}
	return patient, nil
}
