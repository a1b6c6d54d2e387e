package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sunrise-clinic/booking-api/internal/models"
	"github.com/sunrise-clinic/booking-api/internal/repository"
	appErrors "github.com/sunrise-clinic/booking-api/pkg/errors"
)

type appointmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error)
	ListByManager(ctx context.Context, userID string, upcomingOnly bool) ([]models.Appointment, error)
	CreateScheduled(ctx context.Context, appt *models.Appointment, concurrencyLevel int) error
	Reschedule(ctx context.Context, appt *models.Appointment, concurrencyLevel int) error
	Update(ctx context.Context, appt *models.Appointment) error
	Delete(ctx context.Context, id string) error
}

type patientReader interface {
	FindByID(ctx context.Context, id string) (*models.Patient, error)
}

type defaultLocationWriter interface {
	UpdateDefaultLocation(ctx context.Context, userID, locationID string) error
}

type availabilityEngine interface {
	GetAvailability(ctx context.Context, req AvailabilityRequest) ([]models.AvailabilitySlot, error)
	InvalidateTechnician(ctx context.Context, technicianID string)
	Location() *time.Location
}

// BookAppointmentRequest is the customer booking payload. StartTime must
// carry an explicit offset.
type BookAppointmentRequest struct {
	PatientID    string    `json:"patient_id" validate:"required"`
	TechnicianID string    `json:"technician_id" validate:"required"`
	ServiceID    string    `json:"service_id" validate:"required"`
	LocationID   string    `json:"location_id" validate:"required"`
	StartTime    time.Time `json:"start_time" validate:"required"`
	Notes        *string   `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// AdminCreateAppointmentRequest books on behalf of a patient, outside the
// slot grid, with optional price and duration overrides.
type AdminCreateAppointmentRequest struct {
	PatientID               string    `json:"patient_id" validate:"required"`
	TechnicianID            string    `json:"technician_id" validate:"required"`
	ServiceID               string    `json:"service_id" validate:"required"`
	LocationID              string    `json:"location_id" validate:"required"`
	StartTime               time.Time `json:"start_time" validate:"required"`
	PriceOverride           *float64  `json:"price_override,omitempty" validate:"omitempty,gte=0"`
	DurationOverrideMinutes *int      `json:"duration_override_minutes,omitempty" validate:"omitempty,gt=0"`
	Notes                   *string   `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// AdminUpdateAppointmentRequest moves, annotates or closes an appointment.
type AdminUpdateAppointmentRequest struct {
	StartTime *time.Time                `json:"start_time,omitempty"`
	Status    *models.AppointmentStatus `json:"status,omitempty" validate:"omitempty,oneof=scheduled completed no_show"`
	Notes     *string                   `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// AppointmentService owns the booking write path and appointment lifecycle.
type AppointmentService struct {
	repo         appointmentRepository
	patients     patientReader
	offerings    offeringReader
	users        defaultLocationWriter
	availability availabilityEngine
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewAppointmentService constructs AppointmentService.
func NewAppointmentService(repo appointmentRepository, patients patientReader, offerings offeringReader, users defaultLocationWriter, availability availabilityEngine, validate *validator.Validate, logger *zap.Logger) *AppointmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AppointmentService{
		repo:         repo,
		patients:     patients,
		offerings:    offerings,
		users:        users,
		availability: availability,
		validator:    validate,
		logger:       logger,
		now:          time.Now,
	}
}

// ListMine returns appointments for the patients a user manages.
func (s *AppointmentService) ListMine(ctx context.Context, userID string, upcomingOnly bool) ([]models.Appointment, error) {
	appts, err := s.repo.ListByManager(ctx, userID, upcomingOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
	}
	return appts, nil
}

// List returns appointments for admin views with pagination metadata.
func (s *AppointmentService) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, *models.Pagination, error) {
	appts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return appts, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Book commits a customer booking. The requested window must come back from
// the availability pipeline with no reason attached, and the insert re-checks
// capacity inside the repository transaction.
func (s *AppointmentService) Book(ctx context.Context, user *models.User, req BookAppointmentRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	patient, err := s.patients.FindByID(ctx, req.PatientID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "patient not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load patient")
	}
	if patient.ManagedByUserID != user.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "patient is managed by another account")
	}

	offering, err := s.offerings.FindDetail(ctx, req.TechnicianID, req.ServiceID, req.LocationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	if !offering.IsAvailable {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not available")
	}

	loc := s.availability.Location()
	start := req.StartTime.In(loc)
	end := start.Add(time.Duration(offering.DurationMinutes) * time.Minute)
	if !start.After(s.now().In(loc)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start time must be in the future")
	}

	slots, err := s.availability.GetAvailability(ctx, AvailabilityRequest{
		TechnicianID:  req.TechnicianID,
		ServiceID:     req.ServiceID,
		LocationID:    req.LocationID,
		Date:          start.Format("2006-01-02"),
		RequesterRole: models.RoleCustomer,
	})
	if err != nil {
		return nil, err
	}

	matched := false
	for _, slot := range slots {
		if !slot.Start.Equal(start) || !slot.End.Equal(end) {
			continue
		}
		matched = true
		if slot.Reason == nil {
			break
		}
		if *slot.Reason == models.ReasonQuotaExhausted {
			return nil, appErrors.Clone(appErrors.ErrSlotUnavailable, "technician quota exhausted for this half day")
		}
		return nil, appErrors.Clone(appErrors.ErrSlotSaturated, "")
	}
	if !matched {
		return nil, appErrors.Clone(appErrors.ErrSlotUnavailable, "")
	}

	appt := &models.Appointment{
		PatientID:      req.PatientID,
		BookedByUserID: &user.ID,
		OfferingID:     offering.ID,
		TechnicianID:   req.TechnicianID,
		StartTime:      start,
		EndTime:        end,
		BookedByRole:   models.RoleCustomer,
		PriceAtBooking: offering.Price,
		Notes:          req.Notes,
	}
	if err := s.repo.CreateScheduled(ctx, appt, offering.ServiceConcurrency); err != nil {
		if errors.Is(err, repository.ErrCapacityExhausted) {
			return nil, appErrors.Clone(appErrors.ErrSlotSaturated, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create appointment")
	}

	if err := s.users.UpdateDefaultLocation(ctx, user.ID, req.LocationID); err != nil {
		s.logger.Warn("default location update failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	s.availability.InvalidateTechnician(ctx, req.TechnicianID)

	return appt, nil
}

// AdminCreate books outside the slot grid. Quota does not apply; the insert
// still has to clear the concurrency ceiling against existing bookings.
func (s *AppointmentService) AdminCreate(ctx context.Context, admin *models.User, req AdminCreateAppointmentRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	if _, err := s.patients.FindByID(ctx, req.PatientID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "patient not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load patient")
	}

	offering, err := s.offerings.FindDetail(ctx, req.TechnicianID, req.ServiceID, req.LocationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}

	durationMinutes := offering.DurationMinutes
	if req.DurationOverrideMinutes != nil {
		durationMinutes = *req.DurationOverrideMinutes
	}
	price := offering.Price
	if req.PriceOverride != nil {
		price = *req.PriceOverride
	}

	loc := s.availability.Location()
	start := req.StartTime.In(loc)
	end := start.Add(time.Duration(durationMinutes) * time.Minute)

	appt := &models.Appointment{
		PatientID:      req.PatientID,
		BookedByUserID: &admin.ID,
		OfferingID:     offering.ID,
		TechnicianID:   req.TechnicianID,
		StartTime:      start,
		EndTime:        end,
		BookedByRole:   models.RoleAdmin,
		PriceAtBooking: price,
		Notes:          req.Notes,
	}
	if err := s.repo.CreateScheduled(ctx, appt, offering.ServiceConcurrency); err != nil {
		if errors.Is(err, repository.ErrCapacityExhausted) {
			return nil, appErrors.Clone(appErrors.ErrSlotSaturated, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create appointment")
	}
	s.availability.InvalidateTechnician(ctx, req.TechnicianID)

	return appt, nil
}

// AdminUpdate moves or closes an appointment. Moving re-checks capacity
// excluding the appointment itself; status may only leave scheduled once the
// start time has elapsed, and never returns to scheduled.
func (s *AppointmentService) AdminUpdate(ctx context.Context, id string, req AdminUpdateAppointmentRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}

	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}

	loc := s.availability.Location()
	rescheduled := false

	if req.StartTime != nil {
		if appt.Status != models.AppointmentScheduled {
			return nil, appErrors.Clone(appErrors.ErrConflict, "only scheduled appointments can be moved")
		}
		duration := appt.EndTime.Sub(appt.StartTime)
		appt.StartTime = req.StartTime.In(loc)
		appt.EndTime = appt.StartTime.Add(duration)
		rescheduled = true
	}

	if req.Status != nil && *req.Status != appt.Status {
		if appt.Status != models.AppointmentScheduled {
			return nil, appErrors.Clone(appErrors.ErrConflict, "appointment already closed")
		}
		if *req.Status == models.AppointmentScheduled {
			return nil, appErrors.Clone(appErrors.ErrConflict, "cannot reopen an appointment")
		}
		if s.now().In(loc).Before(appt.StartTime) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "appointment has not started yet")
		}
		appt.Status = *req.Status
	}

	if req.Notes != nil {
		appt.Notes = req.Notes
	}

	if rescheduled {
		offering, err := s.offerings.FindDetailByID(ctx, appt.OfferingID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
		}
		if err := s.repo.Reschedule(ctx, appt, offering.ServiceConcurrency); err != nil {
			if errors.Is(err, repository.ErrCapacityExhausted) {
				return nil, appErrors.Clone(appErrors.ErrSlotSaturated, "")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move appointment")
		}
	} else {
		if err := s.repo.Update(ctx, appt); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update appointment")
		}
	}
	s.availability.InvalidateTechnician(ctx, appt.TechnicianID)

	return appt, nil
}

// Cancel removes a scheduled appointment for the owning customer, only
// strictly before its start time.
func (s *AppointmentService) Cancel(ctx context.Context, user *models.User, id string) error {
	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}

	patient, err := s.patients.FindByID(ctx, appt.PatientID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load patient")
	}
	if patient.ManagedByUserID != user.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "appointment belongs to another account")
	}
	if appt.Status != models.AppointmentScheduled {
		return appErrors.Clone(appErrors.ErrConflict, "appointment already closed")
	}
	if !s.now().In(s.availability.Location()).Before(appt.StartTime) {
		return appErrors.Clone(appErrors.ErrConflict, "appointment already started")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete appointment")
	}
	s.availability.InvalidateTechnician(ctx, appt.TechnicianID)
	return nil
}

// AdminDelete removes an appointment regardless of its state.
func (s *AppointmentService) AdminDelete(ctx context.Context, id string) error {
	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete appointment")
	}
	s.availability.InvalidateTechnician(ctx, appt.TechnicianID)
	return nil
}
