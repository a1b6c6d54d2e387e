package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sunrise-clinic/booking-api/internal/models"
	appErrors "github.com/sunrise-clinic/booking-api/pkg/errors"
)

type offeringReader interface {
	FindDetail(ctx context.Context, technicianID, serviceID, locationID string) (*models.OfferingDetail, error)
	FindDetailByID(ctx context.Context, id string) (*models.OfferingDetail, error)
}

type businessHourReader interface {
	FindForDate(ctx context.Context, technicianID, locationID string, date time.Time) (*models.BusinessHourRule, error)
}

type appointmentReader interface {
	ListScheduledForTechnicianRange(ctx context.Context, technicianID string, from, to time.Time) ([]models.Appointment, error)
	CountCustomerBookedInRange(ctx context.Context, technicianID string, from, to time.Time) (int, error)
}

type technicianQuotaReader interface {
	FindByID(ctx context.Context, id string) (*models.Technician, error)
}

type availabilityCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeletePattern(ctx context.Context, pattern string) error
}

// QuotaDefaults carries the deployment-wide half-day caps applied to
// quota-restricted technicians with no explicit limit.
type QuotaDefaults struct {
	Morning   int
	Afternoon int
}

// AvailabilityRequest identifies one availability query.
type AvailabilityRequest struct {
	TechnicianID  string `form:"technician_id" validate:"required"`
	ServiceID     string `form:"service_id" validate:"required"`
	LocationID    string `form:"location_id" validate:"required"`
	Date          string `form:"date" validate:"required,datetime=2006-01-02"`
	RequesterRole models.UserRole
}

// AvailabilityService computes the annotated slot list for a technician day.
// The computation itself is pure; the service only assembles its inputs and
// fronts them with a read-through cache.
type AvailabilityService struct {
	offerings     offeringReader
	businessHours businessHourReader
	appointments  appointmentReader
	technicians   technicianQuotaReader
	cache         availabilityCache
	location      *time.Location
	quotaDefaults QuotaDefaults
	cacheTTL      time.Duration
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewAvailabilityService constructs AvailabilityService. A nil cache disables
// caching.
func NewAvailabilityService(offerings offeringReader, businessHours businessHourReader, appointments appointmentReader, technicians technicianQuotaReader, cache availabilityCache, location *time.Location, quotaDefaults QuotaDefaults, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &AvailabilityService{
		offerings:     offerings,
		businessHours: businessHours,
		appointments:  appointments,
		technicians:   technicians,
		cache:         cache,
		location:      location,
		quotaDefaults: quotaDefaults,
		cacheTTL:      cacheTTL,
		validator:     validate,
		logger:        logger,
	}
}

// Location exposes the business timezone used for all local-clock conversions.
func (s *AvailabilityService) Location() *time.Location {
	return s.location
}

func availabilityCacheKey(req AvailabilityRequest) string {
	return fmt.Sprintf("availability:%s:%s:%s:%s:%s", req.TechnicianID, req.ServiceID, req.LocationID, req.Date, req.RequesterRole)
}

// GetAvailability returns the annotated slot list for the requested offering
// and date. An offering that does not exist or is switched off resolves to
// not found; a day with no effective rule resolves to an empty list.
func (s *AvailabilityService) GetAvailability(ctx context.Context, req AvailabilityRequest) ([]models.AvailabilitySlot, error) {
	if req.RequesterRole == "" {
		req.RequesterRole = models.RoleCustomer
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability query")
	}
	date, err := time.ParseInLocation("2006-01-02", req.Date, s.location)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}

	key := availabilityCacheKey(req)
	if s.cache != nil {
		var cached []models.AvailabilitySlot
		if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("availability cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	slots, err := s.compute(ctx, req, date)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, slots, s.cacheTTL); err != nil {
			s.logger.Warn("availability cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return slots, nil
}

func (s *AvailabilityService) compute(ctx context.Context, req AvailabilityRequest, date time.Time) ([]models.AvailabilitySlot, error) {
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

	rule, err := s.businessHours.FindForDate(ctx, req.TechnicianID, req.LocationID, date)
	if err != nil {
		if err == sql.ErrNoRows {
			return []models.AvailabilitySlot{}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load business hours")
	}

	duration := time.Duration(offering.DurationMinutes) * time.Minute
	slots := buildSlots([]models.BusinessHourRule{*rule}, date, duration, s.location)
	if len(slots) == 0 {
		return []models.AvailabilitySlot{}, nil
	}

	dayStart, noon, dayEnd := dayBounds(date, s.location)

	morningBlocked, afternoonBlocked, err := s.quotaFlags(ctx, req.TechnicianID, req.RequesterRole, dayStart, noon, dayEnd)
	if err != nil {
		return nil, err
	}

	appointments, err := s.appointments.ListScheduledForTechnicianRange(ctx, req.TechnicianID, dayStart, dayEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointments")
	}

	return annotateSlots(slots, morningBlocked, afternoonBlocked, appointments, offering.ServiceConcurrency, noon), nil
}

// quotaFlags evaluates the half-day quota for customer requesters. Staff and
// admin requesters are never quota-blocked.
func (s *AvailabilityService) quotaFlags(ctx context.Context, technicianID string, role models.UserRole, dayStart, noon, dayEnd time.Time) (bool, bool, error) {
	if role != models.RoleCustomer {
		return false, false, nil
	}

	technician, err := s.technicians.FindByID(ctx, technicianID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, false, appErrors.Clone(appErrors.ErrNotFound, "technician not found")
		}
		return false, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load technician")
	}

	morningLimit := effectiveQuota(technician.MorningQuotaLimit, technician.RestrictedByQuota, s.quotaDefaults.Morning)
	afternoonLimit := effectiveQuota(technician.AfternoonQuotaLimit, technician.RestrictedByQuota, s.quotaDefaults.Afternoon)

	morningBlocked := false
	if morningLimit > 0 {
		count, err := s.appointments.CountCustomerBookedInRange(ctx, technicianID, dayStart, noon)
		if err != nil {
			return false, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count morning bookings")
		}
		morningBlocked = count >= morningLimit
	}

	afternoonBlocked := false
	if afternoonLimit > 0 {
		count, err := s.appointments.CountCustomerBookedInRange(ctx, technicianID, noon, dayEnd)
		if err != nil {
			return false, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count afternoon bookings")
		}
		afternoonBlocked = count >= afternoonLimit
	}

	return morningBlocked, afternoonBlocked, nil
}

// InvalidateTechnician drops every cached availability entry for a
// technician. Called after appointment and rule writes.
func (s *AvailabilityService) InvalidateTechnician(ctx context.Context, technicianID string) {
	if s.cache == nil {
		return
	}
	pattern := fmt.Sprintf("availability:%s:*", technicianID)
	if err := s.cache.DeletePattern(ctx, pattern); err != nil {
		s.logger.Warn("availability cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
	}
}
