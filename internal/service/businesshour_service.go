package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sunrise-clinic/booking-api/internal/models"
	appErrors "github.com/sunrise-clinic/booking-api/pkg/errors"
)

type businessHourRepository interface {
	FindByID(ctx context.Context, id string) (*models.BusinessHourRule, error)
	ListByTechnician(ctx context.Context, technicianID string) ([]models.BusinessHourRule, error)
	ListEffectiveForTechnicianDate(ctx context.Context, technicianID string, date time.Time) ([]models.BusinessHourRule, error)
	FindConflictingRule(ctx context.Context, rule *models.BusinessHourRule, excludeID string) (*models.BusinessHourRule, error)
	Create(ctx context.Context, rule *models.BusinessHourRule) error
	Update(ctx context.Context, rule *models.BusinessHourRule) error
	Delete(ctx context.Context, id string) error
}

type technicianReader interface {
	FindByID(ctx context.Context, id string) (*models.Technician, error)
}

type locationReader interface {
	FindByID(ctx context.Context, id string) (*models.Location, error)
}

// BusinessHourRuleRequest carries a rule create or update payload. Each
// half-day window must have both bounds or neither.
type BusinessHourRuleRequest struct {
	TechnicianID   string  `json:"technician_id" validate:"required"`
	LocationID     string  `json:"location_id" validate:"required"`
	RuleDate       *string `json:"rule_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DayOfWeek      string  `json:"day_of_week,omitempty"`
	MorningStart   *string `json:"morning_start,omitempty"`
	MorningEnd     *string `json:"morning_end,omitempty"`
	AfternoonStart *string `json:"afternoon_start,omitempty"`
	AfternoonEnd   *string `json:"afternoon_end,omitempty"`
}

// BusinessHourService manages business hour rules for technicians.
type BusinessHourService struct {
	repo         businessHourRepository
	technicians  technicianReader
	locations    locationReader
	availability availabilityEngine
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewBusinessHourService constructs BusinessHourService.
func NewBusinessHourService(repo businessHourRepository, technicians technicianReader, locations locationReader, availability availabilityEngine, validate *validator.Validate, logger *zap.Logger) *BusinessHourService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BusinessHourService{
		repo:         repo,
		technicians:  technicians,
		locations:    locations,
		availability: availability,
		validator:    validate,
		logger:       logger,
	}
}

// ListByTechnician returns all rules for a technician.
func (s *BusinessHourService) ListByTechnician(ctx context.Context, technicianID string) ([]models.BusinessHourRule, error) {
	rules, err := s.repo.ListByTechnician(ctx, technicianID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list business hours")
	}
	return rules, nil
}

// Create validates and stores a new rule.
func (s *BusinessHourService) Create(ctx context.Context, req BusinessHourRuleRequest) (*models.BusinessHourRule, error) {
	rule, err := s.buildRule(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.checkRuleConflicts(ctx, rule, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create business hour rule")
	}
	s.availability.InvalidateTechnician(ctx, rule.TechnicianID)
	return rule, nil
}

// Update validates and replaces an existing rule.
func (s *BusinessHourService) Update(ctx context.Context, id string, req BusinessHourRuleRequest) (*models.BusinessHourRule, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "business hour rule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load business hour rule")
	}

	rule, err := s.buildRule(ctx, req)
	if err != nil {
		return nil, err
	}
	rule.ID = existing.ID
	rule.CreatedAt = existing.CreatedAt

	if err := s.checkRuleConflicts(ctx, rule, rule.ID); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, rule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update business hour rule")
	}
	s.availability.InvalidateTechnician(ctx, rule.TechnicianID)
	return rule, nil
}

// Delete removes a rule.
func (s *BusinessHourService) Delete(ctx context.Context, id string) error {
	rule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "business hour rule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load business hour rule")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete business hour rule")
	}
	s.availability.InvalidateTechnician(ctx, rule.TechnicianID)
	return nil
}

// buildRule turns the request into a validated rule model.
func (s *BusinessHourService) buildRule(ctx context.Context, req BusinessHourRuleRequest) (*models.BusinessHourRule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rule payload")
	}

	if _, err := s.technicians.FindByID(ctx, req.TechnicianID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "technician not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load technician")
	}
	if _, err := s.locations.FindByID(ctx, req.LocationID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "location not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load location")
	}

	morning, err := buildInterval(req.MorningStart, req.MorningEnd, "morning")
	if err != nil {
		return nil, err
	}
	afternoon, err := buildInterval(req.AfternoonStart, req.AfternoonEnd, "afternoon")
	if err != nil {
		return nil, err
	}
	if !morning.Present && !afternoon.Present {
		return nil, appErrors.Clone(appErrors.ErrInvalidRule, "at least one half-day window is required")
	}

	rule := &models.BusinessHourRule{
		TechnicianID: req.TechnicianID,
		LocationID:   req.LocationID,
		Morning:      morning,
		Afternoon:    afternoon,
	}

	if req.RuleDate != nil {
		date, err := time.ParseInLocation("2006-01-02", *req.RuleDate, s.availability.Location())
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rule date")
		}
		rule.RuleDate = &date
		rule.DayOfWeek = models.WeekdayLabel(date)
	} else {
		if !models.IsWeekdayLabel(req.DayOfWeek) {
			return nil, appErrors.Clone(appErrors.ErrInvalidRule, "recurring rules require a valid day of week")
		}
		rule.DayOfWeek = req.DayOfWeek
	}

	return rule, nil
}

func buildInterval(start, end *string, half string) (models.HalfDayInterval, error) {
	if start == nil && end == nil {
		return models.HalfDayInterval{}, nil
	}
	if start == nil || end == nil {
		return models.HalfDayInterval{}, appErrors.Clone(appErrors.ErrInvalidRule, half+" window requires both start and end")
	}
	from, err := models.ParseLocalTime(*start)
	if err != nil {
		return models.HalfDayInterval{}, appErrors.Wrap(err, appErrors.ErrInvalidRule.Code, appErrors.ErrInvalidRule.Status, "invalid "+half+" start")
	}
	to, err := models.ParseLocalTime(*end)
	if err != nil {
		return models.HalfDayInterval{}, appErrors.Wrap(err, appErrors.ErrInvalidRule.Code, appErrors.ErrInvalidRule.Status, "invalid "+half+" end")
	}
	interval := models.PresentInterval(from, to)
	if !interval.Valid() {
		return models.HalfDayInterval{}, appErrors.Clone(appErrors.ErrInvalidRule, half+" window must start before it ends")
	}
	return interval, nil
}

// checkRuleConflicts enforces per-scope uniqueness and rejects windows that
// overlap another location's rule for the same technician day.
func (s *BusinessHourService) checkRuleConflicts(ctx context.Context, rule *models.BusinessHourRule, excludeID string) error {
	if _, err := s.repo.FindConflictingRule(ctx, rule, excludeID); err == nil {
		return appErrors.Clone(appErrors.ErrConflict, "a rule already exists for this technician, location and date")
	} else if err != sql.ErrNoRows {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check rule uniqueness")
	}

	var (
		others []models.BusinessHourRule
		err    error
	)
	if rule.Recurring() {
		others, err = s.repo.ListByTechnician(ctx, rule.TechnicianID)
	} else {
		// A pinned date only collides with rules still effective on that
		// date: a recurring window shadowed by a same-day override at its
		// own location is out of play.
		others, err = s.repo.ListEffectiveForTechnicianDate(ctx, rule.TechnicianID, *rule.RuleDate)
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list business hours")
	}
	for i := range others {
		other := &others[i]
		if other.ID == excludeID || other.LocationID == rule.LocationID {
			continue
		}
		if rule.Recurring() && !sameDayScope(rule, other) {
			continue
		}
		if rule.OverlapsRule(other) {
			return appErrors.Clone(appErrors.ErrCrossLocationConflict, "")
		}
	}
	return nil
}

// sameDayScope reports whether two rules can govern the same calendar day.
func sameDayScope(a, b *models.BusinessHourRule) bool {
	if !a.Recurring() && !b.Recurring() {
		return a.RuleDate.Equal(*b.RuleDate)
	}
	return a.DayOfWeek == b.DayOfWeek
}
