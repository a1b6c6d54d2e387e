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

type catalogLocationRepository interface {
	List(ctx context.Context, activeOnly bool) ([]models.Location, error)
	FindByID(ctx context.Context, id string) (*models.Location, error)
	Create(ctx context.Context, location *models.Location) error
	Update(ctx context.Context, location *models.Location) error
}

type catalogServiceRepository interface {
	List(ctx context.Context, activeOnly bool) ([]models.Service, error)
	FindByID(ctx context.Context, id string) (*models.Service, error)
	Create(ctx context.Context, service *models.Service) error
	Update(ctx context.Context, service *models.Service) error
}

type catalogTechnicianRepository interface {
	List(ctx context.Context, activeOnly bool) ([]models.Technician, error)
	ListByLocation(ctx context.Context, locationID string) ([]models.Technician, error)
	FindByID(ctx context.Context, id string) (*models.Technician, error)
	Create(ctx context.Context, technician *models.Technician) error
	Update(ctx context.Context, technician *models.Technician) error
}

type catalogOfferingRepository interface {
	FindByID(ctx context.Context, id string) (*models.Offering, error)
	ListByTechnician(ctx context.Context, technicianID string, availableOnly bool) ([]models.OfferingDetail, error)
	Create(ctx context.Context, offering *models.Offering) error
	Update(ctx context.Context, offering *models.Offering) error
	Delete(ctx context.Context, id string) error
}

type availabilityInvalidator interface {
	InvalidateTechnician(ctx context.Context, technicianID string)
}

// LocationRequest carries location create and update payloads.
type LocationRequest struct {
	Name    string  `json:"name" validate:"required,min=1"`
	Address *string `json:"address"`
	City    *string `json:"city"`
	Active  *bool   `json:"active"`
}

// ServiceRequest carries service create and update payloads.
type ServiceRequest struct {
	Name                   string  `json:"name" validate:"required,min=1"`
	Description            *string `json:"description"`
	DefaultDurationMinutes int     `json:"default_duration_minutes" validate:"required,min=5"`
	ConcurrencyLevel       int     `json:"concurrency_level" validate:"required,min=1"`
	Active                 *bool   `json:"active"`
}

// TechnicianRequest carries technician create and update payloads.
type TechnicianRequest struct {
	UserID              *string `json:"user_id"`
	DisplayName         string  `json:"display_name" validate:"required,min=1"`
	Bio                 *string `json:"bio"`
	AvatarURL           *string `json:"avatar_url"`
	Active              *bool   `json:"active"`
	RestrictedByQuota   bool    `json:"restricted_by_quota"`
	MorningQuotaLimit   *int    `json:"morning_quota_limit"`
	AfternoonQuotaLimit *int    `json:"afternoon_quota_limit"`
}

// OfferingRequest carries offering create and update payloads.
type OfferingRequest struct {
	TechnicianID    string  `json:"technician_id" validate:"required"`
	ServiceID       string  `json:"service_id" validate:"required"`
	LocationID      string  `json:"location_id" validate:"required"`
	Price           float64 `json:"price" validate:"min=0"`
	DurationMinutes int     `json:"duration_minutes" validate:"required,min=5"`
	IsAvailable     *bool   `json:"is_available"`
}

// CatalogService manages locations, services, technicians and offerings.
type CatalogService struct {
	locations   catalogLocationRepository
	services    catalogServiceRepository
	technicians catalogTechnicianRepository
	offerings   catalogOfferingRepository
	engine      availabilityInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCatalogService constructs a CatalogService instance.
func NewCatalogService(
	locations catalogLocationRepository,
	services catalogServiceRepository,
	technicians catalogTechnicianRepository,
	offerings catalogOfferingRepository,
	engine availabilityInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CatalogService{
		locations:   locations,
		services:    services,
		technicians: technicians,
		offerings:   offerings,
		engine:      engine,
		validator:   validate,
		logger:      logger,
	}
}

// ListLocations returns locations; activeOnly hides disabled branches for the
// public catalog.
func (s *CatalogService) ListLocations(ctx context.Context, activeOnly bool) ([]models.Location, error) {
	locations, err := s.locations.List(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list locations")
	}
	return locations, nil
}

// CreateLocation registers a new branch.
func (s *CatalogService) CreateLocation(ctx context.Context, req LocationRequest) (*models.Location, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid location payload")
	}

	location := &models.Location{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Address:   req.Address,
		City:      req.City,
		Active:    true,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if req.Active != nil {
		location.Active = *req.Active
	}
	if err := s.locations.Create(ctx, location); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create location")
	}
	return location, nil
}

// UpdateLocation modifies an existing branch.
func (s *CatalogService) UpdateLocation(ctx context.Context, id string, req LocationRequest) (*models.Location, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid location payload")
	}

	location, err := s.locations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "location not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load location")
	}

	location.Name = req.Name
	location.Address = req.Address
	location.City = req.City
	if req.Active != nil {
		location.Active = *req.Active
	}
	location.UpdatedAt = time.Now().UTC()

	if err := s.locations.Update(ctx, location); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update location")
	}
	return location, nil
}

// ListServices returns services; activeOnly hides disabled treatments.
func (s *CatalogService) ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error) {
	services, err := s.services.List(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list services")
	}
	return services, nil
}

// CreateService registers a new bookable treatment.
func (s *CatalogService) CreateService(ctx context.Context, req ServiceRequest) (*models.Service, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid service payload")
	}

	svc := &models.Service{
		ID:                     uuid.NewString(),
		Name:                   req.Name,
		Description:            req.Description,
		DefaultDurationMinutes: req.DefaultDurationMinutes,
		ConcurrencyLevel:       req.ConcurrencyLevel,
		Active:                 true,
		CreatedAt:              time.Now().UTC(),
		UpdatedAt:              time.Now().UTC(),
	}
	if req.Active != nil {
		svc.Active = *req.Active
	}
	if err := s.services.Create(ctx, svc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create service")
	}
	return svc, nil
}

// UpdateService modifies an existing treatment. Concurrency changes affect
// availability, so technician caches touching this service are flushed.
func (s *CatalogService) UpdateService(ctx context.Context, id string, req ServiceRequest) (*models.Service, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid service payload")
	}

	svc, err := s.services.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "service not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load service")
	}

	concurrencyChanged := svc.ConcurrencyLevel != req.ConcurrencyLevel

	svc.Name = req.Name
	svc.Description = req.Description
	svc.DefaultDurationMinutes = req.DefaultDurationMinutes
	svc.ConcurrencyLevel = req.ConcurrencyLevel
	if req.Active != nil {
		svc.Active = *req.Active
	}
	svc.UpdatedAt = time.Now().UTC()

	if err := s.services.Update(ctx, svc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update service")
	}

	if concurrencyChanged && s.engine != nil {
		technicians, err := s.technicians.List(ctx, false)
		if err != nil {
			s.logger.Warn("failed to list technicians for cache flush", zap.Error(err))
		} else {
			for _, technician := range technicians {
				s.engine.InvalidateTechnician(ctx, technician.ID)
			}
		}
	}
	return svc, nil
}

// ListTechnicians returns technicians, optionally restricted to one location.
func (s *CatalogService) ListTechnicians(ctx context.Context, locationID string, activeOnly bool) ([]models.Technician, error) {
	var (
		technicians []models.Technician
		err         error
	)
	if locationID != "" {
		technicians, err = s.technicians.ListByLocation(ctx, locationID)
	} else {
		technicians, err = s.technicians.List(ctx, activeOnly)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list technicians")
	}
	return technicians, nil
}

// CreateTechnician registers a new service provider.
func (s *CatalogService) CreateTechnician(ctx context.Context, req TechnicianRequest) (*models.Technician, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid technician payload")
	}

	technician := &models.Technician{
		ID:                  uuid.NewString(),
		UserID:              req.UserID,
		DisplayName:         req.DisplayName,
		Bio:                 req.Bio,
		AvatarURL:           req.AvatarURL,
		Active:              true,
		RestrictedByQuota:   req.RestrictedByQuota,
		MorningQuotaLimit:   req.MorningQuotaLimit,
		AfternoonQuotaLimit: req.AfternoonQuotaLimit,
		CreatedAt:           time.Now().UTC(),
		UpdatedAt:           time.Now().UTC(),
	}
	if req.Active != nil {
		technician.Active = *req.Active
	}
	if err := s.technicians.Create(ctx, technician); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create technician")
	}
	return technician, nil
}

// UpdateTechnician modifies an existing provider. Quota changes invalidate the
// technician's cached availability.
func (s *CatalogService) UpdateTechnician(ctx context.Context, id string, req TechnicianRequest) (*models.Technician, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid technician payload")
	}

	technician, err := s.technicians.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "technician not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load technician")
	}

	technician.UserID = req.UserID
	technician.DisplayName = req.DisplayName
	technician.Bio = req.Bio
	technician.AvatarURL = req.AvatarURL
	technician.RestrictedByQuota = req.RestrictedByQuota
	technician.MorningQuotaLimit = req.MorningQuotaLimit
	technician.AfternoonQuotaLimit = req.AfternoonQuotaLimit
	if req.Active != nil {
		technician.Active = *req.Active
	}
	technician.UpdatedAt = time.Now().UTC()

	if err := s.technicians.Update(ctx, technician); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update technician")
	}
	if s.engine != nil {
		s.engine.InvalidateTechnician(ctx, technician.ID)
	}
	return technician, nil
}

// ListOfferings returns a technician's offerings with service details.
func (s *CatalogService) ListOfferings(ctx context.Context, technicianID string, availableOnly bool) ([]models.OfferingDetail, error) {
	offerings, err := s.offerings.ListByTechnician(ctx, technicianID, availableOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list offerings")
	}
	return offerings, nil
}

// CreateOffering links a technician, service and location with price and duration.
func (s *CatalogService) CreateOffering(ctx context.Context, req OfferingRequest) (*models.Offering, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid offering payload")
	}

	if _, err := s.technicians.FindByID(ctx, req.TechnicianID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "technician not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify technician")
	}
	if _, err := s.services.FindByID(ctx, req.ServiceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "service not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify service")
	}
	if _, err := s.locations.FindByID(ctx, req.LocationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "location not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify location")
	}

	offering := &models.Offering{
		ID:              uuid.NewString(),
		TechnicianID:    req.TechnicianID,
		ServiceID:       req.ServiceID,
		LocationID:      req.LocationID,
		Price:           req.Price,
		DurationMinutes: req.DurationMinutes,
		IsAvailable:     true,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	if req.IsAvailable != nil {
		offering.IsAvailable = *req.IsAvailable
	}
	if err := s.offerings.Create(ctx, offering); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create offering")
	}
	if s.engine != nil {
		s.engine.InvalidateTechnician(ctx, offering.TechnicianID)
	}
	return offering, nil
}

// UpdateOffering modifies price, duration or availability of an offering.
func (s *CatalogService) UpdateOffering(ctx context.Context, id string, req OfferingRequest) (*models.Offering, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid offering payload")
	}

	offering, err := s.offerings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}

	offering.Price = req.Price
	offering.DurationMinutes = req.DurationMinutes
	if req.IsAvailable != nil {
		offering.IsAvailable = *req.IsAvailable
	}
	offering.UpdatedAt = time.Now().UTC()

	if err := s.offerings.Update(ctx, offering); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update offering")
	}
	if s.engine != nil {
		s.engine.InvalidateTechnician(ctx, offering.TechnicianID)
	}
	return offering, nil
}

// DeleteOffering removes an offering from the catalog.
func (s *CatalogService) DeleteOffering(ctx context.Context, id string) error {
	offering, err := s.offerings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	if err := s.offerings.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete offering")
	}
	if s.engine != nil {
		s.engine.InvalidateTechnician(ctx, offering.TechnicianID)
	}
	return nil
}
