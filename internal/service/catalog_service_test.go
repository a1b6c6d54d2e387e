package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunrise-clinic/booking-api/internal/models"
	appErrors "github.com/sunrise-clinic/booking-api/pkg/errors"
)

type mockCatalogLocations struct {
	locations map[string]models.Location
}

func (m *mockCatalogLocations) List(ctx context.Context, activeOnly bool) ([]models.Location, error) {
	var out []models.Location
	for _, location := range m.locations {
		if activeOnly && !location.Active {
			continue
		}
		out = append(out, location)
	}
	return out, nil
}

func (m *mockCatalogLocations) FindByID(ctx context.Context, id string) (*models.Location, error) {
	if location, ok := m.locations[id]; ok {
		return &location, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCatalogLocations) Create(ctx context.Context, location *models.Location) error {
	m.locations[location.ID] = *location
	return nil
}

func (m *mockCatalogLocations) Update(ctx context.Context, location *models.Location) error {
	m.locations[location.ID] = *location
	return nil
}

type mockCatalogServices struct {
	services map[string]models.Service
}

func (m *mockCatalogServices) List(ctx context.Context, activeOnly bool) ([]models.Service, error) {
	var out []models.Service
	for _, svc := range m.services {
		if activeOnly && !svc.Active {
			continue
		}
		out = append(out, svc)
	}
	return out, nil
}

func (m *mockCatalogServices) FindByID(ctx context.Context, id string) (*models.Service, error) {
	if svc, ok := m.services[id]; ok {
		return &svc, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCatalogServices) Create(ctx context.Context, svc *models.Service) error {
	m.services[svc.ID] = *svc
	return nil
}

func (m *mockCatalogServices) Update(ctx context.Context, svc *models.Service) error {
	m.services[svc.ID] = *svc
	return nil
}

type mockCatalogTechnicians struct {
	technicians map[string]models.Technician
}

func (m *mockCatalogTechnicians) List(ctx context.Context, activeOnly bool) ([]models.Technician, error) {
	var out []models.Technician
	for _, technician := range m.technicians {
		if activeOnly && !technician.Active {
			continue
		}
		out = append(out, technician)
	}
	return out, nil
}

func (m *mockCatalogTechnicians) ListByLocation(ctx context.Context, locationID string) ([]models.Technician, error) {
	return m.List(ctx, true)
}

func (m *mockCatalogTechnicians) FindByID(ctx context.Context, id string) (*models.Technician, error) {
	if technician, ok := m.technicians[id]; ok {
		return &technician, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCatalogTechnicians) Create(ctx context.Context, technician *models.Technician) error {
	m.technicians[technician.ID] = *technician
	return nil
}

func (m *mockCatalogTechnicians) Update(ctx context.Context, technician *models.Technician) error {
	m.technicians[technician.ID] = *technician
	return nil
}

type mockCatalogOfferings struct {
	offerings map[string]models.Offering
	deleted   []string
}

func (m *mockCatalogOfferings) FindByID(ctx context.Context, id string) (*models.Offering, error) {
	if offering, ok := m.offerings[id]; ok {
		return &offering, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCatalogOfferings) ListByTechnician(ctx context.Context, technicianID string, availableOnly bool) ([]models.OfferingDetail, error) {
	var out []models.OfferingDetail
	for _, offering := range m.offerings {
		if offering.TechnicianID != technicianID {
			continue
		}
		if availableOnly && !offering.IsAvailable {
			continue
		}
		out = append(out, models.OfferingDetail{Offering: offering})
	}
	return out, nil
}

func (m *mockCatalogOfferings) Create(ctx context.Context, offering *models.Offering) error {
	if m.offerings == nil {
		m.offerings = make(map[string]models.Offering)
	}
	m.offerings[offering.ID] = *offering
	return nil
}

func (m *mockCatalogOfferings) Update(ctx context.Context, offering *models.Offering) error {
	m.offerings[offering.ID] = *offering
	return nil
}

func (m *mockCatalogOfferings) Delete(ctx context.Context, id string) error {
	delete(m.offerings, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func newCatalogFixture() (*CatalogService, *mockCatalogOfferings, *stubEngine) {
	offerings := &mockCatalogOfferings{offerings: map[string]models.Offering{}}
	engine := &stubEngine{}
	svc := NewCatalogService(
		&mockCatalogLocations{locations: map[string]models.Location{
			"loc-1": {ID: "loc-1", Name: "Downtown", Active: true},
			"loc-2": {ID: "loc-2", Name: "Riverside", Active: false},
		}},
		&mockCatalogServices{services: map[string]models.Service{
			"svc-1": {ID: "svc-1", Name: "Deep Tissue", DefaultDurationMinutes: 60, ConcurrencyLevel: 1, Active: true},
		}},
		&mockCatalogTechnicians{technicians: map[string]models.Technician{
			"tech-1": *plainTechnician(),
		}},
		offerings,
		engine,
		nil,
		nil,
	)
	return svc, offerings, engine
}

func TestListLocationsActiveOnly(t *testing.T) {
	svc, _, _ := newCatalogFixture()

	locations, err := svc.ListLocations(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, "loc-1", locations[0].ID)
}

func TestCreateOfferingVerifiesReferences(t *testing.T) {
	svc, offerings, engine := newCatalogFixture()

	offering, err := svc.CreateOffering(context.Background(), OfferingRequest{
		TechnicianID:    "tech-1",
		ServiceID:       "svc-1",
		LocationID:      "loc-1",
		Price:           188,
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	assert.True(t, offering.IsAvailable)
	assert.Contains(t, offerings.offerings, offering.ID)
	assert.Equal(t, []string{"tech-1"}, engine.invalidated)
}

func TestCreateOfferingUnknownService(t *testing.T) {
	svc, _, _ := newCatalogFixture()

	_, err := svc.CreateOffering(context.Background(), OfferingRequest{
		TechnicianID:    "tech-1",
		ServiceID:       "svc-9",
		LocationID:      "loc-1",
		Price:           188,
		DurationMinutes: 60,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUpdateTechnicianQuotaInvalidatesCache(t *testing.T) {
	svc, _, engine := newCatalogFixture()

	limit := 2
	technician, err := svc.UpdateTechnician(context.Background(), "tech-1", TechnicianRequest{
		DisplayName:       "Chen",
		RestrictedByQuota: true,
		MorningQuotaLimit: &limit,
	})
	require.NoError(t, err)
	assert.True(t, technician.RestrictedByQuota)
	assert.Equal(t, []string{"tech-1"}, engine.invalidated)
}

func TestUpdateServiceConcurrencyFlushesTechnicians(t *testing.T) {
	svc, _, engine := newCatalogFixture()

	updated, err := svc.UpdateService(context.Background(), "svc-1", ServiceRequest{
		Name:                   "Deep Tissue",
		DefaultDurationMinutes: 60,
		ConcurrencyLevel:       2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.ConcurrencyLevel)
	assert.Equal(t, []string{"tech-1"}, engine.invalidated)
}

func TestDeleteOfferingInvalidatesCache(t *testing.T) {
	svc, offerings, engine := newCatalogFixture()
	offerings.offerings["off-1"] = models.Offering{ID: "off-1", TechnicianID: "tech-1", ServiceID: "svc-1", LocationID: "loc-1"}

	err := svc.DeleteOffering(context.Background(), "off-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"off-1"}, offerings.deleted)
	assert.Equal(t, []string{"tech-1"}, engine.invalidated)
}
