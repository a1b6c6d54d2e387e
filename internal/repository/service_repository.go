package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sunrise-clinic/booking-api/internal/models"
)

// ServiceRepository provides persistence for treatment services.
type ServiceRepository struct {
	db *sqlx.DB
}

// NewServiceRepository creates a new service repository.
func NewServiceRepository(db *sqlx.DB) *ServiceRepository {
	return &ServiceRepository{db: db}
}

const serviceColumns = `id, name, description, default_duration_minutes, concurrency_level, active, created_at, updated_at`

// List returns services, optionally restricted to active ones.
func (r *ServiceRepository) List(ctx context.Context, activeOnly bool) ([]models.Service, error) {
	query := fmt.Sprintf(`SELECT %s FROM services`, serviceColumns)
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY name ASC`
	var services []models.Service
	if err := r.db.SelectContext(ctx, &services, query); err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return services, nil
}

// FindByID loads a service by id.
func (r *ServiceRepository) FindByID(ctx context.Context, id string) (*models.Service, error) {
	query := fmt.Sprintf(`SELECT %s FROM services WHERE id = $1`, serviceColumns)
	var service models.Service
	if err := r.db.GetContext(ctx, &service, query, id); err != nil {
		return nil, err
	}
	return &service, nil
}

// Create stores a new service.
func (r *ServiceRepository) Create(ctx context.Context, service *models.Service) error {
	if service.ID == "" {
		service.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	service.CreatedAt = now
	service.UpdatedAt = now
	const query = `INSERT INTO services (id, name, description, default_duration_minutes, concurrency_level, active, created_at, updated_at) VALUES (:id, :name, :description, :default_duration_minutes, :concurrency_level, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, service); err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	return nil
}

// Update modifies an existing service.
func (r *ServiceRepository) Update(ctx context.Context, service *models.Service) error {
	service.UpdatedAt = time.Now().UTC()
	const query = `UPDATE services SET name = :name, description = :description, default_duration_minutes = :default_duration_minutes, concurrency_level = :concurrency_level, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, service); err != nil {
		return fmt.Errorf("update service: %w", err)
	}
	return nil
}
