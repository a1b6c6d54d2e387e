package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sunrise-clinic/booking-api/internal/models"
)

// LocationRepository provides persistence for locations.
type LocationRepository struct {
	db *sqlx.DB
}

// NewLocationRepository creates a new location repository.
func NewLocationRepository(db *sqlx.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

const locationColumns = `id, name, address, city, active, created_at, updated_at`

// List returns locations, optionally restricted to active ones.
func (r *LocationRepository) List(ctx context.Context, activeOnly bool) ([]models.Location, error) {
	query := fmt.Sprintf(`SELECT %s FROM locations`, locationColumns)
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY name ASC`
	var locations []models.Location
	if err := r.db.SelectContext(ctx, &locations, query); err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	return locations, nil
}

// FindByID loads a location by id.
func (r *LocationRepository) FindByID(ctx context.Context, id string) (*models.Location, error) {
	query := fmt.Sprintf(`SELECT %s FROM locations WHERE id = $1`, locationColumns)
	var location models.Location
	if err := r.db.GetContext(ctx, &location, query, id); err != nil {
		return nil, err
	}
	return &location, nil
}

// Create stores a new location.
func (r *LocationRepository) Create(ctx context.Context, location *models.Location) error {
	if location.ID == "" {
		location.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	location.CreatedAt = now
	location.UpdatedAt = now
	const query = `INSERT INTO locations (id, name, address, city, active, created_at, updated_at) VALUES (:id, :name, :address, :city, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, location); err != nil {
		return fmt.Errorf("create location: %w", err)
	}
	return nil
}

// Update modifies an existing location.
func (r *LocationRepository) Update(ctx context.Context, location *models.Location) error {
	location.UpdatedAt = time.Now().UTC()
	const query = `UPDATE locations SET name = :name, address = :address, city = :city, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, location); err != nil {
		return fmt.Errorf("update location: %w", err)
	}
	return nil
}
