package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sunrise-clinic/booking-api/internal/models"
)

// OfferingRepository provides persistence for offerings.
type OfferingRepository struct {
	db *sqlx.DB
}

// NewOfferingRepository creates a new offering repository.
func NewOfferingRepository(db *sqlx.DB) *OfferingRepository {
	return &OfferingRepository{db: db}
}

const offeringColumns = `id, technician_id, service_id, location_id, price, duration_minutes, is_available, created_at, updated_at`

const offeringDetailColumns = `o.id, o.technician_id, o.service_id, o.location_id, o.price, o.duration_minutes, o.is_available, o.created_at, o.updated_at, s.concurrency_level, s.name AS service_name`

// FindByID loads an offering by id.
func (r *OfferingRepository) FindByID(ctx context.Context, id string) (*models.Offering, error) {
	query := fmt.Sprintf(`SELECT %s FROM offerings WHERE id = $1`, offeringColumns)
	var offering models.Offering
	if err := r.db.GetContext(ctx, &offering, query, id); err != nil {
		return nil, err
	}
	return &offering, nil
}

// FindDetail loads the offering for a (technician, service, location) triple
// joined with its service, regardless of the availability flag.
func (r *OfferingRepository) FindDetail(ctx context.Context, technicianID, serviceID, locationID string) (*models.OfferingDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM offerings o JOIN services s ON s.id = o.service_id WHERE o.technician_id = $1 AND o.service_id = $2 AND o.location_id = $3`, offeringDetailColumns)
	var detail models.OfferingDetail
	if err := r.db.GetContext(ctx, &detail, query, technicianID, serviceID, locationID); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindDetailByID loads an offering by id joined with its service.
func (r *OfferingRepository) FindDetailByID(ctx context.Context, id string) (*models.OfferingDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM offerings o JOIN services s ON s.id = o.service_id WHERE o.id = $1`, offeringDetailColumns)
	var detail models.OfferingDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListByTechnician returns offerings for a technician, optionally only available ones.
func (r *OfferingRepository) ListByTechnician(ctx context.Context, technicianID string, availableOnly bool) ([]models.OfferingDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM offerings o JOIN services s ON s.id = o.service_id WHERE o.technician_id = $1`, offeringDetailColumns)
	if availableOnly {
		query += ` AND o.is_available = TRUE`
	}
	query += ` ORDER BY s.name ASC`
	var offerings []models.OfferingDetail
	if err := r.db.SelectContext(ctx, &offerings, query, technicianID); err != nil {
		return nil, fmt.Errorf("list offerings: %w", err)
	}
	return offerings, nil
}

// Create stores a new offering.
func (r *OfferingRepository) Create(ctx context.Context, offering *models.Offering) error {
	if offering.ID == "" {
		offering.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	offering.CreatedAt = now
	offering.UpdatedAt = now
	const query = `INSERT INTO offerings (id, technician_id, service_id, location_id, price, duration_minutes, is_available, created_at, updated_at) VALUES (:id, :technician_id, :service_id, :location_id, :price, :duration_minutes, :is_available, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, offering); err != nil {
		return fmt.Errorf("create offering: %w", err)
	}
	return nil
}

// Update modifies an existing offering.
func (r *OfferingRepository) Update(ctx context.Context, offering *models.Offering) error {
	offering.UpdatedAt = time.Now().UTC()
	const query = `UPDATE offerings SET price = :price, duration_minutes = :duration_minutes, is_available = :is_available, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, offering); err != nil {
		return fmt.Errorf("update offering: %w", err)
	}
	return nil
}

// Delete removes an offering row.
func (r *OfferingRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM offerings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete offering: %w", err)
	}
	return nil
}
