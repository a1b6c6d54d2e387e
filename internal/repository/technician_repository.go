package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sunrise-clinic/booking-api/internal/models"
)

// TechnicianRepository provides persistence for technicians.
type TechnicianRepository struct {
	db *sqlx.DB
}

// NewTechnicianRepository creates a new technician repository.
func NewTechnicianRepository(db *sqlx.DB) *TechnicianRepository {
	return &TechnicianRepository{db: db}
}

const technicianColumns = `id, user_id, display_name, bio, avatar_url, active, restricted_by_quota, morning_quota_limit, afternoon_quota_limit, created_at, updated_at`

// List returns technicians, optionally restricted to active ones.
func (r *TechnicianRepository) List(ctx context.Context, activeOnly bool) ([]models.Technician, error) {
	query := fmt.Sprintf(`SELECT %s FROM technicians`, technicianColumns)
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY display_name ASC`
	var technicians []models.Technician
	if err := r.db.SelectContext(ctx, &technicians, query); err != nil {
		return nil, fmt.Errorf("list technicians: %w", err)
	}
	return technicians, nil
}

// ListByLocation returns active technicians with at least one available
// offering at the location.
func (r *TechnicianRepository) ListByLocation(ctx context.Context, locationID string) ([]models.Technician, error) {
	const query = `SELECT DISTINCT t.id, t.user_id, t.display_name, t.bio, t.avatar_url, t.active, t.restricted_by_quota, t.morning_quota_limit, t.afternoon_quota_limit, t.created_at, t.updated_at FROM technicians t JOIN offerings o ON o.technician_id = t.id WHERE t.active = TRUE AND o.is_available = TRUE AND o.location_id = $1 ORDER BY t.display_name ASC`
	var technicians []models.Technician
	if err := r.db.SelectContext(ctx, &technicians, query, locationID); err != nil {
		return nil, fmt.Errorf("list technicians by location: %w", err)
	}
	return technicians, nil
}

// FindByID loads a technician by id.
func (r *TechnicianRepository) FindByID(ctx context.Context, id string) (*models.Technician, error) {
	query := fmt.Sprintf(`SELECT %s FROM technicians WHERE id = $1`, technicianColumns)
	var technician models.Technician
	if err := r.db.GetContext(ctx, &technician, query, id); err != nil {
		return nil, err
	}
	return &technician, nil
}

// FindByUserID loads the technician profile tied to a user account.
func (r *TechnicianRepository) FindByUserID(ctx context.Context, userID string) (*models.Technician, error) {
	query := fmt.Sprintf(`SELECT %s FROM technicians WHERE user_id = $1`, technicianColumns)
	var technician models.Technician
	if err := r.db.GetContext(ctx, &technician, query, userID); err != nil {
		return nil, err
	}
	return &technician, nil
}

// Create stores a new technician.
func (r *TechnicianRepository) Create(ctx context.Context, technician *models.Technician) error {
	if technician.ID == "" {
		technician.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	technician.CreatedAt = now
	technician.UpdatedAt = now
	const query = `INSERT INTO technicians (id, user_id, display_name, bio, avatar_url, active, restricted_by_quota, morning_quota_limit, afternoon_quota_limit, created_at, updated_at) VALUES (:id, :user_id, :display_name, :bio, :avatar_url, :active, :restricted_by_quota, :morning_quota_limit, :afternoon_quota_limit, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, technician); err != nil {
		return fmt.Errorf("create technician: %w", err)
	}
	return nil
}

// Update modifies an existing technician.
func (r *TechnicianRepository) Update(ctx context.Context, technician *models.Technician) error {
	technician.UpdatedAt = time.Now().UTC()
	const query = `UPDATE technicians SET user_id = :user_id, display_name = :display_name, bio = :bio, avatar_url = :avatar_url, active = :active, restricted_by_quota = :restricted_by_quota, morning_quota_limit = :morning_quota_limit, afternoon_quota_limit = :afternoon_quota_limit, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, technician); err != nil {
		return fmt.Errorf("update technician: %w", err)
	}
	return nil
}
