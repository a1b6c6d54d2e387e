package models

import "time"

// Location is a branch where technicians take appointments.
type Location struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Address   *string   `db:"address" json:"address,omitempty"`
	City      *string   `db:"city" json:"city,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Service is a bookable treatment type. ConcurrencyLevel is the maximum
// number of scheduled appointments allowed to overlap the same instant.
type Service struct {
	ID                     string    `db:"id" json:"id"`
	Name                   string    `db:"name" json:"name"`
	Description            *string   `db:"description" json:"description,omitempty"`
	DefaultDurationMinutes int       `db:"default_duration_minutes" json:"default_duration_minutes"`
	ConcurrencyLevel       int       `db:"concurrency_level" json:"concurrency_level"`
	Active                 bool      `db:"active" json:"active"`
	CreatedAt              time.Time `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time `db:"updated_at" json:"updated_at"`
}

// Technician is a service provider. The quota fields cap customer-originated
// bookings per half day: a nil limit falls back to the configured default when
// RestrictedByQuota is set, and a resolved limit of zero means no cap.
type Technician struct {
	ID                  string    `db:"id" json:"id"`
	UserID              *string   `db:"user_id" json:"user_id,omitempty"`
	DisplayName         string    `db:"display_name" json:"display_name"`
	Bio                 *string   `db:"bio" json:"bio,omitempty"`
	AvatarURL           *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	Active              bool      `db:"active" json:"active"`
	RestrictedByQuota   bool      `db:"restricted_by_quota" json:"restricted_by_quota"`
	MorningQuotaLimit   *int      `db:"morning_quota_limit" json:"morning_quota_limit,omitempty"`
	AfternoonQuotaLimit *int      `db:"afternoon_quota_limit" json:"afternoon_quota_limit,omitempty"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// Offering links a technician, a service and a location with concrete price
// and duration. Appointments are always booked against an offering.
type Offering struct {
	ID              string    `db:"id" json:"id"`
	TechnicianID    string    `db:"technician_id" json:"technician_id"`
	ServiceID       string    `db:"service_id" json:"service_id"`
	LocationID      string    `db:"location_id" json:"location_id"`
	Price           float64   `db:"price" json:"price"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	IsAvailable     bool      `db:"is_available" json:"is_available"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// OfferingDetail is an offering joined with its service for availability and
// booking checks.
type OfferingDetail struct {
	Offering
	ServiceConcurrency int    `db:"concurrency_level" json:"concurrency_level"`
	ServiceName        string `db:"service_name" json:"service_name"`
}
