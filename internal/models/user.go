package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleCustomer   UserRole = "customer"
	RoleTechnician UserRole = "technician"
	RoleAdmin      UserRole = "admin"
)

// User represents an application user stored in the users table.
type User struct {
	ID                string     `db:"id" json:"id"`
	Email             string     `db:"email" json:"email"`
	PasswordHash      string     `db:"password_hash" json:"-"`
	FullName          string     `db:"full_name" json:"full_name"`
	PhoneNumber       *string    `db:"phone_number" json:"phone_number,omitempty"`
	Role              UserRole   `db:"role" json:"role"`
	Active            bool       `db:"active" json:"active"`
	DefaultLocationID *string    `db:"default_location_id" json:"default_location_id,omitempty"`
	LastLogin         *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
