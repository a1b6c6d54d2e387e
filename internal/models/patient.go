package models

import "time"

// Patient is a person appointments are booked for, managed by a customer account.
type Patient struct {
	ID              string    `db:"id" json:"id"`
	ManagedByUserID string    `db:"managed_by_user_id" json:"managed_by_user_id"`
	FullName        string    `db:"full_name" json:"full_name"`
	PhoneNumber     *string   `db:"phone_number" json:"phone_number,omitempty"`
	BirthDate       *string   `db:"birth_date" json:"birth_date,omitempty"`
	Notes           *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
