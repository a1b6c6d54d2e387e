package models

import "time"

// AppointmentStatus is the lifecycle state of a booking.
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentNoShow    AppointmentStatus = "no_show"
)

// Appointment is a committed booking. Only scheduled rows participate in
// conflict and quota calculations.
type Appointment struct {
	ID             string            `db:"id" json:"id"`
	PatientID      string            `db:"patient_id" json:"patient_id"`
	BookedByUserID *string           `db:"booked_by_user_id" json:"booked_by_user_id,omitempty"`
	OfferingID     string            `db:"offering_id" json:"offering_id"`
	TechnicianID   string            `db:"technician_id" json:"technician_id"`
	StartTime      time.Time         `db:"start_time" json:"start_time"`
	EndTime        time.Time         `db:"end_time" json:"end_time"`
	Status         AppointmentStatus `db:"status" json:"status"`
	BookedByRole   UserRole          `db:"booked_by_role" json:"booked_by_role"`
	PriceAtBooking float64           `db:"price_at_booking" json:"price_at_booking"`
	Notes          *string           `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

// AppointmentDetail joins an appointment with its patient's display name.
type AppointmentDetail struct {
	Appointment
	PatientName string `db:"patient_name" json:"patient_name"`
}

// AppointmentFilter captures listing criteria for admin queries.
type AppointmentFilter struct {
	TechnicianID string
	PatientID    string
	Status       *AppointmentStatus
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}
