package models

import "time"

// Unavailability reasons attached to availability slots.
const (
	ReasonQuotaExhausted = "quota_exhausted"
	ReasonAlreadyBooked  = "already_booked"
)

// AvailabilitySlot is one candidate booking window for a day. Reason is nil
// when the slot is bookable.
type AvailabilitySlot struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason *string   `json:"reason"`
}

// Bookable reports whether the slot carries no unavailability reason.
func (s AvailabilitySlot) Bookable() bool {
	return s.Reason == nil
}
