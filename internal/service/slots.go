package service

import (
	"sort"
	"time"

	"github.com/sunrise-clinic/booking-api/internal/models"
)

// noonBoundary splits a day into its morning and afternoon halves. Fixed by
// policy, not configurable per deployment.
var noonBoundary = models.NewLocalTime(12, 0)

// dayBounds returns the start of the date, local noon and the start of the
// next day, all anchored in loc.
func dayBounds(date time.Time, loc *time.Location) (dayStart, noon, dayEnd time.Time) {
	dayStart = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	noon = noonBoundary.On(dayStart, loc)
	dayEnd = dayStart.AddDate(0, 0, 1)
	return dayStart, noon, dayEnd
}

// buildSlots tiles every present half-day window of the rules into
// fixed-width candidate slots. A trailing window that would run past the
// interval end is dropped. The result is sorted ascending by start.
func buildSlots(rules []models.BusinessHourRule, date time.Time, duration time.Duration, loc *time.Location) []models.AvailabilitySlot {
	if duration <= 0 {
		return nil
	}
	var slots []models.AvailabilitySlot
	for i := range rules {
		for _, interval := range rules[i].Intervals() {
			start := interval.Start.On(date, loc)
			end := interval.End.On(date, loc)
			for t := start; !t.Add(duration).After(end); t = t.Add(duration) {
				slots = append(slots, models.AvailabilitySlot{Start: t, End: t.Add(duration)})
			}
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots
}

// effectiveQuota resolves a half-day limit from the technician profile. An
// explicit limit wins, clamped to zero; otherwise the configured default
// applies only to quota-restricted technicians. Zero means no cap.
func effectiveQuota(explicit *int, restricted bool, fallback int) int {
	if explicit != nil {
		if *explicit < 0 {
			return 0
		}
		return *explicit
	}
	if restricted {
		return fallback
	}
	return 0
}

// overlapsHalfOpen reports whether [aStart, aEnd) and [bStart, bEnd) share
// any instant.
func overlapsHalfOpen(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// countOverlapping counts scheduled appointments overlapping [start, end).
func countOverlapping(appointments []models.Appointment, start, end time.Time) int {
	count := 0
	for i := range appointments {
		if appointments[i].Status != models.AppointmentScheduled {
			continue
		}
		if overlapsHalfOpen(appointments[i].StartTime, appointments[i].EndTime, start, end) {
			count++
		}
	}
	return count
}

// annotateSlots attaches an unavailability reason to each slot. Quota wins
// over scheduling contention when both apply; input order is preserved.
func annotateSlots(slots []models.AvailabilitySlot, morningBlocked, afternoonBlocked bool, appointments []models.Appointment, concurrencyLevel int, noon time.Time) []models.AvailabilitySlot {
	annotated := make([]models.AvailabilitySlot, len(slots))
	for i, slot := range slots {
		annotated[i] = slot
		blocked := afternoonBlocked
		if slot.Start.Before(noon) {
			blocked = morningBlocked
		}
		if blocked {
			reason := models.ReasonQuotaExhausted
			annotated[i].Reason = &reason
			continue
		}
		if countOverlapping(appointments, slot.Start, slot.End) >= concurrencyLevel {
			reason := models.ReasonAlreadyBooked
			annotated[i].Reason = &reason
		}
	}
	return annotated
}
