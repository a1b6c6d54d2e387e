package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunrise-clinic/booking-api/internal/models"
)

func testDate() time.Time {
	return time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
}

func morningRule(start, end models.LocalTime) models.BusinessHourRule {
	return models.BusinessHourRule{
		ID:           "rule-1",
		TechnicianID: "tech-1",
		LocationID:   "loc-1",
		DayOfWeek:    models.WeekdayMonday,
		Morning:      models.PresentInterval(start, end),
	}
}

func TestBuildSlotsTilesAndDropsTrailingPartial(t *testing.T) {
	rule := morningRule(models.NewLocalTime(9, 0), models.NewLocalTime(12, 30))
	slots := buildSlots([]models.BusinessHourRule{rule}, testDate(), time.Hour, time.UTC)

	require.Len(t, slots, 3)
	for i, slot := range slots {
		assert.Equal(t, time.Hour, slot.End.Sub(slot.Start))
		if i > 0 {
			assert.False(t, slots[i-1].End.After(slot.Start))
		}
		assert.False(t, slot.End.After(time.Date(2025, 6, 2, 12, 30, 0, 0, time.UTC)))
	}
	assert.Equal(t, time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC), slots[0].Start)
	assert.Equal(t, time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC), slots[2].Start)
}

func TestBuildSlotsSortsAcrossHalves(t *testing.T) {
	rule := morningRule(models.NewLocalTime(9, 0), models.NewLocalTime(11, 0))
	rule.Afternoon = models.PresentInterval(models.NewLocalTime(13, 0), models.NewLocalTime(15, 0))
	slots := buildSlots([]models.BusinessHourRule{rule}, testDate(), time.Hour, time.UTC)

	require.Len(t, slots, 4)
	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i-1].Start.Before(slots[i].Start))
	}
}

func TestBuildSlotsIntervalShorterThanDuration(t *testing.T) {
	rule := morningRule(models.NewLocalTime(9, 0), models.NewLocalTime(9, 30))
	slots := buildSlots([]models.BusinessHourRule{rule}, testDate(), time.Hour, time.UTC)
	assert.Empty(t, slots)
}

func TestEffectiveQuota(t *testing.T) {
	limit := 2
	negative := -3
	assert.Equal(t, 2, effectiveQuota(&limit, false, 4))
	assert.Equal(t, 0, effectiveQuota(&negative, true, 4))
	assert.Equal(t, 4, effectiveQuota(nil, true, 4))
	assert.Equal(t, 0, effectiveQuota(nil, false, 4))
}

func TestOverlapsHalfOpenBoundaryTouchIsNoOverlap(t *testing.T) {
	nine := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	ten := nine.Add(time.Hour)
	eleven := ten.Add(time.Hour)

	assert.False(t, overlapsHalfOpen(nine, ten, ten, eleven))
	assert.True(t, overlapsHalfOpen(nine, eleven, ten, eleven))
	assert.True(t, overlapsHalfOpen(ten, eleven, nine, eleven))
}

func scheduledAppointment(start, end time.Time) models.Appointment {
	return models.Appointment{
		TechnicianID: "tech-1",
		StartTime:    start,
		EndTime:      end,
		Status:       models.AppointmentScheduled,
		BookedByRole: models.RoleCustomer,
	}
}

func TestCountOverlappingIgnoresClosedAppointments(t *testing.T) {
	nine := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	completed := scheduledAppointment(nine, nine.Add(time.Hour))
	completed.Status = models.AppointmentCompleted
	appointments := []models.Appointment{
		scheduledAppointment(nine, nine.Add(time.Hour)),
		completed,
	}
	assert.Equal(t, 1, countOverlapping(appointments, nine, nine.Add(time.Hour)))
}

func TestAnnotateSlotsQuotaWinsOverConflict(t *testing.T) {
	nine := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	noon := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	slots := []models.AvailabilitySlot{{Start: nine, End: nine.Add(time.Hour)}}
	appointments := []models.Appointment{scheduledAppointment(nine, nine.Add(time.Hour))}

	annotated := annotateSlots(slots, true, false, appointments, 1, noon)
	require.Len(t, annotated, 1)
	require.NotNil(t, annotated[0].Reason)
	assert.Equal(t, models.ReasonQuotaExhausted, *annotated[0].Reason)
}

func TestAnnotateSlotsMonotonicUnderAddedAppointments(t *testing.T) {
	nine := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	noon := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	slots := []models.AvailabilitySlot{
		{Start: nine, End: nine.Add(time.Hour)},
		{Start: nine.Add(time.Hour), End: nine.Add(2 * time.Hour)},
	}
	var appointments []models.Appointment

	before := annotateSlots(slots, false, false, appointments, 1, noon)
	appointments = append(appointments, scheduledAppointment(nine, nine.Add(time.Hour)))
	after := annotateSlots(slots, false, false, appointments, 1, noon)

	for i := range before {
		if before[i].Reason != nil {
			assert.NotNil(t, after[i].Reason)
		}
	}
	assert.Nil(t, before[0].Reason)
	require.NotNil(t, after[0].Reason)
	assert.Equal(t, models.ReasonAlreadyBooked, *after[0].Reason)
	assert.Nil(t, after[1].Reason)
}
