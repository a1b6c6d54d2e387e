package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Weekday labels match time.Weekday.String() lowercased.
const (
	WeekdayMonday    = "monday"
	WeekdayTuesday   = "tuesday"
	WeekdayWednesday = "wednesday"
	WeekdayThursday  = "thursday"
	WeekdayFriday    = "friday"
	WeekdaySaturday  = "saturday"
	WeekdaySunday    = "sunday"
)

var weekdayLabels = map[time.Weekday]string{
	time.Monday:    WeekdayMonday,
	time.Tuesday:   WeekdayTuesday,
	time.Wednesday: WeekdayWednesday,
	time.Thursday:  WeekdayThursday,
	time.Friday:    WeekdayFriday,
	time.Saturday:  WeekdaySaturday,
	time.Sunday:    WeekdaySunday,
}

// WeekdayLabel returns the stored weekday label for a date.
func WeekdayLabel(t time.Time) string {
	return weekdayLabels[t.Weekday()]
}

// IsWeekdayLabel reports whether s is one of the seven recognised labels.
func IsWeekdayLabel(s string) bool {
	for _, label := range weekdayLabels {
		if label == s {
			return true
		}
	}
	return false
}

// LocalTime is a wall-clock time of day with no date or zone attached. It is
// stored as a TIME column and rendered as HH:MM.
type LocalTime struct {
	Hour   int
	Minute int
}

// NewLocalTime builds a LocalTime from hour and minute.
func NewLocalTime(hour, minute int) LocalTime {
	return LocalTime{Hour: hour, Minute: minute}
}

// Minutes returns the offset from midnight in minutes.
func (t LocalTime) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Before reports whether t is strictly earlier than other.
func (t LocalTime) Before(other LocalTime) bool {
	return t.Minutes() < other.Minutes()
}

// On anchors the wall-clock time onto a calendar date in the given zone.
func (t LocalTime) On(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, 0, 0, loc)
}

// String renders HH:MM.
func (t LocalTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MarshalJSON renders the HH:MM form.
func (t LocalTime) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", t.String())), nil
}

// UnmarshalJSON accepts "HH:MM" or "HH:MM:SS".
func (t *LocalTime) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return fmt.Errorf("invalid time literal %s", raw)
	}
	parsed, err := ParseLocalTime(raw[1 : len(raw)-1])
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Scan implements sql.Scanner for TIME columns.
func (t *LocalTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*t = LocalTime{Hour: v.Hour(), Minute: v.Minute()}
		return nil
	case []byte:
		parsed, err := ParseLocalTime(string(v))
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	case string:
		parsed, err := ParseLocalTime(v)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into LocalTime", src)
	}
}

// Value implements driver.Valuer.
func (t LocalTime) Value() (driver.Value, error) {
	return fmt.Sprintf("%02d:%02d:00", t.Hour, t.Minute), nil
}

// ParseLocalTime parses HH:MM or HH:MM:SS.
func ParseLocalTime(raw string) (LocalTime, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return LocalTime{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
		}
	}
	return LocalTime{}, fmt.Errorf("invalid time of day %q", raw)
}

// HalfDayInterval is a tagged variant: either absent, or a present window
// with both bounds set. Using a single struct keeps the both-or-neither
// invariant out of per-field nil checks.
type HalfDayInterval struct {
	Present bool
	Start   LocalTime
	End     LocalTime
}

// PresentInterval builds a present half-day window.
func PresentInterval(start, end LocalTime) HalfDayInterval {
	return HalfDayInterval{Present: true, Start: start, End: end}
}

// Valid reports whether an absent interval or a well-ordered present one.
func (i HalfDayInterval) Valid() bool {
	if !i.Present {
		return true
	}
	return i.Start.Before(i.End)
}

// Overlaps reports whether two present windows share any instant.
func (i HalfDayInterval) Overlaps(other HalfDayInterval) bool {
	if !i.Present || !other.Present {
		return false
	}
	start := i.Start.Minutes()
	if other.Start.Minutes() > start {
		start = other.Start.Minutes()
	}
	end := i.End.Minutes()
	if other.End.Minutes() < end {
		end = other.End.Minutes()
	}
	return start < end
}

// BusinessHourRule is one availability rule for a (technician, location)
// pair. RuleDate nil means the rule recurs every week on DayOfWeek; a set
// RuleDate pins the rule to that date and overrides any recurring rule.
type BusinessHourRule struct {
	ID           string     `json:"id"`
	TechnicianID string     `json:"technician_id"`
	LocationID   string     `json:"location_id"`
	RuleDate     *time.Time `json:"rule_date,omitempty"`
	DayOfWeek    string     `json:"day_of_week"`

	Morning   HalfDayInterval `json:"-"`
	Afternoon HalfDayInterval `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Recurring reports whether the rule applies to every occurrence of its weekday.
func (r *BusinessHourRule) Recurring() bool {
	return r.RuleDate == nil
}

// Intervals returns the present half-day windows in morning, afternoon order.
func (r *BusinessHourRule) Intervals() []HalfDayInterval {
	var intervals []HalfDayInterval
	if r.Morning.Present {
		intervals = append(intervals, r.Morning)
	}
	if r.Afternoon.Present {
		intervals = append(intervals, r.Afternoon)
	}
	return intervals
}

// OverlapsRule reports whether any present window of r overlaps one of other.
func (r *BusinessHourRule) OverlapsRule(other *BusinessHourRule) bool {
	for _, a := range r.Intervals() {
		for _, b := range other.Intervals() {
			if a.Overlaps(b) {
				return true
			}
		}
	}
	return false
}
