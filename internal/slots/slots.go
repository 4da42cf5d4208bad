// Package slots computes free booking slots for a space on a calendar day
// and prices a chosen slot.
//
// Times are zero-padded "HH:MM" labels and dates are "YYYY-MM-DD" strings;
// both are compared lexically, which orders them correctly only because of
// the zero padding. No timezone normalisation takes place.
package slots

import (
	"fmt"
	"time"

	"github.com/bnrm/libadmin/internal/model"
)

const labelLayout = "15:04"

// Grid returns the labels from open to close inclusive, every step minutes.
func Grid(open, close string, step int) ([]string, error) {
	from, err := parseLabel(open)
	if err != nil {
		return nil, err
	}
	to, err := parseLabel(close)
	if err != nil {
		return nil, err
	}
	if step <= 0 || !to.After(from) {
		return nil, fmt.Errorf("invalid grid %s-%s every %d minutes", open, close, step)
	}

	var grid []string
	for t := from; !t.After(to); t = t.Add(time.Duration(step) * time.Minute) {
		grid = append(grid, t.Format(labelLayout))
	}
	return grid, nil
}

func parseLabel(label string) (time.Time, error) {
	t, err := time.Parse(labelLayout, label)
	if err != nil || len(label) != len(labelLayout) {
		return time.Time{}, fmt.Errorf("%q is not a zero-padded HH:MM time", label)
	}
	return t, nil
}

// ValidLabel reports whether label is a zero-padded HH:MM time.
func ValidLabel(label string) bool {
	_, err := parseLabel(label)
	return err == nil
}

// Occupies reports whether a booking holds its slot. Rejected and archived
// bookings free their slot.
func Occupies(b model.Booking) bool {
	switch b.Status {
	case model.StatusPending, model.StatusValidated, model.StatusInfoRequested:
		return true
	}
	return false
}

// AvailableStarts returns the grid labels that do not fall inside any
// booking of date. The last label closes the day and is never a start.
func AvailableStarts(grid []string, bookings []model.Booking, date string) []string {
	out := []string{}
	if len(grid) == 0 {
		return out
	}
	day := onDate(bookings, date)
	for _, c := range grid[:len(grid)-1] {
		if !inside(c, day) {
			out = append(out, c)
		}
	}
	return out
}

// AvailableEnds returns the labels strictly after start and at or before
// the next booked start of date. A start that is itself booked has no ends.
func AvailableEnds(grid []string, bookings []model.Booking, date, start string) []string {
	out := []string{}
	day := onDate(bookings, date)
	if inside(start, day) {
		return out
	}

	next := ""
	for _, b := range day {
		if b.StartTime > start && (next == "" || b.StartTime < next) {
			next = b.StartTime
		}
	}

	for _, e := range grid {
		if e > start && (next == "" || e <= next) {
			out = append(out, e)
		}
	}
	return out
}

// Conflicts returns the bookings of date whose [start, end) interval
// intersects the proposed one.
func Conflicts(bookings []model.Booking, date, start, end string) []model.Booking {
	var out []model.Booking
	for _, b := range onDate(bookings, date) {
		if start < b.EndTime && b.StartTime < end {
			out = append(out, b)
		}
	}
	return out
}

func onDate(bookings []model.Booking, date string) []model.Booking {
	var day []model.Booking
	for _, b := range bookings {
		if b.Date == date && Occupies(b) {
			day = append(day, b)
		}
	}
	return day
}

func inside(label string, day []model.Booking) bool {
	for _, b := range day {
		if label >= b.StartTime && label < b.EndTime {
			return true
		}
	}
	return false
}

// Duration returns end-start in hours.
func Duration(start, end string) (float64, error) {
	s, err := parseLabel(start)
	if err != nil {
		return 0, err
	}
	e, err := parseLabel(end)
	if err != nil {
		return 0, err
	}
	if !e.After(s) {
		return 0, fmt.Errorf("end %s must be after start %s", end, start)
	}
	return e.Sub(s).Hours(), nil
}

// Rates is the tariff of a space.
type Rates struct {
	Hourly  float64
	HalfDay float64
	FullDay float64
}

// RatesOf extracts the tariff of a space.
func RatesOf(s model.Space) Rates {
	return Rates{Hourly: s.HourlyRate, HalfDay: s.HalfDayRate, FullDay: s.FullDayRate}
}

// Pricing tiers.
const (
	TierHalfDay = "half_day"
	TierFullDay = "full_day"
	TierHourly  = "hourly"
)

const (
	halfDayHours = 4.0
	fullDayHours = 7.0
)

// Quote prices a duration: up to 4h is a half day, beyond 7h a full day,
// anything between is billed by the hour.
func Quote(r Rates, hours float64) model.Quote {
	switch {
	case hours <= halfDayHours:
		return model.Quote{Hours: hours, Tier: TierHalfDay, Total: r.HalfDay}
	case hours > fullDayHours:
		return model.Quote{Hours: hours, Tier: TierFullDay, Total: r.FullDay}
	default:
		return model.Quote{Hours: hours, Tier: TierHourly, Total: r.Hourly * hours}
	}
}
