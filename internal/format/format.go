// Package format turns the calendar parts sent by the dialog platform into timestamps.
package format

import (
	"sync"
	"time"

	"stealthcompany.com/appointmentbot/internal/domain"
)

var (
	locMu    sync.RWMutex
	location = time.Local
)

// UseLocation sets the time zone calendar parts are interpreted in
func UseLocation(loc *time.Location) {
	if loc == nil {
		return
	}
	locMu.Lock()
	location = loc
	locMu.Unlock()
}

// Location returns the time zone calendar parts are interpreted in
func Location() *time.Location {
	locMu.RLock()
	defer locMu.RUnlock()
	return location
}

// ToAppointmentTimestamp builds the appointment instant. Month is 1-based.
// Out-of-range parts roll over the way time.Date normalizes them; range
// checks happen in request validation.
func ToAppointmentTimestamp(p domain.TimeParts) time.Time {
	return time.Date(p.Year, time.Month(p.Month), p.Day, p.Hours, p.Minutes, 0, 0, Location())
}

// ToBirthTimestamp builds a birth date at midnight. All three parts are required.
func ToBirthTimestamp(p domain.DateParts) (time.Time, error) {
	if p.Day == 0 || p.Month == 0 || p.Year == 0 {
		return time.Time{}, domain.NewError(domain.KindValidation, domain.MsgBirthDateRequired)
	}
	return time.Date(p.Year, time.Month(p.Month), p.Day, 0, 0, 0, 0, Location()), nil
}
