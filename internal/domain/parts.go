package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// DateParts is a calendar date as sent by the dialog platform (month is 1-based)
type DateParts struct {
	Day   int `json:"day"`
	Month int `json:"month"`
	Year  int `json:"year"`
}

// TimeParts is a calendar date and time of day as sent by the dialog platform.
// Seconds and Nanos are optional and default to zero.
type TimeParts struct {
	Year    int `json:"year"`
	Month   int `json:"month"`
	Day     int `json:"day"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds,omitempty"`
	Nanos   int `json:"nanos,omitempty"`
}

// UnmarshalJSON accepts integral JSON numbers in any notation (2099 or 2099.0)
func (p *DateParts) UnmarshalJSON(b []byte) error {
	var raw struct {
		Day, Month, Year json.Number
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	var err error
	if p.Day, err = WholeNumber(raw.Day); err != nil {
		return fmt.Errorf("day: %w", err)
	}
	if p.Month, err = WholeNumber(raw.Month); err != nil {
		return fmt.Errorf("month: %w", err)
	}
	if p.Year, err = WholeNumber(raw.Year); err != nil {
		return fmt.Errorf("year: %w", err)
	}
	return nil
}

// UnmarshalJSON accepts integral JSON numbers in any notation (9 or 9.0)
func (p *TimeParts) UnmarshalJSON(b []byte) error {
	var raw struct {
		Year, Month, Day, Hours, Minutes, Seconds, Nanos json.Number
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	fields := []struct {
		name string
		src  json.Number
		dst  *int
	}{
		{"year", raw.Year, &p.Year},
		{"month", raw.Month, &p.Month},
		{"day", raw.Day, &p.Day},
		{"hours", raw.Hours, &p.Hours},
		{"minutes", raw.Minutes, &p.Minutes},
		{"seconds", raw.Seconds, &p.Seconds},
		{"nanos", raw.Nanos, &p.Nanos},
	}
	for _, f := range fields {
		v, err := WholeNumber(f.src)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return nil
}

// WholeNumber converts a JSON number to int, rejecting fractions and values
// outside the 32-bit range. An absent number converts to zero.
func WholeNumber(n json.Number) (int, error) {
	if n == "" {
		return 0, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s is not a whole number", n)
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, fmt.Errorf("%s is out of range", n)
	}
	return int(f), nil
}
