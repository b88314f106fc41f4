package dto

import (
	"time"

	appavailability "dogshare/internal/app/services/availability"
	"dogshare/internal/domain/availability"
	"dogshare/internal/domain/shared/daykey"
)

type DayStatus struct {
	Day         string   `json:"day"`
	Available   bool     `json:"available"`
	Blocked     bool     `json:"blocked"`
	Booked      bool     `json:"booked"`
	Bookable    bool     `json:"bookable"`
	Reason      string   `json:"reason,omitempty"`
	RentalID    string   `json:"rental_id,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Explicit    bool     `json:"explicit"`
	FromPattern bool     `json:"from_pattern,omitempty"`
}

type Pattern struct {
	Kind      string   `json:"kind"`
	Weekdays  []int    `json:"weekdays,omitempty"`
	MonthDays []int    `json:"month_days,omitempty"`
	Available bool     `json:"available"`
	Blocked   bool     `json:"blocked"`
	Reason    string   `json:"reason,omitempty"`
	Price     *float64 `json:"price,omitempty"`
	From      string   `json:"from,omitempty"`
	Until     string   `json:"until,omitempty"`
}

type Availability struct {
	DogID             string      `json:"dog_id"`
	OwnerID           string      `json:"owner_id,omitempty"`
	DefaultAvailable  bool        `json:"default_available"`
	Days              []DayStatus `json:"days"`
	RecurringPatterns []Pattern   `json:"recurring_patterns,omitempty"`
	UpdatedAt         *time.Time  `json:"updated_at,omitempty"`
	Version           int64       `json:"version"`
}

type Calendar struct {
	DogID string      `json:"dog_id"`
	Days  []DayStatus `json:"days"`
}

type ApplyResult struct {
	Updated   []string `json:"updated"`
	Protected []string `json:"protected"`
}

type Bookable struct {
	DogID    string `json:"dog_id"`
	Bookable bool   `json:"bookable"`
}

type BookableDays struct {
	DogID string   `json:"dog_id"`
	Days  []string `json:"days"`
}

// DefaultAvailability is what a dog without a stored document looks like.
func DefaultAvailability(dogID string) Availability {
	return Availability{DogID: dogID, DefaultAvailable: true, Days: []DayStatus{}}
}

func MapAvailability(cal *availability.DogAvailability) Availability {
	if cal == nil {
		return Availability{}
	}
	keys := make([]daykey.DayKey, 0, len(cal.Days))
	for k := range cal.Days {
		keys = append(keys, k)
	}
	daykey.Sort(keys)
	days := make([]DayStatus, 0, len(keys))
	for _, k := range keys {
		days = append(days, mapStatus(k, cal.Days[k], true))
	}
	out := Availability{
		DogID:            string(cal.DogID),
		OwnerID:          cal.OwnerID,
		DefaultAvailable: cal.DefaultAvailable,
		Days:             days,
		Version:          cal.Version,
	}
	if !cal.UpdatedAt.IsZero() {
		at := cal.UpdatedAt
		out.UpdatedAt = &at
	}
	for _, p := range cal.RecurringPatterns {
		out.RecurringPatterns = append(out.RecurringPatterns, MapPattern(p))
	}
	return out
}

func MapCalendar(dogID string, views []appavailability.DayView) Calendar {
	days := make([]DayStatus, 0, len(views))
	for _, v := range views {
		days = append(days, mapStatus(v.Day, v.Status, v.Explicit))
	}
	return Calendar{DogID: dogID, Days: days}
}

func MapApplyResult(res availability.ApplyResult) ApplyResult {
	return ApplyResult{Updated: DayStrings(res.Updated), Protected: DayStrings(res.Protected)}
}

func MapPattern(p availability.RecurringPattern) Pattern {
	weekdays := make([]int, 0, len(p.Weekdays))
	for _, wd := range p.Weekdays {
		weekdays = append(weekdays, int(wd))
	}
	return Pattern{
		Kind:      string(p.Kind),
		Weekdays:  weekdays,
		MonthDays: append([]int(nil), p.MonthDays...),
		Available: p.Intent.Available,
		Blocked:   p.Intent.Blocked,
		Reason:    p.Intent.Reason,
		Price:     p.Intent.Price,
		From:      string(p.From),
		Until:     string(p.Until),
	}
}

// ToDomain converts a wire pattern. Key validation happens in
// RecurringPattern.Validate.
func (p Pattern) ToDomain() availability.RecurringPattern {
	weekdays := make([]time.Weekday, 0, len(p.Weekdays))
	for _, wd := range p.Weekdays {
		weekdays = append(weekdays, time.Weekday(wd))
	}
	return availability.RecurringPattern{
		Kind:      availability.PatternKind(p.Kind),
		Weekdays:  weekdays,
		MonthDays: append([]int(nil), p.MonthDays...),
		Intent: availability.StatusIntent{
			Available: p.Available,
			Blocked:   p.Blocked,
			Reason:    p.Reason,
			Price:     p.Price,
		},
		From:  daykey.DayKey(p.From),
		Until: daykey.DayKey(p.Until),
	}
}

func DayStrings(days []daykey.DayKey) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, string(d))
	}
	return out
}

func mapStatus(day daykey.DayKey, s availability.Status, explicit bool) DayStatus {
	return DayStatus{
		Day:         string(day),
		Available:   s.Available,
		Blocked:     s.Blocked,
		Booked:      s.Booked,
		Bookable:    s.Bookable(),
		Reason:      s.Reason,
		RentalID:    s.RentalID,
		Price:       s.Price,
		Explicit:    explicit,
		FromPattern: s.FromPattern,
	}
}

type Ack struct {
	Status string `json:"status"`
}
