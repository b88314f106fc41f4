package availability

import (
	"errors"
	"time"

	"dogshare/internal/domain/shared/daykey"
)

var (
	ErrPatternKind     = errors.New("availability: unknown recurring pattern kind")
	ErrPatternEmpty    = errors.New("availability: recurring pattern selects no days")
	ErrPatternMonthDay = errors.New("availability: month day must be between 1 and 31")
	ErrPatternWindow   = errors.New("availability: pattern until precedes from")
)

type PatternKind string

const (
	PatternWeekly  PatternKind = "weekly"
	PatternMonthly PatternKind = "monthly"
)

// RecurringPattern applies an intent to every matching day between From and
// Until (both optional, inclusive).
type RecurringPattern struct {
	Kind      PatternKind
	Weekdays  []time.Weekday
	MonthDays []int
	Intent    StatusIntent
	From      daykey.DayKey
	Until     daykey.DayKey
}

func (p RecurringPattern) Validate() error {
	switch p.Kind {
	case PatternWeekly:
		if len(p.Weekdays) == 0 {
			return ErrPatternEmpty
		}
	case PatternMonthly:
		if len(p.MonthDays) == 0 {
			return ErrPatternEmpty
		}
		for _, d := range p.MonthDays {
			if d < 1 || d > 31 {
				return ErrPatternMonthDay
			}
		}
	default:
		return ErrPatternKind
	}
	for _, k := range []daykey.DayKey{p.From, p.Until} {
		if k == "" {
			continue
		}
		if _, err := daykey.Parse(string(k)); err != nil {
			return err
		}
	}
	if p.From != "" && p.Until != "" && p.Until.Before(p.From) {
		return ErrPatternWindow
	}
	return nil
}

func (p RecurringPattern) Matches(day time.Time) bool {
	key := daykey.Of(day)
	if p.From != "" && key.Before(p.From) {
		return false
	}
	if p.Until != "" && p.Until.Before(key) {
		return false
	}
	switch p.Kind {
	case PatternWeekly:
		for _, wd := range p.Weekdays {
			if day.Weekday() == wd {
				return true
			}
		}
	case PatternMonthly:
		for _, md := range p.MonthDays {
			if day.Day() == md {
				return true
			}
		}
	}
	return false
}

// SetPatterns replaces the stored patterns and drops days previously
// materialized from the old set, unless they are booked.
func (c *DogAvailability) SetPatterns(patterns []RecurringPattern, now time.Time) {
	c.RecurringPatterns = clonePatterns(patterns)
	for day, s := range c.Days {
		if s.FromPattern && !s.Booked {
			delete(c.Days, day)
		}
	}
	c.touch(now)
}

// Materialize expands the stored patterns into concrete day entries for
// horizonDays days starting at from. Later patterns win over earlier ones on
// the same day; explicit owner edits and bookings are never overwritten.
func (c *DogAvailability) Materialize(from time.Time, horizonDays int, now time.Time) ApplyResult {
	var res ApplyResult
	if len(c.RecurringPatterns) == 0 || horizonDays <= 0 {
		return res
	}
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	for i := 0; i < horizonDays; i++ {
		day := start.AddDate(0, 0, i)
		var (
			intent  StatusIntent
			matched bool
		)
		for _, p := range c.RecurringPatterns {
			if p.Matches(day) {
				intent = p.Intent
				matched = true
			}
		}
		if !matched {
			continue
		}
		r := c.apply([]daykey.DayKey{daykey.Of(day)}, intent, true)
		res.Updated = append(res.Updated, r.Updated...)
		res.Protected = append(res.Protected, r.Protected...)
	}
	if len(res.Updated) > 0 {
		c.touch(now)
		c.Record(CalendarUpdated{DogID: string(c.DogID), Days: res.Updated, At: now.UTC()})
	}
	return res
}

func clonePatterns(in []RecurringPattern) []RecurringPattern {
	if in == nil {
		return nil
	}
	out := make([]RecurringPattern, len(in))
	for i, p := range in {
		p.Weekdays = append([]time.Weekday(nil), p.Weekdays...)
		p.MonthDays = append([]int(nil), p.MonthDays...)
		p.Intent.Price = copyPrice(p.Intent.Price)
		out[i] = p
	}
	return out
}
