// Package daykey maps instants onto calendar-day keys used by availability documents.
package daykey

import (
	"errors"
	"slices"
	"time"
)

const layout = "2006-01-02"

var (
	ErrInvalidRange  = errors.New("daykey: end must not be before start")
	ErrInvalidDayKey = errors.New("daykey: malformed day key")
	ErrRangeTooLong  = errors.New("daykey: range exceeds the allowed number of days")
)

// DayKey is a calendar day formatted as YYYY-MM-DD. It is safe to use as a
// document map key.
type DayKey string

// Of maps t to its calendar day in t's own location. Time of day is ignored.
func Of(t time.Time) DayKey {
	return DayKey(t.Format(layout))
}

// Parse validates s and returns it as a DayKey.
func Parse(s string) (DayKey, error) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return "", ErrInvalidDayKey
	}
	return Of(t), nil
}

// MustParse is Parse for fixtures and tests.
func MustParse(s string) DayKey {
	k, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return k
}

// Time returns midnight of the day in loc.
func (k DayKey) Time(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(layout, string(k), loc)
	if err != nil {
		return time.Time{}, ErrInvalidDayKey
	}
	return t, nil
}

func (k DayKey) String() string { return string(k) }

// Midnight truncates t to the start of its calendar day in t's location.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Before reports whether k is an earlier day than other.
func (k DayKey) Before(other DayKey) bool {
	// Fixed-width layout keeps lexical and chronological order aligned.
	return k < other
}

// ExpandRange returns every day key from start to end inclusive in ascending
// order. The cursor advances one calendar day at a time from start and stops
// once it passes end, so the result holds floor((end-start)/24h)+1 keys.
func ExpandRange(start, end time.Time) ([]DayKey, error) {
	if end.Before(start) {
		return nil, ErrInvalidRange
	}
	out := make([]DayKey, 0, int(end.Sub(start).Hours()/24)+1)
	for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, 1) {
		out = append(out, Of(cur))
	}
	return out, nil
}

// Span counts the keys ExpandRange would return for start and end without
// building them. Durations beyond the range of time.Duration saturate, so
// absurd end dates still yield a huge count rather than overflowing.
func Span(start, end time.Time) (int, error) {
	if end.Before(start) {
		return 0, ErrInvalidRange
	}
	return int(end.Sub(start)/(24*time.Hour)) + 1, nil
}

// ExpandRangeMax is ExpandRange for untrusted input: ranges covering more
// than maxDays days fail with ErrRangeTooLong before anything is allocated.
// maxDays <= 0 disables the limit.
func ExpandRangeMax(start, end time.Time, maxDays int) ([]DayKey, error) {
	n, err := Span(start, end)
	if err != nil {
		return nil, err
	}
	if maxDays > 0 && n > maxDays {
		return nil, ErrRangeTooLong
	}
	return ExpandRange(start, end)
}

// ExpandKeys expands the inclusive range between two day keys.
func ExpandKeys(from, to DayKey) ([]DayKey, error) {
	start, err := from.Time(time.UTC)
	if err != nil {
		return nil, err
	}
	end, err := to.Time(time.UTC)
	if err != nil {
		return nil, err
	}
	return ExpandRange(start, end)
}

// Sort orders keys chronologically in place.
func Sort(keys []DayKey) {
	slices.Sort(keys)
}
