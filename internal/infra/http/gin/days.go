package ginserver

import (
	"time"

	"dogshare/internal/domain/shared/daykey"
)

const maxRequestDays = 366

// dayRange is the day selection accepted by calendar write endpoints:
// an explicit list, or an inclusive from/to range.
type dayRange struct {
	Days []string `json:"days"`
	From string   `json:"from"`
	To   string   `json:"to"`
}

func (r dayRange) keys() ([]daykey.DayKey, error) {
	if len(r.Days) > 0 {
		if len(r.Days) > maxRequestDays {
			return nil, errRangeTooLong
		}
		out := make([]daykey.DayKey, 0, len(r.Days))
		for _, raw := range r.Days {
			k, err := daykey.Parse(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, k)
		}
		return out, nil
	}
	return expandQuery(r.From, r.To)
}

func expandQuery(from, to string) ([]daykey.DayKey, error) {
	start, err := daykey.Parse(from)
	if err != nil {
		return nil, err
	}
	end, err := daykey.Parse(to)
	if err != nil {
		return nil, err
	}
	startAt, err := start.Time(time.UTC)
	if err != nil {
		return nil, err
	}
	endAt, err := end.Time(time.UTC)
	if err != nil {
		return nil, err
	}
	return daykey.ExpandRangeMax(startAt, endAt, maxRequestDays)
}

// parseInstant accepts either a day key or an RFC 3339 timestamp.
func parseInstant(raw string) (time.Time, error) {
	if k, err := daykey.Parse(raw); err == nil {
		return k.Time(time.UTC)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, daykey.ErrInvalidDayKey
	}
	return t, nil
}
