package availability

import (
	"time"

	"dogshare/internal/domain/shared/daykey"
)

type CalendarUpdated struct {
	DogID string          `json:"dog_id"`
	Days  []daykey.DayKey `json:"days,omitempty"`
	At    time.Time       `json:"at"`
}

func (e CalendarUpdated) EventName() string     { return "calendar.updated" }
func (e CalendarUpdated) AggregateID() string   { return e.DogID }
func (e CalendarUpdated) OccurredAt() time.Time { return e.At }

type DaysBooked struct {
	DogID    string          `json:"dog_id"`
	RentalID string          `json:"rental_id"`
	Days     []daykey.DayKey `json:"days"`
	At       time.Time       `json:"at"`
}

func (e DaysBooked) EventName() string     { return "calendar.booked" }
func (e DaysBooked) AggregateID() string   { return e.DogID }
func (e DaysBooked) OccurredAt() time.Time { return e.At }

type DaysReleased struct {
	DogID    string          `json:"dog_id"`
	RentalID string          `json:"rental_id,omitempty"`
	Days     []daykey.DayKey `json:"days"`
	At       time.Time       `json:"at"`
}

func (e DaysReleased) EventName() string     { return "calendar.released" }
func (e DaysReleased) AggregateID() string   { return e.DogID }
func (e DaysReleased) OccurredAt() time.Time { return e.At }
