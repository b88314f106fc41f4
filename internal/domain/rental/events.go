package rental

import "time"

type Requested struct {
	RentalID string    `json:"rental_id"`
	DogID    string    `json:"dog_id"`
	RenterID string    `json:"renter_id"`
	Start    time.Time `json:"start_date"`
	End      time.Time `json:"end_date"`
	At       time.Time `json:"at"`
}

func (e Requested) EventName() string     { return "rental.requested" }
func (e Requested) AggregateID() string   { return e.RentalID }
func (e Requested) OccurredAt() time.Time { return e.At }

type Activated struct {
	RentalID string    `json:"rental_id"`
	DogID    string    `json:"dog_id"`
	At       time.Time `json:"at"`
}

func (e Activated) EventName() string     { return "rental.activated" }
func (e Activated) AggregateID() string   { return e.RentalID }
func (e Activated) OccurredAt() time.Time { return e.At }

type Completed struct {
	RentalID string    `json:"rental_id"`
	DogID    string    `json:"dog_id"`
	At       time.Time `json:"at"`
}

func (e Completed) EventName() string     { return "rental.completed" }
func (e Completed) AggregateID() string   { return e.RentalID }
func (e Completed) OccurredAt() time.Time { return e.At }

type Cancelled struct {
	RentalID string    `json:"rental_id"`
	DogID    string    `json:"dog_id"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

func (e Cancelled) EventName() string     { return "rental.cancelled" }
func (e Cancelled) AggregateID() string   { return e.RentalID }
func (e Cancelled) OccurredAt() time.Time { return e.At }
