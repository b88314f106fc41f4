package dto

import (
	"time"

	"dogshare/internal/domain/rental"
)

type Rental struct {
	ID          string     `json:"id"`
	DogID       string     `json:"dog_id"`
	OwnerID     string     `json:"owner_id"`
	RenterID    string     `json:"renter_id"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     time.Time  `json:"end_date"`
	Status      string     `json:"status"`
	TotalCost   float64    `json:"total_cost"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

type SweepResult struct {
	Completed int `json:"completed"`
}

func MapRental(r *rental.Rental) Rental {
	if r == nil {
		return Rental{}
	}
	return Rental{
		ID:          string(r.ID),
		DogID:       string(r.DogID),
		OwnerID:     r.OwnerID,
		RenterID:    r.RenterID,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Status:      string(r.Status),
		TotalCost:   r.TotalCost,
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
		CancelledAt: r.CancelledAt,
	}
}
