package rental

import (
	"context"
	"errors"
	"time"

	"dogshare/internal/domain/dog"
	"dogshare/internal/domain/shared/daykey"
	"dogshare/internal/domain/shared/events"
)

var (
	ErrNotFound          = errors.New("rental: not found")
	ErrInvalidTransition = errors.New("rental: invalid status transition")
	ErrRenterRequired    = errors.New("rental: renter id required")
	ErrSelfRental        = errors.New("rental: owner cannot rent own dog")
)

type ID string

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type Rental struct {
	ID          ID
	DogID       dog.ID
	OwnerID     string
	RenterID    string
	StartDate   time.Time
	EndDate     time.Time
	Status      Status
	TotalCost   float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*Rental, error)
	Save(ctx context.Context, r *Rental) error
	ListByStatus(ctx context.Context, status Status) ([]*Rental, error)
}

type CreateParams struct {
	ID        ID
	DogID     dog.ID
	OwnerID   string
	RenterID  string
	StartDate time.Time
	EndDate   time.Time
	TotalCost float64
	Now       time.Time
}

func New(p CreateParams) (*Rental, error) {
	if p.RenterID == "" {
		return nil, ErrRenterRequired
	}
	if p.OwnerID != "" && p.OwnerID == p.RenterID {
		return nil, ErrSelfRental
	}
	if p.EndDate.Before(p.StartDate) {
		return nil, daykey.ErrInvalidRange
	}
	now := p.Now.UTC()
	r := &Rental{
		ID:        p.ID,
		DogID:     p.DogID,
		OwnerID:   p.OwnerID,
		RenterID:  p.RenterID,
		StartDate: p.StartDate,
		EndDate:   p.EndDate,
		Status:    StatusPending,
		TotalCost: p.TotalCost,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.Record(Requested{RentalID: string(r.ID), DogID: string(r.DogID), RenterID: r.RenterID, Start: r.StartDate, End: r.EndDate, At: now})
	return r, nil
}

// Days lists every calendar day the rental touches, including the start
// day when the rental ends earlier in the day than it began.
func (r *Rental) Days() ([]daykey.DayKey, error) {
	return daykey.ExpandRange(daykey.Midnight(r.StartDate), r.EndDate)
}

// Expired reports whether an active rental's end date has passed.
func (r *Rental) Expired(now time.Time) bool {
	return r.Status == StatusActive && r.EndDate.Before(now)
}

func (r *Rental) Activate(now time.Time) error {
	if r.Status != StatusPending {
		return ErrInvalidTransition
	}
	r.Status = StatusActive
	r.UpdatedAt = now.UTC()
	r.Record(Activated{RentalID: string(r.ID), DogID: string(r.DogID), At: r.UpdatedAt})
	return nil
}

func (r *Rental) Complete(now time.Time) error {
	if r.Status != StatusActive {
		return ErrInvalidTransition
	}
	at := now.UTC()
	r.Status = StatusCompleted
	r.CompletedAt = &at
	r.UpdatedAt = at
	r.Record(Completed{RentalID: string(r.ID), DogID: string(r.DogID), At: at})
	return nil
}

func (r *Rental) Cancel(reason string, now time.Time) error {
	if r.Status != StatusPending && r.Status != StatusActive {
		return ErrInvalidTransition
	}
	at := now.UTC()
	r.Status = StatusCancelled
	r.CancelledAt = &at
	r.UpdatedAt = at
	r.Record(Cancelled{RentalID: string(r.ID), DogID: string(r.DogID), Reason: reason, At: at})
	return nil
}
