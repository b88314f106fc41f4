package dog

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("dog: not found")
	ErrIDRequired = errors.New("dog: id required")
)

type ID string

type Status string

const (
	StatusAvailable Status = "available"
	StatusRented    Status = "rented"
)

// Dog carries the coarse availability flag shown on listings. The per-day
// calendar lives in the availability package.
type Dog struct {
	ID          ID
	OwnerID     string
	Name        string
	DailyRate   float64
	IsAvailable bool
	Status      Status
	RentedBy    string
	RentedAt    *time.Time
	UpdatedAt   time.Time
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*Dog, error)
	Save(ctx context.Context, d *Dog) error
}

func (d *Dog) MarkRented(renterID string, now time.Time) {
	at := now.UTC()
	d.IsAvailable = false
	d.Status = StatusRented
	d.RentedBy = renterID
	d.RentedAt = &at
	d.UpdatedAt = at
}

func (d *Dog) MarkAvailable(now time.Time) {
	d.IsAvailable = true
	d.Status = StatusAvailable
	d.RentedBy = ""
	d.RentedAt = nil
	d.UpdatedAt = now.UTC()
}
