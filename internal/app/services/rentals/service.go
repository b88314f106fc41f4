package rentals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dogshare/internal/app/outbox"
	domainavailability "dogshare/internal/domain/availability"
	"dogshare/internal/domain/dog"
	"dogshare/internal/domain/rental"
	"dogshare/internal/domain/shared/daykey"
)

const defaultMaxDays = 90

// ErrDatesUnavailable reports that the requested days are taken. When the
// check itself failed, the store error is wrapped alongside it.
var ErrDatesUnavailable = errors.New("rentals: requested dates are not available")

// Calendar is the slice of the availability service the rental lifecycle
// needs.
type Calendar interface {
	CheckBookable(ctx context.Context, id dog.ID, days []daykey.DayKey) (bool, error)
	Quote(ctx context.Context, id dog.ID, days []daykey.DayKey, dailyRate float64) (float64, error)
	BookIfAvailable(ctx context.Context, id dog.ID, days []daykey.DayKey, rentalID string) error
	ReleaseRental(ctx context.Context, id dog.ID, days []daykey.DayKey, rentalID string) ([]daykey.DayKey, error)
}

type Service struct {
	Rentals  rental.Repository
	Dogs     dog.Repository
	Calendar Calendar
	Outbox   outbox.Outbox
	Encoder  outbox.EventEncoder
	Logger   *slog.Logger
	Clock    func() time.Time
	NewID    func() string
	// MaxDays caps the length of a requested rental; zero means 90 days.
	MaxDays int
}

type RequestParams struct {
	DogID     dog.ID
	RenterID  string
	StartDate time.Time
	EndDate   time.Time
}

// Request creates a pending rental after checking the dates are free.
func (s *Service) Request(ctx context.Context, p RequestParams) (*rental.Rental, error) {
	d, err := s.Dogs.ByID(ctx, p.DogID)
	if err != nil {
		return nil, err
	}
	days, err := daykey.ExpandRangeMax(daykey.Midnight(p.StartDate), p.EndDate, s.maxDays())
	if err != nil {
		return nil, err
	}
	if err := s.ensureBookable(ctx, d.ID, days); err != nil {
		return nil, err
	}
	total, err := s.Calendar.Quote(ctx, d.ID, days, d.DailyRate)
	if err != nil {
		return nil, err
	}
	r, err := rental.New(rental.CreateParams{
		ID:        rental.ID(s.newID()),
		DogID:     d.ID,
		OwnerID:   d.OwnerID,
		RenterID:  p.RenterID,
		StartDate: p.StartDate,
		EndDate:   p.EndDate,
		TotalCost: total,
		Now:       s.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Approve activates a pending rental and books its days on the calendar.
func (s *Service) Approve(ctx context.Context, id rental.ID) (*rental.Rental, error) {
	r, err := s.Rentals.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	days, err := r.Days()
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := r.Activate(now); err != nil {
		return nil, err
	}
	if err := s.Calendar.BookIfAvailable(ctx, r.DogID, days, string(r.ID)); err != nil {
		if errors.Is(err, domainavailability.ErrDaysUnavailable) {
			return nil, ErrDatesUnavailable
		}
		return nil, fmt.Errorf("rentals: book days: %w", err)
	}
	if err := s.save(ctx, r); err != nil {
		if _, relErr := s.Calendar.ReleaseRental(ctx, r.DogID, days, string(r.ID)); relErr != nil {
			s.logger().ErrorContext(ctx, "booked days left behind by failed approval", "rental_id", r.ID, "error", relErr)
		}
		return nil, err
	}
	s.updateDog(ctx, r.DogID, func(d *dog.Dog) { d.MarkRented(r.RenterID, now) })
	return r, nil
}

// Cancel moves a pending or active rental to cancelled and frees its days.
func (s *Service) Cancel(ctx context.Context, id rental.ID, reason string) (*rental.Rental, error) {
	r, err := s.Rentals.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	wasActive := r.Status == rental.StatusActive
	now := s.now()
	if err := r.Cancel(reason, now); err != nil {
		return nil, err
	}
	if err := s.save(ctx, r); err != nil {
		return nil, err
	}
	if wasActive {
		s.releaseDays(ctx, r)
		s.updateDog(ctx, r.DogID, func(d *dog.Dog) { d.MarkAvailable(now) })
	}
	return r, nil
}

// Sweep completes every active rental whose end date has passed, frees the
// dog's availability flag and releases the rental's calendar days. A failing
// rental is logged and skipped. Returns how many rentals were completed.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	active, err := s.Rentals.ListByStatus(ctx, rental.StatusActive)
	if err != nil {
		return 0, fmt.Errorf("rentals: list active: %w", err)
	}
	now := s.now()
	completed := 0
	for _, r := range active {
		if err := ctx.Err(); err != nil {
			return completed, err
		}
		if !r.Expired(now) {
			continue
		}
		if err := r.Complete(now); err != nil {
			s.logger().WarnContext(ctx, "sweep skipped rental", "rental_id", r.ID, "error", err)
			continue
		}
		if err := s.save(ctx, r); err != nil {
			s.logger().ErrorContext(ctx, "sweep could not complete rental", "rental_id", r.ID, "error", err)
			continue
		}
		completed++
		s.updateDog(ctx, r.DogID, func(d *dog.Dog) { d.MarkAvailable(now) })
		s.releaseDays(ctx, r)
	}
	s.logger().InfoContext(ctx, "rental sweep finished", "active", len(active), "completed", completed)
	return completed, nil
}

func (s *Service) ensureBookable(ctx context.Context, id dog.ID, days []daykey.DayKey) error {
	ok, err := s.Calendar.CheckBookable(ctx, id, days)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatesUnavailable, err)
	}
	if !ok {
		return ErrDatesUnavailable
	}
	return nil
}

func (s *Service) releaseDays(ctx context.Context, r *rental.Rental) {
	days, err := r.Days()
	if err != nil {
		s.logger().WarnContext(ctx, "rental has no valid day range", "rental_id", r.ID, "error", err)
		return
	}
	if _, err := s.Calendar.ReleaseRental(ctx, r.DogID, days, string(r.ID)); err != nil {
		s.logger().ErrorContext(ctx, "calendar release failed", "rental_id", r.ID, "dog_id", r.DogID, "error", err)
	}
}

func (s *Service) updateDog(ctx context.Context, id dog.ID, fn func(d *dog.Dog)) {
	d, err := s.Dogs.ByID(ctx, id)
	if err != nil {
		s.logger().ErrorContext(ctx, "dog flag not updated", "dog_id", id, "error", err)
		return
	}
	fn(d)
	if err := s.Dogs.Save(ctx, d); err != nil {
		s.logger().ErrorContext(ctx, "dog flag not updated", "dog_id", id, "error", err)
	}
}

func (s *Service) save(ctx context.Context, r *rental.Rental) error {
	if err := s.Rentals.Save(ctx, r); err != nil {
		return err
	}
	if err := outbox.RecordDomainEvents(ctx, s.Outbox, s.Encoder, r.Drain()); err != nil {
		s.logger().ErrorContext(ctx, "rental events not recorded", "rental_id", r.ID, "error", err)
	}
	return nil
}

func (s *Service) maxDays() int {
	if s.MaxDays <= 0 {
		return defaultMaxDays
	}
	return s.MaxDays
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
