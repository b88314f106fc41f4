package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dogshare/internal/app/outbox"
	domainavailability "dogshare/internal/domain/availability"
	"dogshare/internal/domain/dog"
	"dogshare/internal/domain/shared/daykey"
)

const (
	defaultMaxRetries     = 3
	defaultHorizonDays    = 90
	maxRequestedRangeDays = 366
)

var ErrRangeTooLong = errors.New("availability: range exceeds one year")

// Service owns reads and writes of per-dog availability documents. Every
// write is a read-modify-write guarded by the document version; on conflict
// the intent is re-applied to a fresh read up to MaxRetries times.
type Service struct {
	Calendars   domainavailability.Repository
	Outbox      outbox.Outbox
	Encoder     outbox.EventEncoder
	Logger      *slog.Logger
	Clock       func() time.Time
	MaxRetries  int
	HorizonDays int
}

type SetParams struct {
	DogID   dog.ID
	OwnerID string
	Days    []daykey.DayKey
	Intent  domainavailability.StatusIntent
}

// Get returns the stored document or domainavailability.ErrNotFound.
func (s *Service) Get(ctx context.Context, id dog.ID) (*domainavailability.DogAvailability, error) {
	cal, err := s.Calendars.Get(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	return cal, nil
}

// SetAvailability applies an owner intent to days. Booked days are reported
// as protected and keep their booking.
func (s *Service) SetAvailability(ctx context.Context, p SetParams) (domainavailability.ApplyResult, error) {
	if p.DogID == "" {
		return domainavailability.ApplyResult{}, domainavailability.ErrDogIDRequired
	}
	if len(p.Days) == 0 {
		return domainavailability.ApplyResult{}, domainavailability.ErrNoDays
	}
	var res domainavailability.ApplyResult
	err := s.mutate(ctx, p.DogID, p.OwnerID, func(cal *domainavailability.DogAvailability, now time.Time) (bool, error) {
		if err := cal.CheckOwner(p.OwnerID); err != nil {
			return false, err
		}
		res = cal.Apply(p.Days, p.Intent, now)
		cal.UpdatedAt = now.UTC()
		return true, nil
	})
	if err != nil {
		return domainavailability.ApplyResult{}, err
	}
	if len(res.Protected) > 0 {
		s.logger().InfoContext(ctx, "availability edit skipped booked days", "dog_id", p.DogID, "days", res.Protected)
	}
	return res, nil
}

func (s *Service) SetDefault(ctx context.Context, id dog.ID, ownerID string, available bool) error {
	return s.mutate(ctx, id, ownerID, func(cal *domainavailability.DogAvailability, now time.Time) (bool, error) {
		if err := cal.CheckOwner(ownerID); err != nil {
			return false, err
		}
		cal.SetDefault(available, now)
		return true, nil
	})
}

// SetRecurringPatterns stores the patterns and materializes them over the
// configured horizon starting today.
func (s *Service) SetRecurringPatterns(ctx context.Context, id dog.ID, ownerID string, patterns []domainavailability.RecurringPattern) (domainavailability.ApplyResult, error) {
	for _, p := range patterns {
		if err := p.Validate(); err != nil {
			return domainavailability.ApplyResult{}, err
		}
	}
	var res domainavailability.ApplyResult
	err := s.mutate(ctx, id, ownerID, func(cal *domainavailability.DogAvailability, now time.Time) (bool, error) {
		if err := cal.CheckOwner(ownerID); err != nil {
			return false, err
		}
		cal.SetPatterns(patterns, now)
		res = cal.Materialize(now, s.horizon(), now)
		return true, nil
	})
	return res, err
}

// RefreshPatterns rolls the materialization horizon forward for every dog
// with recurring patterns and returns how many calendars changed. Failures
// are logged per dog.
func (s *Service) RefreshPatterns(ctx context.Context) (int, error) {
	cals, err := s.Calendars.ListWithPatterns(ctx)
	if err != nil {
		return 0, classify(err)
	}
	refreshed := 0
	for _, c := range cals {
		changed := false
		// a calendar deleted since the listing stays deleted
		err := s.mutateExisting(ctx, c.DogID, func(cal *domainavailability.DogAvailability, now time.Time) (bool, error) {
			changed = len(cal.Materialize(now, s.horizon(), now).Updated) > 0
			return changed, nil
		})
		if err != nil {
			s.logger().ErrorContext(ctx, "pattern refresh failed", "dog_id", c.DogID, "error", err)
			continue
		}
		if changed {
			refreshed++
		}
	}
	return refreshed, nil
}

// CheckBookable reports whether all days are bookable. A dog without a
// document is bookable on every day.
func (s *Service) CheckBookable(ctx context.Context, id dog.ID, days []daykey.DayKey) (bool, error) {
	cal, err := s.Calendars.Get(ctx, id)
	if errors.Is(err, domainavailability.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, classify(err)
	}
	return cal.AllBookable(days), nil
}

// IsBookable is CheckBookable that fails closed: a store error reads as not
// bookable.
func (s *Service) IsBookable(ctx context.Context, id dog.ID, days []daykey.DayKey) bool {
	ok, err := s.CheckBookable(ctx, id, days)
	if err != nil {
		s.logger().WarnContext(ctx, "bookability check failed closed", "dog_id", id, "error", err)
		return false
	}
	return ok
}

// ListBookableDays returns the bookable days of [start, end] in order. Any
// failure yields an empty list.
func (s *Service) ListBookableDays(ctx context.Context, id dog.ID, start, end time.Time) []daykey.DayKey {
	days, err := daykey.ExpandRange(start, end)
	if err != nil {
		return []daykey.DayKey{}
	}
	cal, err := s.Calendars.Get(ctx, id)
	if errors.Is(err, domainavailability.ErrNotFound) {
		return days
	}
	if err != nil {
		s.logger().WarnContext(ctx, "bookable day listing failed closed", "dog_id", id, "error", err)
		return []daykey.DayKey{}
	}
	return cal.BookableDays(days)
}

// DayView is the resolved state of one day.
type DayView struct {
	Day      daykey.DayKey
	Status   domainavailability.Status
	Explicit bool
}

// Calendar resolves every day of [from, to] against the stored document or
// the defaults.
func (s *Service) Calendar(ctx context.Context, id dog.ID, from, to daykey.DayKey) ([]DayView, error) {
	days, err := daykey.ExpandKeys(from, to)
	if err != nil {
		return nil, err
	}
	if len(days) > maxRequestedRangeDays {
		return nil, ErrRangeTooLong
	}
	cal, err := s.Calendars.Get(ctx, id)
	switch {
	case errors.Is(err, domainavailability.ErrNotFound):
		cal = domainavailability.New(id, "", s.now())
	case err != nil:
		return nil, classify(err)
	}
	out := make([]DayView, 0, len(days))
	for _, day := range days {
		st, explicit := cal.StatusOf(day)
		out = append(out, DayView{Day: day, Status: st, Explicit: explicit})
	}
	return out, nil
}

// Quote sums per-day price overrides, falling back to dailyRate.
func (s *Service) Quote(ctx context.Context, id dog.ID, days []daykey.DayKey, dailyRate float64) (float64, error) {
	cal, err := s.Calendars.Get(ctx, id)
	if errors.Is(err, domainavailability.ErrNotFound) {
		return dailyRate * float64(len(days)), nil
	}
	if err != nil {
		return 0, classify(err)
	}
	total := 0.0
	for _, day := range days {
		st, _ := cal.StatusOf(day)
		if st.Price != nil {
			total += *st.Price
			continue
		}
		total += dailyRate
	}
	return total, nil
}

// MarkBooked commits days to rentalID. A dog without a document gets one so
// the booking is never dropped.
func (s *Service) MarkBooked(ctx context.Context, id dog.ID, days []daykey.DayKey, rentalID string) error {
	if len(days) == 0 {
		return domainavailability.ErrNoDays
	}
	return s.mutate(ctx, id, "", func(cal *domainavailability.DogAvailability, now time.Time) (bool, error) {
		cal.MarkBooked(days, rentalID, now)
		return true, nil
	})
}

// BookIfAvailable books days for rentalID only when every one of them is
// still bookable. The check and the booking happen on the same read and are
// saved under its version, so two overlapping approvals cannot both win.
// Fails with ErrDaysUnavailable when any day is taken.
func (s *Service) BookIfAvailable(ctx context.Context, id dog.ID, days []daykey.DayKey, rentalID string) error {
	if len(days) == 0 {
		return domainavailability.ErrNoDays
	}
	return s.mutate(ctx, id, "", func(cal *domainavailability.DogAvailability, now time.Time) (bool, error) {
		if !cal.AllBookable(days) {
			return false, domainavailability.ErrDaysUnavailable
		}
		cal.MarkBooked(days, rentalID, now)
		return true, nil
	})
}

// UnmarkBooked releases any booked day in days. Days that are not booked
// are left as they are.
func (s *Service) UnmarkBooked(ctx context.Context, id dog.ID, days []daykey.DayKey) ([]daykey.DayKey, error) {
	return s.release(ctx, id, days, "")
}

// ReleaseRental is UnmarkBooked restricted to days held by rentalID.
func (s *Service) ReleaseRental(ctx context.Context, id dog.ID, days []daykey.DayKey, rentalID string) ([]daykey.DayKey, error) {
	return s.release(ctx, id, days, rentalID)
}

func (s *Service) release(ctx context.Context, id dog.ID, days []daykey.DayKey, rentalID string) ([]daykey.DayKey, error) {
	var released []daykey.DayKey
	err := s.mutateExisting(ctx, id, func(cal *domainavailability.DogAvailability, now time.Time) (bool, error) {
		released = cal.Release(days, rentalID, now)
		return len(released) > 0, nil
	})
	return released, err
}

type mutation func(cal *domainavailability.DogAvailability, now time.Time) (changed bool, err error)

// mutate loads the document (creating it when absent), applies fn and saves
// it conditionally on the version that was read.
func (s *Service) mutate(ctx context.Context, id dog.ID, ownerID string, fn mutation) error {
	return s.retry(ctx, id, func() error {
		cal, err := s.Calendars.Get(ctx, id)
		created := false
		switch {
		case errors.Is(err, domainavailability.ErrNotFound):
			cal = domainavailability.New(id, ownerID, s.now())
			created = true
		case err != nil:
			return classify(err)
		}
		return s.apply(ctx, cal, created, fn)
	})
}

// mutateExisting is mutate for writes that are no-ops on a missing document.
func (s *Service) mutateExisting(ctx context.Context, id dog.ID, fn mutation) error {
	return s.retry(ctx, id, func() error {
		cal, err := s.Calendars.Get(ctx, id)
		if errors.Is(err, domainavailability.ErrNotFound) {
			return nil
		}
		if err != nil {
			return classify(err)
		}
		return s.apply(ctx, cal, false, fn)
	})
}

func (s *Service) apply(ctx context.Context, cal *domainavailability.DogAvailability, created bool, fn mutation) error {
	changed, err := fn(cal, s.now())
	if err != nil {
		return err
	}
	if !changed && !created {
		return nil
	}
	if err := s.Calendars.Save(ctx, cal); err != nil {
		return classify(err)
	}
	if err := outbox.RecordDomainEvents(ctx, s.Outbox, s.Encoder, cal.Drain()); err != nil {
		// the calendar write already landed; losing the event is preferable
		// to reporting a failed write
		s.logger().ErrorContext(ctx, "calendar events not recorded", "dog_id", cal.DogID, "error", err)
	}
	return nil
}

func (s *Service) retry(ctx context.Context, id dog.ID, attempt func() error) error {
	retries := s.MaxRetries
	if retries < 0 {
		retries = 0
	} else if retries == 0 {
		retries = defaultMaxRetries
	}
	var err error
	for i := 0; i <= retries; i++ {
		err = attempt()
		if !errors.Is(err, domainavailability.ErrVersionConflict) {
			return err
		}
		s.logger().DebugContext(ctx, "calendar version conflict, retrying", "dog_id", id, "attempt", i+1)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}

func (s *Service) horizon() int {
	if s.HorizonDays <= 0 {
		return defaultHorizonDays
	}
	return s.HorizonDays
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

// classify passes domain errors through and marks everything else as a
// store failure.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domainavailability.ErrNotFound),
		errors.Is(err, domainavailability.ErrVersionConflict),
		errors.Is(err, domainavailability.ErrStoreUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", domainavailability.ErrStoreUnavailable, err)
	}
}
