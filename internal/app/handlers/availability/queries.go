package availability

import (
	"context"
	"errors"
	"strings"
	"time"

	"dogshare/internal/app/dto"
	"dogshare/internal/app/queries"
	domainavailability "dogshare/internal/domain/availability"
	"dogshare/internal/domain/dog"
	"dogshare/internal/domain/shared/daykey"
)

type GetAvailabilityQuery struct {
	DogID string
}

func (GetAvailabilityQuery) Key() string { return "availability.get" }

func (q GetAvailabilityQuery) Validate() error {
	if strings.TrimSpace(q.DogID) == "" {
		return domainavailability.ErrDogIDRequired
	}
	return nil
}

// CheckBookableQuery asks whether every listed day can be booked. Store
// failures surface as errors; callers that need a plain answer use
// Service.IsBookable instead.
type CheckBookableQuery struct {
	DogID string
	Days  []daykey.DayKey
}

func (CheckBookableQuery) Key() string { return "availability.check" }

func (q CheckBookableQuery) Validate() error {
	if strings.TrimSpace(q.DogID) == "" {
		return domainavailability.ErrDogIDRequired
	}
	return nil
}

type ListBookableQuery struct {
	DogID string
	Start time.Time
	End   time.Time
}

func (ListBookableQuery) Key() string { return "availability.bookable_days" }

func (q ListBookableQuery) Validate() error {
	if strings.TrimSpace(q.DogID) == "" {
		return domainavailability.ErrDogIDRequired
	}
	if q.Start.IsZero() || q.End.IsZero() {
		return ErrRangeRequired
	}
	return nil
}

type GetCalendarQuery struct {
	DogID string
	From  daykey.DayKey
	To    daykey.DayKey
}

func (GetCalendarQuery) Key() string { return "availability.calendar" }

func (q GetCalendarQuery) Validate() error {
	if strings.TrimSpace(q.DogID) == "" {
		return domainavailability.ErrDogIDRequired
	}
	if q.From == "" || q.To == "" {
		return ErrRangeRequired
	}
	return nil
}

func (m Module) RegisterQueries(bus *queries.InMemoryBus) {
	queries.Register[GetAvailabilityQuery, dto.Availability](bus, queries.HandlerFunc[GetAvailabilityQuery, dto.Availability](m.getAvailability))
	queries.Register[CheckBookableQuery, dto.Bookable](bus, queries.HandlerFunc[CheckBookableQuery, dto.Bookable](m.checkBookable))
	queries.Register[ListBookableQuery, dto.BookableDays](bus, queries.HandlerFunc[ListBookableQuery, dto.BookableDays](m.listBookable))
	queries.Register[GetCalendarQuery, dto.Calendar](bus, queries.HandlerFunc[GetCalendarQuery, dto.Calendar](m.calendar))
}

func (m Module) getAvailability(ctx context.Context, q GetAvailabilityQuery) (dto.Availability, error) {
	cal, err := m.Service.Get(ctx, dog.ID(q.DogID))
	if errors.Is(err, domainavailability.ErrNotFound) {
		return dto.DefaultAvailability(q.DogID), nil
	}
	if err != nil {
		return dto.Availability{}, err
	}
	return dto.MapAvailability(cal), nil
}

func (m Module) checkBookable(ctx context.Context, q CheckBookableQuery) (dto.Bookable, error) {
	ok, err := m.Service.CheckBookable(ctx, dog.ID(q.DogID), q.Days)
	if err != nil {
		return dto.Bookable{}, err
	}
	return dto.Bookable{DogID: q.DogID, Bookable: ok}, nil
}

func (m Module) listBookable(ctx context.Context, q ListBookableQuery) (dto.BookableDays, error) {
	days := m.Service.ListBookableDays(ctx, dog.ID(q.DogID), q.Start, q.End)
	return dto.BookableDays{DogID: q.DogID, Days: dto.DayStrings(days)}, nil
}

func (m Module) calendar(ctx context.Context, q GetCalendarQuery) (dto.Calendar, error) {
	views, err := m.Service.Calendar(ctx, dog.ID(q.DogID), q.From, q.To)
	if err != nil {
		return dto.Calendar{}, err
	}
	return dto.MapCalendar(q.DogID, views), nil
}
