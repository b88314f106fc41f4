package rentals_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appavailability "dogshare/internal/app/services/availability"
	"dogshare/internal/app/services/rentals"
	domainavailability "dogshare/internal/domain/availability"
	"dogshare/internal/domain/dog"
	"dogshare/internal/domain/rental"
	"dogshare/internal/domain/shared/daykey"
	"dogshare/internal/infra/storage/memory"
)

type fixture struct {
	svc       *rentals.Service
	calendar  *appavailability.Service
	calendars *memory.AvailabilityRepository
	rentals   *memory.RentalRepository
	dogs      *memory.DogRepository
	outbox    *memory.Outbox
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		calendars: memory.NewAvailabilityRepository(),
		rentals:   memory.NewRentalRepository(),
		dogs:      memory.NewDogRepository(),
		outbox:    memory.NewOutbox(),
		now:       time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.calendar = &appavailability.Service{Calendars: f.calendars, Outbox: f.outbox, Clock: clock}
	ids := 0
	f.svc = &rentals.Service{
		Rentals:  f.rentals,
		Dogs:     f.dogs,
		Calendar: f.calendar,
		Outbox:   f.outbox,
		Clock:    clock,
		NewID: func() string {
			ids++
			return "rental-" + string(rune('0'+ids))
		},
	}
	require.NoError(t, f.dogs.Save(context.Background(), &dog.Dog{
		ID: "rex", OwnerID: "owner-1", Name: "Rex", DailyRate: 40, IsAvailable: true, Status: dog.StatusAvailable,
	}))
	return f
}

func (f *fixture) request(t *testing.T, start, end string) *rental.Rental {
	t.Helper()
	r, err := f.svc.Request(context.Background(), rentals.RequestParams{
		DogID:     "rex",
		RenterID:  "renter-1",
		StartDate: at(t, start),
		EndDate:   at(t, end).Add(18 * time.Hour),
	})
	require.NoError(t, err)
	return r
}

func at(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := daykey.MustParse(s).Time(time.UTC)
	require.NoError(t, err)
	return v
}

func TestRequestQuotesAndStaysPending(t *testing.T) {
	f := newFixture(t)
	r := f.request(t, "2024-07-10", "2024-07-12")

	assert.Equal(t, rental.StatusPending, r.Status)
	assert.Equal(t, "owner-1", r.OwnerID)
	assert.Equal(t, 120.0, r.TotalCost)
	assert.True(t, f.calendar.IsBookable(context.Background(), "rex", []daykey.DayKey{"2024-07-10"}), "pending rentals hold no days")
}

func TestRequestRejectsUnavailableDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.calendar.SetAvailability(ctx, appavailability.SetParams{
		DogID: "rex", OwnerID: "owner-1",
		Days:   []daykey.DayKey{"2024-07-11"},
		Intent: domainavailability.StatusIntent{Blocked: true},
	})
	require.NoError(t, err)

	_, err = f.svc.Request(ctx, rentals.RequestParams{
		DogID: "rex", RenterID: "renter-1",
		StartDate: time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 7, 12, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, rentals.ErrDatesUnavailable)
}

func TestRequestRejectsOwner(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Request(context.Background(), rentals.RequestParams{
		DogID: "rex", RenterID: "owner-1",
		StartDate: time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 7, 12, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, rental.ErrSelfRental)
}

func TestApproveBooksDaysAndFlagsDog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.request(t, "2024-07-10", "2024-07-11")

	approved, err := f.svc.Approve(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, rental.StatusActive, approved.Status)

	cal, err := f.calendars.Get(ctx, "rex")
	require.NoError(t, err)
	assert.True(t, cal.Days["2024-07-10"].Booked)
	assert.Equal(t, string(r.ID), cal.Days["2024-07-11"].RentalID)

	d, err := f.dogs.ByID(ctx, "rex")
	require.NoError(t, err)
	assert.False(t, d.IsAvailable)
	assert.Equal(t, "renter-1", d.RentedBy)

	// an overlapping request can no longer be approved
	_, err = f.svc.Request(ctx, rentals.RequestParams{
		DogID: "rex", RenterID: "renter-2",
		StartDate: time.Date(2024, 7, 11, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 7, 13, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, rentals.ErrDatesUnavailable)
}

func TestApproveTwiceIsInvalid(t *testing.T) {
	f := newFixture(t)
	r := f.request(t, "2024-07-10", "2024-07-11")
	_, err := f.svc.Approve(context.Background(), r.ID)
	require.NoError(t, err)
	_, err = f.svc.Approve(context.Background(), r.ID)
	assert.ErrorIs(t, err, rental.ErrInvalidTransition)
}

func TestApproveFailsWhenDaysWereTaken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.request(t, "2024-07-10", "2024-07-11")
	second := f.request(t, "2024-07-11", "2024-07-12")

	_, err := f.svc.Approve(ctx, first.ID)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, second.ID)
	assert.ErrorIs(t, err, rentals.ErrDatesUnavailable)

	stored, err := f.rentals.ByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, rental.StatusPending, stored.Status)
}

func TestCancelActiveRentalReleasesDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.request(t, "2024-07-10", "2024-07-11")
	_, err := f.svc.Approve(ctx, r.ID)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, r.ID, "renter changed plans")
	require.NoError(t, err)
	assert.Equal(t, rental.StatusCancelled, cancelled.Status)
	assert.True(t, f.calendar.IsBookable(ctx, "rex", []daykey.DayKey{"2024-07-10", "2024-07-11"}))

	d, err := f.dogs.ByID(ctx, "rex")
	require.NoError(t, err)
	assert.True(t, d.IsAvailable)
}

func TestSweepCompletesExpiredRentals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	expired := f.request(t, "2024-07-02", "2024-07-03")
	ongoing := f.request(t, "2024-07-05", "2024-07-20")
	_, err := f.svc.Approve(ctx, expired.ID)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, ongoing.ID)
	require.NoError(t, err)

	f.now = time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC)
	n, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	done, err := f.rentals.ByID(ctx, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, rental.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)

	still, err := f.rentals.ByID(ctx, ongoing.ID)
	require.NoError(t, err)
	assert.Equal(t, rental.StatusActive, still.Status)

	assert.True(t, f.calendar.IsBookable(ctx, "rex", []daykey.DayKey{"2024-07-02", "2024-07-03"}))
	assert.False(t, f.calendar.IsBookable(ctx, "rex", []daykey.DayKey{"2024-07-06"}))

	d, err := f.dogs.ByID(ctx, "rex")
	require.NoError(t, err)
	assert.True(t, d.IsAvailable)
	assert.Equal(t, dog.StatusAvailable, d.Status)

	again, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, again)
}

type failingRentals struct {
	*memory.RentalRepository
}

func (failingRentals) ListByStatus(context.Context, rental.Status) ([]*rental.Rental, error) {
	return nil, errors.New("timeout")
}

func TestSweepReportsListFailure(t *testing.T) {
	f := newFixture(t)
	f.svc.Rentals = failingRentals{f.rentals}
	_, err := f.svc.Sweep(context.Background())
	assert.Error(t, err)
}

func TestRentalEventsReachOutbox(t *testing.T) {
	f := newFixture(t)
	r := f.request(t, "2024-07-10", "2024-07-10")
	_, err := f.svc.Approve(context.Background(), r.ID)
	require.NoError(t, err)

	var names []string
	for _, rec := range f.outbox.Records() {
		names = append(names, rec.Name)
	}
	assert.Equal(t, []string{"rental.requested", "calendar.booked", "rental.activated"}, names)
}

func TestRequestRejectsOverlongRange(t *testing.T) {
	f := newFixture(t)
	f.svc.MaxDays = 14
	_, err := f.svc.Request(context.Background(), rentals.RequestParams{
		DogID: "rex", RenterID: "renter-1",
		StartDate: time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, daykey.ErrRangeTooLong)

	_, err = f.svc.Request(context.Background(), rentals.RequestParams{
		DogID: "rex", RenterID: "renter-1",
		StartDate: time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 7, 23, 18, 0, 0, 0, time.UTC),
	})
	assert.NoError(t, err)
}

func TestConcurrentOverlappingApprovalsBookOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.request(t, "2024-07-10", "2024-07-12")
	b := f.request(t, "2024-07-11", "2024-07-13")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []rental.ID{a.ID, b.ID} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Approve(ctx, id)
		}()
	}
	wg.Wait()

	var winner rental.ID
	failures := 0
	for i, err := range errs {
		if err == nil {
			winner = []rental.ID{a.ID, b.ID}[i]
			continue
		}
		assert.ErrorIs(t, err, rentals.ErrDatesUnavailable)
		failures++
	}
	require.Equal(t, 1, failures)

	active, err := f.rentals.ListByStatus(ctx, rental.StatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, winner, active[0].ID)

	cal, err := f.calendars.Get(ctx, "rex")
	require.NoError(t, err)
	assert.Equal(t, string(winner), cal.Days["2024-07-11"].RentalID)
	assert.Equal(t, string(winner), cal.Days["2024-07-12"].RentalID)
}

// saveFailsFor rejects saves of one rental.
type saveFailsFor struct {
	*memory.RentalRepository
	id rental.ID
}

func (r saveFailsFor) Save(ctx context.Context, item *rental.Rental) error {
	if item.ID == r.id {
		return errors.New("write conflict")
	}
	return r.RentalRepository.Save(ctx, item)
}

func TestSweepContinuesPastFailedRental(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stuck := f.request(t, "2024-07-02", "2024-07-02")
	done := f.request(t, "2024-07-04", "2024-07-04")
	_, err := f.svc.Approve(ctx, stuck.ID)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, done.ID)
	require.NoError(t, err)

	f.svc.Rentals = saveFailsFor{RentalRepository: f.rentals, id: stuck.ID}
	f.now = time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC)
	n, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.rentals.ByID(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, rental.StatusCompleted, got.Status)
	assert.True(t, f.calendar.IsBookable(ctx, "rex", []daykey.DayKey{"2024-07-04"}))

	got, err = f.rentals.ByID(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, rental.StatusActive, got.Status)
	assert.False(t, f.calendar.IsBookable(ctx, "rex", []daykey.DayKey{"2024-07-02"}), "an uncompleted rental keeps its days")
}
