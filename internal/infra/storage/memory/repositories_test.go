package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dogshare/internal/app/middleware"
	domainavailability "dogshare/internal/domain/availability"
	"dogshare/internal/domain/dog"
	"dogshare/internal/domain/rental"
	"dogshare/internal/infra/storage/memory"
)

var now = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func TestAvailabilitySaveChecksVersion(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewAvailabilityRepository()

	_, err := repo.Get(ctx, "rex")
	assert.ErrorIs(t, err, domainavailability.ErrNotFound)

	cal := domainavailability.New("rex", "owner-1", now)
	require.NoError(t, repo.Save(ctx, cal))
	assert.Equal(t, int64(1), cal.Version)

	a, err := repo.Get(ctx, "rex")
	require.NoError(t, err)
	b, err := repo.Get(ctx, "rex")
	require.NoError(t, err)

	a.SetDefault(false, now)
	require.NoError(t, repo.Save(ctx, a))
	b.SetDefault(false, now)
	assert.ErrorIs(t, repo.Save(ctx, b), domainavailability.ErrVersionConflict)

	again := domainavailability.New("rex", "owner-1", now)
	assert.ErrorIs(t, repo.Save(ctx, again), domainavailability.ErrVersionConflict, "a fresh document must not clobber a stored one")

	ghost := domainavailability.New("ghost", "", now)
	ghost.Version = 4
	assert.ErrorIs(t, repo.Save(ctx, ghost), domainavailability.ErrVersionConflict)
}

func TestAvailabilityStoreDoesNotShareState(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewAvailabilityRepository()
	cal := domainavailability.New("rex", "owner-1", now)
	require.NoError(t, repo.Save(ctx, cal))

	cal.Days["2024-05-02"] = domainavailability.Status{Blocked: true}
	stored, err := repo.Get(ctx, "rex")
	require.NoError(t, err)
	assert.Empty(t, stored.Days)
}

func TestListWithPatterns(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewAvailabilityRepository()
	for _, id := range []string{"zed", "abe", "plain"} {
		cal := domainavailability.New(dog.ID(id), "", now)
		if id != "plain" {
			cal.RecurringPatterns = []domainavailability.RecurringPattern{{Kind: domainavailability.PatternMonthly, MonthDays: []int{1}}}
		}
		require.NoError(t, repo.Save(ctx, cal))
	}

	got, err := repo.ListWithPatterns(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.EqualValues(t, "abe", got[0].DogID)
	assert.EqualValues(t, "zed", got[1].DogID)
}

func TestRentalsListedByEndDate(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRentalRepository()
	mk := func(id string, end time.Time, status rental.Status) {
		require.NoError(t, repo.Save(ctx, &rental.Rental{ID: rental.ID(id), DogID: "rex", StartDate: now, EndDate: end, Status: status}))
	}
	mk("late", now.AddDate(0, 0, 5), rental.StatusActive)
	mk("early", now.AddDate(0, 0, 1), rental.StatusActive)
	mk("done", now, rental.StatusCompleted)

	got, err := repo.ListByStatus(ctx, rental.StatusActive)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, rental.ID("early"), got[0].ID)
	assert.Equal(t, rental.ID("late"), got[1].ID)

	_, err = repo.ByID(ctx, "missing")
	assert.ErrorIs(t, err, rental.ErrNotFound)
}

func TestIdempotencyStoreExpires(t *testing.T) {
	store := memory.NewIdempotencyStore(time.Minute)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, middleware.IdempotencyRecord{Key: "k1", OccurredAt: time.Now()}))
	require.NoError(t, store.Save(ctx, middleware.IdempotencyRecord{Key: "k2", OccurredAt: time.Now().Add(-time.Hour)}))

	_, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = store.Get(ctx, "k2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInboxSeenAndForget(t *testing.T) {
	inbox := memory.NewInbox()
	ctx := context.Background()

	seen, err := inbox.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)
	seen, _ = inbox.Seen(ctx, "evt-1")
	assert.True(t, seen)

	require.NoError(t, inbox.Forget(ctx, "evt-1"))
	seen, _ = inbox.Seen(ctx, "evt-1")
	assert.False(t, seen)
}
