package firestore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainavailability "dogshare/internal/domain/availability"
	"dogshare/internal/domain/dog"
	"dogshare/internal/domain/shared/daykey"
	"dogshare/internal/infra/db/firestore"
)

// Runs against the Firestore emulator; set FIRESTORE_EMULATOR_HOST to enable.
func connect(t *testing.T) *firestore.Client {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := firestore.New(ctx, "dogshare-test", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx))
	return client
}

func TestAvailabilityTransactionRejectsStaleVersion(t *testing.T) {
	client := connect(t)
	ctx := context.Background()
	repo := firestore.NewAvailabilityRepository(client)
	id := dog.ID("dog-" + uuid.NewString())
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	cal := domainavailability.New(id, "owner-1", now)
	cal.MarkBooked([]daykey.DayKey{"2024-05-04"}, "rental-1", now)
	cal.RecurringPatterns = []domainavailability.RecurringPattern{{Kind: domainavailability.PatternWeekly, Weekdays: []time.Weekday{time.Sunday}}}
	require.NoError(t, repo.Save(ctx, cal))

	stored, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
	assert.True(t, stored.Days["2024-05-04"].Booked)
	require.Len(t, stored.RecurringPatterns, 1)
	assert.Equal(t, []time.Weekday{time.Sunday}, stored.RecurringPatterns[0].Weekdays)

	fresh := domainavailability.New(id, "owner-1", now)
	assert.ErrorIs(t, repo.Save(ctx, fresh), domainavailability.ErrVersionConflict)

	withPatterns, err := repo.ListWithPatterns(ctx)
	require.NoError(t, err)
	found := false
	for _, c := range withPatterns {
		if c.DogID == id {
			found = true
		}
	}
	assert.True(t, found)
}
