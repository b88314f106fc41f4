package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dogshare/internal/app/outbox"
	"dogshare/internal/domain/availability"
	"dogshare/internal/domain/shared/daykey"
	"dogshare/internal/domain/shared/events"
)

type sliceBox struct {
	records []outbox.EventRecord
	err     error
}

func (b *sliceBox) Add(ctx context.Context, rec outbox.EventRecord) error {
	if b.err != nil {
		return b.err
	}
	b.records = append(b.records, rec)
	return nil
}

func (b *sliceBox) Flush(ctx context.Context) error { return nil }

func TestRecordDomainEventsKeepsOrderAndAmbientHeaders(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	evs := []events.DomainEvent{
		availability.DaysBooked{DogID: "dog-1", RentalID: "r-1", Days: []daykey.DayKey{"2024-06-03"}, At: at},
		availability.DaysReleased{DogID: "dog-1", RentalID: "r-1", Days: []daykey.DayKey{"2024-06-03"}, At: at},
	}
	n := 0
	enc := outbox.JSONEventEncoder{IDGenerator: func() string { n++; return "evt-" + string(rune('0'+n)) }}
	ctx := outbox.WithHeaders(context.Background(), map[string]string{"request_id": "req-7"})
	box := &sliceBox{}

	require.NoError(t, outbox.RecordDomainEvents(ctx, box, enc, evs))

	require.Len(t, box.records, 2)
	first := box.records[0]
	assert.Equal(t, "evt-1", first.ID)
	assert.Equal(t, "calendar.booked", first.Name)
	assert.Equal(t, "dog-1", first.Aggregate)
	assert.Equal(t, time.UTC, first.OccurredAt.Location())
	assert.Equal(t, "req-7", first.Headers["request_id"])
	var payload map[string]any
	require.NoError(t, json.Unmarshal(first.Payload, &payload))
	assert.Equal(t, "r-1", payload["rental_id"])
	assert.Equal(t, "calendar.released", box.records[1].Name)
}

func TestWithHeadersMergesWithoutMutatingParent(t *testing.T) {
	parent := outbox.WithHeaders(context.Background(), map[string]string{"request_id": "a"})
	child := outbox.WithHeaders(parent, map[string]string{"traceparent": "t"})

	assert.Equal(t, map[string]string{"request_id": "a"}, outbox.HeadersFrom(parent))
	assert.Equal(t, map[string]string{"request_id": "a", "traceparent": "t"}, outbox.HeadersFrom(child))
	assert.Nil(t, outbox.HeadersFrom(context.Background()))
}

func TestRecordDomainEventsNilBoxAndAddFailure(t *testing.T) {
	ev := availability.CalendarUpdated{DogID: "dog-1", At: time.Now()}
	require.NoError(t, outbox.RecordDomainEvents(context.Background(), nil, nil, []events.DomainEvent{ev}))

	boom := errors.New("disk full")
	err := outbox.RecordDomainEvents(context.Background(), &sliceBox{err: boom}, nil, []events.DomainEvent{ev})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "calendar.updated")
}
