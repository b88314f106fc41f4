package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IBM/sarama"

	appoutbox "dogshare/internal/app/outbox"
	"dogshare/internal/domain/dog"
	"dogshare/internal/domain/shared/daykey"
)

const (
	eventRentalApproved  = "rental.approved"
	eventRentalCancelled = "rental.cancelled"
	eventRentalCompleted = "rental.completed"
)

// Bookings is the part of the availability service driven by marketplace
// rental events.
type Bookings interface {
	MarkBooked(ctx context.Context, id dog.ID, days []daykey.DayKey, rentalID string) error
	ReleaseRental(ctx context.Context, id dog.ID, days []daykey.DayKey, rentalID string) ([]daykey.DayKey, error)
}

// Inbox deduplicates redelivered events.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// BookingHandler applies rental lifecycle events published by the
// marketplace to dog calendars.
type BookingHandler struct {
	Bookings Bookings
	Inbox    Inbox
	Logger   *slog.Logger
	// MaxDays drops events spanning more days than this; zero means 366.
	MaxDays int
}

type cloudEvent struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Data        json.RawMessage `json:"data"`
	TraceParent string          `json:"traceparent,omitempty"`
}

type rentalEventData struct {
	RentalID  string    `json:"rental_id"`
	DogID     string    `json:"dog_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

func (h BookingHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var evt cloudEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		// poison messages are dropped rather than blocking the partition
		h.logger().WarnContext(ctx, "dropping undecodable rental event", "offset", msg.Offset, "error", err)
		return nil
	}
	kind := strings.TrimSuffix(evt.Type, ".v1")
	if kind != eventRentalApproved && kind != eventRentalCancelled && kind != eventRentalCompleted {
		return nil
	}
	var data rentalEventData
	if err := json.Unmarshal(evt.Data, &data); err != nil || data.DogID == "" || data.RentalID == "" {
		h.logger().WarnContext(ctx, "dropping malformed rental event", "event_id", evt.ID, "type", evt.Type)
		return nil
	}
	days, err := daykey.ExpandRangeMax(daykey.Midnight(data.StartDate), data.EndDate, h.maxDays())
	if err != nil {
		h.logger().WarnContext(ctx, "dropping rental event with bad range", "event_id", evt.ID, "error", err)
		return nil
	}
	if evt.ID != "" && h.Inbox != nil {
		seen, err := h.Inbox.Seen(ctx, evt.ID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
	}
	if evt.TraceParent != "" {
		ctx = appoutbox.WithHeaders(ctx, map[string]string{"traceparent": evt.TraceParent})
	}
	if err := h.apply(ctx, kind, data, days); err != nil {
		if evt.ID != "" && h.Inbox != nil {
			if fErr := h.Inbox.Forget(ctx, evt.ID); fErr != nil {
				err = errors.Join(err, fErr)
			}
		}
		return err
	}
	return nil
}

func (h BookingHandler) apply(ctx context.Context, kind string, data rentalEventData, days []daykey.DayKey) error {
	id := dog.ID(data.DogID)
	switch kind {
	case eventRentalApproved:
		if err := h.Bookings.MarkBooked(ctx, id, days, data.RentalID); err != nil {
			return fmt.Errorf("kafka: book rental %s: %w", data.RentalID, err)
		}
	default:
		if _, err := h.Bookings.ReleaseRental(ctx, id, days, data.RentalID); err != nil {
			return fmt.Errorf("kafka: release rental %s: %w", data.RentalID, err)
		}
	}
	h.logger().InfoContext(ctx, "rental event applied", "type", kind, "rental_id", data.RentalID, "dog_id", data.DogID, "days", len(days))
	return nil
}

func (h BookingHandler) maxDays() int {
	if h.MaxDays <= 0 {
		return 366
	}
	return h.MaxDays
}

func (h BookingHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var _ MessageHandler = BookingHandler{}
