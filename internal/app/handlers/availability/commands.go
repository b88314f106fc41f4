package availability

import (
	"context"
	"strings"

	"dogshare/internal/app/commands"
	"dogshare/internal/app/dto"
	"dogshare/internal/app/middleware"
	appavailability "dogshare/internal/app/services/availability"
	domainavailability "dogshare/internal/domain/availability"
	"dogshare/internal/domain/dog"
	"dogshare/internal/domain/shared/daykey"
)

type SetAvailabilityCommand struct {
	DogID   string
	OwnerID string
	Days    []daykey.DayKey
	Intent  domainavailability.StatusIntent
}

func (SetAvailabilityCommand) Key() string { return "availability.set" }

func (c SetAvailabilityCommand) Validate() error {
	if strings.TrimSpace(c.DogID) == "" {
		return domainavailability.ErrDogIDRequired
	}
	if strings.TrimSpace(c.OwnerID) == "" {
		return ErrOwnerRequired
	}
	if len(c.Days) == 0 {
		return domainavailability.ErrNoDays
	}
	return nil
}

type SetDefaultCommand struct {
	DogID            string
	OwnerID          string
	DefaultAvailable bool
}

func (SetDefaultCommand) Key() string { return "availability.set_default" }

func (c SetDefaultCommand) Validate() error {
	if strings.TrimSpace(c.DogID) == "" {
		return domainavailability.ErrDogIDRequired
	}
	if strings.TrimSpace(c.OwnerID) == "" {
		return ErrOwnerRequired
	}
	return nil
}

type SetPatternsCommand struct {
	DogID    string
	OwnerID  string
	Patterns []domainavailability.RecurringPattern
}

func (SetPatternsCommand) Key() string { return "availability.set_patterns" }

func (c SetPatternsCommand) Validate() error {
	if strings.TrimSpace(c.DogID) == "" {
		return domainavailability.ErrDogIDRequired
	}
	if strings.TrimSpace(c.OwnerID) == "" {
		return ErrOwnerRequired
	}
	return nil
}

type MarkBookedCommand struct {
	DogID           string
	RentalID        string
	Days            []daykey.DayKey
	IdempotencyKeyV string
}

func (MarkBookedCommand) Key() string { return "availability.mark_booked" }

func (c MarkBookedCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (MarkBookedCommand) ResultPrototype() any { return &dto.Ack{} }

func (c MarkBookedCommand) Validate() error {
	if strings.TrimSpace(c.DogID) == "" {
		return domainavailability.ErrDogIDRequired
	}
	if strings.TrimSpace(c.RentalID) == "" {
		return ErrRentalRequired
	}
	if len(c.Days) == 0 {
		return domainavailability.ErrNoDays
	}
	return nil
}

type UnmarkBookedCommand struct {
	DogID string
	Days  []daykey.DayKey
}

func (UnmarkBookedCommand) Key() string { return "availability.unmark_booked" }

func (c UnmarkBookedCommand) Validate() error {
	if strings.TrimSpace(c.DogID) == "" {
		return domainavailability.ErrDogIDRequired
	}
	if len(c.Days) == 0 {
		return domainavailability.ErrNoDays
	}
	return nil
}

// Module binds the availability service to the command and query buses.
type Module struct {
	Service *appavailability.Service
}

func (m Module) RegisterCommands(bus *commands.InMemoryBus) {
	commands.Register[SetAvailabilityCommand, *dto.ApplyResult](bus, commands.HandlerFunc[SetAvailabilityCommand, *dto.ApplyResult](m.setAvailability))
	commands.Register[SetDefaultCommand, *dto.Ack](bus, commands.HandlerFunc[SetDefaultCommand, *dto.Ack](m.setDefault))
	commands.Register[SetPatternsCommand, *dto.ApplyResult](bus, commands.HandlerFunc[SetPatternsCommand, *dto.ApplyResult](m.setPatterns))
	commands.Register[MarkBookedCommand, *dto.Ack](bus, commands.HandlerFunc[MarkBookedCommand, *dto.Ack](m.markBooked))
	commands.Register[UnmarkBookedCommand, *dto.ApplyResult](bus, commands.HandlerFunc[UnmarkBookedCommand, *dto.ApplyResult](m.unmarkBooked))
}

func (m Module) setAvailability(ctx context.Context, cmd SetAvailabilityCommand) (*dto.ApplyResult, error) {
	res, err := m.Service.SetAvailability(ctx, appavailability.SetParams{
		DogID:   dog.ID(cmd.DogID),
		OwnerID: cmd.OwnerID,
		Days:    cmd.Days,
		Intent:  cmd.Intent,
	})
	if err != nil {
		return nil, err
	}
	out := dto.MapApplyResult(res)
	return &out, nil
}

func (m Module) setDefault(ctx context.Context, cmd SetDefaultCommand) (*dto.Ack, error) {
	if err := m.Service.SetDefault(ctx, dog.ID(cmd.DogID), cmd.OwnerID, cmd.DefaultAvailable); err != nil {
		return nil, err
	}
	return &dto.Ack{Status: "ok"}, nil
}

func (m Module) setPatterns(ctx context.Context, cmd SetPatternsCommand) (*dto.ApplyResult, error) {
	res, err := m.Service.SetRecurringPatterns(ctx, dog.ID(cmd.DogID), cmd.OwnerID, cmd.Patterns)
	if err != nil {
		return nil, err
	}
	out := dto.MapApplyResult(res)
	return &out, nil
}

func (m Module) markBooked(ctx context.Context, cmd MarkBookedCommand) (*dto.Ack, error) {
	if err := m.Service.MarkBooked(ctx, dog.ID(cmd.DogID), cmd.Days, cmd.RentalID); err != nil {
		return nil, err
	}
	return &dto.Ack{Status: "booked"}, nil
}

func (m Module) unmarkBooked(ctx context.Context, cmd UnmarkBookedCommand) (*dto.ApplyResult, error) {
	released, err := m.Service.UnmarkBooked(ctx, dog.ID(cmd.DogID), cmd.Days)
	if err != nil {
		return nil, err
	}
	return &dto.ApplyResult{Updated: dto.DayStrings(released), Protected: []string{}}, nil
}

var _ middleware.IdempotentCommand = MarkBookedCommand{}
