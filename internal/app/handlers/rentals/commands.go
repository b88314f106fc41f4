package rentals

import (
	"context"
	"errors"
	"strings"
	"time"

	"dogshare/internal/app/commands"
	"dogshare/internal/app/dto"
	"dogshare/internal/app/queries"
	apprentals "dogshare/internal/app/services/rentals"
	"dogshare/internal/domain/dog"
	"dogshare/internal/domain/rental"
)

var (
	ErrRentalIDRequired = errors.New("rentals: rental id required")
	ErrDatesRequired    = errors.New("rentals: start and end dates required")
)

type RequestRentalCommand struct {
	DogID           string
	RenterID        string
	StartDate       time.Time
	EndDate         time.Time
	IdempotencyKeyV string
}

func (RequestRentalCommand) Key() string { return "rentals.request" }

func (c RequestRentalCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (RequestRentalCommand) ResultPrototype() any { return &dto.Rental{} }

func (c RequestRentalCommand) Validate() error {
	if strings.TrimSpace(c.DogID) == "" {
		return dog.ErrIDRequired
	}
	if strings.TrimSpace(c.RenterID) == "" {
		return rental.ErrRenterRequired
	}
	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		return ErrDatesRequired
	}
	return nil
}

type ApproveRentalCommand struct {
	RentalID        string
	IdempotencyKeyV string
}

func (ApproveRentalCommand) Key() string { return "rentals.approve" }

func (c ApproveRentalCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (ApproveRentalCommand) ResultPrototype() any { return &dto.Rental{} }

func (c ApproveRentalCommand) Validate() error {
	if strings.TrimSpace(c.RentalID) == "" {
		return ErrRentalIDRequired
	}
	return nil
}

type CancelRentalCommand struct {
	RentalID        string
	Reason          string
	IdempotencyKeyV string
}

func (CancelRentalCommand) Key() string { return "rentals.cancel" }

func (c CancelRentalCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (CancelRentalCommand) ResultPrototype() any { return &dto.Rental{} }

func (c CancelRentalCommand) Validate() error {
	if strings.TrimSpace(c.RentalID) == "" {
		return ErrRentalIDRequired
	}
	return nil
}

// SweepCommand completes every expired active rental.
type SweepCommand struct{}

func (SweepCommand) Key() string { return "rentals.sweep" }

type GetRentalQuery struct {
	RentalID string
}

func (GetRentalQuery) Key() string { return "rentals.get" }

func (q GetRentalQuery) Validate() error {
	if strings.TrimSpace(q.RentalID) == "" {
		return ErrRentalIDRequired
	}
	return nil
}

type Module struct {
	Service *apprentals.Service
}

func (m Module) RegisterCommands(bus *commands.InMemoryBus) {
	commands.Register[RequestRentalCommand, *dto.Rental](bus, commands.HandlerFunc[RequestRentalCommand, *dto.Rental](m.request))
	commands.Register[ApproveRentalCommand, *dto.Rental](bus, commands.HandlerFunc[ApproveRentalCommand, *dto.Rental](m.approve))
	commands.Register[CancelRentalCommand, *dto.Rental](bus, commands.HandlerFunc[CancelRentalCommand, *dto.Rental](m.cancel))
	commands.Register[SweepCommand, *dto.SweepResult](bus, commands.HandlerFunc[SweepCommand, *dto.SweepResult](m.sweep))
}

func (m Module) RegisterQueries(bus *queries.InMemoryBus) {
	queries.Register[GetRentalQuery, dto.Rental](bus, queries.HandlerFunc[GetRentalQuery, dto.Rental](m.get))
}

func (m Module) request(ctx context.Context, cmd RequestRentalCommand) (*dto.Rental, error) {
	r, err := m.Service.Request(ctx, apprentals.RequestParams{
		DogID:     dog.ID(cmd.DogID),
		RenterID:  cmd.RenterID,
		StartDate: cmd.StartDate,
		EndDate:   cmd.EndDate,
	})
	return mapped(r, err)
}

func (m Module) approve(ctx context.Context, cmd ApproveRentalCommand) (*dto.Rental, error) {
	return mapped(m.Service.Approve(ctx, rental.ID(cmd.RentalID)))
}

func (m Module) cancel(ctx context.Context, cmd CancelRentalCommand) (*dto.Rental, error) {
	return mapped(m.Service.Cancel(ctx, rental.ID(cmd.RentalID), cmd.Reason))
}

func (m Module) sweep(ctx context.Context, _ SweepCommand) (*dto.SweepResult, error) {
	n, err := m.Service.Sweep(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.SweepResult{Completed: n}, nil
}

func (m Module) get(ctx context.Context, q GetRentalQuery) (dto.Rental, error) {
	r, err := m.Service.Rentals.ByID(ctx, rental.ID(q.RentalID))
	if err != nil {
		return dto.Rental{}, err
	}
	return dto.MapRental(r), nil
}

func mapped(r *rental.Rental, err error) (*dto.Rental, error) {
	if err != nil {
		return nil, err
	}
	out := dto.MapRental(r)
	return &out, nil
}
