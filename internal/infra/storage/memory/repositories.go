package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	domainavailability "dogshare/internal/domain/availability"
	"dogshare/internal/domain/dog"
	"dogshare/internal/domain/rental"
)

// AvailabilityRepository keeps availability documents in memory. Documents
// are cloned on the way in and out so callers never share state with the
// store.
type AvailabilityRepository struct {
	mu   sync.RWMutex
	docs map[dog.ID]*domainavailability.DogAvailability
}

func NewAvailabilityRepository() *AvailabilityRepository {
	return &AvailabilityRepository{docs: make(map[dog.ID]*domainavailability.DogAvailability)}
}

func (r *AvailabilityRepository) Get(ctx context.Context, id dog.ID) (*domainavailability.DogAvailability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, domainavailability.ErrNotFound
	}
	return doc.Clone(), nil
}

// Save stores cal when the stored version still matches cal.Version.
func (r *AvailabilityRepository) Save(ctx context.Context, cal *domainavailability.DogAvailability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.docs[cal.DogID]
	switch {
	case !ok && cal.Version != 0:
		return domainavailability.ErrVersionConflict
	case ok && current.Version != cal.Version:
		return domainavailability.ErrVersionConflict
	}
	cal.Version++
	r.docs[cal.DogID] = cal.Clone()
	return nil
}

func (r *AvailabilityRepository) ListWithPatterns(ctx context.Context) ([]*domainavailability.DogAvailability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainavailability.DogAvailability
	for _, doc := range r.docs {
		if len(doc.RecurringPatterns) > 0 {
			out = append(out, doc.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *domainavailability.DogAvailability) int {
		return strings.Compare(string(a.DogID), string(b.DogID))
	})
	return out, nil
}

// RentalRepository stores rentals in memory.
type RentalRepository struct {
	mu    sync.RWMutex
	items map[rental.ID]*rental.Rental
}

func NewRentalRepository() *RentalRepository {
	return &RentalRepository{items: make(map[rental.ID]*rental.Rental)}
}

func (r *RentalRepository) ByID(ctx context.Context, id rental.ID) (*rental.Rental, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	if !ok {
		return nil, rental.ErrNotFound
	}
	return cloneRental(item), nil
}

func (r *RentalRepository) Save(ctx context.Context, item *rental.Rental) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ID] = cloneRental(item)
	return nil
}

// ListByStatus returns matching rentals ordered by end date.
func (r *RentalRepository) ListByStatus(ctx context.Context, status rental.Status) ([]*rental.Rental, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*rental.Rental
	for _, item := range r.items {
		if item.Status == status {
			out = append(out, cloneRental(item))
		}
	}
	slices.SortFunc(out, func(a, b *rental.Rental) int {
		if c := a.EndDate.Compare(b.EndDate); c != 0 {
			return c
		}
		return strings.Compare(string(a.ID), string(b.ID))
	})
	return out, nil
}

func cloneRental(r *rental.Rental) *rental.Rental {
	out := &rental.Rental{
		ID:        r.ID,
		DogID:     r.DogID,
		OwnerID:   r.OwnerID,
		RenterID:  r.RenterID,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		Status:    r.Status,
		TotalCost: r.TotalCost,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		out.CompletedAt = &at
	}
	if r.CancelledAt != nil {
		at := *r.CancelledAt
		out.CancelledAt = &at
	}
	return out
}

// DogRepository stores dogs in memory.
type DogRepository struct {
	mu    sync.RWMutex
	items map[dog.ID]dog.Dog
}

func NewDogRepository() *DogRepository {
	return &DogRepository{items: make(map[dog.ID]dog.Dog)}
}

func (r *DogRepository) ByID(ctx context.Context, id dog.ID) (*dog.Dog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	if !ok {
		return nil, dog.ErrNotFound
	}
	return cloneDog(item), nil
}

func (r *DogRepository) Save(ctx context.Context, d *dog.Dog) error {
	if d.ID == "" {
		return dog.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[d.ID] = *cloneDog(*d)
	return nil
}

func cloneDog(d dog.Dog) *dog.Dog {
	if d.RentedAt != nil {
		at := *d.RentedAt
		d.RentedAt = &at
	}
	return &d
}

var (
	_ domainavailability.Repository = (*AvailabilityRepository)(nil)
	_ rental.Repository             = (*RentalRepository)(nil)
	_ dog.Repository                = (*DogRepository)(nil)
)
