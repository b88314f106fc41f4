package firestore

import (
	"context"
	"errors"
	"slices"
	"time"

	gcfirestore "cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"dogshare/internal/domain/dog"
	"dogshare/internal/domain/rental"
)

const (
	rentalsCollection = "rentals"
	dogsCollection    = "dogs"
)

type RentalRepository struct {
	fs *gcfirestore.Client
}

func NewRentalRepository(c *Client) *RentalRepository {
	return &RentalRepository{fs: c.FS}
}

func (r *RentalRepository) ByID(ctx context.Context, id rental.ID) (*rental.Rental, error) {
	snap, err := r.fs.Collection(rentalsCollection).Doc(string(id)).Get(ctx)
	if isNotFound(err) {
		return nil, rental.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var doc rentalDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return doc.toAggregate(rental.ID(snap.Ref.ID)), nil
}

func (r *RentalRepository) Save(ctx context.Context, item *rental.Rental) error {
	_, err := r.fs.Collection(rentalsCollection).Doc(string(item.ID)).Set(ctx, newRentalDocument(item))
	return err
}

// ListByStatus sorts client side; an equality filter plus ordering would
// need a composite index.
func (r *RentalRepository) ListByStatus(ctx context.Context, status rental.Status) ([]*rental.Rental, error) {
	iter := r.fs.Collection(rentalsCollection).Where("status", "==", string(status)).Documents(ctx)
	defer iter.Stop()
	var out []*rental.Rental
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		var doc rentalDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate(rental.ID(snap.Ref.ID)))
	}
	slices.SortFunc(out, func(a, b *rental.Rental) int { return a.EndDate.Compare(b.EndDate) })
	return out, nil
}

type rentalDocument struct {
	DogID       string     `firestore:"dogId"`
	OwnerID     string     `firestore:"ownerId"`
	RenterID    string     `firestore:"renterId"`
	StartDate   time.Time  `firestore:"startDate"`
	EndDate     time.Time  `firestore:"endDate"`
	Status      string     `firestore:"status"`
	TotalCost   float64    `firestore:"totalCost"`
	CreatedAt   time.Time  `firestore:"createdAt"`
	UpdatedAt   time.Time  `firestore:"updatedAt"`
	CompletedAt *time.Time `firestore:"completedAt,omitempty"`
	CancelledAt *time.Time `firestore:"cancelledAt,omitempty"`
}

func newRentalDocument(r *rental.Rental) rentalDocument {
	return rentalDocument{
		DogID:       string(r.DogID),
		OwnerID:     r.OwnerID,
		RenterID:    r.RenterID,
		StartDate:   r.StartDate.UTC(),
		EndDate:     r.EndDate.UTC(),
		Status:      string(r.Status),
		TotalCost:   r.TotalCost,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
		CompletedAt: r.CompletedAt,
		CancelledAt: r.CancelledAt,
	}
}

func (d rentalDocument) toAggregate(id rental.ID) *rental.Rental {
	return &rental.Rental{
		ID:          id,
		DogID:       dog.ID(d.DogID),
		OwnerID:     d.OwnerID,
		RenterID:    d.RenterID,
		StartDate:   d.StartDate.UTC(),
		EndDate:     d.EndDate.UTC(),
		Status:      rental.Status(d.Status),
		TotalCost:   d.TotalCost,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
		CompletedAt: d.CompletedAt,
		CancelledAt: d.CancelledAt,
	}
}

type DogRepository struct {
	fs *gcfirestore.Client
}

func NewDogRepository(c *Client) *DogRepository {
	return &DogRepository{fs: c.FS}
}

func (r *DogRepository) ByID(ctx context.Context, id dog.ID) (*dog.Dog, error) {
	snap, err := r.fs.Collection(dogsCollection).Doc(string(id)).Get(ctx)
	if isNotFound(err) {
		return nil, dog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var doc dogDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return &dog.Dog{
		ID:          id,
		OwnerID:     doc.OwnerID,
		Name:        doc.Name,
		DailyRate:   doc.DailyRate,
		IsAvailable: doc.IsAvailable,
		Status:      dog.Status(doc.Status),
		RentedBy:    doc.RentedBy,
		RentedAt:    doc.RentedAt,
		UpdatedAt:   doc.UpdatedAt.UTC(),
	}, nil
}

// Save merges so listing-side fields on the dog document survive.
func (r *DogRepository) Save(ctx context.Context, d *dog.Dog) error {
	if d.ID == "" {
		return dog.ErrIDRequired
	}
	data := map[string]any{
		"ownerId":     d.OwnerID,
		"name":        d.Name,
		"dailyRate":   d.DailyRate,
		"isAvailable": d.IsAvailable,
		"status":      string(d.Status),
		"rentedBy":    d.RentedBy,
		"rentedAt":    d.RentedAt,
		"updatedAt":   d.UpdatedAt.UTC(),
	}
	_, err := r.fs.Collection(dogsCollection).Doc(string(d.ID)).Set(ctx, data, gcfirestore.MergeAll)
	return err
}

type dogDocument struct {
	OwnerID     string     `firestore:"ownerId"`
	Name        string     `firestore:"name"`
	DailyRate   float64    `firestore:"dailyRate"`
	IsAvailable bool       `firestore:"isAvailable"`
	Status      string     `firestore:"status"`
	RentedBy    string     `firestore:"rentedBy"`
	RentedAt    *time.Time `firestore:"rentedAt"`
	UpdatedAt   time.Time  `firestore:"updatedAt"`
}
