package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"dogshare/internal/domain/dog"
	"dogshare/internal/domain/rental"
)

type RentalRepository struct {
	col *mongo.Collection
}

func NewRentalRepository(ctx context.Context, db *mongo.Database) (*RentalRepository, error) {
	col := db.Collection("rentals")
	idx := mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}, {Key: "end_date", Value: 1}}}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, err
	}
	return &RentalRepository{col: col}, nil
}

func (r *RentalRepository) ByID(ctx context.Context, id rental.ID) (*rental.Rental, error) {
	var doc rentalDocument
	err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, rental.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *RentalRepository) Save(ctx context.Context, item *rental.Rental) error {
	doc := newRentalDocument(item)
	_, err := r.col.UpdateByID(ctx, doc.ID, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	return err
}

func (r *RentalRepository) ListByStatus(ctx context.Context, status rental.Status) ([]*rental.Rental, error) {
	opts := options.Find().SetSort(bson.D{{Key: "end_date", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"status": string(status)}, opts)
	if err != nil {
		return nil, err
	}
	var docs []rentalDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*rental.Rental, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

type rentalDocument struct {
	ID          string     `bson:"_id"`
	DogID       string     `bson:"dog_id"`
	OwnerID     string     `bson:"owner_id"`
	RenterID    string     `bson:"renter_id"`
	StartDate   time.Time  `bson:"start_date"`
	EndDate     time.Time  `bson:"end_date"`
	Status      string     `bson:"status"`
	TotalCost   float64    `bson:"total_cost"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
	CompletedAt *time.Time `bson:"completed_at,omitempty"`
	CancelledAt *time.Time `bson:"cancelled_at,omitempty"`
}

func newRentalDocument(r *rental.Rental) rentalDocument {
	return rentalDocument{
		ID:          string(r.ID),
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

func (d rentalDocument) toAggregate() *rental.Rental {
	return &rental.Rental{
		ID:          rental.ID(d.ID),
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
