package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"dogshare/internal/domain/dog"
)

type DogRepository struct {
	col *mongo.Collection
}

func NewDogRepository(db *mongo.Database) *DogRepository {
	return &DogRepository{col: db.Collection("dogs")}
}

func (r *DogRepository) ByID(ctx context.Context, id dog.ID) (*dog.Dog, error) {
	var doc dogDocument
	err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, dog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &dog.Dog{
		ID:          dog.ID(doc.ID),
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

// Save writes only the fields this service owns; other dog attributes
// maintained by the listing side are left alone.
func (r *DogRepository) Save(ctx context.Context, d *dog.Dog) error {
	if d.ID == "" {
		return dog.ErrIDRequired
	}
	set := bson.M{
		"owner_id":     d.OwnerID,
		"name":         d.Name,
		"daily_rate":   d.DailyRate,
		"is_available": d.IsAvailable,
		"status":       string(d.Status),
		"rented_by":    d.RentedBy,
		"rented_at":    d.RentedAt,
		"updated_at":   d.UpdatedAt.UTC(),
	}
	_, err := r.col.UpdateByID(ctx, string(d.ID), bson.M{"$set": set}, options.Update().SetUpsert(true))
	return err
}

type dogDocument struct {
	ID          string     `bson:"_id"`
	OwnerID     string     `bson:"owner_id"`
	Name        string     `bson:"name"`
	DailyRate   float64    `bson:"daily_rate"`
	IsAvailable bool       `bson:"is_available"`
	Status      string     `bson:"status"`
	RentedBy    string     `bson:"rented_by"`
	RentedAt    *time.Time `bson:"rented_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}
