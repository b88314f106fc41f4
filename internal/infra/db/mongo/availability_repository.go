package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainavailability "dogshare/internal/domain/availability"
	"dogshare/internal/domain/dog"
	"dogshare/internal/domain/shared/daykey"
)

// AvailabilityRepository stores one document per dog in dog_availability.
// Saves are filtered on the version that was read; a miss means someone
// else wrote first.
type AvailabilityRepository struct {
	col *mongo.Collection
}

func NewAvailabilityRepository(db *mongo.Database) *AvailabilityRepository {
	return &AvailabilityRepository{col: db.Collection("dog_availability")}
}

func (r *AvailabilityRepository) Get(ctx context.Context, id dog.ID) (*domainavailability.DogAvailability, error) {
	var doc availabilityDocument
	err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domainavailability.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *AvailabilityRepository) Save(ctx context.Context, cal *domainavailability.DogAvailability) error {
	doc := newAvailabilityDocument(cal)
	filter := bson.M{"_id": doc.ID, "version": cal.Version}
	doc.Version = cal.Version + 1
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainavailability.ErrVersionConflict
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return domainavailability.ErrVersionConflict
	}
	cal.Version = doc.Version
	return nil
}

func (r *AvailabilityRepository) ListWithPatterns(ctx context.Context) ([]*domainavailability.DogAvailability, error) {
	filter := bson.M{"recurring_patterns.0": bson.M{"$exists": true}}
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []availabilityDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainavailability.DogAvailability, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

type availabilityDocument struct {
	ID               string                 `bson:"_id"`
	OwnerID          string                 `bson:"owner_id"`
	Days             map[string]dayDocument `bson:"days"`
	DefaultAvailable bool                   `bson:"default_available"`
	Patterns         []patternDocument      `bson:"recurring_patterns"`
	UpdatedAt        time.Time              `bson:"updated_at"`
	Version          int64                  `bson:"version"`
}

type dayDocument struct {
	Available   bool     `bson:"available"`
	Blocked     bool     `bson:"blocked"`
	Booked      bool     `bson:"booked"`
	Reason      string   `bson:"reason,omitempty"`
	RentalID    string   `bson:"rental_id,omitempty"`
	Price       *float64 `bson:"price,omitempty"`
	FromPattern bool     `bson:"from_pattern,omitempty"`
}

type patternDocument struct {
	Kind      string   `bson:"kind"`
	Weekdays  []int    `bson:"weekdays,omitempty"`
	MonthDays []int    `bson:"month_days,omitempty"`
	Available bool     `bson:"available"`
	Blocked   bool     `bson:"blocked"`
	Reason    string   `bson:"reason,omitempty"`
	Price     *float64 `bson:"price,omitempty"`
	From      string   `bson:"from,omitempty"`
	Until     string   `bson:"until,omitempty"`
}

func newAvailabilityDocument(cal *domainavailability.DogAvailability) availabilityDocument {
	doc := availabilityDocument{
		ID:               string(cal.DogID),
		OwnerID:          cal.OwnerID,
		Days:             make(map[string]dayDocument, len(cal.Days)),
		DefaultAvailable: cal.DefaultAvailable,
		UpdatedAt:        cal.UpdatedAt.UTC(),
		Patterns:         []patternDocument{},
	}
	for k, s := range cal.Days {
		doc.Days[string(k)] = dayDocument(s)
	}
	for _, p := range cal.RecurringPatterns {
		pd := patternDocument{
			Kind:      string(p.Kind),
			MonthDays: p.MonthDays,
			Available: p.Intent.Available,
			Blocked:   p.Intent.Blocked,
			Reason:    p.Intent.Reason,
			Price:     p.Intent.Price,
			From:      string(p.From),
			Until:     string(p.Until),
		}
		for _, wd := range p.Weekdays {
			pd.Weekdays = append(pd.Weekdays, int(wd))
		}
		doc.Patterns = append(doc.Patterns, pd)
	}
	return doc
}

func (d availabilityDocument) toAggregate() *domainavailability.DogAvailability {
	cal := &domainavailability.DogAvailability{
		DogID:            dog.ID(d.ID),
		OwnerID:          d.OwnerID,
		Days:             make(map[daykey.DayKey]domainavailability.Status, len(d.Days)),
		DefaultAvailable: d.DefaultAvailable,
		UpdatedAt:        d.UpdatedAt.UTC(),
		Version:          d.Version,
	}
	for k, s := range d.Days {
		cal.Days[daykey.DayKey(k)] = domainavailability.Status(s)
	}
	for _, p := range d.Patterns {
		rp := domainavailability.RecurringPattern{
			Kind:      domainavailability.PatternKind(p.Kind),
			MonthDays: p.MonthDays,
			Intent: domainavailability.StatusIntent{
				Available: p.Available,
				Blocked:   p.Blocked,
				Reason:    p.Reason,
				Price:     p.Price,
			},
			From:  daykey.DayKey(p.From),
			Until: daykey.DayKey(p.Until),
		}
		for _, wd := range p.Weekdays {
			rp.Weekdays = append(rp.Weekdays, time.Weekday(wd))
		}
		cal.RecurringPatterns = append(cal.RecurringPatterns, rp)
	}
	return cal
}
