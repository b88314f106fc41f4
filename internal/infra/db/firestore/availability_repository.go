package firestore

import (
	"context"
	"errors"
	"time"

	gcfirestore "cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domainavailability "dogshare/internal/domain/availability"
	"dogshare/internal/domain/dog"
	"dogshare/internal/domain/shared/daykey"
)

const availabilityCollection = "dogAvailability"

// AvailabilityRepository keeps one document per dog, keyed by dog id. The
// version check and the write run inside one Firestore transaction.
type AvailabilityRepository struct {
	fs *gcfirestore.Client
}

func NewAvailabilityRepository(c *Client) *AvailabilityRepository {
	return &AvailabilityRepository{fs: c.FS}
}

func (r *AvailabilityRepository) Get(ctx context.Context, id dog.ID) (*domainavailability.DogAvailability, error) {
	snap, err := r.fs.Collection(availabilityCollection).Doc(string(id)).Get(ctx)
	if isNotFound(err) {
		return nil, domainavailability.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var doc availabilityDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return doc.toAggregate(id), nil
}

func (r *AvailabilityRepository) Save(ctx context.Context, cal *domainavailability.DogAvailability) error {
	ref := r.fs.Collection(availabilityCollection).Doc(string(cal.DogID))
	doc := newAvailabilityDocument(cal)
	doc.Version = cal.Version + 1
	err := r.fs.RunTransaction(ctx, func(ctx context.Context, tx *gcfirestore.Transaction) error {
		snap, err := tx.Get(ref)
		switch {
		case isNotFound(err):
			if cal.Version != 0 {
				return domainavailability.ErrVersionConflict
			}
		case err != nil:
			return err
		default:
			var stored struct {
				Version int64 `firestore:"version"`
			}
			if err := snap.DataTo(&stored); err != nil {
				return err
			}
			if stored.Version != cal.Version {
				return domainavailability.ErrVersionConflict
			}
		}
		return tx.Set(ref, doc)
	})
	if err != nil {
		return err
	}
	cal.Version = doc.Version
	return nil
}

func (r *AvailabilityRepository) ListWithPatterns(ctx context.Context) ([]*domainavailability.DogAvailability, error) {
	iter := r.fs.Collection(availabilityCollection).Where("hasPatterns", "==", true).Documents(ctx)
	defer iter.Stop()
	var out []*domainavailability.DogAvailability
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		var doc availabilityDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate(dog.ID(snap.Ref.ID)))
	}
}

type availabilityDocument struct {
	OwnerID          string                 `firestore:"ownerId"`
	Days             map[string]dayDocument `firestore:"days"`
	DefaultAvailable bool                   `firestore:"defaultAvailable"`
	Patterns         []patternDocument      `firestore:"recurringPatterns"`
	HasPatterns      bool                   `firestore:"hasPatterns"`
	UpdatedAt        time.Time              `firestore:"updatedAt"`
	Version          int64                  `firestore:"version"`
}

type dayDocument struct {
	Available   bool     `firestore:"available"`
	Blocked     bool     `firestore:"blocked"`
	Booked      bool     `firestore:"booked"`
	Reason      string   `firestore:"reason,omitempty"`
	RentalID    string   `firestore:"rentalId,omitempty"`
	Price       *float64 `firestore:"price,omitempty"`
	FromPattern bool     `firestore:"fromPattern,omitempty"`
}

type patternDocument struct {
	Kind      string   `firestore:"kind"`
	Weekdays  []int64  `firestore:"weekdays,omitempty"`
	MonthDays []int64  `firestore:"monthDays,omitempty"`
	Available bool     `firestore:"available"`
	Blocked   bool     `firestore:"blocked"`
	Reason    string   `firestore:"reason,omitempty"`
	Price     *float64 `firestore:"price,omitempty"`
	From      string   `firestore:"from,omitempty"`
	Until     string   `firestore:"until,omitempty"`
}

func newAvailabilityDocument(cal *domainavailability.DogAvailability) availabilityDocument {
	doc := availabilityDocument{
		OwnerID:          cal.OwnerID,
		Days:             make(map[string]dayDocument, len(cal.Days)),
		DefaultAvailable: cal.DefaultAvailable,
		HasPatterns:      len(cal.RecurringPatterns) > 0,
		UpdatedAt:        cal.UpdatedAt.UTC(),
	}
	for k, s := range cal.Days {
		doc.Days[string(k)] = dayDocument(s)
	}
	for _, p := range cal.RecurringPatterns {
		pd := patternDocument{
			Kind:      string(p.Kind),
			Available: p.Intent.Available,
			Blocked:   p.Intent.Blocked,
			Reason:    p.Intent.Reason,
			Price:     p.Intent.Price,
			From:      string(p.From),
			Until:     string(p.Until),
		}
		for _, wd := range p.Weekdays {
			pd.Weekdays = append(pd.Weekdays, int64(wd))
		}
		for _, md := range p.MonthDays {
			pd.MonthDays = append(pd.MonthDays, int64(md))
		}
		doc.Patterns = append(doc.Patterns, pd)
	}
	return doc
}

func (d availabilityDocument) toAggregate(id dog.ID) *domainavailability.DogAvailability {
	cal := &domainavailability.DogAvailability{
		DogID:            id,
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
			Kind: domainavailability.PatternKind(p.Kind),
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
		for _, md := range p.MonthDays {
			rp.MonthDays = append(rp.MonthDays, int(md))
		}
		cal.RecurringPatterns = append(cal.RecurringPatterns, rp)
	}
	return cal
}
