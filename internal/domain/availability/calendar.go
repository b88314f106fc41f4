package availability

import (
	"context"
	"errors"
	"time"

	"dogshare/internal/domain/dog"
	"dogshare/internal/domain/shared/daykey"
	"dogshare/internal/domain/shared/events"
)

var (
	ErrNotFound         = errors.New("availability: calendar not found")
	ErrVersionConflict  = errors.New("availability: calendar modified concurrently")
	ErrNotOwner         = errors.New("availability: calendar belongs to another owner")
	ErrStoreUnavailable = errors.New("availability: store unavailable")
	ErrDogIDRequired    = errors.New("availability: dog id required")
	ErrNoDays           = errors.New("availability: at least one day required")
	ErrDaysUnavailable  = errors.New("availability: days are not bookable")
)

const (
	ReasonBooked       = "Booked rental"
	ReasonOwnerBlocked = "Owner blocked"
)

// Status is the stored state of a single day. The three flags are not
// mutually exclusive; a day is bookable only when available, not blocked and
// not booked.
type Status struct {
	Available   bool
	Blocked     bool
	Booked      bool
	Reason      string
	RentalID    string
	Price       *float64
	FromPattern bool
}

func (s Status) Bookable() bool {
	return s.Available && !s.Blocked && !s.Booked
}

// StatusIntent is what an owner asks for when editing days.
type StatusIntent struct {
	Available bool
	Blocked   bool
	Reason    string
	Price     *float64
}

// DogAvailability is the per-dog availability document. Days is sparse;
// missing days fall back to DefaultAvailable.
type DogAvailability struct {
	DogID             dog.ID
	OwnerID           string
	Days              map[daykey.DayKey]Status
	DefaultAvailable  bool
	RecurringPatterns []RecurringPattern
	UpdatedAt         time.Time
	// Version is the optimistic concurrency token. Zero means the document
	// has never been stored.
	Version int64
	events.EventRecorder
}

// Repository stores availability documents. Save must only succeed when the
// stored version still equals cal.Version, and bumps cal.Version on success.
type Repository interface {
	Get(ctx context.Context, id dog.ID) (*DogAvailability, error)
	Save(ctx context.Context, cal *DogAvailability) error
	ListWithPatterns(ctx context.Context) ([]*DogAvailability, error)
}

// ApplyResult lists which days an edit touched and which it left alone
// because they are booked.
type ApplyResult struct {
	Updated   []daykey.DayKey
	Protected []daykey.DayKey
}

func New(id dog.ID, ownerID string, now time.Time) *DogAvailability {
	return &DogAvailability{
		DogID:            id,
		OwnerID:          ownerID,
		Days:             make(map[daykey.DayKey]Status),
		DefaultAvailable: true,
		UpdatedAt:        now.UTC(),
	}
}

// StatusOf resolves a day to its explicit status or the default.
func (c *DogAvailability) StatusOf(day daykey.DayKey) (Status, bool) {
	if s, ok := c.Days[day]; ok {
		return s, true
	}
	return Status{Available: c.DefaultAvailable}, false
}

func (c *DogAvailability) IsBookable(day daykey.DayKey) bool {
	s, _ := c.StatusOf(day)
	return s.Bookable()
}

// AllBookable reports whether every day is bookable. An empty list is
// trivially bookable.
func (c *DogAvailability) AllBookable(days []daykey.DayKey) bool {
	for _, day := range days {
		if !c.IsBookable(day) {
			return false
		}
	}
	return true
}

// BookableDays filters days, keeping their order.
func (c *DogAvailability) BookableDays(days []daykey.DayKey) []daykey.DayKey {
	out := make([]daykey.DayKey, 0, len(days))
	for _, day := range days {
		if c.IsBookable(day) {
			out = append(out, day)
		}
	}
	return out
}

// CheckOwner rejects edits from anyone but the recorded owner. Documents
// created by a booking before the owner ever edited them adopt the first
// owner that does.
func (c *DogAvailability) CheckOwner(ownerID string) error {
	if c.OwnerID == "" {
		c.OwnerID = ownerID
		return nil
	}
	if c.OwnerID != ownerID {
		return ErrNotOwner
	}
	return nil
}

// Apply writes an owner intent to each day. Booked days are left untouched
// until the booking is released.
func (c *DogAvailability) Apply(days []daykey.DayKey, intent StatusIntent, now time.Time) ApplyResult {
	res := c.apply(days, intent, false)
	if len(res.Updated) > 0 {
		c.touch(now)
		c.Record(CalendarUpdated{DogID: string(c.DogID), Days: res.Updated, At: now.UTC()})
	}
	return res
}

func (c *DogAvailability) apply(days []daykey.DayKey, intent StatusIntent, fromPattern bool) ApplyResult {
	c.ensureDays()
	var res ApplyResult
	for _, day := range days {
		current, ok := c.Days[day]
		if ok && current.Booked {
			res.Protected = append(res.Protected, day)
			continue
		}
		if fromPattern && ok && !current.FromPattern {
			// explicit owner edits outrank recurring rules
			continue
		}
		reason := intent.Reason
		if reason == "" && intent.Blocked {
			reason = ReasonOwnerBlocked
		}
		next := Status{
			Available:   intent.Available,
			Blocked:     intent.Blocked,
			Reason:      reason,
			Price:       copyPrice(intent.Price),
			FromPattern: fromPattern,
		}
		if ok && sameStatus(current, next) {
			continue
		}
		c.Days[day] = next
		res.Updated = append(res.Updated, day)
	}
	return res
}

func (c *DogAvailability) SetDefault(available bool, now time.Time) {
	if c.DefaultAvailable == available {
		return
	}
	c.DefaultAvailable = available
	c.touch(now)
	c.Record(CalendarUpdated{DogID: string(c.DogID), At: now.UTC()})
}

// MarkBooked commits days to a rental. Approval is expected to have passed a
// bookability check already, so prior state is overwritten.
func (c *DogAvailability) MarkBooked(days []daykey.DayKey, rentalID string, now time.Time) {
	c.ensureDays()
	for _, day := range days {
		prev := c.Days[day]
		c.Days[day] = Status{
			Booked:   true,
			RentalID: rentalID,
			Reason:   ReasonBooked,
			Price:    prev.Price,
		}
	}
	c.touch(now)
	c.Record(DaysBooked{DogID: string(c.DogID), RentalID: rentalID, Days: days, At: now.UTC()})
}

// Release frees booked days. When rentalID is set only days held by that
// rental are released. Returns the days that changed.
func (c *DogAvailability) Release(days []daykey.DayKey, rentalID string, now time.Time) []daykey.DayKey {
	var released []daykey.DayKey
	for _, day := range days {
		s, ok := c.Days[day]
		if !ok || !s.Booked {
			continue
		}
		if rentalID != "" && s.RentalID != "" && s.RentalID != rentalID {
			continue
		}
		c.Days[day] = Status{Available: true, Price: s.Price}
		released = append(released, day)
	}
	if len(released) > 0 {
		c.touch(now)
		c.Record(DaysReleased{DogID: string(c.DogID), RentalID: rentalID, Days: released, At: now.UTC()})
	}
	return released
}

func (c *DogAvailability) touch(now time.Time) {
	c.UpdatedAt = now.UTC()
}

func (c *DogAvailability) ensureDays() {
	if c.Days == nil {
		c.Days = make(map[daykey.DayKey]Status)
	}
}

// Clone returns a deep copy without pending events.
func (c *DogAvailability) Clone() *DogAvailability {
	out := &DogAvailability{
		DogID:            c.DogID,
		OwnerID:          c.OwnerID,
		Days:             make(map[daykey.DayKey]Status, len(c.Days)),
		DefaultAvailable: c.DefaultAvailable,
		UpdatedAt:        c.UpdatedAt,
		Version:          c.Version,
	}
	for k, v := range c.Days {
		v.Price = copyPrice(v.Price)
		out.Days[k] = v
	}
	out.RecurringPatterns = clonePatterns(c.RecurringPatterns)
	return out
}

func sameStatus(a, b Status) bool {
	if a.Available != b.Available || a.Blocked != b.Blocked || a.Booked != b.Booked ||
		a.Reason != b.Reason || a.RentalID != b.RentalID || a.FromPattern != b.FromPattern {
		return false
	}
	if a.Price == nil || b.Price == nil {
		return a.Price == nil && b.Price == nil
	}
	return *a.Price == *b.Price
}

func copyPrice(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
