// Package ledger keeps the in-memory collection of bookings visible to the
// current session and derives the active/upcoming/past history buckets.
package ledger

import (
	"sort"
	"sync"
	"time"

	"parkgrid/internal/events"
	"parkgrid/internal/models"
)

// Buckets partitions the ledger by category. Every booking lands in exactly
// one bucket.
type Buckets struct {
	Active   []models.Booking
	Upcoming []models.Booking
	Past     []models.Booking
}

// Counts are the aggregate numbers shown on the history page.
type Counts struct {
	Total    int
	Active   int
	Upcoming int
}

// Ledger owns the booking collection, sorted by CreatedAt descending. All
// methods are safe for concurrent use. The clock is never read internally;
// categorization takes now from the caller.
type Ledger struct {
	mu       sync.RWMutex
	bookings []models.Booking
	bus      *events.Bus
}

// New constructs an empty ledger. The bus may be nil.
func New(bus *events.Bus) *Ledger {
	return &Ledger{bus: bus}
}

// Load replaces the collection with the given bookings.
func (l *Ledger) Load(bookings []models.Booking) {
	sorted := make([]models.Booking, len(bookings))
	copy(sorted, bookings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	l.mu.Lock()
	l.bookings = sorted
	l.mu.Unlock()

	l.publish(events.TopicBookingsReplaced, "")
}

// Upsert inserts the booking or replaces the entry with the same id, then
// restores the sort order.
func (l *Ledger) Upsert(booking models.Booking) {
	l.mu.Lock()
	replaced := false
	for i := range l.bookings {
		if l.bookings[i].ID == booking.ID {
			l.bookings[i] = booking
			replaced = true
			break
		}
	}
	if !replaced {
		l.bookings = append(l.bookings, booking)
	}
	sort.SliceStable(l.bookings, func(i, j int) bool {
		return l.bookings[i].CreatedAt.After(l.bookings[j].CreatedAt)
	})
	l.mu.Unlock()

	l.publish(events.TopicBookingUpserted, booking.ID)
}

// MarkCancelled flips the booking's status to CANCELLED without a server
// round trip. Unknown ids are ignored.
func (l *Ledger) MarkCancelled(bookingID string) {
	l.mu.Lock()
	found := false
	for i := range l.bookings {
		if l.bookings[i].ID == bookingID {
			l.bookings[i].Status = models.StatusCancelled
			found = true
			break
		}
	}
	l.mu.Unlock()

	if found {
		l.publish(events.TopicBookingCancelled, bookingID)
	}
}

// Get returns a copy of the booking with the given id.
func (l *Ledger) Get(bookingID string) (models.Booking, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, b := range l.bookings {
		if b.ID == bookingID {
			return b, true
		}
	}
	return models.Booking{}, false
}

// All returns a snapshot of the collection, most recent first.
func (l *Ledger) All() []models.Booking {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Booking, len(l.bookings))
	copy(out, l.bookings)
	return out
}

// ActiveForSlot returns the BOOKED booking covering the given slot, if any.
// Used by the cancel-from-grid path after re-fetching the ledger.
func (l *Ledger) ActiveForSlot(slotID string) (models.Booking, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, b := range l.bookings {
		if b.ParkingSlot.ID == slotID && b.Status.IsBooked() {
			return b, true
		}
	}
	return models.Booking{}, false
}

// Categorize partitions the ledger relative to now. Order within each bucket
// follows the ledger order (CreatedAt descending).
func (l *Ledger) Categorize(now time.Time) Buckets {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var buckets Buckets
	for _, b := range l.bookings {
		switch b.Category(now) {
		case models.CategoryActive:
			buckets.Active = append(buckets.Active, b)
		case models.CategoryUpcoming:
			buckets.Upcoming = append(buckets.Upcoming, b)
		default:
			buckets.Past = append(buckets.Past, b)
		}
	}
	return buckets
}

// Counts derives the aggregate counters from Categorize.
func (l *Ledger) Counts(now time.Time) Counts {
	buckets := l.Categorize(now)
	return Counts{
		Total:    len(buckets.Active) + len(buckets.Upcoming) + len(buckets.Past),
		Active:   len(buckets.Active),
		Upcoming: len(buckets.Upcoming),
	}
}

func (l *Ledger) publish(topic, entityID string) {
	if l.bus != nil {
		l.bus.Publish(topic, entityID)
	}
}
