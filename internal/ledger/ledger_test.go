package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"parkgrid/internal/models"
)

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func booking(id string, status models.BookingStatus, start, end time.Time, createdAt time.Time) models.Booking {
	return models.Booking{
		ID:          id,
		Status:      status,
		StartTime:   start,
		EndTime:     end,
		CreatedAt:   createdAt,
		ParkingSlot: models.SlotRef{ID: "slot-" + id, SlotNumber: "A1"},
	}
}

func TestLedger_LoadSortsByCreatedAtDescending(t *testing.T) {
	l := New(nil)
	l.Load([]models.Booking{
		booking("old", models.StatusBooked, testNow, testNow.Add(time.Hour), testNow.Add(-2*time.Hour)),
		booking("new", models.StatusBooked, testNow, testNow.Add(time.Hour), testNow),
		booking("mid", models.StatusBooked, testNow, testNow.Add(time.Hour), testNow.Add(-time.Hour)),
	})

	all := l.All()
	assert.Equal(t, []string{"new", "mid", "old"}, []string{all[0].ID, all[1].ID, all[2].ID})
}

func TestLedger_Categorize(t *testing.T) {
	l := New(nil)
	l.Load([]models.Booking{
		booking("a", models.StatusBooked, testNow.Add(-time.Hour), testNow.Add(time.Hour), testNow),
		booking("b", models.StatusBooked, testNow.Add(time.Hour), testNow.Add(2*time.Hour), testNow),
		booking("c", models.StatusBooked, testNow.Add(-3*time.Hour), testNow.Add(-2*time.Hour), testNow),
		booking("d", models.StatusCancelled, testNow.Add(-time.Hour), testNow.Add(time.Hour), testNow),
		booking("e", models.StatusCompleted, testNow.Add(time.Hour), testNow.Add(2*time.Hour), testNow),
	})

	buckets := l.Categorize(testNow)

	assert.Len(t, buckets.Active, 1)
	assert.Equal(t, "a", buckets.Active[0].ID)
	assert.Len(t, buckets.Upcoming, 1)
	assert.Equal(t, "b", buckets.Upcoming[0].ID)
	assert.Len(t, buckets.Past, 3)

	// The buckets partition the ledger.
	total := len(buckets.Active) + len(buckets.Upcoming) + len(buckets.Past)
	assert.Equal(t, len(l.All()), total)
}

func TestLedger_CategorizeBoundaries(t *testing.T) {
	l := New(nil)
	l.Load([]models.Booking{
		booking("a", models.StatusBooked, testNow.Add(-time.Hour), testNow.Add(time.Hour), testNow),
	})

	// now == startTime and now == endTime are both active.
	assert.Len(t, l.Categorize(testNow.Add(-time.Hour)).Active, 1)
	assert.Len(t, l.Categorize(testNow.Add(time.Hour)).Active, 1)
	assert.Len(t, l.Categorize(testNow.Add(2*time.Hour)).Past, 1)
	assert.Len(t, l.Categorize(testNow.Add(-2*time.Hour)).Upcoming, 1)
}

func TestLedger_Counts(t *testing.T) {
	l := New(nil)
	l.Load([]models.Booking{
		booking("a", models.StatusBooked, testNow.Add(-time.Hour), testNow.Add(time.Hour), testNow),
		booking("b", models.StatusBooked, testNow.Add(time.Hour), testNow.Add(2*time.Hour), testNow),
		booking("c", models.StatusCancelled, testNow, testNow.Add(time.Hour), testNow),
	})

	counts := l.Counts(testNow)
	assert.Equal(t, Counts{Total: 3, Active: 1, Upcoming: 1}, counts)
}

func TestLedger_Upsert(t *testing.T) {
	l := New(nil)
	l.Load([]models.Booking{
		booking("a", models.StatusBooked, testNow, testNow.Add(time.Hour), testNow.Add(-time.Hour)),
	})

	// Insert a new booking; it is newer so it goes first.
	l.Upsert(booking("b", models.StatusBooked, testNow, testNow.Add(time.Hour), testNow))
	all := l.All()
	assert.Len(t, all, 2)
	assert.Equal(t, "b", all[0].ID)

	// Replace by id keeps the collection size.
	updated := booking("b", models.StatusCancelled, testNow, testNow.Add(time.Hour), testNow)
	l.Upsert(updated)
	all = l.All()
	assert.Len(t, all, 2)
	assert.Equal(t, models.StatusCancelled, all[0].Status)
}

func TestLedger_MarkCancelled(t *testing.T) {
	l := New(nil)
	l.Load([]models.Booking{
		booking("a", models.StatusBooked, testNow, testNow.Add(time.Hour), testNow),
	})

	l.MarkCancelled("a")
	got, ok := l.Get("a")
	assert.True(t, ok)
	assert.Equal(t, models.StatusCancelled, got.Status)

	// Unknown id is a silent no-op.
	l.MarkCancelled("missing")
	assert.Len(t, l.All(), 1)
}

func TestLedger_ActiveForSlot(t *testing.T) {
	l := New(nil)
	l.Load([]models.Booking{
		booking("a", models.StatusCancelled, testNow, testNow.Add(time.Hour), testNow),
		booking("b", models.StatusBooked, testNow, testNow.Add(time.Hour), testNow),
	})

	_, ok := l.ActiveForSlot("slot-a")
	assert.False(t, ok, "cancelled booking must not resolve")

	got, ok := l.ActiveForSlot("slot-b")
	assert.True(t, ok)
	assert.Equal(t, "b", got.ID)
}
