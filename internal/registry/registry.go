// Package registry keeps the in-memory collection of parking slots for the
// current session and derives the sorted view the grid renders from.
package registry

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"parkgrid/internal/events"
	"parkgrid/internal/models"
)

var (
	// ErrNotFound is returned when a slot id is not present in the registry.
	ErrNotFound = errors.New("slot not found")
	// ErrSlotOccupied is returned when removing a slot that still has an
	// active occupant. The server enforces the same rule; this is only the
	// local pre-check.
	ErrSlotOccupied = errors.New("slot is occupied")
)

// Stats summarizes the registry for the dashboard header cards.
type Stats struct {
	Total     int
	Occupied  int
	Available int
}

// Registry owns the slot collection. All methods are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	slots []models.Slot
	index map[string]int
	bus   *events.Bus
}

// New constructs an empty registry. The bus may be nil when change
// notifications are not needed (tests, one-shot tools).
func New(bus *events.Bus) *Registry {
	return &Registry{index: make(map[string]int), bus: bus}
}

// Load replaces the whole collection with the given slots, applying the
// natural slot-number ordering. An empty or nil input empties the registry.
func (r *Registry) Load(slots []models.Slot) {
	sorted := make([]models.Slot, len(slots))
	copy(sorted, slots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return LessSlotNumber(sorted[i].SlotNumber, sorted[j].SlotNumber)
	})

	r.mu.Lock()
	r.slots = sorted
	r.reindex()
	r.mu.Unlock()

	r.publish(events.TopicSlotsReplaced, "")
}

// Insert adds one slot keeping the sort order, replacing any slot with the
// same id. Used when the admin creates a single slot.
func (r *Registry) Insert(slot models.Slot) {
	r.mu.Lock()
	if i, ok := r.index[slot.ID]; ok {
		r.slots = append(r.slots[:i], r.slots[i+1:]...)
	}
	pos := sort.Search(len(r.slots), func(i int) bool {
		return LessSlotNumber(slot.SlotNumber, r.slots[i].SlotNumber)
	})
	r.slots = append(r.slots, models.Slot{})
	copy(r.slots[pos+1:], r.slots[pos:])
	r.slots[pos] = slot
	r.reindex()
	r.mu.Unlock()

	r.publish(events.TopicSlotsReplaced, slot.ID)
}

// ApplyOccupancy sets or clears one slot's occupancy. Unknown ids are
// ignored: the caller may hold a stale reference and the server remains
// authoritative.
func (r *Registry) ApplyOccupancy(slotID string, occupiedBy *models.UserRef) {
	r.mu.Lock()
	i, ok := r.index[slotID]
	if !ok {
		r.mu.Unlock()
		return
	}
	r.slots[i].IsOccupied = occupiedBy != nil
	r.slots[i].OccupiedBy = occupiedBy
	r.mu.Unlock()

	r.publish(events.TopicSlotOccupancy, slotID)
}

// Remove deletes a slot. Occupied slots are refused with ErrSlotOccupied;
// unknown ids return ErrNotFound.
func (r *Registry) Remove(slotID string) error {
	r.mu.Lock()
	i, ok := r.index[slotID]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	if r.slots[i].IsOccupied {
		r.mu.Unlock()
		return ErrSlotOccupied
	}
	r.slots = append(r.slots[:i], r.slots[i+1:]...)
	r.reindex()
	r.mu.Unlock()

	r.publish(events.TopicSlotRemoved, slotID)
	return nil
}

// Get returns a copy of the slot with the given id.
func (r *Registry) Get(slotID string) (models.Slot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[slotID]
	if !ok {
		return models.Slot{}, false
	}
	return r.slots[i], true
}

// All returns a stable snapshot of the sorted collection. Mutating the
// returned slice does not affect the registry.
func (r *Registry) All() []models.Slot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Slot, len(r.slots))
	copy(out, r.slots)
	return out
}

// Stats returns the availability counters.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Stats{Total: len(r.slots)}
	for _, slot := range r.slots {
		if slot.IsOccupied {
			s.Occupied++
		}
	}
	s.Available = s.Total - s.Occupied
	return s
}

// reindex rebuilds the id index; callers hold the write lock.
func (r *Registry) reindex() {
	r.index = make(map[string]int, len(r.slots))
	for i, slot := range r.slots {
		r.index[slot.ID] = i
	}
}

func (r *Registry) publish(topic, entityID string) {
	if r.bus != nil {
		r.bus.Publish(topic, entityID)
	}
}

var slotNumberPattern = regexp.MustCompile(`^([A-Za-z]+)(\d+)$`)

// LessSlotNumber orders slot numbers by alphabetic prefix, then numeric
// suffix as an integer, so "A2" sorts before "A10" and "A9" before "B1".
// Numbers that do not match the prefix+digits shape fall back to plain
// lexicographic comparison.
func LessSlotNumber(a, b string) bool {
	am := slotNumberPattern.FindStringSubmatch(a)
	bm := slotNumberPattern.FindStringSubmatch(b)
	if am == nil || bm == nil {
		return a < b
	}
	ap, bp := strings.ToUpper(am[1]), strings.ToUpper(bm[1])
	if ap != bp {
		return ap < bp
	}
	an, aerr := strconv.Atoi(am[2])
	bn, berr := strconv.Atoi(bm[2])
	if aerr != nil || berr != nil {
		return a < b
	}
	return an < bn
}
