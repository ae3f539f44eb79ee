// Package models holds the wire-level and in-memory types shared by the
// parking client core. Field tags follow the backend's JSON contract.
package models

import (
	"strings"
	"time"
)

// Role of an authenticated user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// BookingStatus is the lifecycle status of a booking. The backend is not
// consistent about casing ("booked" vs "BOOKED"), so comparisons go through
// Normalize.
type BookingStatus string

const (
	StatusBooked    BookingStatus = "BOOKED"
	StatusCancelled BookingStatus = "CANCELLED"
	StatusCompleted BookingStatus = "COMPLETED"
)

// Normalize returns the canonical upper-case form of the status.
func (s BookingStatus) Normalize() BookingStatus {
	return BookingStatus(strings.ToUpper(string(s)))
}

// IsBooked reports whether the booking is still in the BOOKED state.
func (s BookingStatus) IsBooked() bool {
	return s.Normalize() == StatusBooked
}

// UserRef identifies a user. The token is only populated for the session's
// own user; refs embedded in slots and bookings carry id and username only.
type UserRef struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     Role   `json:"role,omitempty"`
	Token    string `json:"token,omitempty"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *UserRef) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Slot represents a single parking space with its derived occupancy state.
// Invariant: IsOccupied == false implies OccupiedBy == nil.
type Slot struct {
	ID         string    `json:"_id"`
	SlotNumber string    `json:"slotNumber"`
	IsOccupied bool      `json:"isOccupied"`
	OccupiedBy *UserRef  `json:"occupiedBy,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
}

// OccupiedByUser reports whether the slot is currently held by the given user.
func (s *Slot) OccupiedByUser(userID string) bool {
	return s.IsOccupied && s.OccupiedBy != nil && s.OccupiedBy.ID == userID
}

// SlotRef is the value-copied slot identity embedded in a booking. Bookings
// never hold a live pointer into the registry.
type SlotRef struct {
	ID         string `json:"_id"`
	SlotNumber string `json:"slotNumber"`
}

// Booking binds a user to a slot for a time window.
type Booking struct {
	ID          string        `json:"_id"`
	User        UserRef       `json:"user"`
	ParkingSlot SlotRef       `json:"parkingSlot"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     time.Time     `json:"endTime"`
	Status      BookingStatus `json:"status"`
	QRCode      string        `json:"qrCode,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Window returns the booking's time window.
func (b *Booking) Window() TimeWindow {
	return TimeWindow{Start: b.StartTime, End: b.EndTime}
}

// Category places the booking into one of the history buckets relative to
// now. Anything not in the BOOKED state is past regardless of its window.
func (b *Booking) Category(now time.Time) Category {
	if !b.Status.IsBooked() {
		return CategoryPast
	}
	return b.Window().Category(now)
}

// IsCancellable reports whether a cancel action may still be issued.
func (b *Booking) IsCancellable() bool {
	return b.Status.IsBooked()
}
