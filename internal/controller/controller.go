// Package controller orchestrates the booking lifecycle: duration selection,
// submission, cancellation, and reconciliation of the local slot registry and
// booking ledger with the server's responses.
package controller

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"parkgrid/internal/ledger"
	"parkgrid/internal/metrics"
	"parkgrid/internal/models"
	"parkgrid/internal/parkapi"
	"parkgrid/internal/registry"
)

var (
	// ErrAuthRequired is returned when an action needs a logged-in user.
	ErrAuthRequired = errors.New("authentication required")
	// ErrSlotUnavailable is returned when selecting a slot occupied by
	// somebody else.
	ErrSlotUnavailable = errors.New("slot is unavailable")
	// ErrInvalidDuration is returned for durations outside the allowed
	// bounds. The caller clamps before calling; the controller rejects.
	ErrInvalidDuration = errors.New("booking duration out of bounds")
	// ErrNotCancellable is returned when the targeted booking is not in the
	// BOOKED state (already cancelled, completed, or unknown).
	ErrNotCancellable = errors.New("booking is not cancellable")
	// ErrNoActiveBooking is returned by CancelBySlot when the authoritative
	// booking list has no active booking for the slot.
	ErrNoActiveBooking = errors.New("no active booking for slot")
	// ErrTimeout is returned when a mutating request exceeded the configured
	// deadline. The attempt transitions to Failed; the true outcome is
	// learned on the next reconciliation.
	ErrTimeout = errors.New("request timed out")
)

// API is the backend surface the controller drives.
type API interface {
	CreateBooking(ctx context.Context, req parkapi.CreateBookingRequest, idempotencyKey string) (*models.Booking, error)
	MyBookings(ctx context.Context) ([]models.Booking, error)
	CancelBooking(ctx context.Context, bookingID string) (*models.Booking, error)
}

// SessionGate supplies the authenticated identity.
type SessionGate interface {
	Require() (*models.UserRef, error)
}

// Limits bound the booking duration selection.
type Limits struct {
	MinHours     int
	MaxHours     int
	DefaultHours int
}

// DefaultLimits mirror the booking form: 1 hour preselected, 6 hours max.
func DefaultLimits() Limits {
	return Limits{MinHours: 1, MaxHours: 6, DefaultHours: 1}
}

// Selection is the state handed to the duration picker after a slot is
// chosen.
type Selection struct {
	Slot          models.Slot
	DurationHours int
	MaxHours      int
}

// Controller drives booking attempts against the backend and reconciles the
// registry and ledger afterwards.
type Controller struct {
	api      API
	registry *registry.Registry
	ledger   *ledger.Ledger
	gate     SessionGate
	limits   Limits
	timeout  time.Duration
	fsm      *FSM
	logger   *zerolog.Logger

	state State
}

// New constructs a controller. timeout bounds every mutating request; zero
// means 15 seconds.
func New(api API, reg *registry.Registry, led *ledger.Ledger, gate SessionGate, limits Limits, timeout time.Duration, logger *zerolog.Logger) *Controller {
	if limits.MinHours <= 0 {
		limits = DefaultLimits()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Controller{
		api:      api,
		registry: reg,
		ledger:   led,
		gate:     gate,
		limits:   limits,
		timeout:  timeout,
		fsm:      NewFSM(),
		logger:   logger,
		state:    StateIdle,
	}
}

// State returns the current attempt state.
func (c *Controller) State() State {
	return c.state
}

// Reset returns the attempt to Idle, e.g. when the user dismisses the form.
func (c *Controller) Reset() {
	c.state = StateIdle
}

func (c *Controller) transition(to State) {
	if c.fsm.CanTransition(c.state, to) {
		c.state = to
		return
	}
	c.logger.Debug().Str("from", string(c.state)).Str("to", string(to)).Msg("forced attempt transition")
	c.state = to
}

// SelectSlot starts a booking attempt for the slot. It fails before any
// network traffic when nobody is logged in or the slot is held by another
// user.
func (c *Controller) SelectSlot(slot models.Slot) (*Selection, error) {
	user, err := c.gate.Require()
	if err != nil {
		return nil, ErrAuthRequired
	}
	if slot.IsOccupied && !slot.OccupiedByUser(user.ID) {
		return nil, ErrSlotUnavailable
	}

	c.transition(StateSelecting)
	return &Selection{
		Slot:          slot,
		DurationHours: c.limits.DefaultHours,
		MaxHours:      c.limits.MaxHours,
	}, nil
}

// ValidateDuration rejects durations outside the configured bounds.
func (c *Controller) ValidateDuration(hours int) error {
	if hours < c.limits.MinHours || hours > c.limits.MaxHours {
		return ErrInvalidDuration
	}
	return nil
}

// ConfirmBooking submits the attempt: the window starts at now and runs for
// durationHours. On success the slot registry and booking ledger are updated
// and the server's booking (including the QR reference) is returned. Server
// rejections come back as *parkapi.RejectedError with the server's message
// untouched.
func (c *Controller) ConfirmBooking(ctx context.Context, slot models.Slot, durationHours int, now time.Time) (*models.Booking, error) {
	user, err := c.gate.Require()
	if err != nil {
		return nil, ErrAuthRequired
	}
	if err := c.ValidateDuration(durationHours); err != nil {
		return nil, err
	}

	window := models.NewTimeWindow(now, durationHours)
	c.transition(StateSubmitting)

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	booking, err := c.api.CreateBooking(reqCtx, parkapi.CreateBookingRequest{
		ParkingSlotID: slot.ID,
		StartTime:     window.Start,
		EndTime:       window.End,
	}, uuid.NewString())
	if err != nil {
		c.transition(StateFailed)
		err = c.mapRequestError(err)
		metrics.IncBookingCreated(outcomeLabel(err))
		c.logger.Warn().Err(err).Str("slot", slot.SlotNumber).Msg("booking failed")
		return nil, err
	}

	occupant := &models.UserRef{ID: user.ID, Username: user.Username}
	c.registry.ApplyOccupancy(slot.ID, occupant)
	c.ledger.Upsert(*booking)
	c.transition(StateConfirmed)
	metrics.IncBookingCreated("confirmed")
	c.logger.Info().Str("slot", slot.SlotNumber).Str("booking", booking.ID).Msg("booking confirmed")
	return booking, nil
}

// CancelBooking cancels the booking with the given id. Bookings no longer in
// the BOOKED state fail with ErrNotCancellable before any network call, which
// also makes replays of an already-applied cancel safe.
func (c *Controller) CancelBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	if _, err := c.gate.Require(); err != nil {
		return nil, ErrAuthRequired
	}
	current, ok := c.ledger.Get(bookingID)
	if !ok || !current.IsCancellable() {
		return nil, ErrNotCancellable
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	booking, err := c.api.CancelBooking(reqCtx, bookingID)
	if err != nil {
		err = c.mapRequestError(err)
		c.logger.Warn().Err(err).Str("booking", bookingID).Msg("cancel failed")
		return nil, err
	}

	c.ledger.MarkCancelled(bookingID)
	c.registry.ApplyOccupancy(current.ParkingSlot.ID, nil)
	metrics.IncBookingCancelled()
	c.logger.Info().Str("booking", bookingID).Msg("booking cancelled")
	return booking, nil
}

// CancelBySlot cancels the caller's active booking for the slot. The grid
// only carries occupancy, not booking ids, and local state may lag the
// server, so the booking list is re-fetched from the backend before the
// destructive call.
func (c *Controller) CancelBySlot(ctx context.Context, slot models.Slot) (*models.Booking, error) {
	if _, err := c.gate.Require(); err != nil {
		return nil, ErrAuthRequired
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	bookings, err := c.api.MyBookings(reqCtx)
	if err != nil {
		return nil, c.mapRequestError(err)
	}
	c.ledger.Load(bookings)

	active, ok := c.ledger.ActiveForSlot(slot.ID)
	if !ok {
		return nil, ErrNoActiveBooking
	}
	return c.CancelBooking(ctx, active.ID)
}

// RefreshBookings reloads the ledger from the authoritative booking list.
func (c *Controller) RefreshBookings(ctx context.Context) error {
	bookings, err := c.api.MyBookings(ctx)
	if err != nil {
		return c.mapRequestError(err)
	}
	c.ledger.Load(bookings)
	return nil
}

func (c *Controller) mapRequestError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

func outcomeLabel(err error) string {
	var rejected *parkapi.RejectedError
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.As(err, &rejected):
		return "rejected"
	default:
		return "network_error"
	}
}
