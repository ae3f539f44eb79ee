// Package admin implements the role-gated management operations: dashboard
// loading, slot creation and deletion, and user administration.
package admin

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"parkgrid/internal/ledger"
	"parkgrid/internal/models"
	"parkgrid/internal/parkapi"
	"parkgrid/internal/registry"
)

var (
	// ErrAdminRequired is returned when the session lacks the admin role.
	ErrAdminRequired = errors.New("admin role required")
	// ErrSelfDelete is returned when an admin tries to delete their own
	// account.
	ErrSelfDelete = errors.New("cannot delete own account")
	// ErrDashboardLoad is the aggregate failure for the batched dashboard
	// load. Individual call failures are logged, not surfaced.
	ErrDashboardLoad = errors.New("failed to load dashboard data")
)

// API is the backend surface the admin service drives.
type API interface {
	AdminSlots(ctx context.Context) ([]models.Slot, error)
	AdminBookings(ctx context.Context) ([]models.Booking, error)
	AdminUsers(ctx context.Context) ([]models.UserRef, error)
	CreateSlot(ctx context.Context, slotNumber string) (*models.Slot, error)
	BulkCreateSlots(ctx context.Context, req parkapi.BulkCreateRequest) ([]models.Slot, error)
	DeleteSlot(ctx context.Context, slotID string) error
	Register(ctx context.Context, req parkapi.RegisterRequest) (*models.UserRef, error)
	DeleteUser(ctx context.Context, userID string) error
}

// SessionGate supplies identity and the role check.
type SessionGate interface {
	Current() *models.UserRef
	RequireRole(role models.Role) bool
}

// Dashboard is the joined result of the batched admin load.
type Dashboard struct {
	Slots    []models.Slot
	Bookings []models.Booking
	Users    []models.UserRef
}

// Service performs admin operations and keeps the shared registry and ledger
// in step with them.
type Service struct {
	api      API
	registry *registry.Registry
	ledger   *ledger.Ledger
	gate     SessionGate
	logger   *zerolog.Logger
}

// New constructs the admin service.
func New(api API, reg *registry.Registry, led *ledger.Ledger, gate SessionGate, logger *zerolog.Logger) *Service {
	return &Service{api: api, registry: reg, ledger: led, gate: gate, logger: logger}
}

func (s *Service) requireAdmin() error {
	if !s.gate.RequireRole(models.RoleAdmin) {
		return ErrAdminRequired
	}
	return nil
}

// LoadDashboard issues the three admin list calls concurrently and joins
// them. All must succeed; the first failure cancels the rest and the caller
// sees one aggregate error. On success the registry and ledger are reloaded.
func (s *Service) LoadDashboard(ctx context.Context) (*Dashboard, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		dash     Dashboard
		mu       sync.Mutex
		firstErr error
		wg       sync.WaitGroup
	)
	fail := func(name string, err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			s.logger.Warn().Err(err).Str("call", name).Msg("dashboard load failed")
			cancel()
		}
		mu.Unlock()
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		slots, err := s.api.AdminSlots(ctx)
		if err != nil {
			fail("admin_slots", err)
			return
		}
		mu.Lock()
		dash.Slots = slots
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		bookings, err := s.api.AdminBookings(ctx)
		if err != nil {
			fail("admin_bookings", err)
			return
		}
		mu.Lock()
		dash.Bookings = bookings
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		users, err := s.api.AdminUsers(ctx)
		if err != nil {
			fail("admin_users", err)
			return
		}
		mu.Lock()
		dash.Users = users
		mu.Unlock()
	}()
	wg.Wait()

	if firstErr != nil {
		return nil, ErrDashboardLoad
	}

	s.registry.Load(dash.Slots)
	s.ledger.Load(dash.Bookings)
	dash.Slots = s.registry.All()
	dash.Bookings = s.ledger.All()
	return &dash, nil
}

// CreateSlot creates one slot and inserts it into the sorted registry.
func (s *Service) CreateSlot(ctx context.Context, slotNumber string) (*models.Slot, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, err
	}
	slot, err := s.api.CreateSlot(ctx, slotNumber)
	if err != nil {
		return nil, err
	}
	s.registry.Insert(*slot)
	s.logger.Info().Str("slot", slot.SlotNumber).Msg("slot created")
	return slot, nil
}

// BulkCreateSlots creates a run of slots, then refreshes the whole slot list
// from the server: the created batch alone does not reveal collisions the
// server resolved.
func (s *Service) BulkCreateSlots(ctx context.Context, req parkapi.BulkCreateRequest) (int, error) {
	if err := s.requireAdmin(); err != nil {
		return 0, err
	}
	created, err := s.api.BulkCreateSlots(ctx, req)
	if err != nil {
		return 0, err
	}

	slots, err := s.api.AdminSlots(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("slot refresh after bulk create failed")
		return len(created), nil
	}
	s.registry.Load(slots)
	s.logger.Info().Int("count", len(created)).Str("prefix", req.Prefix).Msg("slots bulk created")
	return len(created), nil
}

// DeleteSlot removes a slot. Occupied slots are refused locally before the
// call; the server enforces the same rule and remains authoritative.
func (s *Service) DeleteSlot(ctx context.Context, slotID string) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	if slot, ok := s.registry.Get(slotID); ok && slot.IsOccupied {
		return registry.ErrSlotOccupied
	}
	if err := s.api.DeleteSlot(ctx, slotID); err != nil {
		return err
	}
	if err := s.registry.Remove(slotID); err != nil && !errors.Is(err, registry.ErrNotFound) {
		return err
	}
	s.logger.Info().Str("slot_id", slotID).Msg("slot deleted")
	return nil
}

// RegisterAdmin creates another admin account.
func (s *Service) RegisterAdmin(ctx context.Context, username, email, password string) (*models.UserRef, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, err
	}
	return s.api.Register(ctx, parkapi.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
		Role:     models.RoleAdmin,
	})
}

// DeleteUser removes a user account. Deleting the session's own account is
// refused.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	if me := s.gate.Current(); me != nil && me.ID == userID {
		return ErrSelfDelete
	}
	if err := s.api.DeleteUser(ctx, userID); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", userID).Msg("user deleted")
	return nil
}

// FilterUsers returns the users matching the role filter; an empty filter
// returns everyone.
func FilterUsers(users []models.UserRef, role models.Role) []models.UserRef {
	if role == "" {
		return users
	}
	var out []models.UserRef
	for _, u := range users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out
}
