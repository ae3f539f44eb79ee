// Package parkapi is the HTTP client for the parking backend REST API.
package parkapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"parkgrid/internal/metrics"
	"parkgrid/internal/models"
)

const slotsCacheKey = "parkgrid:slots:status"

// TokenSource supplies the bearer token for authenticated calls. It returns
// "" when nobody is logged in.
type TokenSource func() string

// Client calls the parking backend. Construct with NewClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
	limiter    *rate.Limiter

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewClient constructs a client for the given base URL. tokenSource may be
// nil for unauthenticated use.
func NewClient(baseURL string, tokenSource TokenSource) *Client {
	if tokenSource == nil {
		tokenSource = func() string { return "" }
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		token:      tokenSource,
	}
}

// UseRedisCache configures optional Redis caching for GET endpoints.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// UseRateLimit throttles outgoing requests to rps with the given burst.
func (c *Client) UseRateLimit(rps, burst int) {
	if rps > 0 {
		if burst <= 0 {
			burst = rps
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// GetSlotStatus fetches the full slot collection with occupancy state.
func (c *Client) GetSlotStatus(ctx context.Context) ([]models.Slot, error) {
	var slots []models.Slot
	if c.readCache(ctx, slotsCacheKey, &slots) {
		return slots, nil
	}
	if err := c.doGet(ctx, "/slots/status", "slots_status", &slots); err != nil {
		return nil, err
	}
	c.writeCache(ctx, slotsCacheKey, slots)
	return slots, nil
}

// Login exchanges credentials for a session record including the token.
func (c *Client) Login(ctx context.Context, username, password string) (*models.UserRef, error) {
	body := map[string]string{"username": username, "password": password}
	var user models.UserRef
	if err := c.doPost(ctx, "/auth/login", "auth_login", body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// RegisterRequest is the payload for account creation.
type RegisterRequest struct {
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

// Register creates an account. Admins use it to create further admins.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*models.UserRef, error) {
	var user models.UserRef
	if err := c.doPost(ctx, "/auth/register", "auth_register", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateBookingRequest is the payload for POST /bookings. Times travel as
// RFC 3339 strings.
type CreateBookingRequest struct {
	ParkingSlotID string    `json:"parkingSlotId"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
}

// CreateBooking submits a booking. idempotencyKey deduplicates retries of
// the same attempt on the server side; it may be empty.
func (c *Client) CreateBooking(ctx context.Context, req CreateBookingRequest, idempotencyKey string) (*models.Booking, error) {
	var booking models.Booking
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}
	if err := c.doJSON(ctx, http.MethodPost, "/bookings", "booking_create", req, headers, &booking); err != nil {
		return nil, err
	}
	c.invalidateSlots(ctx)
	return &booking, nil
}

// MyBookings fetches the authenticated user's bookings.
func (c *Client) MyBookings(ctx context.Context) ([]models.Booking, error) {
	var bookings []models.Booking
	if err := c.doGet(ctx, "/bookings/my-bookings", "my_bookings", &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

// CancelBooking cancels a booking by id and returns the updated record.
func (c *Client) CancelBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	path := "/bookings/" + url.PathEscape(bookingID) + "/cancel"
	var booking models.Booking
	if err := c.doJSON(ctx, http.MethodPut, path, "booking_cancel", nil, nil, &booking); err != nil {
		return nil, err
	}
	c.invalidateSlots(ctx)
	return &booking, nil
}

// AdminSlots fetches all slots for the admin dashboard.
func (c *Client) AdminSlots(ctx context.Context) ([]models.Slot, error) {
	var slots []models.Slot
	if err := c.doGet(ctx, "/admin/slots", "admin_slots", &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// CreateSlot creates a single slot with the given number.
func (c *Client) CreateSlot(ctx context.Context, slotNumber string) (*models.Slot, error) {
	body := map[string]string{"slotNumber": slotNumber}
	var slot models.Slot
	if err := c.doPost(ctx, "/admin/slots", "admin_slot_create", body, &slot); err != nil {
		return nil, err
	}
	c.invalidateSlots(ctx)
	return &slot, nil
}

// BulkCreateRequest is the payload for bulk slot creation: Prefix "B",
// StartNumber 1, Count 10 creates B1..B10.
type BulkCreateRequest struct {
	Prefix      string `json:"prefix"`
	StartNumber int    `json:"startNumber"`
	Count       int    `json:"count"`
}

// BulkCreateSlots creates a run of consecutively numbered slots.
func (c *Client) BulkCreateSlots(ctx context.Context, req BulkCreateRequest) ([]models.Slot, error) {
	var resp struct {
		Created []models.Slot `json:"created"`
	}
	if err := c.doPost(ctx, "/admin/slots/bulk-create", "admin_slot_bulk", req, &resp); err != nil {
		return nil, err
	}
	c.invalidateSlots(ctx)
	return resp.Created, nil
}

// DeleteSlot removes a slot. The server rejects deleting an occupied slot.
func (c *Client) DeleteSlot(ctx context.Context, slotID string) error {
	path := "/admin/slots/" + url.PathEscape(slotID)
	if err := c.doJSON(ctx, http.MethodDelete, path, "admin_slot_delete", nil, nil, nil); err != nil {
		return err
	}
	c.invalidateSlots(ctx)
	return nil
}

// AdminBookings fetches every booking in the system.
func (c *Client) AdminBookings(ctx context.Context) ([]models.Booking, error) {
	var bookings []models.Booking
	if err := c.doGet(ctx, "/admin/bookings", "admin_bookings", &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

// AdminUsers fetches all registered users.
func (c *Client) AdminUsers(ctx context.Context) ([]models.UserRef, error) {
	var users []models.UserRef
	if err := c.doGet(ctx, "/admin/users", "admin_users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// DeleteUser removes a user account.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	path := "/admin/users/" + url.PathEscape(userID)
	return c.doJSON(ctx, http.MethodDelete, path, "admin_user_delete", nil, nil, nil)
}

// HealthCheck checks whether the backend is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Endpoint: "healthz", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) doGet(ctx context.Context, path, endpoint string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, endpoint, nil, nil, out)
}

func (c *Client) doPost(ctx context.Context, path, endpoint string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, endpoint, body, nil, out)
}

func (c *Client) doJSON(ctx context.Context, method, path, endpoint string, body any, headers map[string]string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveAPIRequest(endpoint, "network_error", time.Since(started))
		return &NetworkError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()
	metrics.ObserveAPIRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(started))

	if resp.StatusCode >= 300 {
		return newRejectedError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

// invalidateSlots drops the cached slot snapshot after any mutation so the
// next read reconciles against the server.
func (c *Client) invalidateSlots(ctx context.Context) {
	if c.redis != nil {
		_ = c.redis.Del(ctx, slotsCacheKey).Err()
	}
}
