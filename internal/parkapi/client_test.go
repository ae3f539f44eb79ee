package parkapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkgrid/internal/models"
)

func TestClient_GetSlotStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/slots/status", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		json.NewEncoder(w).Encode([]models.Slot{
			{ID: "1", SlotNumber: "A1"},
			{ID: "2", SlotNumber: "A2", IsOccupied: true, OccupiedBy: &models.UserRef{ID: "u1"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	slots, err := c.GetSlotStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.True(t, slots[1].IsOccupied)
}

func TestClient_CreateBookingSendsPayloadAndToken(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var got map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bookings", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(models.Booking{ID: "b1", Status: models.StatusBooked, QRCode: "qr-ref"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, func() string { return "tok" })
	booking, err := c.CreateBooking(context.Background(), CreateBookingRequest{
		ParkingSlotID: "1",
		StartTime:     start,
		EndTime:       start.Add(2 * time.Hour),
	}, "attempt-1")
	require.NoError(t, err)

	assert.Equal(t, "1", got["parkingSlotId"])
	assert.Equal(t, "2024-01-01T00:00:00Z", got["startTime"])
	assert.Equal(t, "2024-01-01T02:00:00Z", got["endTime"])
	assert.Equal(t, "b1", booking.ID)
	assert.Equal(t, "qr-ref", booking.QRCode)
}

func TestClient_RejectionSurfacesServerMessageVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"message": "Slot is already booked."})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.CreateBooking(context.Background(), CreateBookingRequest{ParkingSlotID: "1"}, "")
	require.Error(t, err)

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusConflict, rejected.StatusCode)
	assert.Equal(t, "Slot is already booked.", rejected.Message)
	assert.Equal(t, "Slot is already booked.", rejected.Error())
}

func TestClient_RejectionWithoutBodyStillTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.MyBookings(context.Background())

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusForbidden, rejected.StatusCode)
}

func TestClient_TransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewClient(srv.URL, nil)
	_, err := c.GetSlotStatus(context.Background())
	require.Error(t, err)

	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
	var rejected *RejectedError
	assert.False(t, errors.As(err, &rejected))
}

func TestClient_CancelBooking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bookings/b1/cancel", r.URL.Path)
		assert.Equal(t, http.MethodPut, r.Method)
		json.NewEncoder(w).Encode(models.Booking{ID: "b1", Status: models.StatusCancelled})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, func() string { return "tok" })
	booking, err := c.CancelBooking(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, booking.Status)
}

func TestClient_BulkCreateSlots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/slots/bulk-create", r.URL.Path)
		var req BulkCreateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, BulkCreateRequest{Prefix: "B", StartNumber: 1, Count: 2}, req)
		json.NewEncoder(w).Encode(map[string][]models.Slot{
			"created": {{ID: "1", SlotNumber: "B1"}, {ID: "2", SlotNumber: "B2"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, func() string { return "tok" })
	created, err := c.BulkCreateSlots(context.Background(), BulkCreateRequest{Prefix: "B", StartNumber: 1, Count: 2})
	require.NoError(t, err)
	assert.Len(t, created, 2)
}

func TestClient_ContextCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := NewClient(srv.URL, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.MyBookings(ctx)
	require.Error(t, err)
	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
