package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parkgrid",
			Name:      "booking_created_total",
			Help:      "Count of booking attempts by outcome.",
		},
		[]string{"outcome"},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "parkgrid",
			Name:      "booking_cancelled_total",
			Help:      "Count of bookings cancelled by the user.",
		},
	)

	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "parkgrid",
			Name:      "api_request_duration_seconds",
			Help:      "Duration of backend API requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint", "status"},
	)

	slotsAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "parkgrid",
			Name:      "slots_available",
			Help:      "Number of currently available parking slots.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingCreated, bookingCancelled, apiRequestDuration, slotsAvailable)
	})
}

func IncBookingCreated(outcome string) {
	bookingCreated.WithLabelValues(outcome).Inc()
}

func IncBookingCancelled() {
	bookingCancelled.Inc()
}

func ObserveAPIRequest(endpoint, status string, d time.Duration) {
	apiRequestDuration.WithLabelValues(endpoint, status).Observe(d.Seconds())
}

func SetSlotsAvailable(n int) {
	slotsAvailable.Set(float64(n))
}
