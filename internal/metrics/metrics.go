package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "candypic"

var (
	once sync.Once

	webhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_requests_total",
			Help:      "Inbound webhook requests by kind.",
		},
		[]string{"kind"},
	)

	pushDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_deliveries_total",
			Help:      "Push delivery attempts by result.",
		},
		[]string{"result"},
	)

	pendingNotifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pending_notifications_total",
			Help:      "Pending notifications queued for unknown devices and flushed on registration.",
		},
		[]string{"event"},
	)

	bookingDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_decisions_total",
			Help:      "Operator decisions on pending bookings.",
		},
		[]string{"status"},
	)

	wizardBookings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wizard_bookings_created_total",
			Help:      "Bookings created through the chat wizard.",
		},
	)

	updateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "update_processing_seconds",
			Help:      "Time spent handling one inbound update.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	handlerPanics = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_panics_total",
			Help:      "Panics recovered in update handlers.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			webhookRequests,
			pushDeliveries,
			pendingNotifications,
			bookingDecisions,
			wizardBookings,
			updateDuration,
			handlerPanics,
		)
	})
}

func IncWebhook(kind string) {
	webhookRequests.WithLabelValues(kind).Inc()
}

// IncPush counts one delivery; ok=false means the push gateway rejected or the call failed.
func IncPush(ok bool) {
	result := "sent"
	if !ok {
		result = "failed"
	}
	pushDeliveries.WithLabelValues(result).Inc()
}

func IncPendingQueued() {
	pendingNotifications.WithLabelValues("queued").Inc()
}

func IncPendingFlushed() {
	pendingNotifications.WithLabelValues("flushed").Inc()
}

func IncDecision(status string) {
	bookingDecisions.WithLabelValues(status).Inc()
}

func IncWizardBooking() {
	wizardBookings.Inc()
}

func ObserveUpdate(kind string, d time.Duration) {
	updateDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func IncPanic() {
	handlerPanics.Inc()
}
