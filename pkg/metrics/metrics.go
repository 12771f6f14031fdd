// Package metrics registers the Prometheus collectors the services report
// into and exposes the scrape handler mounted at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SettlementsTotal counts participation toggles by outcome
	// (applied, insufficient_funds, conflict, error).
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "communa",
		Subsystem: "settlement",
		Name:      "toggles_total",
		Help:      "Participation toggle settlements by result.",
	}, []string{"result"})

	// SettlementDuration observes the wall time of the settlement
	// transaction, lock wait included.
	SettlementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "communa",
		Subsystem: "settlement",
		Name:      "duration_seconds",
		Help:      "Settlement transaction duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	})

	// CheckoutsTotal counts checkout attempts by outcome.
	CheckoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "communa",
		Subsystem: "purchase",
		Name:      "checkouts_total",
		Help:      "Checkout attempts by result.",
	}, []string{"result"})

	// OutboxPublishedTotal counts outbox rows by publish outcome.
	OutboxPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "communa",
		Subsystem: "outbox",
		Name:      "published_total",
		Help:      "Outbox events by publish result.",
	}, []string{"result"})

	// NotificationsCreatedTotal counts notification rows written by the
	// notifier worker, labeled by notification type.
	NotificationsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "communa",
		Subsystem: "notifier",
		Name:      "notifications_created_total",
		Help:      "Notifications created from domain events.",
	}, []string{"type"})
)

const (
	ResultApplied           = "applied"
	ResultInsufficientFunds = "insufficient_funds"
	ResultConflict          = "conflict"
	ResultError             = "error"
	ResultPublished         = "published"
	ResultFailed            = "failed"
)

// Handler returns the HTTP handler for the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
