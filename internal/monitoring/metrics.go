package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total orders created at checkout",
		},
	)

	ordersByOutcome = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_finalized_total",
			Help: "Total orders reaching a terminal status",
		},
		[]string{"status"},
	)

	insufficientInventory = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_insufficient_inventory_total",
			Help: "Checkouts rejected because a ticket type was sold out",
		},
	)

	webhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Payment webhook deliveries by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	ticketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Total tickets issued",
		},
	)

	gateScans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_scans_total",
			Help: "Gate scans by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	issuanceRepairs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticket_issuance_repairs_total",
			Help: "Completed orders healed by the issuance repair pass",
		},
	)
)

// TrackOrderCreated counts a successful checkout.
func TrackOrderCreated() { ordersCreated.Inc() }

// TrackOrderFinalized counts an order reaching a terminal status.
func TrackOrderFinalized(status string) { ordersByOutcome.WithLabelValues(status).Inc() }

// TrackInsufficientInventory counts a sold-out rejection.
func TrackInsufficientInventory() { insufficientInventory.Inc() }

// TrackWebhook counts one webhook delivery. Outcome is one of
// processed, duplicate, unknown, invalid.
func TrackWebhook(eventType, outcome string) {
	webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// TrackTicketsIssued counts freshly issued tickets.
func TrackTicketsIssued(n int) { ticketsIssued.Add(float64(n)) }

// TrackGateScan counts a check-in or check-out attempt.
func TrackGateScan(action, outcome string) {
	gateScans.WithLabelValues(action, outcome).Inc()
}

// TrackIssuanceRepair counts an order healed by the repair pass.
func TrackIssuanceRepair() { issuanceRepairs.Inc() }
