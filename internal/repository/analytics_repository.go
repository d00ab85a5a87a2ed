package repository

import (
	"context"
	"database/sql"
	"time"
)

// AnalyticsRepo runs the read-only aggregate queries behind the admin
// dashboard. Revenue figures only count completed orders; refunded
// orders are reported separately so the dashboard shows gross and
// refunded side by side.
type AnalyticsRepo struct{ db *sql.DB }

func NewAnalyticsRepo(db *sql.DB) *AnalyticsRepo { return &AnalyticsRepo{db: db} }

// DashboardStats is the top-of-page summary for admins.
type DashboardStats struct {
	TotalUsers          int64 `json:"total_users"`
	TotalEvents         int64 `json:"total_events"`
	TotalOrders         int64 `json:"total_orders"`
	CompletedOrders     int64 `json:"completed_orders"`
	RefundedOrders      int64 `json:"refunded_orders"`
	TicketsIssued       int64 `json:"tickets_issued"`
	TicketsCheckedIn    int64 `json:"tickets_checked_in"`
	GrossRevenueCents   int64 `json:"gross_revenue_cents"`
	RefundedAmountCents int64 `json:"refunded_amount_cents"`
}

// Dashboard collects platform-wide totals.
func (r *AnalyticsRepo) Dashboard(ctx context.Context) (*DashboardStats, error) {
	var s DashboardStats
	queries := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`, &s.TotalUsers},
		{`SELECT COUNT(*) FROM events WHERE deleted_at IS NULL`, &s.TotalEvents},
		{`SELECT COUNT(*) FROM orders WHERE deleted_at IS NULL`, &s.TotalOrders},
		{`SELECT COUNT(*) FROM orders WHERE deleted_at IS NULL AND status = 'completed'`, &s.CompletedOrders},
		{`SELECT COUNT(*) FROM orders WHERE deleted_at IS NULL AND status = 'refunded'`, &s.RefundedOrders},
		{`SELECT COUNT(*) FROM tickets WHERE deleted_at IS NULL`, &s.TicketsIssued},
		{`SELECT COUNT(*) FROM tickets WHERE deleted_at IS NULL AND state IN ('checked_in','checked_out')`, &s.TicketsCheckedIn},
		{`SELECT COALESCE(SUM(total_cents),0) FROM orders WHERE deleted_at IS NULL AND status IN ('completed','refunded')`, &s.GrossRevenueCents},
		{`SELECT COALESCE(SUM(total_cents),0) FROM orders WHERE deleted_at IS NULL AND status = 'refunded'`, &s.RefundedAmountCents},
	}
	for _, q := range queries {
		if err := r.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// DailySales is one day of completed-order volume.
type DailySales struct {
	Day          string `json:"day"`
	Orders       int64  `json:"orders"`
	RevenueCents int64  `json:"revenue_cents"`
}

// SalesByDay buckets completed orders per calendar day over [from, to].
func (r *AnalyticsRepo) SalesByDay(ctx context.Context, from, to time.Time) ([]DailySales, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DATE(created_at) AS day, COUNT(*), COALESCE(SUM(total_cents),0)
		 FROM orders
		 WHERE deleted_at IS NULL AND status IN ('completed','refunded')
		   AND created_at >= ? AND created_at <= ?
		 GROUP BY DATE(created_at)
		 ORDER BY day ASC`,
		from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]DailySales, 0)
	for rows.Next() {
		var d DailySales
		if err := rows.Scan(&d.Day, &d.Orders, &d.RevenueCents); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// EventStats is the sales breakdown for a single event.
type EventStats struct {
	EventID          uint64 `json:"event_id"`
	EventName        string `json:"event_name"`
	TicketsSold      int64  `json:"tickets_sold"`
	TicketsAvailable int64  `json:"tickets_available"`
	TicketsCheckedIn int64  `json:"tickets_checked_in"`
	RevenueCents     int64  `json:"revenue_cents"`
}

// EventStatsByID returns the breakdown for a single live event, or
// ErrEventNotFound when the event does not exist.
func (r *AnalyticsRepo) EventStatsByID(ctx context.Context, eventID uint64) (*EventStats, error) {
	var s EventStats
	err := r.db.QueryRowContext(ctx,
		`SELECT e.id, e.name,
		        COALESCE(SUM(tt.sold_quantity),0),
		        COALESCE(SUM(tt.available_quantity),0),
		        (SELECT COUNT(*) FROM tickets t JOIN orders o ON o.id = t.order_id
		          WHERE o.event_id = e.id AND t.deleted_at IS NULL
		            AND t.state IN ('checked_in','checked_out')),
		        (SELECT COALESCE(SUM(o.total_cents),0) FROM orders o
		          WHERE o.event_id = e.id AND o.deleted_at IS NULL AND o.status = 'completed')
		 FROM events e
		 LEFT JOIN ticket_types tt ON tt.event_id = e.id AND tt.deleted_at IS NULL
		 WHERE e.deleted_at IS NULL AND e.id = ?
		 GROUP BY e.id, e.name`, eventID).
		Scan(&s.EventID, &s.EventName, &s.TicketsSold, &s.TicketsAvailable,
			&s.TicketsCheckedIn, &s.RevenueCents)
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// EventBreakdown aggregates per-event sales, capacity and attendance.
// When organizerID is non-zero the breakdown only covers that
// organizer's events.
func (r *AnalyticsRepo) EventBreakdown(ctx context.Context, organizerID uint64) ([]EventStats, error) {
	cond := "e.deleted_at IS NULL"
	args := []interface{}{}
	if organizerID != 0 {
		cond += " AND e.organizer_id = ?"
		args = append(args, organizerID)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT e.id, e.name,
		        COALESCE(SUM(tt.sold_quantity),0),
		        COALESCE(SUM(tt.available_quantity),0),
		        (SELECT COUNT(*) FROM tickets t JOIN orders o ON o.id = t.order_id
		          WHERE o.event_id = e.id AND t.deleted_at IS NULL
		            AND t.state IN ('checked_in','checked_out')),
		        (SELECT COALESCE(SUM(o.total_cents),0) FROM orders o
		          WHERE o.event_id = e.id AND o.deleted_at IS NULL AND o.status = 'completed')
		 FROM events e
		 LEFT JOIN ticket_types tt ON tt.event_id = e.id AND tt.deleted_at IS NULL
		 WHERE `+cond+`
		 GROUP BY e.id, e.name
		 ORDER BY e.id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]EventStats, 0)
	for rows.Next() {
		var s EventStats
		if err := rows.Scan(&s.EventID, &s.EventName, &s.TicketsSold, &s.TicketsAvailable,
			&s.TicketsCheckedIn, &s.RevenueCents); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
