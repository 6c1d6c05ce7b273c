package analytics

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// DB handles analytics database operations
type DB struct {
	bun *bun.DB
}

// NewDB creates a new analytics DB handler
func NewDB(db *bun.DB) *DB {
	return &DB{bun: db}
}

// DailyTicketData is one day of raw ticket sales.
type DailyTicketData struct {
	SalesDate   string `bun:"sales_date"`
	Orders      int    `bun:"orders"`
	TicketsSold int    `bun:"tickets_sold"`
	Luggage     int    `bun:"luggage"`
}

// GetDailyTickets counts tickets per order day in [from, to).
func (db *DB) GetDailyTickets(ctx context.Context, from, to time.Time) ([]DailyTicketData, error) {
	var rows []DailyTicketData
	err := db.bun.NewRaw(`
		SELECT
			CAST(DATE(o.created_at) AS TEXT) AS sales_date,
			COUNT(DISTINCT o.id) AS orders,
			COUNT(t.id) AS tickets_sold,
			COALESCE(SUM(t.luggage_weight), 0) AS luggage
		FROM
			orders o
		JOIN
			tickets t ON t.order_id = o.id
		WHERE
			o.created_at >= ? AND o.created_at < ?
		GROUP BY
			DATE(o.created_at)
		ORDER BY
			sales_date`, from, to).
		Scan(ctx, &rows)

	return rows, err
}

// RouteData is the raw sales total of one route.
type RouteData struct {
	RouteID      int64  `bun:"route_id"`
	Route        string `bun:"route"`
	Trips        int    `bun:"trips"`
	SeatsOffered int    `bun:"seats_offered"`
	TicketsSold  int    `bun:"tickets_sold"`
}

// GetRouteTotals sums trips, offered seats and sold tickets per route.
func (db *DB) GetRouteTotals(ctx context.Context) ([]RouteData, error) {
	var rows []RouteData
	err := db.bun.NewRaw(`
		SELECT
			r.id AS route_id,
			r.name AS route,
			(SELECT COUNT(*) FROM trips tp WHERE tp.route_id = r.id) AS trips,
			(SELECT COALESCE(SUM(tn.seat_capacity), 0)
				FROM trips tp JOIN trains tn ON tn.id = tp.train_id
				WHERE tp.route_id = r.id) AS seats_offered,
			(SELECT COUNT(*)
				FROM tickets tk JOIN trips tp ON tp.id = tk.trip_id
				WHERE tp.route_id = r.id) AS tickets_sold
		FROM
			routes r
		ORDER BY
			tickets_sold DESC, r.name`).
		Scan(ctx, &rows)

	return rows, err
}
