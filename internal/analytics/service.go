// Package analytics builds the sales reports shown to administrators.
package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"train-station/internal/apperr"
	"train-station/internal/auth"
	"train-station/internal/logger"
)

// DefaultReportDays is the window of the daily report when no range is given.
const DefaultReportDays = 30

type Store interface {
	GetDailyTickets(ctx context.Context, from, to time.Time) ([]DailyTicketData, error)
	GetRouteTotals(ctx context.Context) ([]RouteData, error)
}

// Service handles analytics operations
type Service struct {
	db     Store
	Logger *logger.Logger
	now    func() time.Time
}

// NewService creates a new analytics service
func NewService(db Store, log *logger.Logger) *Service {
	return &Service{db: db, Logger: log, now: time.Now}
}

// DailyTicketMetrics contains metrics for a single day
type DailyTicketMetrics struct {
	Date        string `json:"date"`
	Orders      int    `json:"orders"`
	TicketsSold int    `json:"tickets_sold"`
	LuggageKg   int    `json:"luggage_kg"`
}

// DailyTicketsReport is the ticket sales per day for a date range.
type DailyTicketsReport struct {
	From         string               `json:"from"`
	To           string               `json:"to"`
	TotalOrders  int                  `json:"total_orders"`
	TotalTickets int                  `json:"total_tickets"`
	Days         []DailyTicketMetrics `json:"days"`
}

// RouteMetrics contains sales metrics for a single route
type RouteMetrics struct {
	RouteID      int64   `json:"route_id"`
	Route        string  `json:"route"`
	Trips        int     `json:"trips"`
	SeatsOffered int     `json:"seats_offered"`
	TicketsSold  int     `json:"tickets_sold"`
	LoadFactor   float64 `json:"load_factor"`
}

// DateRange bounds a report by day, both ends inclusive. Zero values pick
// the last DefaultReportDays days.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (s *Service) resolve(r DateRange) (time.Time, time.Time, error) {
	to := r.To
	if to.IsZero() {
		to = s.now().UTC()
	}
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	from := r.From
	if from.IsZero() {
		from = to.AddDate(0, 0, -(DefaultReportDays - 1))
	}
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	if from.After(to) {
		return from, to, apperr.Field("from", apperr.ErrInvalid, "from must not be after to")
	}
	return from, to, nil
}

// GetDailyTickets reports tickets sold per day.
func (s *Service) GetDailyTickets(ctx context.Context, p auth.Principal, r DateRange) (*DailyTicketsReport, error) {
	if err := auth.Authorize(p, auth.ResourceReport, auth.ActionRead); err != nil {
		return nil, err
	}
	from, to, err := s.resolve(r)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.GetDailyTickets(ctx, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("daily tickets: %w", err)
	}

	report := &DailyTicketsReport{
		From: from.Format("2006-01-02"),
		To:   to.Format("2006-01-02"),
		Days: make([]DailyTicketMetrics, 0, len(rows)),
	}
	for _, row := range rows {
		report.TotalOrders += row.Orders
		report.TotalTickets += row.TicketsSold
		report.Days = append(report.Days, DailyTicketMetrics{
			Date:        row.SalesDate,
			Orders:      row.Orders,
			TicketsSold: row.TicketsSold,
			LuggageKg:   row.Luggage,
		})
	}
	s.Logger.Debug("ANALYTICS", fmt.Sprintf("Daily report %s..%s: %d tickets", report.From, report.To, report.TotalTickets))
	return report, nil
}

// GetRouteReport reports sales and load factor per route.
func (s *Service) GetRouteReport(ctx context.Context, p auth.Principal) ([]RouteMetrics, error) {
	if err := auth.Authorize(p, auth.ResourceReport, auth.ActionRead); err != nil {
		return nil, err
	}
	rows, err := s.db.GetRouteTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("route totals: %w", err)
	}

	out := make([]RouteMetrics, 0, len(rows))
	for _, row := range rows {
		m := RouteMetrics{
			RouteID:      row.RouteID,
			Route:        row.Route,
			Trips:        row.Trips,
			SeatsOffered: row.SeatsOffered,
			TicketsSold:  row.TicketsSold,
		}
		if row.SeatsOffered > 0 {
			m.LoadFactor = math.Round(float64(row.TicketsSold)/float64(row.SeatsOffered)*10000) / 10000
		}
		out = append(out, m)
	}
	return out, nil
}
