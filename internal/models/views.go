package models

import (
	"time"
)

// Response shapes differ per operation: list views carry names for display,
// detail views expand related records.

type TrainTypeView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func NewTrainTypeView(t *TrainType) TrainTypeView {
	return TrainTypeView{ID: t.ID, Name: t.Name}
}

type TrainView struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	SeatCapacity    int    `json:"seat_capacity"`
	LuggageCapacity int    `json:"luggage_capacity"`
	TrainType       string `json:"train_type"`
}

func NewTrainView(t *Train) TrainView {
	v := TrainView{
		ID:              t.ID,
		Name:            t.Name,
		SeatCapacity:    t.SeatCapacity,
		LuggageCapacity: t.LuggageCapacity,
	}
	if t.TrainType != nil {
		v.TrainType = t.TrainType.Name
	}
	return v
}

type TrainDetailView struct {
	TrainView
	Trips []string `json:"trips"`
}

type StationView struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Image     *string `json:"image"`
}

// NewStationView resolves the stored image path against mediaURL.
func NewStationView(s *Station, mediaURL string) StationView {
	v := StationView{ID: s.ID, Name: s.Name, Latitude: s.Latitude, Longitude: s.Longitude}
	if s.Image != "" {
		url := mediaURL + s.Image
		v.Image = &url
	}
	return v
}

type RouteView struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Distance    int    `json:"distance"`
}

func NewRouteView(r *Route) RouteView {
	v := RouteView{ID: r.ID, Name: r.Name, Distance: r.Distance}
	if r.Source != nil {
		v.Source = r.Source.Name
	}
	if r.Destination != nil {
		v.Destination = r.Destination.Name
	}
	return v
}

type CrewView struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FullName  string `json:"full_name"`
}

func NewCrewView(c *Crew) CrewView {
	return CrewView{ID: c.ID, FirstName: c.FirstName, LastName: c.LastName, FullName: c.FullName()}
}

// TripName is the display label of a trip: "<route> <departure>".
func TripName(t *Trip) string {
	route := ""
	if t.Route != nil {
		route = t.Route.Name
	}
	return route + " " + t.DepartureTime.UTC().Format("2006-01-02 15:04")
}

type TripListView struct {
	ID             int64     `json:"id"`
	Route          string    `json:"route"`
	DepartureTime  time.Time `json:"departure_time"`
	ArrivalTime    time.Time `json:"arrival_time"`
	TrainName      string    `json:"train_name"`
	TrainSeats     int       `json:"train_seats"`
	AvailableSeats int       `json:"available_seats"`
}

func NewTripListView(t *Trip) TripListView {
	v := TripListView{
		ID:             t.ID,
		DepartureTime:  t.DepartureTime,
		ArrivalTime:    t.ArrivalTime,
		AvailableSeats: t.AvailableSeats,
	}
	if t.Route != nil {
		v.Route = t.Route.Name
	}
	if t.Train != nil {
		v.TrainName = t.Train.Name
		v.TrainSeats = t.Train.SeatCapacity
	}
	return v
}

type TripDetailView struct {
	ID             int64     `json:"id"`
	Route          RouteView `json:"route"`
	Train          TrainView `json:"train"`
	DepartureTime  time.Time `json:"departure_time"`
	ArrivalTime    time.Time `json:"arrival_time"`
	Crew           []string  `json:"crew"`
	TakenSeats     []int     `json:"taken_seats"`
	AvailableSeats int       `json:"available_seats"`
}

type TicketView struct {
	ID            int64 `json:"id"`
	Trip          int64 `json:"trip"`
	Seat          int   `json:"seat"`
	LuggageWeight int   `json:"luggage_weight"`
}

func NewTicketView(t *Ticket) TicketView {
	return TicketView{ID: t.ID, Trip: t.TripID, Seat: t.Seat, LuggageWeight: t.LuggageWeight}
}

type TripSummaryView struct {
	ID            int64     `json:"id"`
	Route         string    `json:"route"`
	Train         string    `json:"train"`
	DepartureTime time.Time `json:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time"`
}

type TicketListView struct {
	ID            int64           `json:"id"`
	Trip          TripSummaryView `json:"trip"`
	Seat          int             `json:"seat"`
	LuggageWeight int             `json:"luggage_weight"`
}

func NewTicketListView(t *Ticket) TicketListView {
	v := TicketListView{ID: t.ID, Seat: t.Seat, LuggageWeight: t.LuggageWeight}
	if t.Trip != nil {
		v.Trip = TripSummaryView{
			ID:            t.Trip.ID,
			DepartureTime: t.Trip.DepartureTime,
			ArrivalTime:   t.Trip.ArrivalTime,
		}
		if t.Trip.Route != nil {
			v.Trip.Route = t.Trip.Route.Name
		}
		if t.Trip.Train != nil {
			v.Trip.Train = t.Trip.Train.Name
		}
	} else {
		v.Trip.ID = t.TripID
	}
	return v
}

type OrderView struct {
	ID        int64        `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	User      int64        `json:"user"`
	Tickets   []TicketView `json:"tickets"`
}

func NewOrderView(o *Order) OrderView {
	v := OrderView{ID: o.ID, CreatedAt: o.CreatedAt, User: o.UserID, Tickets: make([]TicketView, 0, len(o.Tickets))}
	for _, t := range o.Tickets {
		v.Tickets = append(v.Tickets, NewTicketView(t))
	}
	return v
}

type OrderListView struct {
	ID        int64            `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Tickets   []TicketListView `json:"tickets"`
}

func NewOrderListView(o *Order) OrderListView {
	v := OrderListView{ID: o.ID, CreatedAt: o.CreatedAt, Tickets: make([]TicketListView, 0, len(o.Tickets))}
	for _, t := range o.Tickets {
		v.Tickets = append(v.Tickets, NewTicketListView(t))
	}
	return v
}
