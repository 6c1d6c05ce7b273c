package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Trip struct {
	bun.BaseModel `bun:"table:trips,alias:trip"`

	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	RouteID       int64     `bun:"route_id,notnull" json:"route_id"`
	TrainID       int64     `bun:"train_id,notnull" json:"train_id"`
	DepartureTime time.Time `bun:"departure_time,notnull" json:"departure_time"`
	ArrivalTime   time.Time `bun:"arrival_time,notnull" json:"arrival_time"`

	Route *Route `bun:"rel:belongs-to,join:route_id=id" json:"-"`
	Train *Train `bun:"rel:belongs-to,join:train_id=id" json:"-"`

	// AvailableSeats is filled by the availability query, never stored.
	AvailableSeats int `bun:"available_seats,scanonly" json:"-"`
}

type TripRequest struct {
	Route         int64     `json:"route" validate:"required,gt=0"`
	Train         int64     `json:"train" validate:"required,gt=0"`
	DepartureTime time.Time `json:"departure_time" validate:"required"`
	ArrivalTime   time.Time `json:"arrival_time" validate:"required"`
	Crew          []int64   `json:"crew"`
}

// TripPatch carries a trip update. A full update must set every field but
// crew; an omitted crew clears the assignment.
type TripPatch struct {
	Route         *int64     `json:"route" validate:"required,gt=0"`
	Train         *int64     `json:"train" validate:"required,gt=0"`
	DepartureTime *time.Time `json:"departure_time" validate:"required"`
	ArrivalTime   *time.Time `json:"arrival_time" validate:"required"`
	Crew          *[]int64   `json:"crew"`
}

func (p TripPatch) Apply(t *Trip) {
	if p.Route != nil {
		t.RouteID = *p.Route
	}
	if p.Train != nil {
		t.TrainID = *p.Train
	}
	if p.DepartureTime != nil {
		t.DepartureTime = p.DepartureTime.UTC()
	}
	if p.ArrivalTime != nil {
		t.ArrivalTime = p.ArrivalTime.UTC()
	}
}

// TripFilter narrows the trip list. Dates match on the calendar day (UTC).
type TripFilter struct {
	Departure *time.Time
	Arrival   *time.Time
	Route     string
}
