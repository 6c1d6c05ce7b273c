package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTripName(t *testing.T) {
	dep := time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC)
	trip := &Trip{DepartureTime: dep, Route: &Route{Name: "Kyiv - Lviv"}}

	assert.Equal(t, "Kyiv - Lviv 2025-03-01 08:30", TripName(trip))
}

func TestNewStationView_ImageURL(t *testing.T) {
	s := &Station{ID: 1, Name: "Kyiv"}
	assert.Nil(t, NewStationView(s, "/media/").Image)

	s.Image = "uploads/stations/kyiv-1.png"
	v := NewStationView(s, "/media/")
	if assert.NotNil(t, v.Image) {
		assert.Equal(t, "/media/uploads/stations/kyiv-1.png", *v.Image)
	}
}

func TestNewOrderListView_NestsTripSummary(t *testing.T) {
	trip := &Trip{
		ID:    7,
		Route: &Route{Name: "A - B"},
		Train: &Train{Name: "Intercity"},
	}
	order := &Order{
		ID:      3,
		Tickets: []*Ticket{{ID: 11, TripID: 7, Seat: 4, LuggageWeight: 5, Trip: trip}},
	}

	v := NewOrderListView(order)
	assert.Len(t, v.Tickets, 1)
	assert.Equal(t, "A - B", v.Tickets[0].Trip.Route)
	assert.Equal(t, "Intercity", v.Tickets[0].Trip.Train)
	assert.Equal(t, 4, v.Tickets[0].Seat)
}

func TestTrainPatch_Apply(t *testing.T) {
	train := &Train{Name: "Old", SeatCapacity: 10, LuggageCapacity: 5, TrainTypeID: 1}
	name := "New"
	seats := 40
	TrainPatch{Name: &name, SeatCapacity: &seats}.Apply(train)

	assert.Equal(t, "New", train.Name)
	assert.Equal(t, 40, train.SeatCapacity)
	assert.Equal(t, 5, train.LuggageCapacity)
	assert.Equal(t, int64(1), train.TrainTypeID)
}
