package models

import (
	"github.com/uptrace/bun"
)

type TrainType struct {
	bun.BaseModel `bun:"table:train_types,alias:train_type"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id"`
	Name string `bun:"name,notnull" json:"name"`
}

type Train struct {
	bun.BaseModel `bun:"table:trains,alias:train"`

	ID              int64  `bun:"id,pk,autoincrement" json:"id"`
	Name            string `bun:"name,notnull" json:"name"`
	SeatCapacity    int    `bun:"seat_capacity,notnull" json:"seat_capacity"`
	LuggageCapacity int    `bun:"luggage_capacity,notnull" json:"luggage_capacity"`
	TrainTypeID     int64  `bun:"train_type_id,notnull" json:"train_type_id"`

	TrainType *TrainType `bun:"rel:belongs-to,join:train_type_id=id" json:"-"`
}

type TrainTypeRequest struct {
	Name string `json:"name" validate:"notblank"`
}

type TrainRequest struct {
	Name            string `json:"name" validate:"notblank"`
	SeatCapacity    int    `json:"seat_capacity" validate:"gte=0"`
	LuggageCapacity int    `json:"luggage_capacity" validate:"gte=0"`
	TrainType       int64  `json:"train_type" validate:"required,gt=0"`
}

// TrainPatch carries a train update. A full update must set every field; a
// partial one leaves nil fields unchanged.
type TrainPatch struct {
	Name            *string `json:"name" validate:"required,notblank"`
	SeatCapacity    *int    `json:"seat_capacity" validate:"required,gte=0"`
	LuggageCapacity *int    `json:"luggage_capacity" validate:"required,gte=0"`
	TrainType       *int64  `json:"train_type" validate:"required,gt=0"`
}

func (p TrainPatch) Apply(t *Train) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.SeatCapacity != nil {
		t.SeatCapacity = *p.SeatCapacity
	}
	if p.LuggageCapacity != nil {
		t.LuggageCapacity = *p.LuggageCapacity
	}
	if p.TrainType != nil {
		t.TrainTypeID = *p.TrainType
	}
}
