package models

import (
	"github.com/uptrace/bun"
)

type Station struct {
	bun.BaseModel `bun:"table:stations,alias:station"`

	ID        int64   `bun:"id,pk,autoincrement" json:"id"`
	Name      string  `bun:"name,notnull" json:"name"`
	Latitude  float64 `bun:"latitude,notnull" json:"latitude"`
	Longitude float64 `bun:"longitude,notnull" json:"longitude"`
	// Image is the path of the uploaded picture relative to the media root.
	Image string `bun:"image,nullzero" json:"-"`
}

type Route struct {
	bun.BaseModel `bun:"table:routes,alias:route"`

	ID            int64  `bun:"id,pk,autoincrement" json:"id"`
	Name          string `bun:"name,notnull" json:"name"`
	SourceID      int64  `bun:"source_id,notnull" json:"source_id"`
	DestinationID int64  `bun:"destination_id,notnull" json:"destination_id"`
	Distance      int    `bun:"distance,notnull" json:"distance"`

	Source      *Station `bun:"rel:belongs-to,join:source_id=id" json:"-"`
	Destination *Station `bun:"rel:belongs-to,join:destination_id=id" json:"-"`
}

type StationRequest struct {
	Name      string  `json:"name" validate:"notblank"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

type RouteRequest struct {
	Name        string `json:"name" validate:"notblank"`
	Source      int64  `json:"source" validate:"required,gt=0"`
	Destination int64  `json:"destination" validate:"required,gt=0"`
	Distance    int    `json:"distance" validate:"gt=0"`
}

type RoutePatch struct {
	Name        *string `json:"name" validate:"required,notblank"`
	Source      *int64  `json:"source" validate:"required,gt=0"`
	Destination *int64  `json:"destination" validate:"required,gt=0"`
	Distance    *int    `json:"distance" validate:"required,gt=0"`
}

func (p RoutePatch) Apply(r *Route) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Source != nil {
		r.SourceID = *p.Source
	}
	if p.Destination != nil {
		r.DestinationID = *p.Destination
	}
	if p.Distance != nil {
		r.Distance = *p.Distance
	}
}

// RouteFilter holds the case-insensitive substring filters of the route list.
type RouteFilter struct {
	Source      string
	Destination string
}
