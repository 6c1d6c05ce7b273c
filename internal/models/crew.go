package models

import (
	"github.com/uptrace/bun"
)

type Crew struct {
	bun.BaseModel `bun:"table:crews,alias:crew"`

	ID        int64  `bun:"id,pk,autoincrement" json:"id"`
	FirstName string `bun:"first_name,notnull" json:"first_name"`
	LastName  string `bun:"last_name,notnull" json:"last_name"`
}

func (c Crew) FullName() string {
	return c.FirstName + " " + c.LastName
}

// TripCrew is the join table between trips and crews.
type TripCrew struct {
	bun.BaseModel `bun:"table:trip_crews,alias:trip_crew"`

	TripID int64 `bun:"trip_id,pk"`
	CrewID int64 `bun:"crew_id,pk"`
}

type CrewRequest struct {
	FirstName string `json:"first_name" validate:"notblank"`
	LastName  string `json:"last_name" validate:"notblank"`
}
