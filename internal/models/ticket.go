package models

import (
	"github.com/uptrace/bun"
)

// Ticket reserves one seat on one trip. (trip_id, seat) is unique at the store.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets,alias:ticket"`

	ID            int64 `bun:"id,pk,autoincrement" json:"id"`
	TripID        int64 `bun:"trip_id,notnull,unique:tickets_trip_id_seat_key" json:"trip_id"`
	Seat          int   `bun:"seat,notnull,unique:tickets_trip_id_seat_key" json:"seat"`
	LuggageWeight int   `bun:"luggage_weight,notnull,default:0" json:"luggage_weight"`
	OrderID       int64 `bun:"order_id,notnull" json:"order_id"`

	Trip  *Trip  `bun:"rel:belongs-to,join:trip_id=id" json:"-"`
	Order *Order `bun:"rel:belongs-to,join:order_id=id" json:"-"`
}
