package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Order struct {
	bun.BaseModel `bun:"table:orders,alias:order"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UserID    int64     `bun:"user_id,notnull" json:"user_id"`

	Tickets []*Ticket `bun:"rel:has-many,join:id=order_id" json:"-"`
}

// OrderRequest is the booking payload. User is optional and, when present,
// must name the caller.
type OrderRequest struct {
	User    *int64          `json:"user,omitempty"`
	Tickets []TicketRequest `json:"tickets" validate:"required,min=1,dive"`
}

// TicketRequest asks for one seat. Seat and luggage are checked against the
// trip's train once the trip is loaded.
type TicketRequest struct {
	Trip          int64 `json:"trip" validate:"required,gt=0"`
	Seat          int   `json:"seat"`
	LuggageWeight *int  `json:"luggage_weight,omitempty"`
}

// OrderEvent is published after an order is committed or deleted.
type OrderEvent struct {
	Type      string          `json:"type"`
	OrderID   int64           `json:"order_id"`
	UserID    int64           `json:"user_id"`
	Tickets   []TicketPayload `json:"tickets,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type TicketPayload struct {
	TicketID int64 `json:"ticket_id"`
	TripID   int64 `json:"trip_id"`
	Seat     int   `json:"seat"`
}
