package kafka

import (
	"context"
	"strconv"
	"time"

	"train-station/internal/config"
	kafkaclient "train-station/internal/kafka"
	"train-station/internal/models"
)

const (
	EventOrderCreated = "order.created"
	EventOrderDeleted = "order.deleted"
)

// Producer publishes order lifecycle events keyed by order id.
type Producer struct {
	Client *kafkaclient.Producer
	Topics config.TopicConfig
}

func NewProducer(client *kafkaclient.Producer, topics config.TopicConfig) *Producer {
	return &Producer{Client: client, Topics: topics}
}

func newEvent(eventType string, order *models.Order) models.OrderEvent {
	ev := models.OrderEvent{
		Type:      eventType,
		OrderID:   order.ID,
		UserID:    order.UserID,
		Tickets:   make([]models.TicketPayload, 0, len(order.Tickets)),
		Timestamp: time.Now().UTC(),
	}
	for _, t := range order.Tickets {
		ev.Tickets = append(ev.Tickets, models.TicketPayload{TicketID: t.ID, TripID: t.TripID, Seat: t.Seat})
	}
	return ev
}

// PublishOrderCreated streams the committed order to Kafka.
func (p *Producer) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	return p.Client.Publish(ctx, p.Topics.OrderCreated, strconv.FormatInt(order.ID, 10), newEvent(EventOrderCreated, order))
}

// PublishOrderDeleted streams the deleted order, with the seats it freed.
func (p *Producer) PublishOrderDeleted(ctx context.Context, order *models.Order) error {
	return p.Client.Publish(ctx, p.Topics.OrderDeleted, strconv.FormatInt(order.ID, 10), newEvent(EventOrderDeleted, order))
}
