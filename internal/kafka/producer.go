package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"furgocasa/internal/models"
)

type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer}
}

type bookingEvent struct {
	Event          string         `json:"event"`
	Booking        models.Booking `json:"booking"`
	PreviousStatus string         `json:"previous_status,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

type paymentEvent struct {
	Event       string    `json:"event"`
	Gateway     string    `json:"gateway"`
	OrderNumber string    `json:"order_number"`
	Amount      float64   `json:"amount"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// PublishBookingCreated streams the reservation event to Kafka.
func (p *Producer) PublishBookingCreated(booking models.Booking) error {
	return p.publish(booking.ID, bookingEvent{
		Event:      "booking_created",
		Booking:    booking,
		OccurredAt: time.Now(),
	})
}

// PublishBookingStatusChanged streams a lifecycle transition.
func (p *Producer) PublishBookingStatusChanged(booking models.Booking, previous string) error {
	return p.publish(booking.ID, bookingEvent{
		Event:          "booking_status_changed",
		Booking:        booking,
		PreviousStatus: previous,
		OccurredAt:     time.Now(),
	})
}

// PublishPaymentInitiated streams a newly opened checkout.
func (p *Producer) PublishPaymentInitiated(payment models.Payment) error {
	return p.publish(payment.BookingID, paymentEvent{
		Event:       "payment_initiated",
		Gateway:     payment.Gateway,
		OrderNumber: payment.OrderNumber,
		Amount:      payment.Amount,
		OccurredAt:  time.Now(),
	})
}

// PublishPaymentAuthorized streams a settled payment.
func (p *Producer) PublishPaymentAuthorized(gatewayName, orderNumber string, amount float64) error {
	return p.publish(orderNumber, paymentEvent{
		Event:       "payment_authorized",
		Gateway:     gatewayName,
		OrderNumber: orderNumber,
		Amount:      amount,
		OccurredAt:  time.Now(),
	})
}

func (p *Producer) publish(key string, payload interface{}) error {
	msgBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(key),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
