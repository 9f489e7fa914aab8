// Package queue carries booking events over RabbitMQ so that every API
// instance can push them to its own connected observers.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/field-booking/internal/booking"
)

// TypeBookingCreated is stamped on the AMQP Type property of every
// booking-created message.
const TypeBookingCreated = "booking.created"

func encodeBookingCreated(ev booking.BookingCreatedEvent, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         TypeBookingCreated,
		MessageId:    ev.BookingCode,
		Timestamp:    now.UTC(),
		Body:         body,
	}, nil
}

// decodeBookingCreated accepts messages with an empty Type for producers that
// do not set it.
func decodeBookingCreated(msgType string, body []byte) (booking.BookingCreatedEvent, error) {
	var ev booking.BookingCreatedEvent
	if msgType != "" && msgType != TypeBookingCreated {
		return ev, fmt.Errorf("unexpected message type %q", msgType)
	}
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("unmarshal: %w", err)
	}
	if ev.BookingID == 0 {
		return ev, fmt.Errorf("event without booking_id")
	}
	return ev, nil
}
