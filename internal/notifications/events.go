// internal/notifications/events.go
package notifications

import (
	"time"

	"booking-notifications/pkg/templates"
)

// Booking carries the appointment fields the event builders need. The
// booking domain itself lives elsewhere; this is its notification-facing
// projection.
type Booking struct {
	ID           string
	CustomerID   string
	BarberID     string
	CustomerName string
	BarberName   string
	Service      string
	StartTime    time.Time
}

// EventBuilder constructs delivery events from booking-domain triggers. All
// builders funnel into the same DeliveryEngine.Send contract; they differ
// only in type, recipient resolution, and payload shape.
type EventBuilder struct {
	templates *templates.Registry
}

func NewEventBuilder(reg *templates.Registry) *EventBuilder {
	if reg == nil {
		reg = templates.DefaultRegistry()
	}
	return &EventBuilder{templates: reg}
}

// CancellationAlert notifies whoever did not cancel.
func (b *EventBuilder) CancellationAlert(booking Booking, cancelledBy RecipientType) (Event, error) {
	recipient := RecipientRef{Type: RecipientCustomer, ID: booking.CustomerID}
	cancelledByName := booking.CustomerName
	if cancelledBy == RecipientCustomer {
		recipient = RecipientRef{Type: RecipientBarber, ID: booking.BarberID}
	} else {
		cancelledByName = booking.BarberName
	}

	payload := map[string]interface{}{
		"bookingId":   booking.ID,
		"startTime":   booking.StartTime.Format(time.RFC3339),
		"cancelledBy": cancelledByName,
	}
	return b.build(TypeCancellation, recipient, payload)
}

// CancelRequest asks the barber to approve a customer's cancellation.
func (b *EventBuilder) CancelRequest(booking Booking) (Event, error) {
	payload := map[string]interface{}{
		"bookingId":   booking.ID,
		"startTime":   booking.StartTime.Format(time.RFC3339),
		"cancelledBy": booking.CustomerName,
		"action":      "cancel_request",
	}
	recipient := RecipientRef{Type: RecipientBarber, ID: booking.BarberID}
	return b.build(TypeCancellation, recipient, payload)
}

// Reminder nudges the customer ahead of the appointment.
func (b *EventBuilder) Reminder(booking Booking) (Event, error) {
	payload := map[string]interface{}{
		"bookingId":  booking.ID,
		"startTime":  booking.StartTime.Format(time.RFC3339),
		"service":    booking.Service,
		"barberName": booking.BarberName,
	}
	recipient := RecipientRef{Type: RecipientCustomer, ID: booking.CustomerID}
	return b.build(TypeReminder, recipient, payload)
}

// BookingConfirmed tells the customer the barber accepted the booking.
func (b *EventBuilder) BookingConfirmed(booking Booking) (Event, error) {
	payload := map[string]interface{}{
		"bookingId": booking.ID,
		"startTime": booking.StartTime.Format(time.RFC3339),
		"service":   booking.Service,
	}
	recipient := RecipientRef{Type: RecipientCustomer, ID: booking.CustomerID}
	return b.build(TypeBookingConfirmed, recipient, payload)
}

// ChatMessage notifies the recipient of a new chat message.
func (b *EventBuilder) ChatMessage(recipient RecipientRef, senderName, preview string) (Event, error) {
	payload := map[string]interface{}{
		"senderName": senderName,
		"preview":    preview,
	}
	return b.build(TypeChatMessage, recipient, payload)
}

// Broadcast builds an operator announcement. notificationType must be one of
// the broadcast types.
func (b *EventBuilder) Broadcast(notificationType NotificationType, recipient RecipientRef, title, message string) (Event, error) {
	payload := map[string]interface{}{
		"title":   title,
		"message": message,
	}
	return b.build(notificationType, recipient, payload)
}

func (b *EventBuilder) build(t NotificationType, recipient RecipientRef, payload map[string]interface{}) (Event, error) {
	title, body, err := b.templates.Render(string(t), payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Recipient: recipient,
		Type:      t,
		Title:     title,
		Body:      body,
		Payload:   payload,
	}, nil
}
