// internal/notifications/models.go
package notifications

import (
	"fmt"
	"time"
)

// RecipientType discriminates the two kinds of notification recipients.
type RecipientType string

const (
	RecipientCustomer RecipientType = "customer"
	RecipientBarber   RecipientType = "barber"
)

// RecipientRef is a tagged reference to a customer or barber. All components
// consume it uniformly instead of duck-typing on the id.
type RecipientRef struct {
	Type RecipientType `json:"type"`
	ID   string        `json:"id"`
}

func (r RecipientRef) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("recipient id is empty")
	}
	switch r.Type {
	case RecipientCustomer, RecipientBarber:
		return nil
	default:
		return fmt.Errorf("unknown recipient type: %q", r.Type)
	}
}

// String renders a stable key form, used for cache keys and log fields.
func (r RecipientRef) String() string {
	return string(r.Type) + ":" + r.ID
}

// DeviceType identifies the platform a subscription was registered from.
type DeviceType string

const (
	DeviceIOS     DeviceType = "ios"
	DeviceAndroid DeviceType = "android"
	DeviceDesktop DeviceType = "desktop"
)

// DeliveryStatus records the outcome of the most recent send attempt.
type DeliveryStatus string

const (
	DeliverySuccess DeliveryStatus = "success"
	DeliveryFailure DeliveryStatus = "failure"
)

// PushSubscription is one registered device of a recipient. A recipient may
// own several active rows; the endpoint is globally unique.
type PushSubscription struct {
	ID                  string
	Recipient           RecipientRef
	Endpoint            string
	KeysP256dh          string
	KeysAuth            string
	DeviceType          DeviceType
	DeviceName          string
	UserAgent           string
	IsActive            bool
	LastUsed            time.Time
	LastDeliveryStatus  DeliveryStatus
	ConsecutiveFailures int
	CreatedAt           time.Time
}

// NotificationType enumerates the logical notification categories.
type NotificationType string

const (
	TypeReminder         NotificationType = "reminder"
	TypeCancellation     NotificationType = "cancellation"
	TypeBookingConfirmed NotificationType = "booking_confirmed"
	TypeChatMessage      NotificationType = "chat_message"
	TypeBarberBroadcast  NotificationType = "barber_broadcast"
	TypeAdminBroadcast   NotificationType = "admin_broadcast"
)

// badgeWorthyTypes are the categories that drive the unread badge. Chat and
// broadcast traffic is visible in history but never counts toward the badge.
var badgeWorthyTypes = []NotificationType{
	TypeReminder,
	TypeCancellation,
	TypeBookingConfirmed,
}

// EventStatus is the aggregate outcome of one logical notification event.
type EventStatus string

const (
	StatusSent    EventStatus = "sent"
	StatusPartial EventStatus = "partial"
	StatusFailed  EventStatus = "failed"
)

// statusFor derives the event status from the per-device counts. It is a
// pure function of the counts and the only place the mapping lives.
func statusFor(targeted, succeeded, failed int) EventStatus {
	switch {
	case targeted > 0 && failed == 0:
		return StatusSent
	case succeeded > 0 && succeeded < targeted:
		return StatusPartial
	default:
		return StatusFailed
	}
}

// LogEntry is one audit row: one logical event, not one device.
// DevicesSucceeded+DevicesFailed always equals DevicesTargeted.
type LogEntry struct {
	ID               string
	Type             NotificationType
	Recipient        RecipientRef
	Title            string
	Body             string
	Payload          map[string]interface{}
	DevicesTargeted  int
	DevicesSucceeded int
	DevicesFailed    int
	Status           EventStatus
	IsRead           bool
	CreatedAt        time.Time
	SentAt           time.Time
}

// Event is the input to DeliveryEngine.Send: one logical notification to be
// fanned out to every active device of the recipient.
type Event struct {
	Recipient RecipientRef           `json:"recipient"`
	Type      NotificationType       `json:"notificationType"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

func (e Event) Validate() error {
	if err := e.Recipient.Validate(); err != nil {
		return err
	}
	if e.Type == "" {
		return fmt.Errorf("notification type is empty")
	}
	if e.Title == "" {
		return fmt.Errorf("title is empty")
	}
	return nil
}

// SendResult aggregates the outcome of one Send call. Per-device failures are
// reported here, never returned as errors.
type SendResult struct {
	Success bool     `json:"success"`
	Sent    int      `json:"sent"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
	LogID   string   `json:"logId,omitempty"`
}

// RegistryStats are aggregate subscription counters for observability.
type RegistryStats struct {
	ActiveCount   int `json:"activeCount"`
	InactiveCount int `json:"inactiveCount"`
	Recipients    int `json:"recipients"`
}
