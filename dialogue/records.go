package dialogue

import (
	"context"

	"github.com/creastat/voicedesk/catalog"
	"github.com/creastat/voicedesk/notify"
)

// Order is a placed order as recorded for the kitchen.
type Order struct {
	CallID  string   `json:"call_id"`
	Caller  string   `json:"caller"`
	Name    string   `json:"name"`
	Phone   string   `json:"phone"`
	Address string   `json:"address,omitempty"`
	Item    string   `json:"item"`
	Qty     int      `json:"qty"`
	Total   *float64 `json:"total,omitempty"`
}

// Booking is a confirmed reservation.
type Booking struct {
	CallID  string `json:"call_id"`
	Caller  string `json:"caller"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Service string `json:"service"`
	When    string `json:"when"`
}

// Recorder stores orders and bookings somewhere staff can see them.
type Recorder interface {
	RecordOrder(ctx context.Context, o Order) error
	RecordBooking(ctx context.Context, b Booking) error
}

// Notifier hands a notification off without waiting for delivery.
type Notifier interface {
	Dispatch(n notify.Notification)
}

// MenuSource supplies the current menu.
type MenuSource interface {
	Menu(ctx context.Context) ([]catalog.Item, error)
}
