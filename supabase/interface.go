package supabase

import (
	"context"
	"time"

	"github.com/creastat/voicedesk/catalog"
	"github.com/creastat/voicedesk/dialogue"
)

// Store provides the restaurant data kept in Supabase
type Store interface {
	// Menu returns the active menu items
	Menu(ctx context.Context) ([]catalog.Item, error)

	// RecordOrder stores a placed order
	RecordOrder(ctx context.Context, o dialogue.Order) error

	// RecordBooking stores a confirmed booking
	RecordBooking(ctx context.Context, b dialogue.Booking) error

	// Close closes the Supabase client and releases resources
	Close() error
}

// MenuItem represents a row of the menu table
type MenuItem struct {
	ID        string    `json:"id,omitempty"`
	Item      string    `json:"item"`
	Price     float64   `json:"price"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// OrderRow represents a row of the orders table
type OrderRow struct {
	CallID  string   `json:"call_id"`
	Caller  string   `json:"caller,omitempty"`
	Name    string   `json:"name"`
	Phone   string   `json:"phone"`
	Address string   `json:"address,omitempty"`
	Item    string   `json:"item"`
	Qty     int      `json:"qty"`
	Total   *float64 `json:"total,omitempty"`
}

// BookingRow represents a row of the bookings table
type BookingRow struct {
	CallID  string `json:"call_id"`
	Caller  string `json:"caller,omitempty"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Service string `json:"service"`
	When    string `json:"requested_time"`
}
