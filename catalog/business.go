package catalog

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FAQ is a canned answer the planner may give.
type FAQ struct {
	Q string `yaml:"q"`
	A string `yaml:"a"`
}

// Policies are the booking rules read to callers.
type Policies struct {
	BookingWindowDays int    `yaml:"booking_window_days"`
	CancelPolicy      string `yaml:"cancel_policy"`
}

// Business is the profile of the venue answering the phone.
type Business struct {
	Name        string   `yaml:"name"`
	Phone       string   `yaml:"phone"`
	Hours       string   `yaml:"hours"`
	Address     string   `yaml:"address"`
	TablesTotal int      `yaml:"tables_total"`
	Currency    string   `yaml:"currency"`
	Menu        []Item   `yaml:"menu"`
	Policies    Policies `yaml:"policies"`
	FAQs        []FAQ    `yaml:"faqs"`
}

// Catalog returns the resolver for the business menu.
func (b *Business) Catalog() *Catalog {
	return New(b.Menu)
}

// DefaultBusiness is the built-in restaurant profile.
func DefaultBusiness() *Business {
	return &Business{
		Name:        "Bilal's Restaurant",
		Phone:       "+1 555 0100",
		Hours:       "Mon-Sat 10:00-22:00, Sun 12:00-20:00",
		Address:     "123 Sample Street, Berlin",
		TablesTotal: 20,
		Currency:    "euros",
		Menu: []Item{
			{Name: "margherita pizza", Price: 9.5},
			{Name: "pepperoni pizza", Price: 11.0},
			{Name: "pasta alfredo", Price: 12.0},
			{Name: "caesar salad", Price: 7.0},
			{Name: "tiramisu", Price: 6.5},
			{Name: "chicken burger", Price: 6.5},
			{Name: "chicken corn soup", Price: 4.5},
			{Name: "french fries", Price: 1.5},
		},
		Policies: Policies{
			BookingWindowDays: 14,
			CancelPolicy:      "Free cancellation up to 2 hours before time.",
		},
		FAQs: []FAQ{
			{Q: "Do you have vegetarian options?", A: "Yes, several pizzas and salads are vegetarian."},
			{Q: "Do you deliver?", A: "We do takeout; delivery via partner apps."},
		},
	}
}

// LoadBusiness reads a business profile from a YAML file. Missing fields keep
// the built-in defaults; a menu in the file replaces the default menu.
func LoadBusiness(path string) (*Business, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read business profile")
	}
	b := DefaultBusiness()
	b.Menu = nil
	if err := yaml.Unmarshal(data, b); err != nil {
		return nil, errors.Wrap(err, "parse business profile")
	}
	if len(b.Menu) == 0 {
		b.Menu = DefaultBusiness().Menu
	}
	return b, nil
}
