// Package catalog resolves menu items and prices. Everything here is a pure
// function of the loaded menu; totals announced to callers come only from here.
package catalog

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrUnknownItem = errors.New("unknown menu item")

// Item is one orderable menu entry.
type Item struct {
	Name  string  `yaml:"item" json:"item"`
	Price float64 `yaml:"price" json:"price"`
}

// Catalog is an immutable menu.
type Catalog struct {
	items []Item
}

// New builds a catalog. Items with an empty name or negative price are dropped.
func New(items []Item) *Catalog {
	c := &Catalog{}
	for _, it := range items {
		it.Name = strings.TrimSpace(it.Name)
		if it.Name == "" || it.Price < 0 {
			continue
		}
		c.items = append(c.items, it)
	}
	return c
}

// Items returns a copy of the menu.
func (c *Catalog) Items() []Item {
	if c == nil {
		return nil
	}
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Names returns the item names in menu order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, it.Name)
	}
	return out
}

// Find returns the menu item mentioned in name. Matching is case-insensitive
// containment, so "two margherita pizzas please" finds "margherita pizza";
// the longest matching item wins.
func (c *Catalog) Find(name string) (Item, bool) {
	if c == nil {
		return Item{}, false
	}
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return Item{}, false
	}
	var best Item
	found := false
	for _, it := range c.items {
		if strings.Contains(n, strings.ToLower(it.Name)) && len(it.Name) > len(best.Name) {
			best = it
			found = true
		}
	}
	return best, found
}

// Total returns round(price*qty, 2) for the named item. A quantity below one
// counts as one.
func (c *Catalog) Total(itemName string, qty int) (float64, error) {
	it, ok := c.Find(itemName)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownItem, itemName)
	}
	if qty < 1 {
		qty = 1
	}
	return Round2(it.Price * float64(qty)), nil
}

// Round2 rounds to cents.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
