package supabase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/supabase-community/supabase-go"

	"github.com/creastat/voicedesk/catalog"
	"github.com/creastat/voicedesk/dialogue"
)

// Config holds Supabase connection configuration
type Config struct {
	URL           string
	APIKey        string
	CacheTTL      time.Duration // Default: 5 minutes
	MenuTable     string        // Default: menu_items
	OrdersTable   string        // Default: orders
	BookingsTable string        // Default: bookings
}

// Client implements the Store interface using Supabase
type Client struct {
	client        *supabase.Client
	cache         *cache
	cacheTTL      time.Duration
	menuTable     string
	ordersTable   string
	bookingsTable string
}

// cache provides thread-safe caching for frequently accessed data
type cache struct {
	mu   sync.RWMutex
	menu *cacheEntry[[]catalog.Item]
}

type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// New creates a new Supabase client
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}

	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.MenuTable == "" {
		cfg.MenuTable = "menu_items"
	}
	if cfg.OrdersTable == "" {
		cfg.OrdersTable = "orders"
	}
	if cfg.BookingsTable == "" {
		cfg.BookingsTable = "bookings"
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Client{
		client:        client,
		cacheTTL:      cfg.CacheTTL,
		cache:         &cache{},
		menuTable:     cfg.MenuTable,
		ordersTable:   cfg.OrdersTable,
		bookingsTable: cfg.BookingsTable,
	}, nil
}

// Menu retrieves the active menu items
func (c *Client) Menu(ctx context.Context) ([]catalog.Item, error) {
	// Check cache first
	if cached, ok := c.getMenuFromCache(); ok {
		return cached, nil
	}

	var rows []MenuItem
	err := withContext(ctx, func() error {
		_, err := c.client.From(c.menuTable).
			Select("*", "", false).
			Eq("active", "true").
			ExecuteTo(&rows)
		return err
	})

	if err != nil {
		return nil, fmt.Errorf("failed to get menu: %w", err)
	}

	items := make([]catalog.Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, catalog.Item{Name: r.Item, Price: r.Price})
	}

	c.addMenuToCache(items)

	return items, nil
}

// RecordOrder inserts a placed order
func (c *Client) RecordOrder(ctx context.Context, o dialogue.Order) error {
	row := OrderRow{
		CallID:  o.CallID,
		Caller:  o.Caller,
		Name:    o.Name,
		Phone:   o.Phone,
		Address: o.Address,
		Item:    o.Item,
		Qty:     o.Qty,
		Total:   o.Total,
	}
	err := withContext(ctx, func() error {
		_, _, err := c.client.From(c.ordersTable).
			Insert(row, false, "", "minimal", "").
			Execute()
		return err
	})

	if err != nil {
		return fmt.Errorf("failed to record order: %w", err)
	}
	return nil
}

// RecordBooking inserts a confirmed booking
func (c *Client) RecordBooking(ctx context.Context, b dialogue.Booking) error {
	row := BookingRow{
		CallID:  b.CallID,
		Caller:  b.Caller,
		Name:    b.Name,
		Phone:   b.Phone,
		Service: b.Service,
		When:    b.When,
	}
	err := withContext(ctx, func() error {
		_, _, err := c.client.From(c.bookingsTable).
			Insert(row, false, "", "minimal", "").
			Execute()
		return err
	})

	if err != nil {
		return fmt.Errorf("failed to record booking: %w", err)
	}
	return nil
}

// withContext runs a PostgREST request under ctx. The query builder takes no
// context, so a cancelled ctx skips the request and a ctx that ends mid-flight
// releases the caller while the request finishes in the background.
func withContext(ctx context.Context, do func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		done <- do()
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the Supabase client
func (c *Client) Close() error {
	// Supabase client doesn't require explicit close
	return nil
}

// getMenuFromCache retrieves the menu from cache
func (c *Client) getMenuFromCache() ([]catalog.Item, bool) {
	c.cache.mu.RLock()
	defer c.cache.mu.RUnlock()

	if e := c.cache.menu; e != nil && time.Now().Before(e.expiresAt) {
		return e.value, true
	}
	return nil, false
}

// addMenuToCache adds the menu to cache
func (c *Client) addMenuToCache(items []catalog.Item) {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()

	c.cache.menu = &cacheEntry[[]catalog.Item]{
		value:     items,
		expiresAt: time.Now().Add(c.cacheTTL),
	}
}

// Compile-time checks
var (
	_ Store               = (*Client)(nil)
	_ dialogue.Recorder   = (*Client)(nil)
	_ dialogue.MenuSource = (*Client)(nil)
)
