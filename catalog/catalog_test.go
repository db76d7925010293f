package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotal_MargheritaTimesTwo(t *testing.T) {
	c := DefaultBusiness().Catalog()

	total, err := c.Total("margherita pizza", 2)
	require.NoError(t, err)
	assert.Equal(t, 19.0, total)

	again, err := c.Total("margherita pizza", 2)
	require.NoError(t, err)
	assert.Equal(t, total, again)
}

func TestTotal_RoundsToCents(t *testing.T) {
	c := New([]Item{{Name: "espresso", Price: 1.15}})
	total, err := c.Total("espresso", 3)
	require.NoError(t, err)
	assert.Equal(t, 3.45, total)
}

func TestTotal_QuantityDefaultsToOne(t *testing.T) {
	c := DefaultBusiness().Catalog()
	total, err := c.Total("tiramisu", 0)
	require.NoError(t, err)
	assert.Equal(t, 6.5, total)
}

func TestTotal_UnknownItem(t *testing.T) {
	c := DefaultBusiness().Catalog()
	_, err := c.Total("sushi platter", 1)
	require.ErrorIs(t, err, ErrUnknownItem)
}

func TestFind_ContainmentAndCase(t *testing.T) {
	c := DefaultBusiness().Catalog()

	it, ok := c.Find("Two Margherita Pizza please")
	require.True(t, ok)
	assert.Equal(t, "margherita pizza", it.Name)

	it, ok = c.Find("a Chicken Burger")
	require.True(t, ok)
	assert.Equal(t, 6.5, it.Price)

	_, ok = c.Find("")
	assert.False(t, ok)
}

func TestFind_LongestMatchWins(t *testing.T) {
	c := New([]Item{{Name: "fries", Price: 1}, {Name: "cheese fries", Price: 3}})
	it, ok := c.Find("cheese fries")
	require.True(t, ok)
	assert.Equal(t, "cheese fries", it.Name)
}

func TestNew_DropsInvalidItems(t *testing.T) {
	c := New([]Item{{Name: " ", Price: 1}, {Name: "water", Price: -1}, {Name: "soda", Price: 2}})
	assert.Equal(t, []string{"soda"}, c.Names())
}

func TestLoadBusiness(t *testing.T) {
	path := filepath.Join(t.TempDir(), "business.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: Trattoria Uno
hours: daily 12-23
menu:
  - item: lasagne
    price: 13.5
`), 0o644))

	b, err := LoadBusiness(path)
	require.NoError(t, err)
	assert.Equal(t, "Trattoria Uno", b.Name)
	assert.Equal(t, 20, b.TablesTotal)
	total, err := b.Catalog().Total("lasagne", 2)
	require.NoError(t, err)
	assert.Equal(t, 27.0, total)
}

func TestLoadBusiness_MissingFile(t *testing.T) {
	_, err := LoadBusiness(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
