// Package catalog resolves spoken item names against the menu.
package catalog

import (
	"strings"

	"github.com/samber/lo"

	"ablevoice/internal/domain"
)

// Catalog is an ordered, read-only menu.
type Catalog struct {
	items []domain.MenuItem
}

func New(items []domain.MenuItem) *Catalog {
	copied := make([]domain.MenuItem, len(items))
	copy(copied, items)
	return &Catalog{items: copied}
}

// Default returns the built-in menu.
func Default() *Catalog {
	return New(defaultItems)
}

// Items returns a copy of the menu in display order.
func (c *Catalog) Items() []domain.MenuItem {
	out := make([]domain.MenuItem, len(c.items))
	copy(out, c.items)
	return out
}

// Lookup finds an item by case-insensitive exact name first, then by the
// first name containing the query.
func (c *Catalog) Lookup(name string) (domain.MenuItem, bool) {
	query := strings.ToLower(strings.TrimSpace(name))
	if query == "" {
		return domain.MenuItem{}, false
	}

	if item, ok := lo.Find(c.items, func(item domain.MenuItem) bool {
		return strings.ToLower(item.Name) == query
	}); ok {
		return item, true
	}
	return lo.Find(c.items, func(item domain.MenuItem) bool {
		return strings.Contains(strings.ToLower(item.Name), query)
	})
}

// At returns the item at a 1-based position.
func (c *Catalog) At(position int) (domain.MenuItem, bool) {
	if position < 1 || position > len(c.items) {
		return domain.MenuItem{}, false
	}
	return c.items[position-1], true
}

// Len is the number of items.
func (c *Catalog) Len() int {
	return len(c.items)
}

// Categories lists the distinct categories in first-seen order.
func (c *Catalog) Categories() []string {
	return lo.Uniq(lo.Map(c.items, func(item domain.MenuItem, _ int) string {
		return item.Category
	}))
}

// Category resolves a spoken category name to its canonical spelling.
func (c *Catalog) Category(name string) (string, bool) {
	query := strings.TrimSpace(name)
	return lo.Find(c.Categories(), func(category string) bool {
		return strings.EqualFold(category, query)
	})
}

var defaultItems = []domain.MenuItem{
	{ID: "17", Name: "Karimeen Pollichathu", Category: "Main Course", Veg: false},
	{ID: "18", Name: "Puttu and Kadala Curry", Category: "Breakfast", Veg: true},
	{ID: "21", Name: "Idiyappam with Egg Curry", Category: "Breakfast", Veg: false},
	{ID: "25", Name: "Malabar Fish Curry", Category: "Main Course", Veg: false},
	{ID: "26", Name: "Kozhi Porichathu", Category: "Starters", Veg: false},
	{ID: "27", Name: "Nadan Beef Curry", Category: "Main Course", Veg: false},
	{ID: "28", Name: "Porotta", Category: "Breads", Veg: true},
	{ID: "29", Name: "Chilli Parotta", Category: "Main Course", Veg: true},
	{ID: "23", Name: "Thalassery Biryani", Category: "Biryani", Veg: false},
	{ID: "24", Name: "Pazham Pori", Category: "Snacks", Veg: true},
	{ID: "30", Name: "Appam with Chicken Stew", Category: "Main Course", Veg: false},
	{ID: "31", Name: "Mutton Ishtu", Category: "Main Course", Veg: false},
	{ID: "32", Name: "Meen Varuthathu", Category: "Starters", Veg: false},
	{ID: "33", Name: "Kadala Curry", Category: "Main Course", Veg: true},
	{ID: "34", Name: "Travancore Chicken Roast", Category: "Main Course", Veg: false},
	{ID: "35", Name: "Kerala Prawn Curry", Category: "Main Course", Veg: false},
	{ID: "20", Name: "Kerala Sadya", Category: "Traditional", Veg: true},
	{ID: "22", Name: "Avial", Category: "Traditional", Veg: true},
	{ID: "36", Name: "Sambar", Category: "Traditional", Veg: true},
	{ID: "37", Name: "Olan", Category: "Traditional", Veg: true},
	{ID: "38", Name: "Thoran", Category: "Side Dish", Veg: true},
	{ID: "39", Name: "Parippu Curry", Category: "Traditional", Veg: true},
	{ID: "40", Name: "Puli Inji", Category: "Side Dish", Veg: true},
	{ID: "41", Name: "Pachadi", Category: "Side Dish", Veg: true},
	{ID: "19", Name: "Prawn Mango Curry", Category: "Seafood", Veg: false},
	{ID: "42", Name: "Crab Roast", Category: "Seafood", Veg: false},
	{ID: "43", Name: "Squid Pepper Fry", Category: "Seafood", Veg: false},
	{ID: "44", Name: "Lobster Thermidor", Category: "Seafood", Veg: false},
	{ID: "45", Name: "Fish Molee", Category: "Seafood", Veg: false},
	{ID: "46", Name: "Prawn Masala", Category: "Seafood", Veg: false},
	{ID: "47", Name: "Seafood Platter", Category: "Seafood", Veg: false},
	{ID: "48", Name: "Fish Tandoori", Category: "Seafood", Veg: false},
}
