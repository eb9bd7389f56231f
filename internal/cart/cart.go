// Package cart is the in-process shopping cart that voice sessions add to.
// It is shared by every session and only ever grows through AddUnits and
// AddBatch.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"voice-ordering-service/internal/catalog"
)

// Mutator adds units of a catalog item to the cart.
type Mutator interface {
	AddUnits(ctx context.Context, itemID string, count int) error
}

// BatchMutator applies several additions atomically: either all of them
// land or none do.
type BatchMutator interface {
	Mutator
	AddBatch(ctx context.Context, adds []Addition) error
}

// Addition is one item and unit count in a batch.
type Addition struct {
	ItemID string
	Count  int
}

// Line is the cart's view of one item.
type Line struct {
	ItemID    string  `json:"itemId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// Subtotal returns Quantity × UnitPrice.
func (l Line) Subtotal() float64 {
	return float64(l.Quantity) * l.UnitPrice
}

var (
	ErrUnknownItem  = errors.New("cart: unknown catalog item")
	ErrInvalidCount = errors.New("cart: count must be at least 1")
)

// Cart is safe for concurrent use.
type Cart struct {
	catalog *catalog.Catalog

	mu    sync.RWMutex
	qty   map[string]int
	order []string // item IDs in first-added order
}

// New creates an empty cart over cat.
func New(cat *catalog.Catalog) *Cart {
	return &Cart{catalog: cat, qty: make(map[string]int)}
}

// AddUnits adds count units of itemID.
func (c *Cart) AddUnits(ctx context.Context, itemID string, count int) error {
	return c.AddBatch(ctx, []Addition{{ItemID: itemID, Count: count}})
}

// AddBatch validates every addition and then applies them under one lock.
func (c *Cart) AddBatch(ctx context.Context, adds []Addition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, a := range adds {
		if a.Count < 1 {
			return fmt.Errorf("%w: %s x%d", ErrInvalidCount, a.ItemID, a.Count)
		}
		if _, ok := c.catalog.Lookup(a.ItemID); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownItem, a.ItemID)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range adds {
		if _, seen := c.qty[a.ItemID]; !seen {
			c.order = append(c.order, a.ItemID)
		}
		c.qty[a.ItemID] += a.Count
	}
	return nil
}

// Quantity returns the units of itemID in the cart.
func (c *Cart) Quantity(itemID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.qty[itemID]
}

// Lines returns the cart contents in first-added order.
func (c *Cart) Lines() []Line {
	c.mu.RLock()
	defer c.mu.RUnlock()

	lines := make([]Line, 0, len(c.order))
	for _, id := range c.order {
		item, _ := c.catalog.Lookup(id)
		lines = append(lines, Line{
			ItemID:    id,
			Name:      item.Name,
			Quantity:  c.qty[id],
			UnitPrice: item.Price,
		})
	}
	return lines
}

// Total returns the sum of all line subtotals.
func (c *Cart) Total() float64 {
	var total float64
	for _, l := range c.Lines() {
		total += l.Subtotal()
	}
	return total
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.qty = make(map[string]int)
	c.order = nil
}
