// Package cart implements the shopping cart: quantity-bounded line items
// with totals derived fresh on every read.
package cart

import (
	"errors"

	"github.com/peaknutrition/storefront/catalog"
	"github.com/peaknutrition/storefront/money"
)

const currencyCode = "USD"

var (
	// freeShippingThreshold is the inclusive subtotal at which shipping
	// becomes free.
	freeShippingThreshold = money.New(currencyCode, 75, 0)
	// flatShippingRate applies to every order below the threshold.
	flatShippingRate = money.New(currencyCode, 9, 990000000)
)

var (
	// ErrInvalidQuantity reports a caller passing a non-positive quantity to
	// AddItem. This is a contract violation, not a runtime condition.
	ErrInvalidQuantity = errors.New("cart: quantity must be at least 1")
	// ErrNilProduct reports a caller adding a nil product.
	ErrNilProduct = errors.New("cart: product must not be nil")
)

// Line is one product-to-quantity association. Quantity is always >= 1; a
// line whose quantity drops to zero is removed from the cart, never kept.
type Line struct {
	Product  *catalog.Product
	Quantity int32
}

// Cart is a session's shopping cart. Lines keep insertion order, which is
// the display order. Totals are never stored; they are recomputed from the
// lines on every read so they cannot drift, and they always reflect current
// product prices rather than the price at add time.
//
// A Cart is owned by a single session and is not safe for concurrent use;
// the cartstore serializes access per session.
type Cart struct {
	lines map[string]*Line
	order []string
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{lines: make(map[string]*Line)}
}

// AddItem creates a line for the product with the given quantity, or
// increments the existing line. Quantities below 1 are rejected.
func (c *Cart) AddItem(p *catalog.Product, quantity int32) error {
	if p == nil {
		return ErrNilProduct
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if line, ok := c.lines[p.ID]; ok {
		line.Quantity += quantity
		return nil
	}
	c.lines[p.ID] = &Line{Product: p, Quantity: quantity}
	c.order = append(c.order, p.ID)
	return nil
}

// RemoveItem deletes the line for productID. Removing an absent line is a
// no-op.
func (c *Cart) RemoveItem(productID string) {
	if _, ok := c.lines[productID]; !ok {
		return
	}
	delete(c.lines, productID)
	for i, id := range c.order {
		if id == productID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// UpdateQuantity sets the line's quantity. Updating an absent line is a
// no-op: only AddItem creates lines. A quantity below 1 removes the line,
// keeping the quantity floor intact.
func (c *Cart) UpdateQuantity(productID string, quantity int32) {
	if _, ok := c.lines[productID]; !ok {
		return
	}
	if quantity < 1 {
		c.RemoveItem(productID)
		return
	}
	c.lines[productID].Quantity = quantity
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = make(map[string]*Line)
	c.order = nil
}

// Lines returns the cart lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.lines[id])
	}
	return out
}

// Len returns the number of distinct lines.
func (c *Cart) Len() int { return len(c.lines) }

// TotalItems is the sum of all line quantities, shown on the cart badge.
func (c *Cart) TotalItems() int32 {
	var n int32
	for _, line := range c.lines {
		n += line.Quantity
	}
	return n
}

// Subtotal sums quantity times current price over all lines.
func (c *Cart) Subtotal() money.Money {
	total := money.New(currencyCode, 0, 0)
	for _, id := range c.order {
		line := c.lines[id]
		total = money.Must(money.Sum(total, money.MultiplySlow(line.Product.PriceUSD, uint32(line.Quantity))))
	}
	return total
}

// ShippingCost is a pure function of the subtotal: free at or above the
// threshold, the flat rate below it.
func (c *Cart) ShippingCost() money.Money {
	if money.Cmp(c.Subtotal(), freeShippingThreshold) >= 0 {
		return money.New(currencyCode, 0, 0)
	}
	return flatShippingRate
}

// Total is the subtotal plus shipping.
func (c *Cart) Total() money.Money {
	return money.Must(money.Sum(c.Subtotal(), c.ShippingCost()))
}

// Clone returns an independent copy of the cart. Stores hand copies to
// readers so one session's snapshot cannot observe later mutations.
func (c *Cart) Clone() *Cart {
	out := New()
	for _, id := range c.order {
		line := c.lines[id]
		out.lines[id] = &Line{Product: line.Product, Quantity: line.Quantity}
		out.order = append(out.order, id)
	}
	return out
}
