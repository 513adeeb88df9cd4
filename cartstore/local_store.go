package cartstore

import (
	"context"
	"sync"

	"github.com/peaknutrition/storefront/cart"
	"github.com/peaknutrition/storefront/catalog"
)

// LocalStore holds session carts in process memory. Suitable for a single
// instance; carts vanish on restart, which matches their session scope.
type LocalStore struct {
	mu      sync.RWMutex
	catalog *catalog.Catalog
	carts   map[string]*cart.Cart
}

// NewLocalStore returns an empty in-memory store resolving products against
// the given catalog.
func NewLocalStore(c *catalog.Catalog) *LocalStore {
	return &LocalStore{
		catalog: c,
		carts:   make(map[string]*cart.Cart),
	}
}

// Initialize is a no-op for the in-memory store.
func (l *LocalStore) Initialize(ctx context.Context) error { return nil }

// AddItem adds the product to the session's cart, creating the cart on
// first use.
func (l *LocalStore) AddItem(ctx context.Context, sessionID, productID string, quantity int32) error {
	p, ok := l.catalog.Product(productID)
	if !ok {
		return ErrUnknownProduct
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.carts[sessionID]
	if !ok {
		c = cart.New()
		l.carts[sessionID] = c
	}
	return c.AddItem(p, quantity)
}

// RemoveItem removes the product's line from the session's cart, if any.
func (l *LocalStore) RemoveItem(ctx context.Context, sessionID, productID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.carts[sessionID]; ok {
		c.RemoveItem(productID)
	}
	return nil
}

// UpdateQuantity sets the line's quantity in the session's cart, if any.
func (l *LocalStore) UpdateQuantity(ctx context.Context, sessionID, productID string, quantity int32) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.carts[sessionID]; ok {
		c.UpdateQuantity(productID, quantity)
	}
	return nil
}

// EmptyCart clears the session's cart.
func (l *LocalStore) EmptyCart(ctx context.Context, sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.carts[sessionID]; ok {
		c.Clear()
	}
	return nil
}

// GetCart returns a snapshot of the session's cart, or an empty cart if the
// session has none yet.
func (l *LocalStore) GetCart(ctx context.Context, sessionID string) (*cart.Cart, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if c, ok := l.carts[sessionID]; ok {
		return c.Clone(), nil
	}
	return cart.New(), nil
}

// Ping always succeeds for the in-memory store.
func (l *LocalStore) Ping(ctx context.Context) bool { return true }
