// Package cartstore keeps one cart per browsing session behind a common
// Store interface, with an in-memory implementation and a Redis-backed one.
package cartstore

import (
	"context"
	"errors"

	"github.com/peaknutrition/storefront/cart"
)

// ErrUnknownProduct reports an AddItem referencing a product id that is not
// in the catalog.
var ErrUnknownProduct = errors.New("cartstore: unknown product id")

// Store defines the operations on per-session cart storage. Each session's
// cart is mutated under a single-writer discipline: implementations
// serialize all operations touching one session.
type Store interface {
	Initialize(ctx context.Context) error

	AddItem(ctx context.Context, sessionID, productID string, quantity int32) error
	RemoveItem(ctx context.Context, sessionID, productID string) error
	UpdateQuantity(ctx context.Context, sessionID, productID string, quantity int32) error
	EmptyCart(ctx context.Context, sessionID string) error
	GetCart(ctx context.Context, sessionID string) (*cart.Cart, error)

	Ping(ctx context.Context) bool
}
