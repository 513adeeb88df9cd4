package cartstore

import (
	"context"
	"testing"

	"github.com/peaknutrition/storefront/catalog"
	"github.com/peaknutrition/storefront/money"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	c, err := catalog.New()
	if err != nil {
		t.Fatalf("failed to load seed catalog: %v", err)
	}
	return NewLocalStore(c)
}

func TestLocalStoreAddAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.AddItem(ctx, "session-1", "pure-creatine", 2); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	c, err := store.GetCart(ctx, "session-1")
	if err != nil {
		t.Fatalf("GetCart failed: %v", err)
	}
	if c.TotalItems() != 2 {
		t.Errorf("TotalItems = %d, want 2", c.TotalItems())
	}
	// 2 x $24.99
	if want := money.New("USD", 49, 980000000); money.Cmp(c.Subtotal(), want) != 0 {
		t.Errorf("Subtotal = %v, want %v", c.Subtotal(), want)
	}
}

func TestLocalStoreUnknownProduct(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.AddItem(ctx, "session-1", "no-such-product", 1); err != ErrUnknownProduct {
		t.Errorf("got %v, want ErrUnknownProduct", err)
	}
}

func TestLocalStoreSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.AddItem(ctx, "session-1", "pure-creatine", 1); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	other, err := store.GetCart(ctx, "session-2")
	if err != nil {
		t.Fatalf("GetCart failed: %v", err)
	}
	if other.Len() != 0 {
		t.Errorf("session-2 sees session-1's cart: %d lines", other.Len())
	}
}

func TestLocalStoreMutationsOnAbsentSessionAreNoOps(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.RemoveItem(ctx, "ghost", "pure-creatine"); err != nil {
		t.Errorf("RemoveItem on absent session: %v", err)
	}
	if err := store.UpdateQuantity(ctx, "ghost", "pure-creatine", 3); err != nil {
		t.Errorf("UpdateQuantity on absent session: %v", err)
	}
	if err := store.EmptyCart(ctx, "ghost"); err != nil {
		t.Errorf("EmptyCart on absent session: %v", err)
	}
}

func TestLocalStoreUpdateAndRemove(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	const session = "session-1"

	if err := store.AddItem(ctx, session, "pure-creatine", 1); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if err := store.AddItem(ctx, session, "essential-bcaa", 1); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if err := store.UpdateQuantity(ctx, session, "pure-creatine", 4); err != nil {
		t.Fatalf("UpdateQuantity failed: %v", err)
	}
	if err := store.RemoveItem(ctx, session, "essential-bcaa"); err != nil {
		t.Fatalf("RemoveItem failed: %v", err)
	}

	c, err := store.GetCart(ctx, session)
	if err != nil {
		t.Fatalf("GetCart failed: %v", err)
	}
	lines := c.Lines()
	if len(lines) != 1 || lines[0].Product.ID != "pure-creatine" || lines[0].Quantity != 4 {
		t.Errorf("unexpected cart state: %+v", lines)
	}
}

func TestLocalStoreGetCartReturnsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	const session = "session-1"

	if err := store.AddItem(ctx, session, "pure-creatine", 1); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	snapshot, err := store.GetCart(ctx, session)
	if err != nil {
		t.Fatalf("GetCart failed: %v", err)
	}
	if err := store.AddItem(ctx, session, "pure-creatine", 5); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if snapshot.TotalItems() != 1 {
		t.Errorf("snapshot changed after later mutation: %d items", snapshot.TotalItems())
	}
}
