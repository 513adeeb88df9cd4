package cartstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/peaknutrition/storefront/cart"
	"github.com/peaknutrition/storefront/catalog"
)

// cartField is the hash field under which a session's cart lines are stored.
const cartField = "cart"

const initializeAttempts = 30

// storedLine is the persisted form of a cart line. Only the product id and
// quantity are stored; prices are re-resolved from the catalog on read so
// totals always use current prices.
type storedLine struct {
	ProductID string `json:"productId"`
	Quantity  int32  `json:"quantity"`
}

// RedisStore keeps session carts in a Redis hash, one key per session. It
// lets cart state survive instance restarts and be shared across replicas;
// carts remain session-scoped data, not an order system.
type RedisStore struct {
	client  *redis.Client
	catalog *catalog.Catalog
	log     *logrus.Logger

	emptyCartData []byte
}

// NewRedisStore connects to Redis at redisAddr, which may be a plain
// "host:port" or a redis:// URL.
func NewRedisStore(redisAddr string, c *catalog.Catalog, log *logrus.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisAddr)
	if err != nil {
		// Not a redis:// URL; treat it as a bare address.
		opts = &redis.Options{
			Addr:         redisAddr,
			MinIdleConns: 1,
			MaxRetries:   30,
			DialTimeout:  30 * time.Second,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			PoolSize:     10,
			PoolTimeout:  4 * time.Second,
			IdleTimeout:  180 * time.Second,
		}
	}

	emptyData, err := json.Marshal([]storedLine{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal empty cart")
	}

	return &RedisStore{
		client:        redis.NewClient(opts),
		catalog:       c,
		log:           log,
		emptyCartData: emptyData,
	}, nil
}

// Initialize verifies connectivity, retrying with capped exponential
// backoff so the store tolerates Redis starting after the service.
func (r *RedisStore) Initialize(ctx context.Context) error {
	for i := 0; i < initializeAttempts; i++ {
		if r.Ping(ctx) {
			r.log.Infof("redis cart store connected on attempt %d", i+1)
			return nil
		}

		backoff := time.Duration(1000*(1<<uint(i))) * time.Millisecond
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
		r.log.Warnf("redis ping failed, retrying in %v (attempt %d/%d)", backoff, i+1, initializeAttempts)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return errors.Errorf("failed to connect to redis after %d attempts", initializeAttempts)
}

// AddItem loads the session's cart, applies the add and writes it back.
func (r *RedisStore) AddItem(ctx context.Context, sessionID, productID string, quantity int32) error {
	p, ok := r.catalog.Product(productID)
	if !ok {
		return ErrUnknownProduct
	}
	c, err := r.loadCart(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := c.AddItem(p, quantity); err != nil {
		return err
	}
	return r.saveCart(ctx, sessionID, c)
}

// RemoveItem removes the product's line from the session's cart.
func (r *RedisStore) RemoveItem(ctx context.Context, sessionID, productID string) error {
	c, err := r.loadCart(ctx, sessionID)
	if err != nil {
		return err
	}
	c.RemoveItem(productID)
	return r.saveCart(ctx, sessionID, c)
}

// UpdateQuantity sets the line's quantity in the session's cart.
func (r *RedisStore) UpdateQuantity(ctx context.Context, sessionID, productID string, quantity int32) error {
	c, err := r.loadCart(ctx, sessionID)
	if err != nil {
		return err
	}
	c.UpdateQuantity(productID, quantity)
	return r.saveCart(ctx, sessionID, c)
}

// EmptyCart resets the session's cart to the serialized empty form.
func (r *RedisStore) EmptyCart(ctx context.Context, sessionID string) error {
	if err := r.client.HSet(ctx, sessionID, cartField, r.emptyCartData).Err(); err != nil {
		return errors.Wrap(err, "redis HSet error")
	}
	return nil
}

// GetCart returns the session's cart, or an empty cart if none is stored.
func (r *RedisStore) GetCart(ctx context.Context, sessionID string) (*cart.Cart, error) {
	return r.loadCart(ctx, sessionID)
}

func (r *RedisStore) loadCart(ctx context.Context, sessionID string) (*cart.Cart, error) {
	val, err := r.client.HGet(ctx, sessionID, cartField).Result()
	if err == redis.Nil {
		return cart.New(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis HGet error")
	}

	var lines []storedLine
	if err := json.Unmarshal([]byte(val), &lines); err != nil {
		return nil, errors.Wrap(err, "failed to parse cart data")
	}
	return r.buildCart(lines)
}

// buildCart re-joins stored lines against the catalog. Lines whose product
// no longer exists are dropped rather than failing the whole cart.
func (r *RedisStore) buildCart(lines []storedLine) (*cart.Cart, error) {
	c := cart.New()
	for _, line := range lines {
		p, ok := r.catalog.Product(line.ProductID)
		if !ok {
			r.log.Warnf("dropping cart line for unknown product %q", line.ProductID)
			continue
		}
		if err := c.AddItem(p, line.Quantity); err != nil {
			return nil, errors.Wrapf(err, "stored cart line for %q is invalid", line.ProductID)
		}
	}
	return c, nil
}

func (r *RedisStore) saveCart(ctx context.Context, sessionID string, c *cart.Cart) error {
	lines := make([]storedLine, 0, c.Len())
	for _, line := range c.Lines() {
		lines = append(lines, storedLine{ProductID: line.Product.ID, Quantity: line.Quantity})
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return errors.Wrap(err, "failed to marshal cart data")
	}
	if err := r.client.HSet(ctx, sessionID, cartField, data).Err(); err != nil {
		return errors.Wrap(err, "redis HSet error")
	}
	return nil
}

// Ping checks that Redis answers within a short timeout.
func (r *RedisStore) Ping(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.client.Ping(pingCtx).Result(); err != nil {
		r.log.Debugf("redis ping failed: %v", err)
		return false
	}
	return true
}
