// Package catalog holds the static product catalog and the filter/sort
// engine used to drive product listings.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/peaknutrition/storefront/money"
)

//go:embed products.json
var defaultCatalogData []byte

// Catalog is the loaded product collection. It is read-mostly: the only
// mutation is a wholesale swap when the catalog file is reloaded.
type Catalog struct {
	mu         sync.RWMutex
	products   []*Product
	categories []*Category
	byID       map[string]*Product
	catByID    map[string]*Category
}

type catalogFile struct {
	Categories []*Category `json:"categories"`
	Products   []*Product  `json:"products"`
}

// New returns a catalog populated from the embedded seed data.
func New() (*Catalog, error) {
	c := &Catalog{}
	if err := c.reload(defaultCatalogData); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads the catalog from a JSON file on disk.
func Load(path string) (*Catalog, error) {
	c := &Catalog{}
	if err := c.ReloadFile(path); err != nil {
		return nil, err
	}
	return c, nil
}

// ReloadFile re-reads the given catalog file and atomically replaces the
// current contents. On error the previous contents are kept.
func (c *Catalog) ReloadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog file %q: %w", path, err)
	}
	return c.reload(data)
}

func (c *Catalog) reload(data []byte) error {
	var f catalogFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse catalog data: %w", err)
	}
	byID := make(map[string]*Product, len(f.Products))
	catByID := make(map[string]*Category, len(f.Categories))
	for _, cat := range f.Categories {
		if cat.ID == "" {
			return fmt.Errorf("category %q has no id", cat.Name)
		}
		if _, ok := catByID[cat.ID]; ok {
			return fmt.Errorf("duplicate category id %q", cat.ID)
		}
		catByID[cat.ID] = cat
	}
	for _, p := range f.Products {
		if err := validateProduct(p, catByID); err != nil {
			return err
		}
		if _, ok := byID[p.ID]; ok {
			return fmt.Errorf("duplicate product id %q", p.ID)
		}
		byID[p.ID] = p
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = f.Products
	c.categories = f.Categories
	c.byID = byID
	c.catByID = catByID
	return nil
}

func validateProduct(p *Product, categories map[string]*Category) error {
	if p.ID == "" {
		return fmt.Errorf("product %q has no id", p.Name)
	}
	if !p.PriceUSD.IsValid() || p.PriceUSD.Units < 0 || p.PriceUSD.Nanos < 0 {
		return fmt.Errorf("product %q has an invalid price", p.ID)
	}
	if p.OriginalPriceUSD != nil && money.Cmp(*p.OriginalPriceUSD, p.PriceUSD) < 0 {
		return fmt.Errorf("product %q original price is below its price", p.ID)
	}
	if p.Rating < 0 || p.Rating > 5 {
		return fmt.Errorf("product %q rating %v is out of range", p.ID, p.Rating)
	}
	if p.ReviewCount < 0 {
		return fmt.Errorf("product %q has a negative review count", p.ID)
	}
	if _, ok := categories[p.Category]; !ok {
		return fmt.Errorf("product %q references unknown category %q", p.ID, p.Category)
	}
	return nil
}

// Products returns all products in catalog order.
func (c *Catalog) Products() []*Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Product, len(c.products))
	copy(out, c.products)
	return out
}

// Categories returns all categories in catalog order.
func (c *Catalog) Categories() []*Category {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Category, len(c.categories))
	copy(out, c.categories)
	return out
}

// Product looks up a product by id.
func (c *Catalog) Product(id string) (*Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byID[id]
	return p, ok
}

// Category looks up a category by id.
func (c *Catalog) Category(id string) (*Category, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cat, ok := c.catByID[id]
	return cat, ok
}

// PriceBounds returns the lowest and highest product price in the catalog,
// used by callers to build a full-range price window (the storefront UI
// defaults its slider to exactly this interval).
func (c *Catalog) PriceBounds() (min, max money.Money) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i, p := range c.products {
		if i == 0 {
			min, max = p.PriceUSD, p.PriceUSD
			continue
		}
		if money.Cmp(p.PriceUSD, min) < 0 {
			min = p.PriceUSD
		}
		if money.Cmp(p.PriceUSD, max) > 0 {
			max = p.PriceUSD
		}
	}
	return min, max
}
