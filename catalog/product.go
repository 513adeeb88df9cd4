package catalog

import "github.com/peaknutrition/storefront/money"

// Product is a single catalog entry. Products are loaded once by the catalog
// and treated as read-only by everything downstream; the cart holds references
// to them and never mutates one.
type Product struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	PriceUSD    money.Money `json:"priceUsd"`
	// OriginalPriceUSD, when set, is the pre-discount price and must be at
	// least PriceUSD.
	OriginalPriceUSD *money.Money `json:"originalPriceUsd,omitempty"`
	Category         string       `json:"category"`
	Rating           float64      `json:"rating"`
	ReviewCount      int          `json:"reviewCount"`
	InStock          bool         `json:"inStock"`
	Benefits         []string     `json:"benefits,omitempty"`
	Tags             []string     `json:"tags,omitempty"`
}

// Category groups products for navigation. ProductCount is denormalized
// metadata supplied by the catalog file; it is never recomputed here.
type Category struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	ProductCount int    `json:"productCount"`
}
