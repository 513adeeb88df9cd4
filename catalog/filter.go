package catalog

import (
	"fmt"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/peaknutrition/storefront/money"
)

// SortKey selects the ordering applied to a filtered product list.
type SortKey string

const (
	SortName       SortKey = "name"
	SortPriceLow   SortKey = "price-low"
	SortPriceHigh  SortKey = "price-high"
	SortRating     SortKey = "rating"
	SortPopularity SortKey = "popularity"
)

// DefaultSortKey is the ordering the storefront starts with.
const DefaultSortKey = SortPopularity

// ParseSortKey maps the wire form of a sort key to a SortKey. An empty
// string yields the default.
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(s) {
	case "":
		return DefaultSortKey, nil
	case SortName, SortPriceLow, SortPriceHigh, SortRating, SortPopularity:
		return SortKey(s), nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// FilterState holds the active listing criteria. All criteria are combined
// with AND. The zero value restricts prices to the empty window [0, 0];
// callers build the window from Catalog.PriceBounds when they want no price
// restriction, exactly as the storefront UI defaults its slider.
type FilterState struct {
	// Categories is the set of category ids to include. Empty means
	// unrestricted, never "match nothing".
	Categories []string
	// PriceRange is a closed interval, inclusive on both ends. An inverted
	// window (min > max) matches nothing; that is defined behavior, not an
	// error.
	PriceRange [2]money.Money
	// MinRating is the inclusive rating floor. Zero means no threshold.
	MinRating float64
	// Features is accepted for parity with the filter UI but is not applied
	// as a predicate; no matching semantics exist for it.
	Features []string
	// InStockOnly restricts the listing to in-stock products.
	InStockOnly bool
}

func (f FilterState) matches(p *Product) bool {
	if len(f.Categories) > 0 && !containsString(f.Categories, p.Category) {
		return false
	}
	if money.Cmp(p.PriceUSD, f.PriceRange[0]) < 0 || money.Cmp(p.PriceUSD, f.PriceRange[1]) > 0 {
		return false
	}
	if f.MinRating > 0 && p.Rating < f.MinRating {
		return false
	}
	if f.InStockOnly && !p.InStock {
		return false
	}
	// Feature criteria intentionally do not filter; see FilterState.Features.
	return true
}

func containsString(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// Select returns the products passing every filter criterion, ordered by the
// given sort key. It is pure: the input slice is never modified and the
// relative input order of products equal under the sort key is preserved.
func Select(products []*Product, filters FilterState, sortKey SortKey) []*Product {
	filtered := make([]*Product, 0, len(products))
	for _, p := range products {
		if filters.matches(p) {
			filtered = append(filtered, p)
		}
	}

	switch sortKey {
	case SortName:
		coll := collate.New(language.English)
		sort.SliceStable(filtered, func(i, j int) bool {
			return coll.CompareString(filtered[i].Name, filtered[j].Name) < 0
		})
	case SortPriceLow:
		sort.SliceStable(filtered, func(i, j int) bool {
			return money.Cmp(filtered[i].PriceUSD, filtered[j].PriceUSD) < 0
		})
	case SortPriceHigh:
		sort.SliceStable(filtered, func(i, j int) bool {
			return money.Cmp(filtered[i].PriceUSD, filtered[j].PriceUSD) > 0
		})
	case SortRating:
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].Rating > filtered[j].Rating
		})
	case SortPopularity:
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].ReviewCount > filtered[j].ReviewCount
		})
	}
	return filtered
}
