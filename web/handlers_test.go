package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/peaknutrition/storefront/cartstore"
	"github.com/peaknutrition/storefront/catalog"
)

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	log := logrus.New()
	log.Out = io.Discard

	cat, err := catalog.New()
	if err != nil {
		t.Fatalf("failed to load seed catalog: %v", err)
	}
	return NewServer(log, cat, cartstore.NewLocalStore(cat)).Router()
}

func doGet(t *testing.T, router *mux.Router, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "test-session"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func doPost(t *testing.T, router *mux.Router, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "test-session"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func productIDs(res productListResponse) []string {
	out := make([]string, 0, len(res.Products))
	for _, p := range res.Products {
		out = append(out, p.ID)
	}
	return out
}

func TestListProductsDefaultsToPopularity(t *testing.T) {
	router := newTestRouter(t)
	w := doGet(t, router, "/products")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var res productListResponse
	decode(t, w, &res)
	want := []string{"pure-creatine", "power-surge-pre-workout", "ultra-protein-whey-isolate", "essential-bcaa"}
	if diff := cmp.Diff(want, productIDs(res)); diff != "" {
		t.Errorf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestListProductsFilters(t *testing.T) {
	router := newTestRouter(t)

	w := doGet(t, router, "/products?category=protein&category=creatine&sort=price-low")
	var res productListResponse
	decode(t, w, &res)
	want := []string{"pure-creatine", "ultra-protein-whey-isolate"}
	if diff := cmp.Diff(want, productIDs(res)); diff != "" {
		t.Errorf("unexpected selection (-want +got):\n%s", diff)
	}

	w = doGet(t, router, "/products?min_price=30&max_price=40")
	res = productListResponse{}
	decode(t, w, &res)
	want = []string{"power-surge-pre-workout", "essential-bcaa"}
	if diff := cmp.Diff(want, productIDs(res)); diff != "" {
		t.Errorf("unexpected price window selection (-want +got):\n%s", diff)
	}
}

func TestListProductsRejectsBadQuery(t *testing.T) {
	router := newTestRouter(t)
	for _, path := range []string{
		"/products?sort=newest",
		"/products?min_price=abc",
		"/products?min_rating=x",
		"/products?in_stock=maybe",
	} {
		if w := doGet(t, router, path); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, w.Code)
		}
	}
}

func TestGetProduct(t *testing.T) {
	router := newTestRouter(t)

	w := doGet(t, router, "/products/pure-creatine")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var p catalog.Product
	decode(t, w, &p)
	if p.Name != "Pure Creatine" {
		t.Errorf("unexpected product %q", p.Name)
	}

	if w := doGet(t, router, "/products/nope"); w.Code != http.StatusNotFound {
		t.Errorf("missing product: status = %d, want 404", w.Code)
	}
}

func TestCategories(t *testing.T) {
	router := newTestRouter(t)

	w := doGet(t, router, "/categories")
	var res map[string][]*catalog.Category
	decode(t, w, &res)
	if len(res["categories"]) != 4 {
		t.Errorf("expected 4 categories, got %d", len(res["categories"]))
	}

	if w := doGet(t, router, "/categories/protein"); w.Code != http.StatusOK {
		t.Errorf("get category: status = %d, want 200", w.Code)
	}
	if w := doGet(t, router, "/categories/nope"); w.Code != http.StatusNotFound {
		t.Errorf("missing category: status = %d, want 404", w.Code)
	}
}

func TestCartFlow(t *testing.T) {
	router := newTestRouter(t)

	w := doPost(t, router, "/cart", url.Values{"product_id": {"pure-creatine"}, "quantity": {"2"}})
	if w.Code != http.StatusOK {
		t.Fatalf("add: status = %d, want 200 (%s)", w.Code, w.Body.String())
	}

	// Default quantity is 1.
	w = doPost(t, router, "/cart", url.Values{"product_id": {"essential-bcaa"}})
	if w.Code != http.StatusOK {
		t.Fatalf("add default qty: status = %d", w.Code)
	}
	var res cartResponse
	decode(t, w, &res)
	if res.TotalItems != 3 {
		t.Errorf("TotalItems = %d, want 3", res.TotalItems)
	}
	// 2 x $24.99 + $32.99 = $82.97, above the free shipping threshold.
	if res.Subtotal.Units != 82 || res.Subtotal.Nanos != 970000000 {
		t.Errorf("Subtotal = %+v, want $82.97", res.Subtotal)
	}
	if !res.ShippingCost.IsZero() {
		t.Errorf("ShippingCost = %+v, want free", res.ShippingCost)
	}

	w = doPost(t, router, "/cart/update", url.Values{"product_id": {"pure-creatine"}, "quantity": {"1"}})
	res = cartResponse{}
	decode(t, w, &res)
	if res.TotalItems != 2 {
		t.Errorf("after update TotalItems = %d, want 2", res.TotalItems)
	}
	// $24.99 + $32.99 = $57.98, below the threshold: flat rate applies.
	if res.ShippingCost.Units != 9 || res.ShippingCost.Nanos != 990000000 {
		t.Errorf("ShippingCost = %+v, want $9.99", res.ShippingCost)
	}
	if res.Total.Units != 67 || res.Total.Nanos != 970000000 {
		t.Errorf("Total = %+v, want $67.97", res.Total)
	}

	w = doPost(t, router, "/cart/remove", url.Values{"product_id": {"essential-bcaa"}})
	res = cartResponse{}
	decode(t, w, &res)
	if len(res.Items) != 1 || res.Items[0].Product.ID != "pure-creatine" {
		t.Errorf("unexpected items after remove: %+v", res.Items)
	}

	w = doPost(t, router, "/cart/empty", nil)
	res = cartResponse{}
	decode(t, w, &res)
	if res.TotalItems != 0 || len(res.Items) != 0 {
		t.Errorf("cart not empty: %+v", res)
	}
}

func TestAddToCartValidation(t *testing.T) {
	router := newTestRouter(t)

	if w := doPost(t, router, "/cart", url.Values{"quantity": {"1"}}); w.Code != http.StatusBadRequest {
		t.Errorf("missing product_id: status = %d, want 400", w.Code)
	}
	if w := doPost(t, router, "/cart", url.Values{"product_id": {"pure-creatine"}, "quantity": {"0"}}); w.Code != http.StatusBadRequest {
		t.Errorf("zero quantity: status = %d, want 400", w.Code)
	}
	if w := doPost(t, router, "/cart", url.Values{"product_id": {"pure-creatine"}, "quantity": {"x"}}); w.Code != http.StatusBadRequest {
		t.Errorf("bad quantity: status = %d, want 400", w.Code)
	}
	if w := doPost(t, router, "/cart", url.Values{"product_id": {"nope"}}); w.Code != http.StatusNotFound {
		t.Errorf("unknown product: status = %d, want 404", w.Code)
	}
}

func TestUpdateBelowOneRemovesLine(t *testing.T) {
	router := newTestRouter(t)

	doPost(t, router, "/cart", url.Values{"product_id": {"pure-creatine"}, "quantity": {"2"}})
	w := doPost(t, router, "/cart/update", url.Values{"product_id": {"pure-creatine"}, "quantity": {"0"}})
	var res cartResponse
	decode(t, w, &res)
	if len(res.Items) != 0 {
		t.Errorf("expected line removed, got %+v", res.Items)
	}
}

func TestSessionsSeeSeparateCarts(t *testing.T) {
	router := newTestRouter(t)

	doPost(t, router, "/cart", url.Values{"product_id": {"pure-creatine"}, "quantity": {"1"}})

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "another-session"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var res cartResponse
	decode(t, w, &res)
	if res.TotalItems != 0 {
		t.Errorf("another session sees %d items", res.TotalItems)
	}
}

func TestSessionCookieMinted(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookieName && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("no session cookie set for a fresh visitor")
	}
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)
	if w := doGet(t, router, "/healthz"); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
