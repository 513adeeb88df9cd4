// Package web is the HTTP presentation layer: it parses filter, sort and
// cart requests, calls the catalog and cart engines, and renders their
// output as JSON.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/peaknutrition/storefront/cart"
	"github.com/peaknutrition/storefront/cartstore"
	"github.com/peaknutrition/storefront/catalog"
	"github.com/peaknutrition/storefront/money"
)

const serviceName = "storefront"

// Server wires the catalog and cart store into HTTP handlers.
type Server struct {
	log     *logrus.Logger
	catalog *catalog.Catalog
	store   cartstore.Store
	tracer  trace.Tracer

	productListCounter metric.Int64Counter
	cartOpCounter      metric.Int64Counter
}

// NewServer returns a Server over the given catalog and cart store.
func NewServer(log *logrus.Logger, c *catalog.Catalog, store cartstore.Store) *Server {
	s := &Server{
		log:     log,
		catalog: c,
		store:   store,
		tracer:  otel.Tracer(serviceName),
	}

	meter := otel.Meter(serviceName)
	var err error
	if s.productListCounter, err = meter.Int64Counter("app.product_list.requests"); err != nil {
		log.Warnf("failed to create product list counter: %v", err)
	}
	if s.cartOpCounter, err = meter.Int64Counter("app.cart.operations"); err != nil {
		log.Warnf("failed to create cart operation counter: %v", err)
	}
	return s
}

// Router builds the route table with tracing, logging and session
// middleware applied.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware(serviceName))
	r.Use(s.logMiddleware)
	r.Use(s.sessionMiddleware)

	r.HandleFunc("/products", s.listProductsHandler).Methods(http.MethodGet)
	r.HandleFunc("/products/{id}", s.getProductHandler).Methods(http.MethodGet)
	r.HandleFunc("/categories", s.listCategoriesHandler).Methods(http.MethodGet)
	r.HandleFunc("/categories/{id}", s.getCategoryHandler).Methods(http.MethodGet)

	r.HandleFunc("/cart", s.getCartHandler).Methods(http.MethodGet)
	r.HandleFunc("/cart", s.addToCartHandler).Methods(http.MethodPost)
	r.HandleFunc("/cart/update", s.updateCartHandler).Methods(http.MethodPost)
	r.HandleFunc("/cart/remove", s.removeFromCartHandler).Methods(http.MethodPost)
	r.HandleFunc("/cart/empty", s.emptyCartHandler).Methods(http.MethodPost)

	r.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)
	return r
}

type productListResponse struct {
	Products []*catalog.Product `json:"products"`
}

func (s *Server) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filters, sortKey, err := s.parseListQuery(r)
	if err != nil {
		s.renderError(w, http.StatusBadRequest, err)
		return
	}

	ctx, span := s.tracer.Start(ctx, "SelectProducts")
	result := catalog.Select(s.catalog.Products(), filters, sortKey)
	span.SetAttributes(
		attribute.String("app.sort_key", string(sortKey)),
		attribute.Int("app.products.returned", len(result)),
	)
	span.End()
	if s.productListCounter != nil {
		s.productListCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("sort_key", string(sortKey))))
	}

	s.renderJSON(w, http.StatusOK, productListResponse{Products: result})
}

// parseListQuery converts listing query parameters into a FilterState and
// SortKey. Absent price bounds default to the catalog's full price range,
// the same full-window default the filter panel starts from.
func (s *Server) parseListQuery(r *http.Request) (catalog.FilterState, catalog.SortKey, error) {
	q := r.URL.Query()

	sortKey, err := catalog.ParseSortKey(q.Get("sort"))
	if err != nil {
		return catalog.FilterState{}, "", err
	}

	minPrice, maxPrice := s.catalog.PriceBounds()
	if v := q.Get("min_price"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return catalog.FilterState{}, "", errors.Errorf("invalid min_price %q", v)
		}
		minPrice = money.FromFloat("USD", f)
	}
	if v := q.Get("max_price"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return catalog.FilterState{}, "", errors.Errorf("invalid max_price %q", v)
		}
		maxPrice = money.FromFloat("USD", f)
	}

	var minRating float64
	if v := q.Get("min_rating"); v != "" {
		minRating, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return catalog.FilterState{}, "", errors.Errorf("invalid min_rating %q", v)
		}
	}

	inStock := false
	if v := q.Get("in_stock"); v != "" {
		inStock, err = strconv.ParseBool(v)
		if err != nil {
			return catalog.FilterState{}, "", errors.Errorf("invalid in_stock %q", v)
		}
	}

	filters := catalog.FilterState{
		Categories:  q["category"],
		PriceRange:  [2]money.Money{minPrice, maxPrice},
		MinRating:   minRating,
		Features:    q["feature"],
		InStockOnly: inStock,
	}
	return filters, sortKey, nil
}

func (s *Server) getProductHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p, ok := s.catalog.Product(id)
	if !ok {
		s.renderError(w, http.StatusNotFound, errors.Errorf("product %q not found", id))
		return
	}
	s.renderJSON(w, http.StatusOK, p)
}

func (s *Server) listCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	s.renderJSON(w, http.StatusOK, map[string][]*catalog.Category{"categories": s.catalog.Categories()})
}

func (s *Server) getCategoryHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	c, ok := s.catalog.Category(id)
	if !ok {
		s.renderError(w, http.StatusNotFound, errors.Errorf("category %q not found", id))
		return
	}
	s.renderJSON(w, http.StatusOK, c)
}

type cartLineResponse struct {
	Product   *catalog.Product `json:"product"`
	Quantity  int32            `json:"quantity"`
	LineTotal money.Money      `json:"lineTotal"`
}

type cartResponse struct {
	Items        []cartLineResponse `json:"items"`
	TotalItems   int32              `json:"totalItems"`
	Subtotal     money.Money        `json:"subtotal"`
	ShippingCost money.Money        `json:"shippingCost"`
	Total        money.Money        `json:"total"`
}

func (s *Server) renderCart(w http.ResponseWriter, c *cart.Cart) {
	lines := c.Lines()
	items := make([]cartLineResponse, 0, len(lines))
	for _, line := range lines {
		items = append(items, cartLineResponse{
			Product:   line.Product,
			Quantity:  line.Quantity,
			LineTotal: money.MultiplySlow(line.Product.PriceUSD, uint32(line.Quantity)),
		})
	}
	s.renderJSON(w, http.StatusOK, cartResponse{
		Items:        items,
		TotalItems:   c.TotalItems(),
		Subtotal:     c.Subtotal(),
		ShippingCost: c.ShippingCost(),
		Total:        c.Total(),
	})
}

func (s *Server) getCartHandler(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetCart(r.Context(), sessionID(r.Context()))
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, errors.Wrap(err, "failed to get cart"))
		return
	}
	s.renderCart(w, c)
}

func (s *Server) addToCartHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := r.FormValue("product_id")
	if productID == "" {
		s.renderError(w, http.StatusBadRequest, errors.New("product_id is required"))
		return
	}

	quantity := int32(1)
	if v := r.FormValue("quantity"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			s.renderError(w, http.StatusBadRequest, errors.Errorf("invalid quantity %q", v))
			return
		}
		quantity = int32(n)
	}
	if quantity < 1 {
		s.renderError(w, http.StatusBadRequest, cart.ErrInvalidQuantity)
		return
	}

	if err := s.store.AddItem(ctx, sessionID(ctx), productID, quantity); err != nil {
		s.renderCartError(w, err, "failed to add item to cart")
		return
	}
	s.countCartOp(ctx, "add")
	s.getCartHandler(w, r)
}

func (s *Server) updateCartHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := r.FormValue("product_id")
	if productID == "" {
		s.renderError(w, http.StatusBadRequest, errors.New("product_id is required"))
		return
	}
	n, err := strconv.ParseInt(r.FormValue("quantity"), 10, 32)
	if err != nil {
		s.renderError(w, http.StatusBadRequest, errors.Errorf("invalid quantity %q", r.FormValue("quantity")))
		return
	}

	if err := s.store.UpdateQuantity(ctx, sessionID(ctx), productID, int32(n)); err != nil {
		s.renderCartError(w, err, "failed to update cart")
		return
	}
	s.countCartOp(ctx, "update")
	s.getCartHandler(w, r)
}

func (s *Server) removeFromCartHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := r.FormValue("product_id")
	if productID == "" {
		s.renderError(w, http.StatusBadRequest, errors.New("product_id is required"))
		return
	}

	if err := s.store.RemoveItem(ctx, sessionID(ctx), productID); err != nil {
		s.renderCartError(w, err, "failed to remove item from cart")
		return
	}
	s.countCartOp(ctx, "remove")
	s.getCartHandler(w, r)
}

func (s *Server) emptyCartHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.store.EmptyCart(ctx, sessionID(ctx)); err != nil {
		s.renderCartError(w, err, "failed to empty cart")
		return
	}
	s.countCartOp(ctx, "empty")
	s.getCartHandler(w, r)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if !s.store.Ping(r.Context()) {
		s.renderJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	s.renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) countCartOp(ctx context.Context, op string) {
	if s.cartOpCounter != nil {
		s.cartOpCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
	}
}

// renderCartError maps cart store failures onto HTTP statuses: unknown
// products and contract violations are client errors, anything else is a
// server error.
func (s *Server) renderCartError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, cartstore.ErrUnknownProduct):
		s.renderError(w, http.StatusNotFound, err)
	case errors.Is(err, cart.ErrInvalidQuantity):
		s.renderError(w, http.StatusBadRequest, err)
	default:
		s.renderError(w, http.StatusInternalServerError, errors.Wrap(err, msg))
	}
}

func (s *Server) renderJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Errorf("failed to encode response: %v", err)
	}
}

func (s *Server) renderError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).Error("request failed")
	}
	s.renderJSON(w, status, map[string]string{"error": err.Error()})
}
