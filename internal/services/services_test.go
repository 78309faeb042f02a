package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sieger/storefront/internal/api"
	"github.com/sieger/storefront/internal/catalog"
)

func newBackend(t *testing.T, handler http.Handler) *api.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return api.NewClient(server.URL, 5*time.Second, nil, zerolog.Nop())
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestProductsListSortsByName(t *testing.T) {
	client := newBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		writeJSON(t, w, []catalog.Product{
			{ID: "p-2", Name: "Zebra mug"},
			{ID: "p-1", Name: "apple bowl"},
		})
	}))

	products, err := NewProducts(client).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("got %d products, want 2", len(products))
	}
	if products[0].ID != "p-1" {
		t.Fatalf("products not sorted case-insensitively by name: first is %s", products[0].ID)
	}
}

func TestProductsSearchFiltersNameAndDescription(t *testing.T) {
	client := newBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []catalog.Product{
			{ID: "p-1", Name: "Ceramic mug", Description: "Blue glaze"},
			{ID: "p-2", Name: "Steel bottle", Description: "Keeps coffee hot"},
			{ID: "p-3", Name: "Notebook", Description: "Dotted pages"},
		})
	}))

	products, err := NewProducts(client).Search(context.Background(), "COFFEE")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(products) != 1 || products[0].ID != "p-2" {
		t.Fatalf("Search matched %v, want just p-2", products)
	}
}

func TestProductsSearchEmptyQueryReturnsAll(t *testing.T) {
	client := newBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []catalog.Product{{ID: "p-1", Name: "Mug"}})
	}))

	products, err := NewProducts(client).Search(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("got %d products, want 1", len(products))
	}
}

func TestProductsCheckStockReportsQuantity(t *testing.T) {
	client := newBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products/p-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeJSON(t, w, catalog.Product{ID: "p-1", Name: "Mug", Quantity: 7})
	}))

	available, err := NewProducts(client).CheckStock(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("CheckStock: %v", err)
	}
	if available != 7 {
		t.Fatalf("got %d available, want 7", available)
	}
}

func TestProductsCreateValidatesBeforeSending(t *testing.T) {
	requests := 0
	client := newBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))

	_, err := NewProducts(client).Create(context.Background(), catalog.ProductRequest{
		Name:  "",
		Price: -1,
	})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if requests != 0 {
		t.Fatalf("invalid request reached the backend")
	}
}

func TestProductsCreatePostsAndDecodes(t *testing.T) {
	client := newBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/products" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req catalog.ProductRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		writeJSON(t, w, catalog.Product{ID: "p-9", Name: req.Name, Price: req.Price})
	}))

	created, err := NewProducts(client).Create(context.Background(), catalog.ProductRequest{
		Name:     "Ceramic mug",
		Price:    12.50,
		Quantity: 10,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID != "p-9" || created.Name != "Ceramic mug" {
		t.Fatalf("unexpected created product %+v", created)
	}
}

func TestProductsDeleteHitsEndpoint(t *testing.T) {
	var gotPath, gotMethod string
	client := newBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := NewProducts(client).Delete(context.Background(), "p-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/products/p-1" {
		t.Fatalf("got %s %s, want DELETE /products/p-1", gotMethod, gotPath)
	}
}

func TestOrdersMyOrdersSortsNewestFirst(t *testing.T) {
	client := newBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders/my-orders" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeJSON(t, w, []catalog.Order{
			{ID: "o-1", Date: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)},
			{ID: "o-2", Date: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)},
		})
	}))

	orders, err := NewOrders(client).MyOrders(context.Background())
	if err != nil {
		t.Fatalf("MyOrders: %v", err)
	}
	if orders[0].ID != "o-2" {
		t.Fatalf("orders not sorted newest first: %v", orders)
	}
}

func TestOrdersCreateSendsProductMap(t *testing.T) {
	var gotReq catalog.OrderRequest
	client := newBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		writeJSON(t, w, catalog.Order{ID: "o-10", Status: catalog.StatusCreated})
	}))

	order, err := NewOrders(client).Create(context.Background(), catalog.OrderRequest{
		Products: map[string]int{"p-1": 2, "p-2": 1},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if order.ID != "o-10" || order.Status != catalog.StatusCreated {
		t.Fatalf("unexpected order %+v", order)
	}
	if gotReq.Products["p-1"] != 2 || gotReq.Products["p-2"] != 1 {
		t.Fatalf("backend saw products %v", gotReq.Products)
	}
}

func TestOrdersUpdateStatusRejectsIllegalTransitionLocally(t *testing.T) {
	requests := 0
	client := newBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))

	order := catalog.Order{ID: "o-1", Status: catalog.StatusCreated}
	_, err := NewOrders(client).UpdateStatus(context.Background(), order, catalog.StatusDelivered)
	if err == nil {
		t.Fatalf("expected transition error for CREATED -> DELIVERED")
	}
	if requests != 0 {
		t.Fatalf("illegal transition reached the backend")
	}
}

func TestOrdersUpdateStatusSendsNextStatus(t *testing.T) {
	var gotPath string
	var gotUpdate catalog.StatusUpdate
	client := newBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotUpdate); err != nil {
			t.Errorf("decode request: %v", err)
		}
		writeJSON(t, w, catalog.Order{ID: "o-1", Status: catalog.StatusPending})
	}))

	order := catalog.Order{ID: "o-1", Status: catalog.StatusCreated}
	updated, err := NewOrders(client).UpdateStatus(context.Background(), order, catalog.StatusPending)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if gotPath != "/orders/o-1/status" {
		t.Fatalf("path = %s", gotPath)
	}
	if gotUpdate.Status != catalog.StatusPending {
		t.Fatalf("sent status %s, want PENDING", gotUpdate.Status)
	}
	if updated.Status != catalog.StatusPending {
		t.Fatalf("updated status %s", updated.Status)
	}
}

func TestOrdersCancelRejectsDeliveredOrder(t *testing.T) {
	requests := 0
	client := newBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))

	order := catalog.Order{ID: "o-1", Status: catalog.StatusDelivered}
	_, err := NewOrders(client).Cancel(context.Background(), order)
	if err == nil {
		t.Fatalf("expected error canceling a delivered order")
	}
	if requests != 0 {
		t.Fatalf("illegal cancel reached the backend")
	}
}

func TestOrdersCancelHitsEndpoint(t *testing.T) {
	var gotPath, gotMethod string
	client := newBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		writeJSON(t, w, catalog.Order{ID: "o-1", Status: catalog.StatusCanceled})
	}))

	order := catalog.Order{ID: "o-1", Status: catalog.StatusPending}
	canceled, err := NewOrders(client).Cancel(context.Background(), order)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/orders/o-1/cancel" {
		t.Fatalf("got %s %s, want PUT /orders/o-1/cancel", gotMethod, gotPath)
	}
	if canceled.Status != catalog.StatusCanceled {
		t.Fatalf("status %s", canceled.Status)
	}
}

func TestOrdersStatsAggregatesAllOrders(t *testing.T) {
	client := newBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeJSON(t, w, []catalog.Order{
			{ID: "o-1", Status: catalog.StatusCreated, TotalAmount: 40},
			{ID: "o-2", Status: catalog.StatusDelivered, TotalAmount: 60},
			{ID: "o-3", Status: catalog.StatusCanceled, TotalAmount: 25},
		})
	}))

	stats, err := NewOrders(client).Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 3 {
		t.Fatalf("Total = %d", stats.Total)
	}
	if stats.TotalRevenue != 100 {
		t.Fatalf("TotalRevenue = %v, want canceled orders excluded", stats.TotalRevenue)
	}
}
