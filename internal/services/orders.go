package services

import (
	"context"
	"net/url"
	"sort"

	"github.com/sieger/storefront/internal/api"
	"github.com/sieger/storefront/internal/catalog"
)

// Orders covers order placement, history, and the admin status workflow.
type Orders struct {
	client *api.Client
}

func NewOrders(client *api.Client) *Orders {
	return &Orders{client: client}
}

// List fetches every order in the system, newest first. Admin only.
func (o *Orders) List(ctx context.Context) ([]catalog.Order, error) {
	var orders []catalog.Order
	if err := o.client.Get(ctx, "/orders", &orders); err != nil {
		return nil, err
	}
	sortByDateDesc(orders)
	return orders, nil
}

// MyOrders fetches the authenticated user's own orders, newest first.
func (o *Orders) MyOrders(ctx context.Context) ([]catalog.Order, error) {
	var orders []catalog.Order
	if err := o.client.Get(ctx, "/orders/my-orders", &orders); err != nil {
		return nil, err
	}
	sortByDateDesc(orders)
	return orders, nil
}

// Get fetches a single order by id.
func (o *Orders) Get(ctx context.Context, id string) (catalog.Order, error) {
	var order catalog.Order
	if err := o.client.Get(ctx, "/orders/"+url.PathEscape(id), &order); err != nil {
		return catalog.Order{}, err
	}
	return order, nil
}

// Create places a new order from a product-to-quantity map.
func (o *Orders) Create(ctx context.Context, req catalog.OrderRequest) (catalog.Order, error) {
	var created catalog.Order
	if err := o.client.Post(ctx, "/orders", req, &created); err != nil {
		return catalog.Order{}, err
	}
	return created, nil
}

// UpdateStatus advances an order to the given status. The transition is
// checked locally before the request goes out so the UI can reject an
// illegal move without a round trip. Admin only.
func (o *Orders) UpdateStatus(ctx context.Context, order catalog.Order, next catalog.OrderStatus) (catalog.Order, error) {
	if err := catalog.ValidateTransition(order.Status, next); err != nil {
		return catalog.Order{}, err
	}
	var updated catalog.Order
	path := "/orders/" + url.PathEscape(order.ID) + "/status"
	if err := o.client.Put(ctx, path, catalog.StatusUpdate{Status: next}, &updated); err != nil {
		return catalog.Order{}, err
	}
	return updated, nil
}

// Cancel cancels an order that has not yet been delivered.
func (o *Orders) Cancel(ctx context.Context, order catalog.Order) (catalog.Order, error) {
	if err := catalog.ValidateTransition(order.Status, catalog.StatusCanceled); err != nil {
		return catalog.Order{}, err
	}
	var canceled catalog.Order
	path := "/orders/" + url.PathEscape(order.ID) + "/cancel"
	if err := o.client.Put(ctx, path, nil, &canceled); err != nil {
		return catalog.Order{}, err
	}
	return canceled, nil
}

// Stats summarizes all orders for the admin dashboard. Admin only.
func (o *Orders) Stats(ctx context.Context) (catalog.Stats, error) {
	orders, err := o.List(ctx)
	if err != nil {
		return catalog.Stats{}, err
	}
	return catalog.ComputeStats(orders), nil
}

func sortByDateDesc(orders []catalog.Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].Date.After(orders[j].Date)
	})
}
