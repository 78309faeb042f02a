// internal/catalog/order.go
//
// Order types and the status lifecycle. Orders are created by the backend in
// response to a checkout request; the client only ever asks for a status
// change or a cancellation.

package catalog

import (
	"fmt"
	"sort"
	"time"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusCreated   OrderStatus = "CREATED"
	StatusPending   OrderStatus = "PENDING"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCanceled  OrderStatus = "CANCELED"
)

// statusOrder is the linear progression. CANCELED sits outside it and is
// reachable from any non-terminal state.
var statusOrder = []OrderStatus{StatusCreated, StatusPending, StatusDelivered}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusPending, StatusDelivered, StatusCanceled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCanceled
}

// Next returns the following state in the linear lifecycle, or "" when the
// status is terminal.
func (s OrderStatus) Next() OrderStatus {
	for i, st := range statusOrder {
		if st == s && i+1 < len(statusOrder) {
			return statusOrder[i+1]
		}
	}
	return ""
}

// CanTransitionTo reports whether moving from s to target is allowed:
// one step forward in the linear lifecycle, or CANCELED from any
// non-terminal state.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	if !s.Valid() || !target.Valid() || s.IsTerminal() {
		return false
	}
	if target == StatusCanceled {
		return true
	}
	return s.Next() == target
}

// OrderLine is one line of a submitted order. Price is the unit price at
// order time; the line total is always derived, never stored.
type OrderLine struct {
	ID       int64   `json:"id"`
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// LineTotal returns quantity times the unit price captured at order time.
func (l OrderLine) LineTotal() float64 {
	return l.Price * float64(l.Quantity)
}

// Order is a backend-created record representing a submitted cart.
type Order struct {
	ID          string      `json:"id"`
	Date        time.Time   `json:"date"`
	Status      OrderStatus `json:"status"`
	TotalAmount float64     `json:"totalAmount"`
	OrderLines  []OrderLine `json:"orderLines"`
}

// OrderRequest maps product identifiers to requested quantities, the body of
// the order-creation endpoint.
type OrderRequest struct {
	Products map[string]int `json:"products"`
}

// StatusUpdate is the body of the admin status-change endpoint.
type StatusUpdate struct {
	Status OrderStatus `json:"status"`
}

// Stats aggregates a set of orders for the admin dashboard.
type Stats struct {
	Total        int                 `json:"total"`
	ByStatus     map[OrderStatus]int `json:"byStatus"`
	TotalRevenue float64             `json:"totalRevenue"`
	RecentOrders []Order             `json:"recentOrders"`
}

// ComputeStats derives dashboard statistics: counts per status, revenue
// excluding canceled orders, and the five most recent orders.
func ComputeStats(orders []Order) Stats {
	stats := Stats{
		Total: len(orders),
		ByStatus: map[OrderStatus]int{
			StatusCreated:   0,
			StatusPending:   0,
			StatusDelivered: 0,
			StatusCanceled:  0,
		},
	}
	for _, order := range orders {
		if _, ok := stats.ByStatus[order.Status]; ok {
			stats.ByStatus[order.Status]++
		}
		if order.Status != StatusCanceled {
			stats.TotalRevenue += order.TotalAmount
		}
	}
	recent := make([]Order, len(orders))
	copy(recent, orders)
	sort.Slice(recent, func(i, j int) bool {
		return recent[i].Date.After(recent[j].Date)
	})
	if len(recent) > 5 {
		recent = recent[:5]
	}
	stats.RecentOrders = recent
	return stats
}

// ValidateTransition returns a descriptive error when the move is not
// allowed, used before issuing a status-change request.
func ValidateTransition(from, to OrderStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("catalog: cannot transition order from %s to %s", from, to)
	}
	return nil
}
