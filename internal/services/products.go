// Package services exposes the backend operations the UI works with,
// one service per resource. Each call goes through the shared API client
// and returns typed values from the catalog package.
package services

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sieger/storefront/internal/api"
	"github.com/sieger/storefront/internal/catalog"
)

// Products covers the product catalog, including the admin-only writes.
type Products struct {
	client   *api.Client
	validate *validator.Validate
}

func NewProducts(client *api.Client) *Products {
	return &Products{
		client:   client,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// List fetches every product, sorted by name for stable display.
func (p *Products) List(ctx context.Context) ([]catalog.Product, error) {
	var products []catalog.Product
	if err := p.client.Get(ctx, "/products", &products); err != nil {
		return nil, err
	}
	sort.Slice(products, func(i, j int) bool {
		return strings.ToLower(products[i].Name) < strings.ToLower(products[j].Name)
	})
	return products, nil
}

// Get fetches a single product by id.
func (p *Products) Get(ctx context.Context, id string) (catalog.Product, error) {
	var product catalog.Product
	if err := p.client.Get(ctx, "/products/"+url.PathEscape(id), &product); err != nil {
		return catalog.Product{}, err
	}
	return product, nil
}

// Search filters the full catalog by a case-insensitive substring of the
// product name or description. The backend has no search endpoint, so the
// filtering happens here.
func (p *Products) Search(ctx context.Context, query string) ([]catalog.Product, error) {
	products, err := p.List(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return products, nil
	}
	matched := products[:0]
	for _, product := range products {
		if strings.Contains(strings.ToLower(product.Name), query) ||
			strings.Contains(strings.ToLower(product.Description), query) {
			matched = append(matched, product)
		}
	}
	return matched, nil
}

// CheckStock reports how many units of the product are currently available.
func (p *Products) CheckStock(ctx context.Context, id string) (int, error) {
	product, err := p.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return product.Quantity, nil
}

// Create adds a new product. Admin only.
func (p *Products) Create(ctx context.Context, req catalog.ProductRequest) (catalog.Product, error) {
	if err := p.validate.Struct(req); err != nil {
		return catalog.Product{}, fmt.Errorf("invalid product: %w", err)
	}
	var created catalog.Product
	if err := p.client.Post(ctx, "/products", req, &created); err != nil {
		return catalog.Product{}, err
	}
	return created, nil
}

// Update replaces an existing product. Admin only.
func (p *Products) Update(ctx context.Context, id string, req catalog.ProductRequest) (catalog.Product, error) {
	if err := p.validate.Struct(req); err != nil {
		return catalog.Product{}, fmt.Errorf("invalid product: %w", err)
	}
	var updated catalog.Product
	if err := p.client.Put(ctx, "/products/"+url.PathEscape(id), req, &updated); err != nil {
		return catalog.Product{}, err
	}
	return updated, nil
}

// Delete removes a product. Admin only.
func (p *Products) Delete(ctx context.Context, id string) error {
	return p.client.Delete(ctx, "/products/"+url.PathEscape(id))
}
