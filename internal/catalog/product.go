// internal/catalog/product.go
//
// Product types shared by the cart, the services layer and the TUI.
// The backend owns these records; the client only reads them, except for
// admin edits which replace the whole record.

package catalog

// Product is a catalog entry as served by the product resource API.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	ImageURL    string  `json:"imageUrl,omitempty"`
}

// InStock reports whether at least one unit is available.
func (p Product) InStock() bool {
	return p.Quantity > 0
}

// ProductRequest is the payload for admin create/update operations.
// Validated client-side before submission.
type ProductRequest struct {
	Name        string  `json:"name" validate:"required,min=1"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price" validate:"gte=0"`
	Quantity    int     `json:"quantity" validate:"gte=0"`
	ImageURL    string  `json:"imageUrl,omitempty" validate:"omitempty,url"`
}
