// Package catalog resolves the product list shown on the listing page from the first source that
// yields data: the hosted backend, a local JSON document, then the built-in sample boxes.
package catalog

import (
	"github.com/aylaurquizo/KTPHackathon/internal/backend"
)

// Product is the display record for one mystery box or supplement. Rating is free text such as
// "4.6 out of 5 stars". ID is set only for backend boxes and is what the cart references.
type Product struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Rating      string `json:"rating"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Image       string `json:"image"`
}

// FromBox maps a backend row to a Product, renaming image_url to image.
func FromBox(box backend.Box) Product {
	return Product{
		ID:          box.ID.String(),
		Title:       box.Title,
		Rating:      box.Rating,
		Description: box.Description,
		Category:    box.Category,
		Image:       box.ImageURL,
	}
}

// Clone returns a copy of products that callers may modify freely.
func Clone(products []Product) []Product {
	if products == nil {
		return nil
	}
	out := make([]Product, len(products))
	copy(out, products)
	return out
}
