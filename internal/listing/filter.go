package listing

import "github.com/aylaurquizo/KTPHackathon/internal/catalog"

// AllCategory is the filter sentinel that shows every product.
const AllCategory = "all"

// Filter returns the products whose category equals category exactly (case-sensitive). AllCategory
// returns a copy of the whole list. The input is never modified.
func Filter(products []catalog.Product, category string) []catalog.Product {
	if category == AllCategory {
		return catalog.Clone(products)
	}
	out := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}
