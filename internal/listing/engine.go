// Package listing filters the loaded catalog by category and renders the product grid.
package listing

import (
	"context"
	"embed"
	"html/template"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/aylaurquizo/KTPHackathon/internal/catalog"
)

// EmptyMessage is rendered in place of the grid when the current filter matches nothing.
const EmptyMessage = "No products found in this category."

//go:embed templates/*.html
var templateFS embed.FS

var gridTemplate = template.Must(template.New("listing").Funcs(FuncMap()).ParseFS(templateFS, "templates/*.html"))

// FuncMap exposes the rendering helpers used by the grid so page templates can share them.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"description": RenderDescription,
		"glyphs": func(rating string) []GlyphKind {
			return Stars(rating).Glyphs()
		},
	}
}

// Loader is what Boot needs from the catalog.
type Loader interface {
	Load(ctx context.Context) catalog.Result
}

// Engine owns one page's product state: the full list, the active category and the derived
// filtered list, which is recomputed from the full list on every change.
type Engine struct {
	mu         sync.RWMutex
	products   []catalog.Product
	category   string
	filtered   []catalog.Product
	loading    bool
	source     string
	categories []Category
	logger     *zap.Logger
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithCategories replaces the embedded filter buttons.
func WithCategories(categories []Category) EngineOption {
	return func(e *Engine) {
		if len(categories) > 0 {
			e.categories = categories
		}
	}
}

// WithEngineLogger sets the engine logger.
func WithEngineLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine returns an engine in the loading state with the "all" filter selected.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		category:   AllCategory,
		loading:    true,
		categories: DefaultCategories(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Boot loads the catalog and applies the current filter. The loading flag clears once the loader
// returns, which it always does.
func (e *Engine) Boot(ctx context.Context, loader Loader) catalog.Result {
	e.mu.Lock()
	e.loading = true
	e.mu.Unlock()

	result := loader.Load(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.products = catalog.Clone(result.Products)
	e.source = result.Source
	e.filtered = Filter(e.products, e.category)
	e.loading = false
	e.logger.Debug("listing booted",
		zap.String("source", result.Source),
		zap.Int("count", len(e.products)),
		zap.String("category", e.category),
	)
	return result
}

// SetCategory switches the filter. Any string is accepted; unknown categories simply match nothing.
func (e *Engine) SetCategory(category string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.category = category
	e.filtered = Filter(e.products, category)
}

// Category returns the active filter.
func (e *Engine) Category() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.category
}

// Filtered returns a copy of the products matching the active filter.
func (e *Engine) Filtered() []catalog.Product {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return catalog.Clone(e.filtered)
}

// Products returns a copy of the full list.
func (e *Engine) Products() []catalog.Product {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return catalog.Clone(e.products)
}

// Loading reports whether Boot has not finished yet.
func (e *Engine) Loading() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loading
}

// Source names the catalog source of the current list.
func (e *Engine) Source() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.source
}

// Buttons returns the filter buttons with the active one marked.
func (e *Engine) Buttons() []Button {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Buttons(e.categories, e.products, e.category)
}

type gridData struct {
	Products     []catalog.Product
	EmptyMessage string
	CSRFToken    string
}

// RenderGrid writes the product cards for the filtered list, or the empty placeholder. csrfToken is
// embedded in each add-to-cart form so the cards also work without htmx.
func (e *Engine) RenderGrid(w io.Writer, csrfToken string) error {
	return gridTemplate.ExecuteTemplate(w, "grid", gridData{
		Products:     e.Filtered(),
		EmptyMessage: EmptyMessage,
		CSRFToken:    csrfToken,
	})
}
