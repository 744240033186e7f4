package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/aylaurquizo/KTPHackathon/internal/auth"
	"github.com/aylaurquizo/KTPHackathon/internal/listing"
	"github.com/aylaurquizo/KTPHackathon/internal/platform/requestctx"
	"github.com/aylaurquizo/KTPHackathon/internal/supabase"
	"github.com/aylaurquizo/KTPHackathon/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"index", "loading", "products"}

// renderer holds one template set per page, each sharing the layout and partials.
type renderer struct {
	partials *template.Template
	pages    map[string]*template.Template
}

func newRenderer() (*renderer, error) {
	base, err := template.New("layout").Funcs(listing.FuncMap()).ParseFS(templateFS, "templates/layout.html", "templates/partials.html")
	if err != nil {
		return nil, fmt.Errorf("web: parse layout: %w", err)
	}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("web: clone layout for %s: %w", name, err)
		}
		if _, err := t.ParseFS(templateFS, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("web: parse %s: %w", name, err)
		}
		pages[name] = t
	}
	return &renderer{partials: base, pages: pages}, nil
}

// page is the view model shared by every full page.
type page struct {
	Title     string
	CSRFToken string
	View      view.View
	Form      auth.Form
	User      *supabase.User
	Listing   *listingView
	Refresh   bool
}

// listingView is the product listing as rendered: buttons, the pre-rendered grid and status.
type listingView struct {
	Buttons  []listing.Button
	Grid     template.HTML
	Source   string
	Category string
	Loading  bool
	// OOB marks the filter bar for an htmx out-of-band swap.
	OOB bool
}

func newListingView(engine *listing.Engine, csrfToken string, oob bool) (*listingView, error) {
	var buf bytes.Buffer
	if err := engine.RenderGrid(&buf, csrfToken); err != nil {
		return nil, err
	}
	return &listingView{
		Buttons:  engine.Buttons(),
		Grid:     template.HTML(buf.String()),
		Source:   engine.Source(),
		Category: engine.Category(),
		Loading:  engine.Loading(),
		OOB:      oob,
	}, nil
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, name string, data page) {
	t, ok := s.pages.pages[name]
	if !ok {
		s.renderFailure(w, r, fmt.Errorf("unknown page %q", name))
		return
	}
	s.execute(w, r, status, t, "layout", data)
}

func (s *Server) renderFragment(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	s.execute(w, r, status, s.pages.partials, name, data)
}

// execute renders into a buffer first so a template error never produces a half-written page.
func (s *Server) execute(w http.ResponseWriter, r *http.Request, status int, t *template.Template, name string, data any) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		s.renderFailure(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderFailure(w http.ResponseWriter, r *http.Request, err error) {
	requestctx.Logger(r.Context()).Error("render failed", zap.Error(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func titleFor(v view.View) string {
	switch v {
	case view.Login:
		return "Sign In"
	case view.Home:
		return "Gym Subscription Box"
	default:
		return "Create an Account"
	}
}
