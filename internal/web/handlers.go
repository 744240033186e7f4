package web

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/aylaurquizo/KTPHackathon/internal/auth"
	"github.com/aylaurquizo/KTPHackathon/internal/backend"
	"github.com/aylaurquizo/KTPHackathon/internal/listing"
	"github.com/aylaurquizo/KTPHackathon/internal/platform/httpx"
	"github.com/aylaurquizo/KTPHackathon/internal/platform/requestctx"
	"github.com/aylaurquizo/KTPHackathon/internal/view"
)

const rateLimitedMessage = "Too many attempts. Please wait a moment and try again."

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v := visitorFrom(ctx)
	if target, ok := view.Parse(r.URL.Query().Get("view")); ok {
		v.Navigate(target)
	}

	if !s.sessionSettled(ctx, v) {
		data := s.pageFor(r, v)
		data.Title = "Loading"
		data.Refresh = true
		s.renderPage(w, r, http.StatusOK, "loading", data)
		return
	}
	s.renderPage(w, r, http.StatusOK, "index", s.pageFor(r, v))
}

func (s *Server) handleAuthSubmit(mode auth.Mode) http.HandlerFunc {
	target := view.SignUp
	if mode == auth.ModeSignIn {
		target = view.Login
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := requestctx.Logger(ctx)
		v := visitorFrom(ctx)
		v.Navigate(target)

		if !v.AllowAuthAttempt() {
			v.RejectForm(mode, rateLimitedMessage)
			logger.Warn("auth attempt rate limited", zap.String("mode", mode.String()))
			s.respondAuth(w, r, v, http.StatusTooManyRequests)
			return
		}

		_, err := v.SubmitForm(ctx, mode, auth.Form{
			Email:    r.PostFormValue("email"),
			Password: r.PostFormValue("password"),
			FullName: r.PostFormValue("full_name"),
		})
		if err != nil {
			logger.Info("auth attempt rejected", zap.String("mode", mode.String()), zap.Error(err))
		}
		s.respondAuth(w, r, v, http.StatusOK)
	}
}

// respondAuth redirects home once a session exists; otherwise it re-renders the auth card, as a
// fragment for htmx (which only swaps 2xx responses) or as the full page.
func (s *Server) respondAuth(w http.ResponseWriter, r *http.Request, v *Visitor, status int) {
	if v.Router.Current() == view.Home {
		redirect(w, r, "/")
		return
	}
	data := s.pageFor(r, v)
	if isHTMX(r.Context()) {
		s.renderFragment(w, r, http.StatusOK, "auth-card", data)
		return
	}
	s.renderPage(w, r, status, "index", data)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v := visitorFrom(ctx)
	if err := v.Session.SignOut(ctx); err != nil && !errors.Is(err, auth.ErrUnavailable) {
		requestctx.Logger(ctx).Warn("sign out failed", zap.Error(err))
	}
	redirect(w, r, "/")
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v := visitorFrom(ctx)
	if category, ok := categoryParam(r); ok {
		v.Listing.SetCategory(category)
	}
	result := v.Listing.Boot(ctx, s.catalog)
	requestctx.Logger(ctx).Debug("catalog loaded",
		zap.String("source", result.Source),
		zap.Int("count", len(result.Products)),
	)

	lv, err := newListingView(v.Listing, csrfToken(ctx), false)
	if err != nil {
		s.renderFailure(w, r, err)
		return
	}
	data := s.pageFor(r, v)
	data.Title = "Mystery Boxes"
	data.Listing = lv
	s.renderPage(w, r, http.StatusOK, "products", data)
}

// handleProductsGrid re-renders the grid and the filter bar for a category change. The catalog is
// loaded only if this visitor has not loaded it yet.
func (s *Server) handleProductsGrid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v := visitorFrom(ctx)
	if v.Listing.Loading() {
		v.Listing.Boot(ctx, s.catalog)
	}
	if category, ok := categoryParam(r); ok {
		v.Listing.SetCategory(category)
	}
	lv, err := newListingView(v.Listing, csrfToken(ctx), true)
	if err != nil {
		s.renderFailure(w, r, err)
		return
	}
	s.renderFragment(w, r, http.StatusOK, "grid-fragment", lv)
}

type addToCartRequest struct {
	BoxID string `json:"box_id"`
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v := visitorFrom(ctx)

	boxID := strings.TrimSpace(r.PostFormValue("box_id"))
	if boxID == "" && isJSON(r) {
		var req addToCartRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_body", "request body must be JSON", http.StatusBadRequest))
			return
		}
		boxID = strings.TrimSpace(req.BoxID)
	}
	if boxID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_box_id", "box_id is required", http.StatusBadRequest))
		return
	}

	var userID *string
	if user := v.Session.Snapshot().User; user != nil {
		id := user.ID
		userID = &id
	}
	ok := s.cart != nil && s.cart.AddToCart(ctx, boxID, userID)
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"ok": ok})
}

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v := visitorFrom(ctx)
	user := v.Session.Snapshot().User
	if user == nil {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "sign in to view your cart", http.StatusUnauthorized))
		return
	}
	lines := []backend.CartLine{}
	if s.cart != nil {
		if got := s.cart.UserCart(ctx, user.ID); got != nil {
			lines = got
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": lines})
}

func (s *Server) pageFor(r *http.Request, v *Visitor) page {
	current := v.Router.Current()
	return page{
		Title:     titleFor(current),
		CSRFToken: csrfToken(r.Context()),
		View:      current,
		Form:      v.Form(),
		User:      v.Session.Snapshot().User,
	}
}

func (s *Server) sessionSettled(ctx context.Context, v *Visitor) bool {
	waitCtx, cancel := context.WithTimeout(ctx, s.sessionWait)
	defer cancel()
	return v.Session.Wait(waitCtx) == nil
}

// categoryParam reads ?category=. A present but blank value selects every category.
func categoryParam(r *http.Request) (string, bool) {
	q := r.URL.Query()
	if !q.Has("category") {
		return "", false
	}
	category := strings.TrimSpace(q.Get("category"))
	if category == "" {
		category = listing.AllCategory
	}
	return category, true
}

func redirect(w http.ResponseWriter, r *http.Request, to string) {
	if isHTMX(r.Context()) {
		w.Header().Set("HX-Redirect", to)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}
