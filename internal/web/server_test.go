package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/aylaurquizo/KTPHackathon/internal/auth"
	"github.com/aylaurquizo/KTPHackathon/internal/backend"
	"github.com/aylaurquizo/KTPHackathon/internal/catalog"
	"github.com/aylaurquizo/KTPHackathon/internal/listing"
	"github.com/aylaurquizo/KTPHackathon/internal/supabase"
	"github.com/aylaurquizo/KTPHackathon/internal/testutil"
)

func withAuth(fa *fakeAuth) func() AuthBackend {
	return func() AuthBackend { return fa }
}

func TestHealthzOK(t *testing.T) {
	srv := newTestServer(t, Options{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "ok" {
		t.Fatalf("expected body 'ok', got %q", got)
	}
	if srv.Registry().Len() != 0 {
		t.Fatalf("healthz must not register visitors")
	}
}

func TestIndexShowsSignUpForAnonymousVisitor(t *testing.T) {
	srv := newTestServer(t, Options{NewAuth: withAuth(newFakeAuth())})
	b := newBrowser(t, srv)
	doc := b.open()

	if got := testutil.Texts(doc, "#auth-card h2"); len(got) != 1 || got[0] != "Create an Account" {
		t.Fatalf("unexpected heading %v", got)
	}
	if doc.Find(`input[name="full_name"]`).Length() != 1 {
		t.Fatalf("sign-up form must ask for the full name")
	}
	if _, ok := b.cookies[visitorCookieName]; !ok {
		t.Fatalf("expected visitor cookie to be issued")
	}
	if srv.Registry().Len() != 1 {
		t.Fatalf("expected one visitor, got %d", srv.Registry().Len())
	}

	b.open()
	if srv.Registry().Len() != 1 {
		t.Fatalf("returning visitor must reuse its state, got %d visitors", srv.Registry().Len())
	}
}

func TestIndexManualNavigation(t *testing.T) {
	srv := newTestServer(t, Options{NewAuth: withAuth(newFakeAuth())})
	b := newBrowser(t, srv)
	b.open()

	rec := b.get("/?view=login", false)
	doc := testutil.ParseHTML(t, rec.Body.Bytes())
	if got := testutil.Texts(doc, "#auth-card h2"); len(got) != 1 || got[0] != "Sign In" {
		t.Fatalf("expected login view, got %v", got)
	}
	if doc.Find(`input[name="full_name"]`).Length() != 0 {
		t.Fatalf("login form must not ask for the full name")
	}
	if action, _ := doc.Find("form.auth-form").Attr("action"); action != "/login" {
		t.Fatalf("expected login action, got %q", action)
	}

	rec = b.get("/?view=home", false)
	doc = testutil.ParseHTML(t, rec.Body.Bytes())
	if doc.Find("#home-card").Length() != 0 {
		t.Fatalf("home must not be reachable without a session")
	}
}

func TestSignInThenSignOut(t *testing.T) {
	fa := newFakeAuth()
	srv := newTestServer(t, Options{NewAuth: withAuth(fa), TokenRefresh: time.Minute})
	b := newBrowser(t, srv)
	b.open()
	if n := fa.refreshCount(); n != 0 {
		t.Fatalf("expected no auto refresh before sign-in, got %d", n)
	}

	rec := b.post("/login", url.Values{"email": {"bo@example.com"}, "password": {"pw"}}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d; body=%s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("HX-Redirect"); got != "/" {
		t.Fatalf("expected HX-Redirect to /, got %q", got)
	}

	doc := b.open()
	if doc.Find("#home-card").Length() != 1 {
		t.Fatalf("expected home view after sign-in; body=%s", b.get("/", false).Body.String())
	}
	if got := testutil.Texts(doc, ".account"); len(got) != 1 || got[0] != "You are logged in as: bo@example.com" {
		t.Fatalf("unexpected account line %v", got)
	}

	rec = b.post("/logout", url.Values{}, false)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	doc = b.open()
	if got := testutil.Texts(doc, "#auth-card h2"); len(got) != 1 || got[0] != "Create an Account" {
		t.Fatalf("expected sign-up view after sign-out, got %v", got)
	}
	if n := fa.refreshCount(); n != 1 {
		t.Fatalf("expected auto refresh to start once per visitor, got %d", n)
	}
}

func TestSignInErrorIsShownVerbatim(t *testing.T) {
	fa := newFakeAuth()
	fa.signInErr = &supabase.APIError{Status: http.StatusBadRequest, Message: "Invalid login credentials"}
	srv := newTestServer(t, Options{NewAuth: withAuth(fa)})
	b := newBrowser(t, srv)
	b.open()

	rec := b.post("/login", url.Values{"email": {"x@example.com"}, "password": {"nope"}}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fragment, got %d", rec.Code)
	}
	doc := testutil.ParseHTML(t, rec.Body.Bytes())
	if got := testutil.Texts(doc, "#auth-card .error"); len(got) != 1 || got[0] != "Invalid login credentials" {
		t.Fatalf("unexpected error %v", got)
	}
	if got := testutil.Attrs(doc, `input[name="email"]`, "value"); len(got) != 1 || got[0] != "x@example.com" {
		t.Fatalf("email must be kept after a failed attempt, got %v", got)
	}
	if doc.Find("#auth-card .message").Length() != 0 {
		t.Fatalf("error and message must not both render")
	}
}

func TestSignUpShowsConfirmation(t *testing.T) {
	fa := newFakeAuth()
	srv := newTestServer(t, Options{NewAuth: withAuth(fa)})
	b := newBrowser(t, srv)
	b.open()

	rec := b.post("/signup", url.Values{
		"email":     {"new@example.com"},
		"password":  {"secret"},
		"full_name": {"New Member"},
	}, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	doc := testutil.ParseHTML(t, rec.Body.Bytes())
	if got := testutil.Texts(doc, "#auth-card .message"); len(got) != 1 || got[0] != auth.ConfirmationMessage {
		t.Fatalf("unexpected message %v", got)
	}
	if got := testutil.Attrs(doc, `input[name="email"]`, "value"); len(got) != 1 || got[0] != "" {
		t.Fatalf("fields must be cleared after sign-up, got %v", got)
	}
	if len(fa.signUps) != 1 || fa.signUps[0].Data["full_name"] != "New Member" {
		t.Fatalf("unexpected sign-up calls %+v", fa.signUps)
	}
}

func TestUnconfiguredAuthShowsUnavailable(t *testing.T) {
	srv := newTestServer(t, Options{})
	b := newBrowser(t, srv)
	b.open()

	rec := b.post("/login", url.Values{"email": {"a@example.com"}, "password": {"pw"}}, true)
	doc := testutil.ParseHTML(t, rec.Body.Bytes())
	if got := testutil.Texts(doc, "#auth-card .error"); len(got) != 1 || got[0] != auth.ErrUnavailable.Error() {
		t.Fatalf("unexpected error %v", got)
	}
}

func TestMutationsRequireCSRFToken(t *testing.T) {
	srv := newTestServer(t, Options{NewAuth: withAuth(newFakeAuth())})
	b := newBrowser(t, srv)
	b.open()

	token := b.csrf
	b.csrf = ""
	rec := b.post("/login", url.Values{"email": {"a@example.com"}, "password": {"pw"}}, true)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without token, got %d", rec.Code)
	}

	rec = b.post("/login", url.Values{"email": {"a@example.com"}, "password": {"pw"}, "csrf_token": {token}}, false)
	if rec.Code == http.StatusForbidden {
		t.Fatalf("form field token must be accepted")
	}
}

func TestAuthAttemptsAreRateLimited(t *testing.T) {
	fa := newFakeAuth()
	fa.signInErr = &supabase.APIError{Status: http.StatusBadRequest, Message: "Invalid login credentials"}
	srv := newTestServer(t, Options{NewAuth: withAuth(fa), AuthRate: rate.Every(time.Hour), AuthBurst: 1})
	b := newBrowser(t, srv)
	b.open()

	form := url.Values{"email": {"a@example.com"}, "password": {"pw"}}
	if rec := b.post("/login", form, false); rec.Code != http.StatusOK {
		t.Fatalf("first attempt: expected 200, got %d", rec.Code)
	}
	rec := b.post("/login", form, false)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second attempt: expected 429, got %d", rec.Code)
	}
	doc := testutil.ParseHTML(t, rec.Body.Bytes())
	if got := testutil.Texts(doc, "#auth-card .error"); len(got) != 1 || got[0] != rateLimitedMessage {
		t.Fatalf("unexpected error %v", got)
	}
}

func TestProductsPage(t *testing.T) {
	srv := newTestServer(t, Options{})
	b := newBrowser(t, srv)

	rec := b.get("/products", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	doc := testutil.ParseHTML(t, rec.Body.Bytes())
	if n := doc.Find("#products-grid .product-card").Length(); n != 12 {
		t.Fatalf("expected 12 cards, got %d", n)
	}
	if doc.Find("#loading[hidden]").Length() != 1 {
		t.Fatalf("loading indicator must be hidden once products are loaded")
	}
	if doc.Find("#error-message").Length() != 1 {
		t.Fatalf("expected error-message placeholder")
	}
	if got := testutil.Attrs(doc, ".filter-btn.active", "data-category"); len(got) != 1 || got[0] != listing.AllCategory {
		t.Fatalf("expected 'all' to be active, got %v", got)
	}

	rec = b.get("/products?category=combo_boxes", false)
	doc = testutil.ParseHTML(t, rec.Body.Bytes())
	if n := doc.Find("#products-grid .product-card").Length(); n != 3 {
		t.Fatalf("expected 3 combo boxes, got %d", n)
	}
	if got := testutil.Attrs(doc, ".filter-btn.active", "data-category"); len(got) != 1 || got[0] != "combo_boxes" {
		t.Fatalf("expected combo_boxes to be active, got %v", got)
	}

	rec = b.get("/products?category=unknown", false)
	doc = testutil.ParseHTML(t, rec.Body.Bytes())
	if got := testutil.Texts(doc, "#products-grid .no-products"); len(got) != 1 || got[0] != listing.EmptyMessage {
		t.Fatalf("expected empty placeholder, got %v", got)
	}
}

func TestProductsGridFragment(t *testing.T) {
	cat := &countingCatalog{}
	srv := newTestServer(t, Options{Catalog: cat})
	b := newBrowser(t, srv)

	rec := b.get("/products/grid?category=creatine", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	doc := testutil.ParseHTML(t, rec.Body.Bytes())
	if got := testutil.Texts(doc, ".product-title"); len(got) != 1 || got[0] != "Creatine Performance Box" {
		t.Fatalf("unexpected titles %v", got)
	}
	if doc.Find(`#filters[hx-swap-oob="true"]`).Length() != 1 {
		t.Fatalf("expected out-of-band filter bar")
	}
	if cat.Calls() != 1 {
		t.Fatalf("expected one load, got %d", cat.Calls())
	}

	b.get("/products/grid?category=all", true)
	if cat.Calls() != 1 {
		t.Fatalf("filter changes must not reload the catalog, got %d loads", cat.Calls())
	}

	rec = b.get("/products", false)
	doc = testutil.ParseHTML(t, rec.Body.Bytes())
	if cat.Calls() != 2 {
		t.Fatalf("page loads reload the catalog, got %d loads", cat.Calls())
	}
	if n := doc.Find(".product-card").Length(); n != 12 {
		t.Fatalf("category must persist across page loads, got %d cards", n)
	}
}

func TestAddToCart(t *testing.T) {
	fa := newFakeAuth()
	cart := &fakeCart{ok: true}
	srv := newTestServer(t, Options{NewAuth: withAuth(fa), Cart: cart})
	b := newBrowser(t, srv)
	b.open()

	rec := b.post("/cart", url.Values{"box_id": {"7"}}, true)
	assertJSON(t, rec, http.StatusOK, map[string]any{"ok": true})
	if len(cart.adds) != 1 || cart.adds[0].boxID != "7" || cart.adds[0].userID != nil {
		t.Fatalf("unexpected anonymous add %+v", cart.adds)
	}

	rec = b.post("/cart", url.Values{}, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without box_id, got %d", rec.Code)
	}

	b.post("/login", url.Values{"email": {"cy@example.com"}, "password": {"pw"}}, true)
	b.post("/cart", url.Values{"box_id": {"8"}}, true)
	if len(cart.adds) != 2 || cart.adds[1].userID == nil || *cart.adds[1].userID != "user-cy@example.com" {
		t.Fatalf("expected signed-in add to carry the user id, got %+v", cart.adds)
	}

	req := httptest.NewRequest(http.MethodPost, "/cart", strings.NewReader(`{"box_id":"9"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", b.csrf)
	rec = b.do(req, false)
	assertJSON(t, rec, http.StatusOK, map[string]any{"ok": true})
	if cart.adds[2].boxID != "9" {
		t.Fatalf("expected JSON body to be accepted, got %+v", cart.adds[2])
	}
}

func TestAddToCartFormCarriesCSRFToken(t *testing.T) {
	cart := &fakeCart{ok: true}
	cat := &countingCatalog{products: []catalog.Product{{
		ID:       "11",
		Title:    "Creatine Starter Box",
		Rating:   "4 out of 5 stars",
		Category: "creatine",
	}}}
	srv := newTestServer(t, Options{NewAuth: withAuth(newFakeAuth()), Cart: cart, Catalog: cat})
	b := newBrowser(t, srv)
	b.open()

	rec := b.get("/products", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /products = %d", rec.Code)
	}
	doc := testutil.ParseHTML(t, rec.Body.Bytes())
	form := doc.Find("form.add-to-cart")
	if form.Length() != 1 {
		t.Fatalf("expected one add-to-cart form, got %d", form.Length())
	}
	token, _ := form.Find(`input[name="csrf_token"]`).Attr("value")
	if token != b.csrf {
		t.Fatalf("form token %q does not match session token %q", token, b.csrf)
	}

	// Plain form post without htmx or the header, as a browser without JavaScript would send it.
	fields := url.Values{}
	form.Find("input[type=hidden]").Each(func(_ int, in *goquery.Selection) {
		name, _ := in.Attr("name")
		value, _ := in.Attr("value")
		fields.Set(name, value)
	})
	req := httptest.NewRequest(http.MethodPost, "/cart", strings.NewReader(fields.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = b.do(req, false)
	assertJSON(t, rec, http.StatusOK, map[string]any{"ok": true})
	if len(cart.adds) != 1 || cart.adds[0].boxID != "11" {
		t.Fatalf("unexpected adds %+v", cart.adds)
	}
}

func TestAddToCartWithoutBackend(t *testing.T) {
	srv := newTestServer(t, Options{})
	b := newBrowser(t, srv)
	b.open()

	rec := b.post("/cart", url.Values{"box_id": {"7"}}, true)
	assertJSON(t, rec, http.StatusOK, map[string]any{"ok": false})
}

func TestCartRequiresSession(t *testing.T) {
	fa := newFakeAuth()
	cart := &fakeCart{lines: []backend.CartLine{{ID: "1", BoxID: "7", Quantity: 1}}}
	srv := newTestServer(t, Options{NewAuth: withAuth(fa), Cart: cart})
	b := newBrowser(t, srv)
	b.open()

	rec := b.get("/cart", false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var errBody map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &errBody); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if errBody["error"] != "unauthenticated" {
		t.Fatalf("unexpected error body %v", errBody)
	}

	b.post("/login", url.Values{"email": {"di@example.com"}, "password": {"pw"}}, true)
	rec = b.get("/cart", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Items []backend.CartLine `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	if len(body.Items) != 1 || body.Items[0].BoxID != "7" {
		t.Fatalf("unexpected cart %+v", body.Items)
	}
}

func TestTamperedCookieIsReplaced(t *testing.T) {
	srv := newTestServer(t, Options{})
	b := newBrowser(t, srv)
	b.open()
	original := b.cookies[visitorCookieName].Value

	b.cookies[visitorCookieName].Value = original[:len(original)-2] + "xx"
	b.open()
	if b.cookies[visitorCookieName].Value == original {
		t.Fatalf("expected a new cookie after tampering")
	}
	if srv.Registry().Len() != 2 {
		t.Fatalf("tampered cookie must start a new visitor, got %d", srv.Registry().Len())
	}
}

func assertJSON(t *testing.T, rec *httptest.ResponseRecorder, status int, want map[string]any) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected %d, got %d; body=%s", status, rec.Code, rec.Body.String())
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%s: expected %v, got %v", k, v, got[k])
		}
	}
}
