package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/aylaurquizo/KTPHackathon/internal/backend"
	"github.com/aylaurquizo/KTPHackathon/internal/catalog"
	"github.com/aylaurquizo/KTPHackathon/internal/supabase"
	"github.com/aylaurquizo/KTPHackathon/internal/testutil"
)

// fakeAuth is an in-memory auth API for one visitor.
type fakeAuth struct {
	mu        sync.Mutex
	listeners map[int]supabase.AuthListener
	next      int
	session   *supabase.Session
	signInErr error
	signUpErr error
	signUps   []supabase.SignUpParams
	refreshes int
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{listeners: map[int]supabase.AuthListener{}}
}

func (f *fakeAuth) GetSession(context.Context) (*supabase.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, nil
}

func (f *fakeAuth) OnAuthStateChange(listener supabase.AuthListener) *supabase.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := f.next
	f.listeners[id] = listener
	return supabase.NewSubscription(strconv.Itoa(id), func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	})
}

func (f *fakeAuth) SignUp(_ context.Context, params supabase.SignUpParams) (*supabase.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signUps = append(f.signUps, params)
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	return &supabase.AuthResponse{User: &supabase.User{Email: params.Email}}, nil
}

func (f *fakeAuth) SignInWithPassword(_ context.Context, email, _ string) (*supabase.AuthResponse, error) {
	f.mu.Lock()
	if f.signInErr != nil {
		err := f.signInErr
		f.mu.Unlock()
		return nil, err
	}
	session := &supabase.Session{
		AccessToken: "token-" + email,
		User:        supabase.User{ID: "user-" + email, Email: email},
	}
	f.session = session
	f.mu.Unlock()
	f.emit(supabase.EventSignedIn, session)
	return &supabase.AuthResponse{User: &session.User, Session: session}, nil
}

func (f *fakeAuth) SignOut(context.Context) error {
	f.mu.Lock()
	f.session = nil
	f.mu.Unlock()
	f.emit(supabase.EventSignedOut, nil)
	return nil
}

func (f *fakeAuth) StartAutoRefresh(context.Context, time.Duration) func() {
	f.mu.Lock()
	f.refreshes++
	f.mu.Unlock()
	return func() {}
}

func (f *fakeAuth) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

func (f *fakeAuth) emit(event supabase.AuthEvent, session *supabase.Session) {
	f.mu.Lock()
	listeners := make([]supabase.AuthListener, 0, len(f.listeners))
	for _, l := range f.listeners {
		listeners = append(listeners, l)
	}
	f.mu.Unlock()
	for _, l := range listeners {
		l(event, session)
	}
}

// countingCatalog serves the sample boxes and counts loads.
type countingCatalog struct {
	mu    sync.Mutex
	calls int
	// products replaces the sample boxes when set.
	products []catalog.Product
}

func (c *countingCatalog) Load(context.Context) catalog.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.products != nil {
		return catalog.Result{Products: catalog.Clone(c.products), Source: "backend"}
	}
	return catalog.Result{Products: catalog.SampleBoxes(), Source: "sample"}
}

func (c *countingCatalog) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type cartCall struct {
	boxID  string
	userID *string
}

type fakeCart struct {
	mu    sync.Mutex
	ok    bool
	adds  []cartCall
	lines []backend.CartLine
}

func (c *fakeCart) AddToCart(_ context.Context, boxID string, userID *string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adds = append(c.adds, cartCall{boxID: boxID, userID: userID})
	return c.ok
}

func (c *fakeCart) UserCart(context.Context, string) []backend.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lines
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Catalog == nil {
		opts.Catalog = &countingCatalog{}
	}
	if opts.Cookies == nil {
		opts.Cookies = NewCookieCodec("test-signing-key", false, nil)
	}
	srv, err := New(opts)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

// browser replays cookies between requests and sends the CSRF token picked up from pages.
type browser struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
	csrf    string
}

func newBrowser(t *testing.T, srv *Server) *browser {
	return &browser{t: t, handler: srv.Handler(), cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(req *http.Request, htmx bool) *httptest.ResponseRecorder {
	b.t.Helper()
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) get(path string, htmx bool) *httptest.ResponseRecorder {
	b.t.Helper()
	return b.do(httptest.NewRequest(http.MethodGet, path, nil), htmx)
}

func (b *browser) post(path string, form url.Values, htmx bool) *httptest.ResponseRecorder {
	b.t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if b.csrf != "" {
		req.Header.Set("X-CSRF-Token", b.csrf)
	}
	return b.do(req, htmx)
}

// open loads the index page and remembers the CSRF token it carries.
func (b *browser) open() *goquery.Document {
	b.t.Helper()
	rec := b.get("/", false)
	if rec.Code != http.StatusOK {
		b.t.Fatalf("GET / = %d; body=%s", rec.Code, rec.Body.String())
	}
	doc := testutil.ParseHTML(b.t, rec.Body.Bytes())
	raw, ok := doc.Find("body").Attr("hx-headers")
	if !ok {
		b.t.Fatalf("body has no hx-headers attribute")
	}
	var headers map[string]string
	if err := json.Unmarshal([]byte(raw), &headers); err != nil {
		b.t.Fatalf("decode hx-headers %q: %v", raw, err)
	}
	b.csrf = headers["X-CSRF-Token"]
	if b.csrf == "" {
		b.t.Fatalf("empty CSRF token in %q", raw)
	}
	return doc
}
