package supabase

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AuthEvent names a session transition pushed to listeners.
type AuthEvent string

const (
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEvent = "USER_UPDATED"
)

// expiryMargin is how close to expiry a session may get before it is refreshed.
const expiryMargin = 30 * time.Second

// AuthListener receives every session transition. session is nil after sign-out.
type AuthListener func(event AuthEvent, session *Session)

// Subscription is a handle for one registered listener.
type Subscription struct {
	id          string
	once        sync.Once
	unsubscribe func()
}

// NewSubscription wraps an unsubscribe callback; used by alternative auth backends.
func NewSubscription(id string, unsubscribe func()) *Subscription {
	return &Subscription{id: id, unsubscribe: unsubscribe}
}

// ID identifies the subscription.
func (s *Subscription) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// Unsubscribe stops delivery. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
	})
}

// SignUpParams carries sign-up credentials plus user metadata (e.g. full_name).
type SignUpParams struct {
	Email    string
	Password string
	Data     map[string]any
}

// AuthResponse is the result of sign-up or sign-in. Session is nil when the backend requires
// email confirmation before the first sign-in.
type AuthResponse struct {
	User    *User
	Session *Session
}

type listenerEntry struct {
	id string
	fn AuthListener
}

// Auth holds one visitor's session and pushes transitions to its listeners.
type Auth struct {
	client *Client

	mu        sync.Mutex
	session   *Session
	listeners []listenerEntry
	nextID    int

	refreshMu sync.Mutex
}

// NewAuth returns an independent session holder bound to the client's project.
func (c *Client) NewAuth() *Auth {
	return &Auth{client: c}
}

// OnAuthStateChange registers listener. Listeners run in registration order, outside internal locks.
func (a *Auth) OnAuthStateChange(listener AuthListener) *Subscription {
	a.mu.Lock()
	a.nextID++
	id := "sub-" + strconv.Itoa(a.nextID)
	a.listeners = append(a.listeners, listenerEntry{id: id, fn: listener})
	a.mu.Unlock()

	return NewSubscription(id, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		for i, entry := range a.listeners {
			if entry.id == id {
				a.listeners = append(a.listeners[:i:i], a.listeners[i+1:]...)
				return
			}
		}
	})
}

// GetSession returns the current session, refreshing it first when it has expired.
// A nil session with a nil error means nobody is signed in.
func (a *Auth) GetSession(ctx context.Context) (*Session, error) {
	a.mu.Lock()
	current := a.session.clone()
	a.mu.Unlock()
	if current == nil {
		return nil, nil
	}
	if !a.expiresWithin(current, 0) {
		return current, nil
	}
	return a.refresh(ctx, current.RefreshToken)
}

// SignUp registers a new account. The session is stored only when the backend issues one.
func (a *Auth) SignUp(ctx context.Context, params SignUpParams) (*AuthResponse, error) {
	body := map[string]any{
		"email":    params.Email,
		"password": params.Password,
	}
	if len(params.Data) > 0 {
		body["data"] = params.Data
	}

	var payload struct {
		Session
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := a.client.do(ctx, request{method: http.MethodPost, path: authPrefix + "/signup", body: body}, &payload); err != nil {
		return nil, err
	}

	if payload.AccessToken != "" {
		session := payload.Session
		a.store(&session, EventSignedIn)
		user := session.User
		return &AuthResponse{User: &user, Session: session.clone()}, nil
	}

	user := payload.User
	if user.ID == "" {
		user.ID = payload.ID
		user.Email = payload.Email
	}
	return &AuthResponse{User: &user}, nil
}

// SignInWithPassword exchanges credentials for a session.
func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*AuthResponse, error) {
	var session Session
	err := a.client.do(ctx, request{
		method: http.MethodPost,
		path:   authPrefix + "/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   map[string]string{"email": email, "password": password},
	}, &session)
	if err != nil {
		return nil, err
	}
	if session.AccessToken == "" {
		return nil, &APIError{Status: http.StatusBadGateway, Message: "auth response did not include a session"}
	}
	a.store(&session, EventSignedIn)
	user := session.User
	return &AuthResponse{User: &user, Session: session.clone()}, nil
}

// SignOut revokes the session on the backend, then clears it locally and emits SIGNED_OUT.
// An already revoked or unknown token still clears the local session.
func (a *Auth) SignOut(ctx context.Context) error {
	a.mu.Lock()
	current := a.session.clone()
	a.mu.Unlock()

	if current != nil && current.AccessToken != "" {
		err := a.client.do(ctx, request{
			method: http.MethodPost,
			path:   authPrefix + "/logout",
			query:  url.Values{"scope": {"global"}},
			bearer: current.AccessToken,
		}, nil)
		if err != nil && !ignorableLogoutError(err) {
			return err
		}
	}
	a.store(nil, EventSignedOut)
	return nil
}

// SetSession installs a session obtained elsewhere and emits SIGNED_IN.
func (a *Auth) SetSession(session *Session) {
	if session == nil {
		a.store(nil, EventSignedOut)
		return
	}
	cp := session.clone()
	a.store(cp, EventSignedIn)
}

// StartAutoRefresh refreshes the session whenever it comes within the expiry margin, checking every
// interval. A rejected refresh token, or a failure after the access token expired, clears the session
// and emits SIGNED_OUT; transient failures before expiry are retried on the next tick. The returned func stops the
// loop and waits for it to exit.
func (a *Auth) StartAutoRefresh(ctx context.Context, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = expiryMargin
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.refreshIfDue(ctx, interval)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

func (a *Auth) refreshIfDue(ctx context.Context, interval time.Duration) {
	a.mu.Lock()
	current := a.session.clone()
	a.mu.Unlock()
	if current == nil || !a.expiresWithin(current, interval+expiryMargin) {
		return
	}
	if _, err := a.refresh(ctx, current.RefreshToken); err != nil && !errors.Is(err, context.Canceled) {
		a.client.logger.Info("supabase: session refresh failed", zap.Error(err))
	}
}

// refresh exchanges refreshToken for a new session. Concurrent callers holding the same token share
// one exchange. The session is cleared only when the backend rejects the refresh token or the access
// token has already expired; other failures keep it and return it with the error.
func (a *Auth) refresh(ctx context.Context, refreshToken string) (*Session, error) {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	a.mu.Lock()
	current := a.session.clone()
	a.mu.Unlock()
	if current == nil {
		return nil, nil
	}
	if current.RefreshToken != refreshToken && !a.expiresWithin(current, 0) {
		return current, nil
	}

	var next Session
	err := a.client.do(ctx, request{
		method: http.MethodPost,
		path:   authPrefix + "/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": current.RefreshToken},
	}, &next)
	if err == nil && next.AccessToken == "" {
		err = &APIError{Status: http.StatusBadGateway, Message: "refresh response did not include a session"}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		if refreshRejected(err) || a.expiresWithin(current, 0) {
			a.store(nil, EventSignedOut)
			return nil, err
		}
		// The token is still valid; the next tick retries.
		return current, err
	}
	a.store(&next, EventTokenRefreshed)
	return next.clone(), nil
}

func (a *Auth) expiresWithin(s *Session, margin time.Duration) bool {
	expiry := s.Expiry()
	if expiry.IsZero() {
		return false
	}
	return !a.client.now().Add(margin).Before(expiry)
}

// store replaces the session and notifies listeners with a snapshot taken under the lock.
func (a *Auth) store(session *Session, event AuthEvent) {
	if session != nil {
		normalizeExpiry(session, a.client.now())
	}

	a.mu.Lock()
	a.session = session
	listeners := make([]AuthListener, 0, len(a.listeners))
	for _, entry := range a.listeners {
		listeners = append(listeners, entry.fn)
	}
	a.mu.Unlock()

	for _, fn := range listeners {
		fn(event, session.clone())
	}
}

// refreshRejected reports whether the token endpoint refused the refresh token itself.
func refreshRejected(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return true
	default:
		return false
	}
}

func ignorableLogoutError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	default:
		return false
	}
}
