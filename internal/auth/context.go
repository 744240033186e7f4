// Package auth tracks one visitor's authentication state and the sign-up / sign-in form.
package auth

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/aylaurquizo/KTPHackathon/internal/supabase"
)

// ErrUnavailable is returned by credential operations when no backend is configured.
var ErrUnavailable = errors.New("Authentication is unavailable: the backend is not configured.")

// State is the session context lifecycle.
type State int

const (
	StateLoading State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Backend is the subset of the auth client the session context uses.
type Backend interface {
	GetSession(ctx context.Context) (*supabase.Session, error)
	OnAuthStateChange(listener supabase.AuthListener) *supabase.Subscription
	SignUp(ctx context.Context, params supabase.SignUpParams) (*supabase.AuthResponse, error)
	SignInWithPassword(ctx context.Context, email, password string) (*supabase.AuthResponse, error)
	SignOut(ctx context.Context) error
}

// Credentials are the email and password typed into the form.
type Credentials struct {
	Email    string
	Password string
}

// Profile is the metadata captured at sign-up.
type Profile struct {
	FullName string
}

// Snapshot is a consistent view of the context. User is nil unless State is StateAuthenticated.
type Snapshot struct {
	State   State
	Session *supabase.Session
	User    *supabase.User
}

// SessionContext mirrors the backend session for one visitor. It starts in StateLoading, runs an
// initial session fetch, and follows pushed auth events. A push event applied after the initial
// fetch started always wins over that fetch's result.
type SessionContext struct {
	backend Backend
	logger  *zap.Logger

	mu        sync.Mutex
	state     State
	session   *supabase.Session
	seq       uint64
	ready     chan struct{}
	sub       *supabase.Subscription
	observers []observer
	nextObs   int
	started   bool
	closed    bool
	cancel    context.CancelFunc

	// notifyMu keeps observer notifications in the order state changes were applied.
	notifyMu sync.Mutex
	wg       sync.WaitGroup
}

type observer struct {
	id int
	fn func(Snapshot)
}

// NewSessionContext binds a context to backend. A nil backend yields a context that settles as
// anonymous and rejects credential operations with ErrUnavailable.
func NewSessionContext(backend Backend, logger *zap.Logger) *SessionContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionContext{
		backend: backend,
		logger:  logger,
		state:   StateLoading,
		ready:   make(chan struct{}),
	}
}

// Start subscribes to auth events and launches the initial session fetch. Calling it again is a no-op.
func (c *SessionContext) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	if c.backend == nil {
		c.mu.Unlock()
		c.apply(nil, false, 0)
		return
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	startSeq := c.seq
	c.mu.Unlock()

	sub := c.backend.OnAuthStateChange(c.handleEvent)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		sub.Unsubscribe()
		cancel()
		return
	}
	c.sub = sub
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		session, err := c.backend.GetSession(fetchCtx)
		if err != nil {
			if fetchCtx.Err() != nil {
				return
			}
			c.logger.Warn("auth: initial session fetch failed", zap.Error(err))
			session = nil
		}
		c.apply(session, true, startSeq)
	}()
}

func (c *SessionContext) handleEvent(event supabase.AuthEvent, session *supabase.Session) {
	c.logger.Debug("auth: state change", zap.String("event", string(event)), zap.Bool("session", session != nil))
	c.apply(session, false, 0)
}

// apply installs session. Initial fetch results (fromFetch) are dropped when a push event has been
// applied since the fetch began.
func (c *SessionContext) apply(session *supabase.Session, fromFetch bool, startSeq uint64) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if fromFetch && c.seq != startSeq {
		c.mu.Unlock()
		return
	}
	if !fromFetch {
		c.seq++
	}
	c.session = session
	if session != nil {
		c.state = StateAuthenticated
	} else {
		c.state = StateAnonymous
	}
	select {
	case <-c.ready:
	default:
		close(c.ready)
	}
	snap := c.snapshotLocked()
	observers := make([]func(Snapshot), 0, len(c.observers))
	for _, o := range c.observers {
		observers = append(observers, o.fn)
	}
	c.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}

// Wait blocks until the context leaves StateLoading or ctx ends.
func (c *SessionContext) Wait(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current state.
func (c *SessionContext) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *SessionContext) snapshotLocked() Snapshot {
	snap := Snapshot{State: c.state}
	if c.session != nil {
		s := *c.session
		snap.Session = &s
		u := s.User
		snap.User = &u
	}
	return snap
}

// OnChange registers fn for every applied state change. The returned func removes it.
func (c *SessionContext) OnChange(fn func(Snapshot)) (cancel func()) {
	c.mu.Lock()
	c.nextObs++
	id := c.nextObs
	c.observers = append(c.observers, observer{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, o := range c.observers {
				if o.id == id {
					c.observers = append(c.observers[:i:i], c.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// SignUp registers a new account with the full name stored as user metadata.
func (c *SessionContext) SignUp(ctx context.Context, creds Credentials, profile Profile) error {
	if c.backend == nil {
		return ErrUnavailable
	}
	_, err := c.backend.SignUp(ctx, supabase.SignUpParams{
		Email:    creds.Email,
		Password: creds.Password,
		Data:     map[string]any{"full_name": profile.FullName},
	})
	return err
}

// SignIn exchanges credentials for a session. The state change arrives as a push event.
func (c *SessionContext) SignIn(ctx context.Context, creds Credentials) error {
	if c.backend == nil {
		return ErrUnavailable
	}
	_, err := c.backend.SignInWithPassword(ctx, creds.Email, creds.Password)
	return err
}

// SignOut asks the backend to end the session. Local state is cleared by the resulting push event.
func (c *SessionContext) SignOut(ctx context.Context) error {
	if c.backend == nil {
		return ErrUnavailable
	}
	return c.backend.SignOut(ctx)
}

// Close unsubscribes from auth events and stops the initial fetch. Later events are ignored.
func (c *SessionContext) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sub := c.sub
	c.sub = nil
	cancel := c.cancel
	c.observers = nil
	c.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	c.waitFetch()
}

func (c *SessionContext) waitFetch() {
	c.wg.Wait()
}
