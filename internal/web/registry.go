package web

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/aylaurquizo/KTPHackathon/internal/auth"
	"github.com/aylaurquizo/KTPHackathon/internal/listing"
	"github.com/aylaurquizo/KTPHackathon/internal/view"
)

// Visitor is the server-side state of one browser: its auth session, current view, auth form and
// product listing.
type Visitor struct {
	ID      string
	Session *auth.SessionContext
	Router  *view.Router
	Listing *listing.Engine

	limiter  *rate.Limiter
	lastSeen atomic.Int64

	submitMu sync.Mutex
	mu       sync.Mutex
	form     auth.Form
	closers  []func()
	closed   bool
}

// VisitorFactory builds the state for a visitor seen for the first time.
type VisitorFactory func(id string) *Visitor

// NewVisitor wires a session context to a router so that auth transitions drive the view. The
// session is started; closers run in reverse order when the visitor is evicted.
func NewVisitor(id string, session *auth.SessionContext, engine *listing.Engine, limiter *rate.Limiter, closers ...func()) *Visitor {
	v := &Visitor{
		ID:      id,
		Session: session,
		Router:  view.NewRouter(),
		Listing: engine,
		limiter: limiter,
		form:    auth.Form{Mode: auth.ModeSignUp},
	}
	stopObserving := session.OnChange(func(snap auth.Snapshot) {
		if snap.State != auth.StateLoading {
			v.Router.SessionChanged(snap.State == auth.StateAuthenticated)
		}
	})
	session.Start(context.Background())
	v.closers = append(v.closers, stopObserving, session.Close)
	v.closers = append(v.closers, closers...)
	return v
}

// Form returns a copy of the auth form state.
func (v *Visitor) Form() auth.Form {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.form
}

// SubmitForm copies the submitted fields into the visitor's form and runs it. Submissions from the
// same visitor are serialized.
func (v *Visitor) SubmitForm(ctx context.Context, mode auth.Mode, input auth.Form) (auth.Form, error) {
	v.submitMu.Lock()
	defer v.submitMu.Unlock()

	v.mu.Lock()
	form := v.form
	v.mu.Unlock()

	form.Mode = mode
	form.Email = input.Email
	form.Password = input.Password
	form.FullName = input.FullName
	err := form.Submit(ctx, v.Session)

	v.mu.Lock()
	v.form = form
	v.mu.Unlock()
	return form, err
}

// RejectForm records a failure that happened before the backend was called.
func (v *Visitor) RejectForm(mode auth.Mode, message string) auth.Form {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.form.Mode = mode
	v.form.Error = message
	v.form.Message = ""
	return v.form
}

// Navigate switches between the sign-up and login screens and resets the form feedback.
func (v *Visitor) Navigate(target view.View) bool {
	if !v.Router.Navigate(target) {
		return false
	}
	mode := auth.ModeSignUp
	if target == view.Login {
		mode = auth.ModeSignIn
	}
	v.mu.Lock()
	v.form.Reset(mode)
	v.mu.Unlock()
	return true
}

// AllowAuthAttempt applies the per-visitor credential rate limit.
func (v *Visitor) AllowAuthAttempt() bool {
	return v.limiter == nil || v.limiter.Allow()
}

// LastSeen reports when the visitor last made a request.
func (v *Visitor) LastSeen() time.Time {
	return time.Unix(0, v.lastSeen.Load())
}

func (v *Visitor) touch(now time.Time) {
	v.lastSeen.Store(now.UnixNano())
}

func (v *Visitor) close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	closers := v.closers
	v.closers = nil
	v.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}

// Registry keeps visitors in memory, keyed by visitor id, and evicts idle ones.
type Registry struct {
	mu       sync.Mutex
	visitors map[string]*Visitor
	factory  VisitorFactory
	ttl      time.Duration
	limit    int
	now      func() time.Time
	logger   *zap.Logger
}

// NewRegistry returns an empty registry. A non-positive ttl disables idle eviction; a non-positive
// limit leaves the number of visitors uncapped.
func NewRegistry(factory VisitorFactory, ttl time.Duration, limit int, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		visitors: make(map[string]*Visitor),
		factory:  factory,
		ttl:      ttl,
		limit:    limit,
		now:      time.Now,
		logger:   logger,
	}
}

// Get returns the visitor for id, creating it on first sight, and marks it as seen. When the
// registry is full the least recently seen visitor is closed to make room.
func (r *Registry) Get(id string) *Visitor {
	r.mu.Lock()
	v, ok := r.visitors[id]
	var evicted *Visitor
	if !ok {
		if r.limit > 0 && len(r.visitors) >= r.limit {
			evicted = r.removeOldestLocked()
		}
		v = r.factory(id)
		r.visitors[id] = v
		r.logger.Debug("visitor registered", zap.String("visitor_id", id))
	}
	v.touch(r.now())
	r.mu.Unlock()

	if evicted != nil {
		evicted.close()
		r.logger.Info("visitor evicted at capacity", zap.String("visitor_id", evicted.ID), zap.Int("limit", r.limit))
	}
	return v
}

func (r *Registry) removeOldestLocked() *Visitor {
	var (
		oldestID string
		oldest   *Visitor
	)
	for id, v := range r.visitors {
		if oldest == nil || v.lastSeen.Load() < oldest.lastSeen.Load() {
			oldestID, oldest = id, v
		}
	}
	if oldest != nil {
		delete(r.visitors, oldestID)
	}
	return oldest
}

// Lookup returns the visitor for id without creating or touching it.
func (r *Registry) Lookup(id string) (*Visitor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.visitors[id]
	return v, ok
}

// Len reports the number of live visitors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visitors)
}

// Sweep closes and forgets visitors idle for longer than the ttl. It returns how many were evicted.
func (r *Registry) Sweep(now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	var idle []*Visitor
	for id, v := range r.visitors {
		if now.Sub(v.LastSeen()) > r.ttl {
			idle = append(idle, v)
			delete(r.visitors, id)
		}
	}
	r.mu.Unlock()

	for _, v := range idle {
		v.close()
	}
	if len(idle) > 0 {
		r.logger.Info("visitors evicted", zap.Int("count", len(idle)), zap.Int("remaining", r.Len()))
	}
	return len(idle)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			r.Sweep(t)
		}
	}
}

// Close evicts every visitor.
func (r *Registry) Close() {
	r.mu.Lock()
	visitors := r.visitors
	r.visitors = make(map[string]*Visitor)
	r.mu.Unlock()

	for _, v := range visitors {
		v.close()
	}
}
